/*
Copyright 2025 The Crossplane Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package view

import (
	"github.com/crossplane/crossplane-runtime/pkg/logging"

	"github.com/n3wscott/function-script/pkg/structured"
)

// EnvironmentKey is the context key under which Crossplane passes the
// composition environment between pipeline steps.
const EnvironmentKey = "apiextensions.crossplane.io/environment"

// A Severity of a Result.
type Severity int

// Result severities.
const (
	SeverityNormal Severity = iota
	SeverityWarning
)

// A Result is an event a script reports to the orchestrator.
type Result struct {
	Severity Severity
	Message  string
}

// An ExtraResourceSelector asks the orchestrator to supply extra resources
// on the next invocation.
type ExtraResourceSelector struct {
	APIVersion  string
	Kind        string
	MatchName   string
	MatchLabels map[string]string
}

// A CompositeOption configures a Composite.
type CompositeOption func(c *Composite)

// WithObserved sets the observed composite object.
func WithObserved(o map[string]any) CompositeOption {
	return func(c *Composite) {
		c.observed = o
	}
}

// WithDesired sets the composite state accumulated by earlier pipeline
// steps.
func WithDesired(desired, connection map[string]any, ready Ready) CompositeOption {
	return func(c *Composite) {
		c.desired = desired
		c.connection = connection
		c.ready = ready
	}
}

// WithContext sets the pipeline context.
func WithContext(ctx map[string]any) CompositeOption {
	return func(c *Composite) {
		c.context = ctx
	}
}

// WithExtras sets the extra resources supplied by the orchestrator.
func WithExtras(extras map[string]any) CompositeOption {
	return func(c *Composite) {
		c.extras = extras
	}
}

// WithCredentials sets the credentials supplied by the orchestrator.
func WithCredentials(creds map[string]any) CompositeOption {
	return func(c *Composite) {
		c.credentials = creds
	}
}

// WithResources sets the composed resource collection.
func WithResources(r *Resources) CompositeOption {
	return func(c *Composite) {
		c.resources = r
	}
}

// WithLogger sets the logger scripts write to.
func WithLogger(l logging.Logger) CompositeOption {
	return func(c *Composite) {
		c.log = l
	}
}

// A Composite is the top-level view a script is handed. It aggregates the
// observed and desired composite, the pipeline context and the composed
// resource collection.
type Composite struct {
	observed    map[string]any
	desired     map[string]any
	connection  map[string]any
	ready       Ready
	context     map[string]any
	extras      map[string]any
	credentials map[string]any

	conditions   *Conditions
	resources    *Resources
	results      []Result
	requirements map[string]ExtraResourceSelector
	log          logging.Logger
}

// NewComposite returns a Composite. Anything not supplied is empty.
func NewComposite(o ...CompositeOption) *Composite {
	c := &Composite{log: logging.NewNopLogger()}
	for _, fn := range o {
		fn(c)
	}
	for _, m := range []*map[string]any{&c.observed, &c.desired, &c.connection, &c.context, &c.extras, &c.credentials} {
		if *m == nil {
			*m = map[string]any{}
		}
	}
	if c.resources == nil {
		c.resources = NewResources()
	}
	c.conditions = NewMutableConditions(c.observed)
	c.requirements = map[string]ExtraResourceSelector{}
	return c
}

// Context returns a view of the pipeline context. Writes are passed to later
// pipeline steps.
func (c *Composite) Context() *Field {
	return NewField(structured.Bind(c.context))
}

// Environment returns a view of the composition environment, which lives in
// the pipeline context.
func (c *Composite) Environment() *Field {
	return NewField(structured.Bind(c.context).Field(EnvironmentKey))
}

// Extras returns a view of the extra resources, keyed by requirement name.
func (c *Composite) Extras() *Field {
	return NewField(structured.Bind(c.extras))
}

// Credentials returns a view of the credentials, keyed by name.
func (c *Composite) Credentials() *Field {
	return NewField(structured.Bind(c.credentials))
}

// APIVersion of the observed composite.
func (c *Composite) APIVersion() string {
	s, _ := c.observed["apiVersion"].(string)
	return s
}

// Kind of the observed composite.
func (c *Composite) Kind() string {
	s, _ := c.observed["kind"].(string)
	return s
}

// Name of the observed composite.
func (c *Composite) Name() string {
	v, _, _ := structured.Bind(c.observed).Field("metadata").Field("name").Lookup()
	s, _ := v.(string)
	return s
}

// Metadata returns a read-only view of the observed composite's metadata.
func (c *Composite) Metadata() *Field {
	return NewReadOnlyField("composite metadata", structured.Bind(c.observed).Field("metadata"))
}

// Spec returns a view of the observed composite's spec. Writes are visible
// to the rest of the script but are not part of the response.
func (c *Composite) Spec() *Field {
	return NewField(structured.Bind(c.observed).Field("spec"))
}

// Status returns a view of the desired composite's status.
func (c *Composite) Status() *Field {
	return NewField(structured.Bind(c.desired).Field("status"))
}

// Observed returns a read-only view of the entire observed composite.
func (c *Composite) Observed() *Field {
	return NewReadOnlyField("observed composite", structured.Bind(c.observed))
}

// Desired returns a view of the entire desired composite.
func (c *Composite) Desired() *Field {
	return NewField(structured.Bind(c.desired))
}

// Conditions of the composite. Conditions set here are returned to the
// orchestrator.
func (c *Composite) Conditions() *Conditions {
	return c.conditions
}

// Connection returns a view of the desired composite connection details.
func (c *Composite) Connection() *Field {
	return NewField(structured.Bind(c.connection))
}

// Ready returns true only if the composite has been marked ready.
func (c *Composite) Ready() bool {
	return c.ready == ReadyTrue
}

// ReadyState returns the tri-state readiness of the composite.
func (c *Composite) ReadyState() Ready {
	return c.ready
}

// SetReady marks the composite ready or not ready.
func (c *Composite) SetReady(ready bool) {
	c.ready = ReadyFalse
	if ready {
		c.ready = ReadyTrue
	}
}

// Resources returns the composed resource collection.
func (c *Composite) Resources() *Resources {
	return c.resources
}

// Logger returns the logger scripts write to. It is not part of the data
// model and nothing written to it is returned to the orchestrator.
func (c *Composite) Logger() logging.Logger {
	return c.log
}

// Normal records an informational result.
func (c *Composite) Normal(message string) {
	c.results = append(c.results, Result{Severity: SeverityNormal, Message: message})
}

// Warning records a warning result.
func (c *Composite) Warning(message string) {
	c.results = append(c.results, Result{Severity: SeverityWarning, Message: message})
}

// Results returns every result recorded, in order.
func (c *Composite) Results() []Result {
	return append([]Result{}, c.results...)
}

// RequireExtraResources asks the orchestrator to supply the selected
// resources under the supplied name. Requiring a name twice replaces the
// earlier selector.
func (c *Composite) RequireExtraResources(name string, s ExtraResourceSelector) {
	c.requirements[name] = s
}

// Requirements returns the extra resources required, keyed by name.
func (c *Composite) Requirements() map[string]ExtraResourceSelector {
	out := make(map[string]ExtraResourceSelector, len(c.requirements))
	for k, v := range c.requirements {
		out[k] = v
	}
	return out
}

// DesiredObject returns the live desired composite object.
func (c *Composite) DesiredObject() map[string]any {
	return c.desired
}

// ContextObject returns the live pipeline context.
func (c *Composite) ContextObject() map[string]any {
	return c.context
}

// ConnectionDetails returns the desired composite connection details in
// wire form.
func (c *Composite) ConnectionDetails() (map[string][]byte, error) {
	return connectionDetails(c.connection)
}
