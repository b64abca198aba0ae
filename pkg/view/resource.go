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
	"encoding/json"

	jsonpatch "github.com/evanphx/json-patch"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
	"github.com/crossplane/crossplane-runtime/pkg/meta"

	"github.com/n3wscott/function-script/pkg/structured"
)

// Ready is the tri-state readiness of a desired resource.
type Ready int

// Readiness states. A resource is unspecified until a script or auto-ready
// decides otherwise.
const (
	ReadyUnspecified Ready = iota
	ReadyTrue
	ReadyFalse
)

// A ResourceOption modifies a Resource as it is looked up or created.
type ResourceOption func(r *Resource)

// WithAPIVersionKind sets the apiVersion and kind of a Resource. Empty
// values leave the existing ones untouched.
func WithAPIVersionKind(apiVersion, kind string) ResourceOption {
	return func(r *Resource) {
		if apiVersion != "" {
			r.SetAPIVersion(apiVersion)
		}
		if kind != "" {
			r.SetKind(kind)
		}
	}
}

// A Resource is a view of one desired composed resource.
type Resource struct {
	name       string
	desired    map[string]any
	observed   map[string]any
	connection map[string]any
	ready      Ready

	seed     map[string]any
	existing bool
	touched  bool
	removed  bool
}

func newResource(name string, desired, connection map[string]any, ready Ready, existing bool) *Resource {
	if desired == nil {
		desired = map[string]any{}
	}
	if connection == nil {
		connection = map[string]any{}
	}
	return &Resource{
		name:       name,
		desired:    desired,
		observed:   map[string]any{},
		connection: connection,
		ready:      ready,
		seed:       structured.DeepCopy(desired).(map[string]any),
		existing:   existing,
	}
}

func (r *Resource) touch() {
	r.touched = true
}

func (r *Resource) field(path ...string) *Field {
	b := structured.Bind(r.desired)
	for _, p := range path {
		b = b.Field(p)
	}
	return &Field{b: b, owner: r}
}

// Name of this resource within its collection.
func (r *Resource) Name() string {
	return r.name
}

// Object returns a view of the entire desired object.
func (r *Resource) Object() *Field {
	return r.field()
}

// APIVersion of the desired object.
func (r *Resource) APIVersion() string {
	s, _ := r.desired["apiVersion"].(string)
	return s
}

// SetAPIVersion of the desired object.
func (r *Resource) SetAPIVersion(v string) {
	r.desired["apiVersion"] = v
	r.touch()
}

// Kind of the desired object.
func (r *Resource) Kind() string {
	s, _ := r.desired["kind"].(string)
	return s
}

// SetKind of the desired object.
func (r *Resource) SetKind(v string) {
	r.desired["kind"] = v
	r.touch()
}

// GroupVersionKind of the desired object.
func (r *Resource) GroupVersionKind() schema.GroupVersionKind {
	return schema.FromAPIVersionAndKind(r.APIVersion(), r.Kind())
}

// ExternalName returns the external name annotation of the desired object,
// falling back to the observed object.
func (r *Resource) ExternalName() string {
	for _, o := range []map[string]any{r.desired, r.observed} {
		v, _, _ := structured.Bind(o).Field("metadata").Field("annotations").Field(meta.AnnotationKeyExternalName).Lookup()
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// SetExternalName annotation of the desired object.
func (r *Resource) SetExternalName(name string) error {
	return r.field("metadata", "annotations").Set(meta.AnnotationKeyExternalName, name)
}

// Metadata of the desired object.
func (r *Resource) Metadata() *Field {
	return r.field("metadata")
}

// Spec of the desired object.
func (r *Resource) Spec() *Field {
	return r.field("spec")
}

// Status of the desired object. Use Observed to read actual status.
func (r *Resource) Status() *Field {
	return r.field("status")
}

// Observed returns a read-only view of the observed object. It is empty if
// the resource has not been observed yet.
func (r *Resource) Observed() *Field {
	return NewReadOnlyField("observed resource "+r.name, structured.Bind(r.observed))
}

// Conditions returns the read-only conditions of the observed object.
func (r *Resource) Conditions() *Conditions {
	return NewConditions(r.observed)
}

// Connection returns a view of the desired connection details.
func (r *Resource) Connection() *Field {
	return &Field{b: structured.Bind(r.connection), owner: r}
}

// Ready returns true only if the resource has been marked ready.
func (r *Resource) Ready() bool {
	return r.ready == ReadyTrue
}

// ReadyState returns the tri-state readiness of the resource.
func (r *Resource) ReadyState() Ready {
	return r.ready
}

// SetReady marks the resource ready or not ready.
func (r *Resource) SetReady(ready bool) {
	r.ready = ReadyFalse
	if ready {
		r.ready = ReadyTrue
	}
	r.touch()
}

// MarkReady marks the resource ready without marking it touched, so a
// resource that would otherwise be omitted from desired state stays omitted.
func (r *Resource) MarkReady() {
	r.ready = ReadyTrue
}

// Merge a partial object into the desired object. Mappings are merged key
// by key; any other value replaces what was there, so the last write wins
// field by field.
func (r *Resource) Merge(partial map[string]any) error {
	if err := merge(structured.Bind(r.desired), partial); err != nil {
		return err
	}
	r.touch()
	return nil
}

func merge(b structured.Binding, partial map[string]any) error {
	for k, v := range partial {
		child := b.Field(k)
		if m, ok := v.(map[string]any); ok {
			cur, _, err := child.Lookup()
			if err != nil {
				return err
			}
			if _, isMap := cur.(map[string]any); isMap {
				if err := merge(child, m); err != nil {
					return err
				}
				continue
			}
		}
		if err := child.Write(unwrap(v)); err != nil {
			return err
		}
	}
	return nil
}

// Existing returns true if the resource was present in the request's
// desired state.
func (r *Resource) Existing() bool {
	return r.existing
}

// Touched returns true if anything has been written to the resource.
func (r *Resource) Touched() bool {
	return r.touched
}

// Removed returns true if the resource has been removed from its
// collection.
func (r *Resource) Removed() bool {
	return r.removed
}

// Desired returns the desired object. It is the live tree, not a copy.
func (r *Resource) Desired() map[string]any {
	return r.desired
}

// ConnectionDetails returns the desired connection details in wire form.
// Strings are used verbatim; anything else is JSON encoded.
func (r *Resource) ConnectionDetails() (map[string][]byte, error) {
	return connectionDetails(r.connection)
}

// Changes returns a JSON merge patch from the desired object as it was when
// the view was created to the desired object as it is now.
func (r *Resource) Changes() ([]byte, error) {
	before, err := json.Marshal(r.seed)
	if err != nil {
		return nil, errors.Wrap(err, "cannot marshal seeded resource")
	}
	after, err := json.Marshal(r.desired)
	if err != nil {
		return nil, errors.Wrap(err, "cannot marshal desired resource")
	}
	p, err := jsonpatch.CreateMergePatch(before, after)
	return p, errors.Wrap(err, "cannot create merge patch")
}

func connectionDetails(conn map[string]any) (map[string][]byte, error) {
	if len(conn) == 0 {
		return nil, nil
	}
	out := make(map[string][]byte, len(conn))
	for k, v := range conn {
		switch t := v.(type) {
		case string:
			out[k] = []byte(t)
		case nil:
			continue
		default:
			b, err := json.Marshal(t)
			if err != nil {
				return nil, errors.Wrapf(err, "cannot encode connection detail %q", k)
			}
			out[k] = b
		}
	}
	return out, nil
}

// ConnectionFromDetails returns the canonical form of wire connection
// details.
func ConnectionFromDetails(cd map[string][]byte) map[string]any {
	out := make(map[string]any, len(cd))
	for k, v := range cd {
		out[k] = string(v)
	}
	return out
}
