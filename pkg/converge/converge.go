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

// Package converge decodes a RunFunctionRequest into views, hands them to a
// script engine and encodes the mutated views into a RunFunctionResponse.
package converge

import (
	"context"
	"sort"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/utils/ptr"

	xpv1 "github.com/crossplane/crossplane-runtime/apis/common/v1"
	"github.com/crossplane/crossplane-runtime/pkg/errors"
	"github.com/crossplane/crossplane-runtime/pkg/logging"
	fnv1 "github.com/crossplane/function-sdk-go/proto/v1"
	"github.com/crossplane/function-sdk-go/response"

	"github.com/n3wscott/function-script/pkg/structured"
	"github.com/n3wscott/function-script/pkg/view"
)

// Error strings.
const (
	errExecute            = "cannot execute script"
	errEncodeResource     = "cannot encode desired resource"
	errEncodeComposite    = "cannot encode desired composite"
	errEncodeContext      = "cannot encode context"
	errEncodeConnection   = "cannot encode connection details"
	errNilRequest         = "request is nil"
	errEmptyResourceName  = "desired resource has an empty name"
	errNilDesiredResource = "desired resource %q is nil"
)

// A Phase of convergence.
type Phase string

// Convergence phases. Each invocation moves through them in order and stops
// at the first failure.
const (
	PhaseDecoding  Phase = "Decoding"
	PhaseExecuting Phase = "Executing"
	PhaseEncoding  Phase = "Encoding"
)

// An Engine runs a script against a composite view. It is the only way a
// script reaches the views; the engine itself performs no structured value
// access.
type Engine interface {
	Execute(ctx context.Context, source string, c *view.Composite) error
}

// An EngineFn is a function that satisfies Engine.
type EngineFn func(ctx context.Context, source string, c *view.Composite) error

// Execute calls fn.
func (fn EngineFn) Execute(ctx context.Context, source string, c *view.Composite) error {
	return fn(ctx, source, c)
}

// An Invocation is one run of a script.
type Invocation struct {
	// Source of the script.
	Source string

	// AutoReady marks resources ready when their observed Ready condition
	// is True and the script did not decide otherwise.
	AutoReady bool

	// Log is the logger handed to the script. The Converger's logger is
	// used if it is nil.
	Log logging.Logger
}

// A ConvergerOption configures a Converger.
type ConvergerOption func(c *Converger)

// WithLogger sets the logger of a Converger.
func WithLogger(l logging.Logger) ConvergerOption {
	return func(c *Converger) {
		c.log = l
	}
}

// A Converger folds requests into views and views into responses.
type Converger struct {
	engine Engine
	log    logging.Logger
}

// NewConverger returns a Converger that runs scripts with the supplied
// engine.
func NewConverger(e Engine, o ...ConvergerOption) *Converger {
	c := &Converger{engine: e, log: logging.NewNopLogger()}
	for _, fn := range o {
		fn(c)
	}
	return c
}

// Converge decodes the request, runs the invocation's script and encodes the
// result into the supplied response. The response is only written once
// every phase has succeeded, so a failure never leaves a partial response.
func (c *Converger) Converge(ctx context.Context, req *fnv1.RunFunctionRequest, rsp *fnv1.RunFunctionResponse, inv Invocation) error {
	log := inv.Log
	if log == nil {
		log = c.log
	}

	log.Debug("Converging", "phase", PhaseDecoding)
	xr, err := Decode(req, view.WithLogger(log))
	if err != nil {
		return err
	}

	log.Debug("Converging", "phase", PhaseExecuting)
	if err := c.engine.Execute(ctx, inv.Source, xr); err != nil {
		return errors.Wrap(err, errExecute)
	}

	if inv.AutoReady {
		for _, r := range xr.Resources().All() {
			if r.ReadyState() != view.ReadyUnspecified || !(r.Existing() || r.Touched()) {
				continue
			}
			if r.Conditions().Get(xpv1.TypeReady).Status == corev1.ConditionTrue {
				log.Debug("Automatically marking resource ready", "resource", r.Name())
				r.MarkReady()
			}
		}
	}

	log.Debug("Converging", "phase", PhaseEncoding)
	for _, r := range xr.Resources().All() {
		if !r.Touched() {
			continue
		}
		if p, err := r.Changes(); err == nil {
			log.Debug("Desired resource changed", "resource", r.Name(), "patch", string(p))
		}
	}
	return Encode(xr, rsp)
}

// Decode builds a composite view over the supplied request. Desired
// resources are seeded in name order, since the wire format does not order
// them.
func Decode(req *fnv1.RunFunctionRequest, o ...view.CompositeOption) (*view.Composite, error) {
	if req == nil {
		return nil, decodeErrorf(errNilRequest)
	}

	rs := view.NewResources()
	for name, r := range req.GetObserved().GetResources() {
		rs.Observe(name, structured.FromStruct(r.GetResource()))
	}

	desired := req.GetDesired().GetResources()
	names := make([]string, 0, len(desired))
	for name := range desired {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if name == "" {
			return nil, decodeErrorf(errEmptyResourceName)
		}
		r := desired[name]
		if r == nil {
			return nil, decodeErrorf(errNilDesiredResource, name)
		}
		if _, err := rs.Seed(name, structured.FromStruct(r.GetResource()), view.ConnectionFromDetails(r.GetConnectionDetails()), fromReady(r.GetReady())); err != nil {
			return nil, decodeErrorf("%s", err.Error())
		}
	}

	extras := map[string]any{}
	for name, er := range req.GetExtraResources() {
		items := make([]any, 0, len(er.GetItems()))
		for _, item := range er.GetItems() {
			items = append(items, structured.FromStruct(item.GetResource()))
		}
		extras[name] = items
	}

	creds := map[string]any{}
	for name, c := range req.GetCredentials() {
		creds[name] = view.ConnectionFromDetails(c.GetCredentialData().GetData())
	}

	dxr := req.GetDesired().GetComposite()
	opts := []view.CompositeOption{
		view.WithObserved(structured.FromStruct(req.GetObserved().GetComposite().GetResource())),
		view.WithDesired(structured.FromStruct(dxr.GetResource()), view.ConnectionFromDetails(dxr.GetConnectionDetails()), fromReady(dxr.GetReady())),
		view.WithContext(structured.FromStruct(req.GetContext())),
		view.WithExtras(extras),
		view.WithCredentials(creds),
		view.WithResources(rs),
	}
	return view.NewComposite(append(opts, o...)...), nil
}

// Encode writes the supplied composite view into the supplied response,
// which is expected to have been created from the request with response.To.
// Resources created but never written are omitted; resources carried over
// from the request are always encoded unless removed.
func Encode(xr *view.Composite, rsp *fnv1.RunFunctionResponse) error {
	resources := map[string]*fnv1.Resource{}
	for _, r := range xr.Resources().All() {
		if !r.Existing() && !r.Touched() {
			continue
		}
		s, err := structured.ToStruct(r.Desired())
		if err != nil {
			return errors.Wrapf(err, "%s %q", errEncodeResource, r.Name())
		}
		cd, err := r.ConnectionDetails()
		if err != nil {
			return errors.Wrapf(err, "%s %q", errEncodeConnection, r.Name())
		}
		resources[r.Name()] = &fnv1.Resource{Resource: s, ConnectionDetails: cd, Ready: toReady(r.ReadyState())}
	}

	var composite *fnv1.Resource
	cd, err := xr.ConnectionDetails()
	if err != nil {
		return errors.Wrap(err, errEncodeConnection)
	}
	if rsp.GetDesired().GetComposite() != nil || len(xr.DesiredObject()) > 0 || len(cd) > 0 || xr.ReadyState() != view.ReadyUnspecified {
		s, err := structured.ToStruct(xr.DesiredObject())
		if err != nil {
			return errors.Wrap(err, errEncodeComposite)
		}
		composite = &fnv1.Resource{Resource: s, ConnectionDetails: cd, Ready: toReady(xr.ReadyState())}
	}

	ctx := rsp.GetContext()
	if ctx != nil || len(xr.ContextObject()) > 0 {
		ctx, err = structured.ToStruct(xr.ContextObject())
		if err != nil {
			return errors.Wrap(err, errEncodeContext)
		}
	}

	var requirements *fnv1.Requirements
	if req := xr.Requirements(); len(req) > 0 {
		requirements = &fnv1.Requirements{ExtraResources: map[string]*fnv1.ResourceSelector{}}
		for name, s := range req {
			requirements.ExtraResources[name] = toSelector(s)
		}
	}

	// Nothing can fail from here on.
	if rsp.GetDesired() == nil {
		rsp.Desired = &fnv1.State{}
	}
	rsp.Desired.Resources = resources
	rsp.Desired.Composite = composite
	rsp.Context = ctx
	if requirements != nil {
		rsp.Requirements = requirements
	}
	for _, c := range xr.Conditions().Changed() {
		rsp.Conditions = append(rsp.Conditions, toCondition(c))
	}
	for _, r := range xr.Results() {
		switch r.Severity {
		case view.SeverityWarning:
			response.Warning(rsp, errors.New(r.Message))
		default:
			response.Normal(rsp, r.Message)
		}
	}
	return nil
}

func fromReady(r fnv1.Ready) view.Ready {
	switch r {
	case fnv1.Ready_READY_TRUE:
		return view.ReadyTrue
	case fnv1.Ready_READY_FALSE:
		return view.ReadyFalse
	default:
		return view.ReadyUnspecified
	}
}

func toReady(r view.Ready) fnv1.Ready {
	switch r {
	case view.ReadyTrue:
		return fnv1.Ready_READY_TRUE
	case view.ReadyFalse:
		return fnv1.Ready_READY_FALSE
	default:
		return fnv1.Ready_READY_UNSPECIFIED
	}
}

func toCondition(c xpv1.Condition) *fnv1.Condition {
	out := &fnv1.Condition{
		Type:   string(c.Type),
		Status: fnv1.Status_STATUS_CONDITION_UNKNOWN,
		Reason: string(c.Reason),
		Target: ptr.To(fnv1.Target_TARGET_COMPOSITE),
	}
	switch c.Status {
	case corev1.ConditionTrue:
		out.Status = fnv1.Status_STATUS_CONDITION_TRUE
	case corev1.ConditionFalse:
		out.Status = fnv1.Status_STATUS_CONDITION_FALSE
	case corev1.ConditionUnknown:
	}
	if c.Message != "" {
		out.Message = ptr.To(c.Message)
	}
	return out
}

func toSelector(s view.ExtraResourceSelector) *fnv1.ResourceSelector {
	out := &fnv1.ResourceSelector{ApiVersion: s.APIVersion, Kind: s.Kind}
	if s.MatchName != "" {
		out.Match = &fnv1.ResourceSelector_MatchName{MatchName: s.MatchName}
		return out
	}
	out.Match = &fnv1.ResourceSelector_MatchLabels{MatchLabels: &fnv1.MatchLabels{Labels: s.MatchLabels}}
	return out
}
