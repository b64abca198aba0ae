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

package script

import (
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	corev1 "k8s.io/api/core/v1"

	xpv1 "github.com/crossplane/crossplane-runtime/apis/common/v1"
	"github.com/crossplane/crossplane-runtime/pkg/errors"
	"github.com/crossplane/crossplane-runtime/pkg/logging"

	"github.com/n3wscott/function-script/pkg/view"
)

var (
	_ starlark.HasAttrs    = &composite{}
	_ starlark.HasSetField = &composite{}
	_ starlark.HasAttrs    = &conditions{}
	_ starlark.Mapping     = &conditions{}
	_ starlark.HasAttrs    = &logger{}
)

// A composite presents a view.Composite to Starlark. It is the argument a
// script's compose function is called with.
type composite struct {
	c *view.Composite
}

var compositeAttrs = []string{
	"apiVersion", "conditions", "connection", "context", "credentials", "desired", "environment", "extras",
	"kind", "log", "metadata", "name", "normal", "observed", "ready", "require_extra_resources", "resources",
	"spec", "status", "warning",
}

func (x *composite) String() string        { return fmt.Sprintf("<composite %s/%s>", x.c.Kind(), x.c.Name()) }
func (x *composite) Type() string          { return "composite" }
func (x *composite) Freeze()               {}
func (x *composite) Truth() starlark.Bool  { return true }
func (x *composite) Hash() (uint32, error) { return 0, errors.New("unhashable type: composite") }
func (x *composite) AttrNames() []string   { return compositeAttrs }

func (x *composite) Attr(name string) (starlark.Value, error) { //nolint:gocyclo // A switch over every attribute.
	switch name {
	case "apiVersion":
		return starlark.String(x.c.APIVersion()), nil
	case "kind":
		return starlark.String(x.c.Kind()), nil
	case "name":
		return starlark.String(x.c.Name()), nil
	case "metadata":
		return &field{f: x.c.Metadata()}, nil
	case "spec":
		return &field{f: x.c.Spec()}, nil
	case "status":
		return &field{f: x.c.Status()}, nil
	case "observed":
		return &field{f: x.c.Observed()}, nil
	case "desired":
		return &field{f: x.c.Desired()}, nil
	case "context":
		return &field{f: x.c.Context()}, nil
	case "environment":
		return &field{f: x.c.Environment()}, nil
	case "extras":
		return &field{f: x.c.Extras()}, nil
	case "credentials":
		return &field{f: x.c.Credentials()}, nil
	case "connection":
		return &field{f: x.c.Connection()}, nil
	case "conditions":
		return &conditions{c: x.c.Conditions()}, nil
	case "ready":
		return starlark.Bool(x.c.Ready()), nil
	case "resources":
		return &resources{rs: x.c.Resources()}, nil
	case "log":
		return &logger{log: x.c.Logger()}, nil
	case "normal":
		return starlark.NewBuiltin(name, x.normal), nil
	case "warning":
		return starlark.NewBuiltin(name, x.warning), nil
	case "require_extra_resources":
		return starlark.NewBuiltin(name, x.requireExtraResources), nil
	}
	return nil, nil
}

func (x *composite) SetField(name string, v starlark.Value) error {
	switch name {
	case "ready":
		b, ok := v.(starlark.Bool)
		if !ok {
			return errors.Errorf("ready must be a bool, not %s", v.Type())
		}
		x.c.SetReady(bool(b))
		return nil
	case "spec", "status", "desired", "context", "environment", "connection":
		c, err := fromStarlark(v)
		if err != nil {
			return err
		}
		f, _ := x.Attr(name)
		return f.(*field).f.Assign(c) //nolint:forcetypeassert // These attributes are always fields.
	}
	return errors.Errorf(errReadOnlyAttr, x.Type(), name)
}

func (x *composite) normal(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var msg string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &msg); err != nil {
		return nil, err
	}
	x.c.Normal(msg)
	return starlark.None, nil
}

func (x *composite) warning(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var msg string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &msg); err != nil {
		return nil, err
	}
	x.c.Warning(msg)
	return starlark.None, nil
}

func (x *composite) requireExtraResources(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name, apiVersion, kind, matchName string
	var matchLabels *starlark.Dict
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"name", &name, "apiVersion", &apiVersion, "kind", &kind,
		"match_name?", &matchName, "match_labels?", &matchLabels); err != nil {
		return nil, err
	}
	if (matchName == "") == (matchLabels == nil) {
		return nil, errors.Errorf("%s: exactly one of match_name or match_labels is required", b.Name())
	}
	s := view.ExtraResourceSelector{APIVersion: apiVersion, Kind: kind, MatchName: matchName}
	if matchLabels != nil {
		s.MatchLabels = map[string]string{}
		for _, item := range matchLabels.Items() {
			k, kok := starlark.AsString(item[0])
			v, vok := starlark.AsString(item[1])
			if !kok || !vok {
				return nil, errors.Errorf("%s: match_labels must map strings to strings", b.Name())
			}
			s.MatchLabels[k] = v
		}
	}
	x.c.RequireExtraResources(name, s)
	return starlark.None, nil
}

// conditions presents a view.Conditions to Starlark. Indexing by condition
// type returns a struct with type, status, reason and message fields. Any
// attribute other than get, set and types reads the condition of that type,
// so conditions.Ready is conditions["Ready"].
type conditions struct {
	c *view.Conditions
}

func (x *conditions) String() string        { return "<conditions>" }
func (x *conditions) Type() string          { return "conditions" }
func (x *conditions) Freeze()               {}
func (x *conditions) Truth() starlark.Bool  { return true }
func (x *conditions) Hash() (uint32, error) { return 0, errors.New("unhashable type: conditions") }
func (x *conditions) AttrNames() []string   { return []string{"get", "set", "types"} }

func (x *conditions) Attr(name string) (starlark.Value, error) {
	switch name {
	case "get":
		return starlark.NewBuiltin(name, x.get), nil
	case "set":
		return starlark.NewBuiltin(name, x.set), nil
	case "types":
		return starlark.NewBuiltin(name, x.types), nil
	}
	return conditionStruct(x.c.Get(xpv1.ConditionType(name))), nil
}

// Get implements starlark.Mapping. Unknown condition types read as a
// condition with status Unknown.
func (x *conditions) Get(k starlark.Value) (starlark.Value, bool, error) {
	ct, ok := starlark.AsString(k)
	if !ok {
		return nil, false, errors.Errorf("condition types must be strings, not %s", k.Type())
	}
	return conditionStruct(x.c.Get(xpv1.ConditionType(ct))), true, nil
}

func (x *conditions) get(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var ct string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &ct); err != nil {
		return nil, err
	}
	return conditionStruct(x.c.Get(xpv1.ConditionType(ct))), nil
}

func (x *conditions) set(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var ct, reason, message string
	var status starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "type", &ct, "status", &status, "reason?", &reason, "message?", &message); err != nil {
		return nil, err
	}
	cs, err := conditionStatus(status)
	if err != nil {
		return nil, err
	}
	return starlark.None, x.c.Set(xpv1.Condition{
		Type:    xpv1.ConditionType(ct),
		Status:  cs,
		Reason:  xpv1.ConditionReason(reason),
		Message: message,
	})
}

func (x *conditions) types(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	ts := x.c.Types()
	vals := make([]starlark.Value, len(ts))
	for i := range ts {
		vals[i] = starlark.String(ts[i])
	}
	return starlark.NewList(vals), nil
}

func conditionStruct(c xpv1.Condition) *starlarkstruct.Struct {
	return starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
		"type":    starlark.String(c.Type),
		"status":  starlark.String(c.Status),
		"reason":  starlark.String(c.Reason),
		"message": starlark.String(c.Message),
	})
}

func conditionStatus(v starlark.Value) (corev1.ConditionStatus, error) {
	switch t := v.(type) {
	case starlark.Bool:
		if t {
			return corev1.ConditionTrue, nil
		}
		return corev1.ConditionFalse, nil
	case starlark.String:
		switch s := corev1.ConditionStatus(t); s {
		case corev1.ConditionTrue, corev1.ConditionFalse, corev1.ConditionUnknown:
			return s, nil
		}
	}
	return "", errors.Errorf("condition status must be True, False or Unknown, not %s", v.String())
}

// logger presents the invocation's logger to Starlark. Keyword arguments are
// logged as key-value pairs.
type logger struct {
	log logging.Logger
}

func (x *logger) String() string        { return "<logger>" }
func (x *logger) Type() string          { return "logger" }
func (x *logger) Freeze()               {}
func (x *logger) Truth() starlark.Bool  { return true }
func (x *logger) Hash() (uint32, error) { return 0, errors.New("unhashable type: logger") }
func (x *logger) AttrNames() []string   { return []string{"debug", "info"} }

func (x *logger) Attr(name string) (starlark.Value, error) {
	switch name {
	case "info":
		return starlark.NewBuiltin(name, x.write(x.log.Info)), nil
	case "debug":
		return starlark.NewBuiltin(name, x.write(x.log.Debug)), nil
	}
	return nil, nil
}

type logFn func(msg string, keysAndValues ...any)

func (x *logger) write(fn logFn) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var msg string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, nil, 1, &msg); err != nil {
			return nil, err
		}
		kv := make([]any, 0, 2*len(kwargs))
		for _, item := range kwargs {
			v, err := fromStarlark(item[1])
			if err != nil {
				v = item[1].String()
			}
			kv = append(kv, string(item[0].(starlark.String)), v) //nolint:forcetypeassert // Keyword names are always strings.
		}
		fn(msg, kv...)
		return starlark.None, nil
	}
}
