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
	"sort"

	"go.starlark.net/starlark"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/n3wscott/function-script/pkg/view"
)

const errReadOnlyAttr = "%s has no writable attribute %q"

var (
	_ starlark.HasAttrs    = &resource{}
	_ starlark.HasSetField = &resource{}
	_ starlark.Callable    = &resource{}

	_ starlark.HasAttrs    = &resources{}
	_ starlark.HasSetField = &resources{}
	_ starlark.HasSetKey   = &resources{}
	_ starlark.Sequence    = &resources{}
)

// A resource presents a view.Resource to Starlark. Calling a resource sets
// its apiVersion and kind and merges any keyword arguments into it:
//
//	composite.resources.bucket("s3.aws.upbound.io/v1beta1", "Bucket", spec={"forProvider": {"region": region}})
type resource struct {
	r *view.Resource
}

var resourceAttrs = []string{"apiVersion", "conditions", "connection", "externalName", "kind", "metadata", "name", "object", "observed", "ready", "spec", "status"}

func (x *resource) String() string        { return x.r.Object().String() }
func (x *resource) Type() string          { return "resource" }
func (x *resource) Freeze()               {}
func (x *resource) Truth() starlark.Bool  { return true }
func (x *resource) Hash() (uint32, error) { return 0, errors.New("unhashable type: resource") }
func (x *resource) Name() string          { return x.r.Name() }
func (x *resource) AttrNames() []string   { return resourceAttrs }

func (x *resource) Attr(name string) (starlark.Value, error) {
	switch name {
	case "name":
		return starlark.String(x.r.Name()), nil
	case "apiVersion":
		return starlark.String(x.r.APIVersion()), nil
	case "kind":
		return starlark.String(x.r.Kind()), nil
	case "externalName":
		return starlark.String(x.r.ExternalName()), nil
	case "metadata":
		return &field{f: x.r.Metadata()}, nil
	case "spec":
		return &field{f: x.r.Spec()}, nil
	case "status":
		return &field{f: x.r.Status()}, nil
	case "object":
		return &field{f: x.r.Object()}, nil
	case "observed":
		return &field{f: x.r.Observed()}, nil
	case "connection":
		return &field{f: x.r.Connection()}, nil
	case "conditions":
		return &conditions{c: x.r.Conditions()}, nil
	case "ready":
		return starlark.Bool(x.r.Ready()), nil
	}
	return nil, nil
}

func (x *resource) SetField(name string, v starlark.Value) error {
	switch name {
	case "apiVersion", "kind", "externalName":
		s, ok := starlark.AsString(v)
		if !ok {
			return errors.Errorf("%s must be a string, not %s", name, v.Type())
		}
		switch name {
		case "apiVersion":
			x.r.SetAPIVersion(s)
		case "kind":
			x.r.SetKind(s)
		default:
			return x.r.SetExternalName(s)
		}
		return nil
	case "ready":
		b, ok := v.(starlark.Bool)
		if !ok {
			return errors.Errorf("ready must be a bool, not %s", v.Type())
		}
		x.r.SetReady(bool(b))
		return nil
	case "metadata", "spec", "status", "object", "connection":
		c, err := fromStarlark(v)
		if err != nil {
			return err
		}
		f, _ := x.Attr(name)
		return f.(*field).f.Assign(c) //nolint:forcetypeassert // These attributes are always fields.
	}
	return errors.Errorf(errReadOnlyAttr, x.Type(), name)
}

func (x *resource) CallInternal(_ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var apiVersion, kind string
	if err := starlark.UnpackPositionalArgs(x.r.Name(), args, nil, 0, &apiVersion, &kind); err != nil {
		return nil, err
	}
	if apiVersion != "" {
		x.r.SetAPIVersion(apiVersion)
	}
	if kind != "" {
		x.r.SetKind(kind)
	}
	partial := make(map[string]any, len(kwargs))
	for _, kv := range kwargs {
		c, err := fromStarlark(kv[1])
		if err != nil {
			return nil, err
		}
		partial[string(kv[0].(starlark.String))] = c //nolint:forcetypeassert // Keyword names are always strings.
	}
	if len(partial) > 0 {
		if err := x.r.Merge(partial); err != nil {
			return nil, err
		}
	}
	return x, nil
}

// resources presents a view.Resources to Starlark. Reading an attribute or
// key gets or creates the named resource, except for the method names get,
// get_or_create, remove and names, which must be indexed instead.
type resources struct {
	rs *view.Resources
}

func (x *resources) String() string        { return "<resources>" }
func (x *resources) Type() string          { return "resources" }
func (x *resources) Freeze()               {}
func (x *resources) Truth() starlark.Bool  { return x.rs.Len() > 0 }
func (x *resources) Hash() (uint32, error) { return 0, errors.New("unhashable type: resources") }
func (x *resources) Len() int              { return x.rs.Len() }

func (x *resources) AttrNames() []string {
	names := append([]string{"get", "get_or_create", "names", "remove"}, x.rs.Names()...)
	sort.Strings(names)
	return names
}

func (x *resources) Attr(name string) (starlark.Value, error) {
	switch name {
	case "get":
		return starlark.NewBuiltin(name, x.get), nil
	case "get_or_create":
		return starlark.NewBuiltin(name, x.getOrCreate), nil
	case "remove":
		return starlark.NewBuiltin(name, x.remove), nil
	case "names":
		return starlark.NewBuiltin(name, x.names), nil
	}
	return x.lookup(name)
}

func (x *resources) lookup(name string) (*resource, error) {
	r, err := x.rs.GetOrCreate(name)
	if err != nil {
		return nil, err
	}
	return &resource{r: r}, nil
}

func (x *resources) SetField(name string, v starlark.Value) error {
	return x.assign(name, v)
}

// Get implements starlark.Mapping. Indexing always gets or creates the
// named resource, so the in operator is always true; use get to test
// whether a resource exists.
func (x *resources) Get(k starlark.Value) (starlark.Value, bool, error) {
	name, ok := starlark.AsString(k)
	if !ok {
		return nil, false, errors.Errorf("resource names must be strings, not %s", k.Type())
	}
	r, err := x.lookup(name)
	if err != nil {
		return nil, false, err
	}
	return r, true, nil
}

func (x *resources) SetKey(k, v starlark.Value) error {
	name, ok := starlark.AsString(k)
	if !ok {
		return errors.Errorf("resource names must be strings, not %s", k.Type())
	}
	return x.assign(name, v)
}

// assign replaces the whole desired object of the named resource.
func (x *resources) assign(name string, v starlark.Value) error {
	obj, err := fromStarlarkMap(v)
	if err != nil {
		return err
	}
	r, err := x.rs.GetOrCreate(name)
	if err != nil {
		return err
	}
	return r.Object().Assign(obj)
}

func (x *resources) Iterate() starlark.Iterator {
	names := x.rs.Names()
	vals := make([]starlark.Value, len(names))
	for i := range names {
		vals[i] = starlark.String(names[i])
	}
	return starlark.NewList(vals).Iterate()
}

func (x *resources) get(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &name); err != nil {
		return nil, err
	}
	r, ok := x.rs.Get(name)
	if !ok {
		return starlark.None, nil
	}
	return &resource{r: r}, nil
}

func (x *resources) getOrCreate(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name, apiVersion, kind string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "apiVersion?", &apiVersion, "kind?", &kind); err != nil {
		return nil, err
	}
	r, err := x.rs.GetOrCreate(name, view.WithAPIVersionKind(apiVersion, kind))
	if err != nil {
		return nil, err
	}
	return &resource{r: r}, nil
}

func (x *resources) remove(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &name); err != nil {
		return nil, err
	}
	x.rs.Remove(name)
	return starlark.None, nil
}

func (x *resources) names(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	names := x.rs.Names()
	vals := make([]starlark.Value, len(names))
	for i := range names {
		vals[i] = starlark.String(names[i])
	}
	return starlark.NewList(vals), nil
}
