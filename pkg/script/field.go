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
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/n3wscott/function-script/pkg/structured"
	"github.com/n3wscott/function-script/pkg/view"
)

var (
	_ starlark.HasAttrs    = &field{}
	_ starlark.HasSetField = &field{}
	_ starlark.HasSetKey   = &field{}
	_ starlark.Iterable    = &field{}
	_ starlark.Sequence    = &field{}
	_ starlark.Comparable  = &field{}
)

// A field presents a view.Field to Starlark. Attribute access reads and
// writes mapping keys, so that unset paths can be written with chained
// attributes (r.spec.forProvider.region = "us-east-1"). Sequences and absent
// values also have append and extend methods.
type field struct {
	f *view.Field
}

func (x *field) String() string        { return x.f.String() }
func (x *field) Type() string          { return "field" }
func (x *field) Freeze()               {}
func (x *field) Hash() (uint32, error) { return 0, errors.New("unhashable type: field") }

func (x *field) Truth() starlark.Bool {
	if !x.f.Exists() {
		return false
	}
	if x.f.Kind().IsContainer() {
		return x.f.Len() > 0
	}
	return true
}

func (x *field) Len() int {
	return x.f.Len()
}

func (x *field) hasListMethods() bool {
	k := x.f.Kind()
	return k == structured.KindSequence || k == structured.KindNull
}

func (x *field) Attr(name string) (starlark.Value, error) {
	if x.hasListMethods() {
		switch name {
		case "append":
			return starlark.NewBuiltin(name, x.append), nil
		case "extend":
			return starlark.NewBuiltin(name, x.extend), nil
		}
	}
	if x.f.Kind() == structured.KindSequence {
		return nil, nil
	}
	v, err := x.f.Get(name)
	if err != nil {
		return nil, err
	}
	return toStarlark(v)
}

func (x *field) AttrNames() []string {
	if x.f.Kind() == structured.KindSequence {
		return []string{"append", "extend"}
	}
	return x.f.Keys()
}

func (x *field) SetField(name string, v starlark.Value) error {
	c, err := fromStarlark(v)
	if err != nil {
		return err
	}
	return x.f.Set(name, c)
}

// Get implements starlark.Mapping. Unlike attribute access, indexing a
// mapping with an absent key is an error, so that the in operator works.
func (x *field) Get(k starlark.Value) (starlark.Value, bool, error) {
	switch key := k.(type) {
	case starlark.String:
		if !x.f.Child(string(key)).Exists() {
			return nil, false, nil
		}
		v, err := x.f.Get(string(key))
		if err != nil {
			return nil, false, err
		}
		sv, err := toStarlark(v)
		return sv, true, err
	case starlark.Int:
		i, err := x.index(key)
		if err != nil {
			return nil, false, err
		}
		v, err := x.f.Index(i)
		if err != nil {
			return nil, false, err
		}
		sv, err := toStarlark(v)
		return sv, true, err
	default:
		return nil, false, errors.Errorf("field indices must be strings or ints, not %s", k.Type())
	}
}

func (x *field) SetKey(k, v starlark.Value) error {
	c, err := fromStarlark(v)
	if err != nil {
		return err
	}
	switch key := k.(type) {
	case starlark.String:
		return x.f.Set(string(key), c)
	case starlark.Int:
		i, err := x.index(key)
		if err != nil {
			return err
		}
		return x.f.SetIndex(i, c)
	default:
		return errors.Errorf("field indices must be strings or ints, not %s", k.Type())
	}
}

// index resolves a possibly negative sequence index.
func (x *field) index(k starlark.Int) (int, error) {
	if x.f.Kind() != structured.KindSequence {
		return 0, &structured.TypeMismatchError{Path: x.f.Path(), Want: structured.KindSequence, Got: x.f.Kind()}
	}
	n := x.f.Len()
	i64, ok := k.Int64()
	i := int(i64)
	if i < 0 {
		i += n
	}
	if !ok || i < 0 || i >= n {
		return 0, &structured.IndexError{Path: x.f.Path(), Index: int(i64), Len: n}
	}
	return i, nil
}

func (x *field) Iterate() starlark.Iterator {
	switch x.f.Kind() {
	case structured.KindMapping:
		keys := x.f.Keys()
		vals := make([]starlark.Value, len(keys))
		for i := range keys {
			vals[i] = starlark.String(keys[i])
		}
		return starlark.NewList(vals).Iterate()
	case structured.KindSequence:
		els, err := x.f.Elements()
		if err != nil {
			return starlark.NewList(nil).Iterate()
		}
		vals := make([]starlark.Value, 0, len(els))
		for _, e := range els {
			sv, err := toStarlark(e)
			if err != nil {
				continue
			}
			vals = append(vals, sv)
		}
		return starlark.NewList(vals).Iterate()
	default:
		return starlark.NewList(nil).Iterate()
	}
}

func (x *field) CompareSameType(op syntax.Token, y starlark.Value, _ int) (bool, error) {
	eq := x.f.Equal(y.(*field).f) //nolint:forcetypeassert // Starlark only compares values of the same type.
	switch op { //nolint:exhaustive // Only equality is supported.
	case syntax.EQL:
		return eq, nil
	case syntax.NEQ:
		return !eq, nil
	default:
		return false, errors.Errorf("%s not supported for fields", op)
	}
}

func (x *field) append(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &v); err != nil {
		return nil, err
	}
	c, err := fromStarlark(v)
	if err != nil {
		return nil, err
	}
	return starlark.None, x.f.Append(c)
}

func (x *field) extend(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var it starlark.Iterable
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &it); err != nil {
		return nil, err
	}
	var vals []any
	iter := it.Iterate()
	defer iter.Done()
	var v starlark.Value
	for iter.Next(&v) {
		c, err := fromStarlark(v)
		if err != nil {
			return nil, err
		}
		vals = append(vals, c)
	}
	for _, c := range vals {
		if err := x.f.Append(c); err != nil {
			return nil, err
		}
	}
	return starlark.None, nil
}
