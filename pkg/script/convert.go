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
	"math"
	"sort"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/n3wscott/function-script/pkg/structured"
	"github.com/n3wscott/function-script/pkg/view"
)

// toStarlark converts a value read from a view to Starlark. Live views stay
// live; plain values are converted to fresh Starlark values.
func toStarlark(v any) (starlark.Value, error) {
	switch t := v.(type) {
	case nil:
		return starlark.None, nil
	case *view.Field:
		return &field{f: t}, nil
	case bool:
		return starlark.Bool(t), nil
	case float64:
		// Structured numbers are all floats. Present integral ones as ints so
		// that scripts can index and format them naturally.
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return starlark.MakeInt64(int64(t)), nil
		}
		return starlark.Float(t), nil
	case string:
		return starlark.String(t), nil
	case []any:
		l := make([]starlark.Value, len(t))
		for i := range t {
			e, err := toStarlark(t[i])
			if err != nil {
				return nil, err
			}
			l[i] = e
		}
		return starlark.NewList(l), nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := starlark.NewDict(len(t))
		for _, k := range keys {
			e, err := toStarlark(t[k])
			if err != nil {
				return nil, err
			}
			if err := d.SetKey(starlark.String(k), e); err != nil {
				return nil, err
			}
		}
		return d, nil
	default:
		n, err := structured.Normalize(v)
		if err != nil {
			return nil, err
		}
		return toStarlark(n)
	}
}

// fromStarlark converts a Starlark value to a structured value. Views are
// copied, so assigning one view to another never aliases them.
func fromStarlark(v starlark.Value) (any, error) {
	switch t := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(t), nil
	case starlark.Int:
		if i, ok := t.Int64(); ok {
			return float64(i), nil
		}
		return float64(t.Float()), nil
	case starlark.Float:
		return float64(t), nil
	case starlark.String:
		return string(t), nil
	case *field:
		cur, err := t.f.Value()
		if err != nil {
			return nil, err
		}
		return structured.DeepCopy(cur), nil
	case *resource:
		return structured.DeepCopy(t.r.Desired()), nil
	case *starlark.List:
		return fromIndexable(t)
	case starlark.Tuple:
		return fromIndexable(t)
	case *starlark.Dict:
		out := make(map[string]any, t.Len())
		for _, item := range t.Items() {
			k, ok := item[0].(starlark.String)
			if !ok {
				return nil, errors.Errorf("dict keys must be strings, not %s", item[0].Type())
			}
			e, err := fromStarlark(item[1])
			if err != nil {
				return nil, err
			}
			out[string(k)] = e
		}
		return out, nil
	case *starlarkstruct.Struct:
		out := map[string]any{}
		for _, name := range t.AttrNames() {
			a, err := t.Attr(name)
			if err != nil {
				return nil, err
			}
			e, err := fromStarlark(a)
			if err != nil {
				return nil, err
			}
			out[name] = e
		}
		return out, nil
	default:
		return nil, errors.Errorf("cannot convert %s to a structured value", v.Type())
	}
}

func fromIndexable(x starlark.Indexable) ([]any, error) {
	out := make([]any, x.Len())
	for i := range out {
		e, err := fromStarlark(x.Index(i))
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// fromStarlarkMap converts a Starlark value that must be a mapping.
func fromStarlarkMap(v starlark.Value) (map[string]any, error) {
	c, err := fromStarlark(v)
	if err != nil {
		return nil, err
	}
	m, ok := c.(map[string]any)
	if !ok {
		return nil, errors.Errorf("want a mapping, not %s", v.Type())
	}
	return m, nil
}
