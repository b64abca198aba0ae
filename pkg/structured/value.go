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

// Package structured implements the schema-less value trees that back every
// view of a RunFunctionRequest, and bindings that read and write them by path.
//
// A structured value is always in the canonical JSON form produced by
// structpb.Struct.AsMap: nil, bool, float64, string, []any or map[string]any.
package structured

import (
	"encoding/json"
	"reflect"

	"google.golang.org/protobuf/types/known/structpb"
	"k8s.io/apimachinery/pkg/api/equality"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
)

const (
	errMarshalValue   = "cannot marshal value to JSON"
	errUnmarshalValue = "cannot unmarshal value from JSON"
	errMapKey         = "mapping keys must be strings"
)

// A Kind of structured value.
type Kind int

// Kinds of structured value.
const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindSequence
	KindMapping
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "invalid"
	}
}

// IsContainer returns true for sequences and mappings.
func (k Kind) IsContainer() bool {
	return k == KindSequence || k == KindMapping
}

// KindOf returns the Kind of the supplied canonical value.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case float64:
		return KindNumber
	case string:
		return KindString
	case []any:
		return KindSequence
	case map[string]any:
		return KindMapping
	default:
		return KindInvalid
	}
}

// Normalize returns a canonical copy of the supplied value. Integers become
// float64, typed slices and string-keyed maps become []any and
// map[string]any, and anything else is round-tripped through JSON.
func Normalize(v any) (any, error) { //nolint:gocyclo // A type switch over every scalar we accept.
	switch t := v.(type) {
	case nil:
		return nil, nil
	case bool, string, float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int8:
		return float64(t), nil
	case int16:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint:
		return float64(t), nil
	case uint8:
		return float64(t), nil
	case uint16:
		return float64(t), nil
	case uint32:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	case json.Number:
		f, err := t.Float64()
		return f, errors.Wrap(err, errUnmarshalValue)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			e, err := Normalize(t[i])
			if err != nil {
				return nil, err
			}
			out[i] = e
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k := range t {
			e, err := Normalize(t[k])
			if err != nil {
				return nil, err
			}
			out[k] = e
		}
		return out, nil
	case *structpb.Value:
		return t.AsInterface(), nil
	case *structpb.Struct:
		return t.AsMap(), nil
	case *structpb.ListValue:
		return t.AsSlice(), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() { //nolint:exhaustive // Everything else goes through JSON.
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			// []byte is a string on the wire.
			return string(rv.Bytes()), nil
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			e, err := Normalize(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = e
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, errors.New(errMapKey)
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			e, err := Normalize(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			out[iter.Key().String()] = e
		}
		return out, nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, errMarshalValue)
	}
	var out any
	return out, errors.Wrap(json.Unmarshal(b, &out), errUnmarshalValue)
}

// DeepCopy returns a deep copy of the supplied canonical value.
func DeepCopy(v any) any {
	return runtime.DeepCopyJSONValue(v)
}

// Equal returns true if the supplied values are structurally equal. Nil and
// empty containers are considered equal.
func Equal(a, b any) bool {
	return equality.Semantic.DeepEqual(a, b)
}

// FromStruct returns the canonical form of the supplied struct. A nil struct
// is an empty mapping.
func FromStruct(s *structpb.Struct) map[string]any {
	if s == nil {
		return map[string]any{}
	}
	return s.AsMap()
}

// ToStruct returns the wire form of the supplied mapping.
func ToStruct(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	return s, errors.Wrap(err, "cannot convert mapping to struct")
}
