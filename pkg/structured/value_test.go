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

package structured

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestNormalize(t *testing.T) {
	type tagged struct {
		Name string `json:"name"`
	}
	type want struct {
		v   any
		err error
	}
	cases := map[string]struct {
		reason string
		v      any
		want   want
	}{
		"Int": {
			reason: "Integers should become float64.",
			v:      3,
			want:   want{v: 3.0},
		},
		"TypedSlice": {
			reason: "Typed slices should become []any.",
			v:      []string{"a", "b"},
			want:   want{v: []any{"a", "b"}},
		},
		"Bytes": {
			reason: "Byte slices should become strings.",
			v:      []byte("secret"),
			want:   want{v: "secret"},
		},
		"NestedMap": {
			reason: "Nested maps should be normalized recursively.",
			v:      map[string]any{"a": map[string]int{"b": 1}},
			want:   want{v: map[string]any{"a": map[string]any{"b": 1.0}}},
		},
		"Struct": {
			reason: "Structs should round-trip through JSON.",
			v:      tagged{Name: "cool"},
			want:   want{v: map[string]any{"name": "cool"}},
		},
		"ProtoStruct": {
			reason: "Protobuf structs should become mappings.",
			v:      &structpb.Struct{Fields: map[string]*structpb.Value{"a": structpb.NewStringValue("b")}},
			want:   want{v: map[string]any{"a": "b"}},
		},
		"IntKeys": {
			reason: "Maps without string keys cannot be structured values.",
			v:      map[int]string{1: "a"},
			want:   want{err: cmpopts.AnyError},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := Normalize(tc.v)
			if diff := cmp.Diff(tc.want.v, got); diff != "" {
				t.Errorf("\n%s\nNormalize(...): -want, +got:\n%s", tc.reason, diff)
			}
			if diff := cmp.Diff(tc.want.err, err, cmpopts.EquateErrors()); diff != "" {
				t.Errorf("\n%s\nNormalize(...): -want error, +got error:\n%s", tc.reason, diff)
			}
		})
	}
}

func TestNormalizeCopies(t *testing.T) {
	in := map[string]any{"a": []any{"b"}}
	out, _ := Normalize(in)
	out.(map[string]any)["a"].([]any)[0] = "c"
	if diff := cmp.Diff(map[string]any{"a": []any{"b"}}, in); diff != "" {
		t.Errorf("Normalize(...) should not alias its input: -want, +got:\n%s", diff)
	}
}

func TestKindOf(t *testing.T) {
	cases := map[string]struct {
		v    any
		want Kind
	}{
		"Null":     {v: nil, want: KindNull},
		"Bool":     {v: true, want: KindBool},
		"Number":   {v: 1.5, want: KindNumber},
		"String":   {v: "s", want: KindString},
		"Sequence": {v: []any{}, want: KindSequence},
		"Mapping":  {v: map[string]any{}, want: KindMapping},
		"Invalid":  {v: 1, want: KindInvalid},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, KindOf(tc.v)); diff != "" {
				t.Errorf("KindOf(%v): -want, +got:\n%s", tc.v, diff)
			}
		})
	}
}

func TestStructRoundTrip(t *testing.T) {
	in := map[string]any{
		"apiVersion": "example.org/v1",
		"spec":       map[string]any{"replicas": 3.0, "tags": []any{"a", true, nil}},
	}
	s, err := ToStruct(in)
	if err != nil {
		t.Fatalf("ToStruct(...): %v", err)
	}
	if diff := cmp.Diff(in, FromStruct(s)); diff != "" {
		t.Errorf("FromStruct(ToStruct(...)): -want, +got:\n%s", diff)
	}
	if diff := cmp.Diff(map[string]any{}, FromStruct(nil)); diff != "" {
		t.Errorf("FromStruct(nil): -want, +got:\n%s", diff)
	}
}

func TestEqual(t *testing.T) {
	if !Equal(map[string]any{"a": []any{}}, map[string]any{"a": []any(nil)}) {
		t.Error("Equal(...): nil and empty sequences should be equal")
	}
	if Equal(map[string]any{"a": 1.0}, map[string]any{"a": 2.0}) {
		t.Error("Equal(...): different numbers should not be equal")
	}
}
