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

// Package view presents the structured values of a RunFunctionRequest as a
// mutable object graph that a script manipulates in place. Views never copy
// the values they present; every read and write goes through a
// structured.Binding to the tree owned by the invocation.
package view

import (
	"encoding/json"
	"sort"

	"github.com/n3wscott/function-script/pkg/structured"
)

// A toucher is notified when a value below it is written.
type toucher interface {
	touch()
}

// A Field is a live view of one location of a structured value tree.
type Field struct {
	b        structured.Binding
	owner    toucher
	readOnly string
}

// NewField returns a mutable Field bound to the supplied location.
func NewField(b structured.Binding) *Field {
	return &Field{b: b}
}

// NewReadOnlyField returns a Field that refuses writes. The supplied name
// identifies the view in errors.
func NewReadOnlyField(name string, b structured.Binding) *Field {
	return &Field{b: b, readOnly: name}
}

func (f *Field) derive(b structured.Binding) *Field {
	return &Field{b: b, owner: f.owner, readOnly: f.readOnly}
}

// Binding returns the binding this Field reads and writes through.
func (f *Field) Binding() structured.Binding {
	return f.b
}

// Path of this Field below its root.
func (f *Field) Path() string {
	return f.b.String()
}

// ReadOnly returns true if this Field refuses writes.
func (f *Field) ReadOnly() bool {
	return f.readOnly != ""
}

// Exists returns true if a non-null value is present at this Field.
func (f *Field) Exists() bool {
	return f.b.Exists()
}

// Kind of the value at this Field. An absent value is null.
func (f *Field) Kind() structured.Kind {
	v, _, err := f.b.Lookup()
	if err != nil {
		return structured.KindInvalid
	}
	return structured.KindOf(v)
}

// Value returns the structured value at this Field, or nil if it is absent.
// The returned value is live; callers that keep it should copy it.
func (f *Field) Value() (any, error) {
	v, _, err := f.b.Lookup()
	return v, err
}

// Get returns the value of the named key. Scalars are returned as is.
// Mappings, sequences and absent keys are returned as a nested *Field, so
// chained reads of unset paths never fail.
func (f *Field) Get(name string) (any, error) {
	return f.wrap(f.b.Field(name))
}

// Index returns the element at the supplied index of a sequence, with the
// same wrapping rules as Get. Negative indices count from the end.
func (f *Field) Index(i int) (any, error) {
	i, err := f.normalize(i)
	if err != nil {
		return nil, err
	}
	return f.wrap(f.b.Index(i))
}

// normalize resolves a negative index against the length of the sequence.
// An index still negative afterwards is an IndexError.
func (f *Field) normalize(i int) (int, error) {
	if i >= 0 {
		return i, nil
	}
	n := f.Len()
	if i+n < 0 {
		return 0, &structured.IndexError{Path: f.b.String(), Index: i, Len: n}
	}
	return i + n, nil
}

// Child returns a nested *Field for the named key whatever its value.
func (f *Field) Child(name string) *Field {
	return f.derive(f.b.Field(name))
}

// At returns a nested *Field for a dotted and indexed path below this one.
func (f *Field) At(path string) (*Field, error) {
	pb, err := structured.BindPath(nil, path)
	if err != nil {
		return nil, err
	}
	b := f.b
	for _, s := range pb.Path() {
		b = b.Child(s)
	}
	return f.derive(b), nil
}

func (f *Field) wrap(b structured.Binding) (any, error) {
	v, ok, err := b.Lookup()
	if err != nil {
		return nil, err
	}
	if !ok || structured.KindOf(v).IsContainer() {
		return f.derive(b), nil
	}
	return v, nil
}

// Set the named key to the supplied value, replacing exactly that subtree.
func (f *Field) Set(name string, v any) error {
	return f.write(f.b.Field(name), v)
}

// SetIndex sets the element at the supplied index of a sequence. Negative
// indices count from the end.
func (f *Field) SetIndex(i int, v any) error {
	i, err := f.normalize(i)
	if err != nil {
		return err
	}
	return f.write(f.b.Index(i), v)
}

// Assign replaces the value at this Field.
func (f *Field) Assign(v any) error {
	return f.write(f.b, v)
}

// Delete the named key. Deleting an absent key is a no-op.
func (f *Field) Delete(name string) error {
	if err := f.writable(); err != nil {
		return err
	}
	if err := f.b.Field(name).Delete(); err != nil {
		return err
	}
	f.touch()
	return nil
}

// DeleteIndex deletes the element at the supplied index of a sequence.
func (f *Field) DeleteIndex(i int) error {
	if err := f.writable(); err != nil {
		return err
	}
	i, err := f.normalize(i)
	if err != nil {
		return err
	}
	if err := f.b.Index(i).Delete(); err != nil {
		return err
	}
	f.touch()
	return nil
}

// Append a value to the sequence at this Field, creating it if absent.
func (f *Field) Append(v any) error {
	if err := f.writable(); err != nil {
		return err
	}
	if err := f.b.Append(unwrap(v)); err != nil {
		return err
	}
	f.touch()
	return nil
}

func (f *Field) write(b structured.Binding, v any) error {
	if err := f.writable(); err != nil {
		return err
	}
	if err := b.Write(unwrap(v)); err != nil {
		return err
	}
	f.touch()
	return nil
}

func (f *Field) writable() error {
	if f.readOnly != "" {
		return &ReadOnlyError{View: f.readOnly, Path: f.b.String()}
	}
	return nil
}

func (f *Field) touch() {
	if f.owner != nil {
		f.owner.touch()
	}
}

// unwrap replaces views with copies of the values they present, so that
// assigning one view to another never aliases two trees.
func unwrap(v any) any {
	if o, ok := v.(*Field); ok {
		cur, _, err := o.b.Lookup()
		if err != nil {
			return nil
		}
		return structured.DeepCopy(cur)
	}
	return v
}

// Len returns the number of keys of a mapping or elements of a sequence.
// Scalars and absent values have length zero.
func (f *Field) Len() int {
	v, _, _ := f.b.Lookup()
	switch t := v.(type) {
	case map[string]any:
		return len(t)
	case []any:
		return len(t)
	}
	return 0
}

// Keys returns the sorted keys of a mapping.
func (f *Field) Keys() []string {
	v, _, _ := f.b.Lookup()
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Elements returns the live elements of a sequence, wrapped as Get does.
func (f *Field) Elements() ([]any, error) {
	v, _, err := f.b.Lookup()
	if err != nil {
		return nil, err
	}
	a, ok := v.([]any)
	if !ok {
		return nil, nil
	}
	out := make([]any, len(a))
	for i := range a {
		e, err := f.wrap(f.b.Index(i))
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// Equal returns true if the value at this Field is structurally equal to the
// supplied value, which may itself be a *Field.
func (f *Field) Equal(other any) bool {
	v, _, err := f.b.Lookup()
	if err != nil {
		return false
	}
	ov, err := structured.Normalize(unwrap(other))
	if err != nil {
		return false
	}
	return structured.Equal(v, ov)
}

// MarshalJSON returns the JSON encoding of the value at this Field.
func (f *Field) MarshalJSON() ([]byte, error) {
	v, _, err := f.b.Lookup()
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func (f *Field) String() string {
	b, err := f.MarshalJSON()
	if err != nil {
		return err.Error()
	}
	return string(b)
}
