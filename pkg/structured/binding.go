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
	"github.com/crossplane/crossplane-runtime/pkg/errors"
	"github.com/crossplane/crossplane-runtime/pkg/fieldpath"
)

const (
	errNilRoot   = "cannot write to a nil root"
	errParsePath = "cannot parse path"
)

// A Binding is a read/write handle onto one location of a structured value
// tree. Bindings hold no values of their own; every read and write walks the
// path from the root, so bindings are always live.
type Binding struct {
	root map[string]any
	path fieldpath.Segments
}

// Bind returns a binding to the supplied path of the supplied root. The root
// must be non-nil for writes to succeed.
func Bind(root map[string]any, path ...fieldpath.Segment) Binding {
	return Binding{root: root, path: append(fieldpath.Segments{}, path...)}
}

// BindPath returns a binding to a dotted and indexed path such as a.b[0].c.
func BindPath(root map[string]any, path string) (Binding, error) {
	s, err := fieldpath.Parse(path)
	if err != nil {
		return Binding{}, errors.Wrap(err, errParsePath)
	}
	return Bind(root, s...), nil
}

// FieldSegment returns a segment addressing a mapping key. Unlike
// fieldpath.Field the key is used verbatim.
func FieldSegment(name string) fieldpath.Segment {
	return fieldpath.Segment{Type: fieldpath.SegmentField, Field: name}
}

// IndexSegment returns a segment addressing a sequence element. A negative
// index wraps to an index beyond any sequence, so it is never found and
// writing it is an IndexError.
func IndexSegment(i int) fieldpath.Segment {
	return fieldpath.Segment{Type: fieldpath.SegmentIndex, Index: uint(i)} //nolint:gosec // Wrapping is checked by inRange.
}

// inRange returns true if the index segment addresses an element of a.
func inRange(s fieldpath.Segment, a []any) bool {
	return s.Index < uint(len(a))
}

// Root of the bound tree.
func (b Binding) Root() map[string]any {
	return b.root
}

// Path of the binding.
func (b Binding) Path() fieldpath.Segments {
	return append(fieldpath.Segments{}, b.path...)
}

// String returns the path of the binding.
func (b Binding) String() string {
	return b.path.String()
}

// Child returns a binding to the supplied segment below this one.
func (b Binding) Child(s fieldpath.Segment) Binding {
	p := make(fieldpath.Segments, 0, len(b.path)+1)
	p = append(p, b.path...)
	return Binding{root: b.root, path: append(p, s)}
}

// Field returns a binding to a mapping key below this one.
func (b Binding) Field(name string) Binding {
	return b.Child(FieldSegment(name))
}

// Index returns a binding to a sequence element below this one.
func (b Binding) Index(i int) Binding {
	return b.Child(IndexSegment(i))
}

// Lookup returns the value at the bound path and whether it was found. A
// missing key, an out of range index or a null anywhere along the path means
// not found. A scalar where a container is required is a TypeMismatchError.
func (b Binding) Lookup() (any, bool, error) {
	var cur any = b.root
	for i, s := range b.path {
		if cur == nil {
			return nil, false, nil
		}
		switch s.Type {
		case fieldpath.SegmentField:
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, false, mismatch(b.path[:i], KindMapping, cur)
			}
			cur = m[s.Field]
		case fieldpath.SegmentIndex:
			a, ok := cur.([]any)
			if !ok {
				return nil, false, mismatch(b.path[:i], KindSequence, cur)
			}
			if !inRange(s, a) {
				return nil, false, nil
			}
			cur = a[s.Index]
		}
	}
	return cur, cur != nil, nil
}

// Read returns the value at the bound path. A wholly absent path reads as an
// empty mapping, so chained reads never fail merely because an intermediate
// has not been set yet.
func (b Binding) Read() (any, error) {
	v, ok, err := b.Lookup()
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]any{}, nil
	}
	return v, nil
}

// Exists returns true if a non-null value is present at the bound path.
func (b Binding) Exists() bool {
	_, ok, err := b.Lookup()
	return ok && err == nil
}

// Write sets the value at the bound path. Missing intermediate mappings are
// created; existing siblings at every level are preserved.
func (b Binding) Write(v any) error {
	nv, err := Normalize(v)
	if err != nil {
		return errors.Wrapf(err, "cannot write %s", b.pathOrRoot())
	}
	return b.set(nv)
}

// Append appends a value to the sequence at the bound path, creating the
// sequence if it is absent.
func (b Binding) Append(v any) error {
	nv, err := Normalize(v)
	if err != nil {
		return errors.Wrapf(err, "cannot append to %s", b.pathOrRoot())
	}
	cur, ok, err := b.Lookup()
	if err != nil {
		return err
	}
	if !ok {
		return b.set([]any{nv})
	}
	a, isSeq := cur.([]any)
	if !isSeq {
		return mismatch(b.path, KindSequence, cur)
	}
	return b.set(append(a, nv))
}

// Delete removes the value at the bound path. Deleting a sequence element
// shifts later elements down. Deleting an absent path is a no-op.
func (b Binding) Delete() error {
	if len(b.path) == 0 {
		clear(b.root)
		return nil
	}
	parent := Binding{root: b.root, path: b.path[:len(b.path)-1]}
	pv, ok, err := parent.Lookup()
	if err != nil || !ok {
		return err
	}
	last := b.path[len(b.path)-1]
	switch last.Type {
	case fieldpath.SegmentField:
		m, isMap := pv.(map[string]any)
		if !isMap {
			return mismatch(parent.path, KindMapping, pv)
		}
		delete(m, last.Field)
	case fieldpath.SegmentIndex:
		a, isSeq := pv.([]any)
		if !isSeq {
			return mismatch(parent.path, KindSequence, pv)
		}
		if !inRange(last, a) {
			return nil
		}
		i := int(last.Index) //nolint:gosec // Checked by inRange.
		out := make([]any, 0, len(a)-1)
		out = append(out, a[:i]...)
		return parent.set(append(out, a[i+1:]...))
	}
	return nil
}

// set writes an already canonical value.
func (b Binding) set(v any) error {
	if b.root == nil {
		return errors.New(errNilRoot)
	}
	if len(b.path) == 0 {
		m, ok := v.(map[string]any)
		if !ok {
			return mismatch(b.path, KindMapping, v)
		}
		clear(b.root)
		for k := range m {
			b.root[k] = m[k]
		}
		return nil
	}

	parent, err := b.ensureParent()
	if err != nil {
		return err
	}
	last := b.path[len(b.path)-1]
	switch last.Type {
	case fieldpath.SegmentField:
		m, ok := parent.(map[string]any)
		if !ok {
			return mismatch(b.path[:len(b.path)-1], KindMapping, parent)
		}
		m[last.Field] = v
	case fieldpath.SegmentIndex:
		a, ok := parent.([]any)
		if !ok {
			return mismatch(b.path[:len(b.path)-1], KindSequence, parent)
		}
		if !inRange(last, a) {
			return &IndexError{Path: b.path.String(), Index: int(last.Index), Len: len(a)} //nolint:gosec // Recovers a negative index.
		}
		a[last.Index] = v
	}
	return nil
}

// ensureParent walks to the container holding the bound path's last
// segment, creating absent intermediate mappings on the way.
func (b Binding) ensureParent() (any, error) {
	var cur any = b.root
	for i := 0; i < len(b.path)-1; i++ {
		s, next := b.path[i], b.path[i+1]
		var child any
		switch s.Type {
		case fieldpath.SegmentField:
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, mismatch(b.path[:i], KindMapping, cur)
			}
			child = m[s.Field]
			if child == nil {
				if next.Type == fieldpath.SegmentIndex {
					return nil, &IndexError{Path: b.path[:i+2].String(), Index: int(next.Index), Len: 0} //nolint:gosec // Indices are small.
				}
				child = map[string]any{}
				m[s.Field] = child
			}
		case fieldpath.SegmentIndex:
			a, ok := cur.([]any)
			if !ok {
				return nil, mismatch(b.path[:i], KindSequence, cur)
			}
			if !inRange(s, a) {
				return nil, &IndexError{Path: b.path[:i+1].String(), Index: int(s.Index), Len: len(a)} //nolint:gosec // Recovers a negative index.
			}
			idx := s.Index
			child = a[idx]
			if child == nil {
				if next.Type == fieldpath.SegmentIndex {
					return nil, &IndexError{Path: b.path[:i+2].String(), Index: int(next.Index), Len: 0} //nolint:gosec // Indices are small.
				}
				child = map[string]any{}
				a[idx] = child
			}
		}
		cur = child
	}
	return cur, nil
}

func (b Binding) pathOrRoot() string {
	if len(b.path) == 0 {
		return "<root>"
	}
	return b.path.String()
}

func mismatch(p fieldpath.Segments, want Kind, got any) error {
	return &TypeMismatchError{Path: p.String(), Want: want, Got: KindOf(got)}
}
