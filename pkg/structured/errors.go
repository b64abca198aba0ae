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
	"fmt"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
)

// A TypeMismatchError is returned when a path traverses a value that is not
// the container its next segment requires.
type TypeMismatchError struct {
	// Path to the offending value.
	Path string

	// Want is the container kind the path required.
	Want Kind

	// Got is the kind of value that was found.
	Got Kind
}

func (e *TypeMismatchError) Error() string {
	p := e.Path
	if p == "" {
		p = "<root>"
	}
	return fmt.Sprintf("%s: type mismatch: want %s, got %s", p, e.Want, e.Got)
}

// An IndexError is returned when a write targets an index outside a
// sequence.
type IndexError struct {
	// Path to the sequence element.
	Path string

	// Index that was written.
	Index int

	// Len of the sequence at the time of the write.
	Len int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s: index %d out of range for sequence of length %d", e.Path, e.Index, e.Len)
}

// IsTypeMismatch returns true if the supplied error is or wraps a
// TypeMismatchError.
func IsTypeMismatch(err error) bool {
	var e *TypeMismatchError
	return errors.As(err, &e)
}

// IsIndexError returns true if the supplied error is or wraps an IndexError.
func IsIndexError(err error) bool {
	var e *IndexError
	return errors.As(err, &e)
}
