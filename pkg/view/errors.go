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

package view

import (
	"fmt"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
)

// A ReadOnlyError is returned when writing through a view of observed state.
type ReadOnlyError struct {
	// View that refused the write.
	View string

	// Path below the view that was written.
	Path string
}

func (e *ReadOnlyError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s is read only", e.View)
	}
	return fmt.Sprintf("%s is read only: cannot write %s", e.View, e.Path)
}

// IsReadOnly returns true if the supplied error is or wraps a
// ReadOnlyError.
func IsReadOnly(err error) bool {
	var e *ReadOnlyError
	return errors.As(err, &e)
}
