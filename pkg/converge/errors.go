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

package converge

import (
	"fmt"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
)

// A DecodeError is returned when a request cannot be decoded into views.
type DecodeError struct {
	// Reason the request could not be decoded.
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode request: %s", e.Reason)
}

// IsDecodeFailure returns true if the supplied error is or wraps a
// DecodeError.
func IsDecodeFailure(err error) bool {
	var e *DecodeError
	return errors.As(err, &e)
}

func decodeErrorf(format string, args ...any) error {
	return &DecodeError{Reason: fmt.Sprintf(format, args...)}
}
