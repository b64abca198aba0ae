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
)

// A Failure is raised by a script, or by the engine on its behalf.
type Failure struct {
	// Message describing the failure.
	Message string

	// Backtrace of the script call stack, if the failure happened while
	// the script was running.
	Backtrace string

	cause error
}

func (f *Failure) Error() string {
	return f.Message
}

// Unwrap returns the error the script raised, if any. Errors raised by views
// (for example type mismatches) can be classified through a Failure.
func (f *Failure) Unwrap() error {
	return f.cause
}

// IsScriptFailure returns true if the supplied error is or wraps a Failure.
func IsScriptFailure(err error) bool {
	var f *Failure
	return errors.As(err, &f)
}

func newFailure(err error) *Failure {
	var ee *starlark.EvalError
	if errors.As(err, &ee) {
		return &Failure{Message: ee.Msg, Backtrace: ee.Backtrace(), cause: ee.Unwrap()}
	}
	var se syntax.Error
	if errors.As(err, &se) {
		return &Failure{Message: se.Error()}
	}
	return &Failure{Message: err.Error(), cause: err}
}
