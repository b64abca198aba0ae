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

// Package script runs Starlark composition scripts against a composite
// view. A script defines a compose function that is called with the
// composite:
//
//	def compose(composite):
//	    bucket = composite.resources.bucket
//	    bucket.apiVersion = "s3.aws.upbound.io/v1beta1"
//	    bucket.kind = "Bucket"
//	    bucket.spec.forProvider.region = composite.spec.region
package script

import (
	"context"

	"go.starlark.net/lib/json"
	"go.starlark.net/lib/math"
	"go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
	"github.com/crossplane/crossplane-runtime/pkg/logging"

	"github.com/n3wscott/function-script/pkg/view"
)

// Entrypoint is the function a script must define.
const Entrypoint = "compose"

const errNoEntrypoint = "script must define a function named " + Entrypoint

var predeclared = starlark.StringDict{
	"json":   json.Module,
	"math":   math.Module,
	"time":   time.Module,
	"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
	"unwrap": starlark.NewBuiltin("unwrap", unwrap),
	"exists": starlark.NewBuiltin("exists", exists),
	"delete": starlark.NewBuiltin("delete", remove),
}

// An Option configures an Engine.
type Option func(e *Engine)

// WithCache sets the cache of compiled scripts. Engines share nothing unless
// they share a cache.
func WithCache(c *Cache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithMaxExecutionSteps bounds the number of Starlark steps a script may
// run. Zero means no bound.
func WithMaxExecutionSteps(n uint64) Option {
	return func(e *Engine) {
		e.maxSteps = n
	}
}

// WithLogger sets the logger the engine logs to. Scripts log to the
// composite's logger instead.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// An Engine runs Starlark scripts.
type Engine struct {
	cache    *Cache
	maxSteps uint64
	log      logging.Logger
}

// New returns a new Engine.
func New(o ...Option) *Engine {
	e := &Engine{log: logging.NewNopLogger()}
	for _, fn := range o {
		fn(e)
	}
	if e.cache == nil {
		e.cache = NewCache()
	}
	return e
}

// Execute compiles the supplied source, or fetches it from the cache, and
// calls its compose function with the supplied composite. The script is
// cancelled when the context is done. Any failure is returned as a
// *Failure.
func (e *Engine) Execute(ctx context.Context, source string, c *view.Composite) error {
	prog, err := e.cache.Compile(source)
	if err != nil {
		return err
	}

	log := c.Logger()
	thread := &starlark.Thread{
		Name:  Entrypoint,
		Print: func(_ *starlark.Thread, msg string) { log.Info(msg) },
	}
	if e.maxSteps > 0 {
		thread.SetMaxExecutionSteps(e.maxSteps)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	globals, err := prog.Init(thread, predeclared)
	if err != nil {
		return newFailure(err)
	}
	globals.Freeze()

	fn, ok := globals[Entrypoint].(starlark.Callable)
	if !ok {
		return &Failure{Message: errNoEntrypoint}
	}
	if _, err := starlark.Call(thread, fn, starlark.Tuple{&composite{c: c}}, nil); err != nil {
		f := newFailure(err)
		e.log.Debug("Script failed", "error", f.Message, "backtrace", f.Backtrace)
		return f
	}
	return nil
}

// unwrap returns a plain Starlark copy of a field or resource, so that it
// can be compared with or used as a dict or list.
func unwrap(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &v); err != nil {
		return nil, err
	}
	c, err := fromStarlark(v)
	if err != nil {
		return nil, err
	}
	return toStarlark(c)
}

// exists returns whether a field holds a value. Anything but a field
// exists unless it is None.
func exists(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &v); err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case *field:
		return starlark.Bool(t.f.Exists()), nil
	case starlark.NoneType:
		return starlark.False, nil
	}
	return starlark.True, nil
}

// remove deletes a key or element of a field. Starlark has no del
// statement.
func remove(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var f *field
	var k starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &f, &k); err != nil {
		return nil, err
	}
	switch key := k.(type) {
	case starlark.String:
		return starlark.None, f.f.Delete(string(key))
	case starlark.Int:
		i, err := f.index(key)
		if err != nil {
			return nil, err
		}
		return starlark.None, f.f.DeleteIndex(i)
	}
	return nil, errors.Errorf("%s: key must be a string or int, not %s", b.Name(), k.Type())
}
