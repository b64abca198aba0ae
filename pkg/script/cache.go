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
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/n3wscott/function-script/pkg/metrics"
)

// Filename scripts are compiled as. It appears in backtraces.
const Filename = "compose.star"

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

// A CacheOption configures a Cache.
type CacheOption func(c *Cache)

// WithRecorder sets the recorder cache lookups are reported to.
func WithRecorder(r metrics.Recorder) CacheOption {
	return func(c *Cache) {
		c.metrics = r
	}
}

// A Cache of compiled scripts keyed by the SHA-256 of their source. Entries
// are never evicted. Concurrent misses for the same source may compile it
// more than once; the first program stored wins.
type Cache struct {
	programs sync.Map
	metrics  metrics.Recorder
}

// NewCache returns an empty Cache.
func NewCache(o ...CacheOption) *Cache {
	c := &Cache{metrics: metrics.NopRecorder{}}
	for _, fn := range o {
		fn(c)
	}
	return c
}

// Compile returns the compiled program for the supplied source, compiling it
// on first use.
func (c *Cache) Compile(source string) (*starlark.Program, error) {
	sum := sha256.Sum256([]byte(source))
	key := hex.EncodeToString(sum[:])

	if p, ok := c.programs.Load(key); ok {
		c.metrics.RecordCompile(true)
		return p.(*starlark.Program), nil //nolint:forcetypeassert // Only programs are stored.
	}
	c.metrics.RecordCompile(false)

	_, p, err := starlark.SourceProgramOptions(fileOptions, Filename, source, predeclared.Has)
	if err != nil {
		return nil, newFailure(err)
	}
	actual, _ := c.programs.LoadOrStore(key, p)
	return actual.(*starlark.Program), nil //nolint:forcetypeassert // Only programs are stored.
}

// Len returns the number of cached programs.
func (c *Cache) Len() int {
	n := 0
	c.programs.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
