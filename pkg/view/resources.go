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
	"github.com/crossplane/crossplane-runtime/pkg/errors"
)

const errEmptyName = "resource name cannot be empty"

// Resources is an ordered registry of desired composed resources keyed by
// name. Looking up an absent name creates it, so scripts never need to check
// for existence first.
type Resources struct {
	order    []string
	byName   map[string]*Resource
	observed map[string]map[string]any
}

// NewResources returns an empty collection.
func NewResources() *Resources {
	return &Resources{
		byName:   map[string]*Resource{},
		observed: map[string]map[string]any{},
	}
}

// Observe records the observed object of the named resource. Views created
// for that name, before or after, present it as their observed state.
func (c *Resources) Observe(name string, observed map[string]any) {
	if observed == nil {
		observed = map[string]any{}
	}
	c.observed[name] = observed
	if r, ok := c.byName[name]; ok {
		r.observed = observed
	}
}

// Observed returns the observed object of the named resource, if any.
func (c *Resources) Observed(name string) (map[string]any, bool) {
	o, ok := c.observed[name]
	return o, ok
}

// ObservedNames returns the names of every observed resource, in no
// particular order.
func (c *Resources) ObservedNames() []string {
	out := make([]string, 0, len(c.observed))
	for n := range c.observed {
		out = append(out, n)
	}
	return out
}

// Seed registers a resource carried over from earlier pipeline steps. Seeded
// resources are encoded whether or not they are touched. Seeding a name
// twice replaces the earlier view.
func (c *Resources) Seed(name string, desired, connection map[string]any, ready Ready) (*Resource, error) {
	if name == "" {
		return nil, errors.New(errEmptyName)
	}
	r := newResource(name, desired, connection, ready, true)
	c.register(r)
	return r, nil
}

// GetOrCreate returns the named resource, creating an empty one if it does
// not exist. Repeated calls return the same view. Options are applied either
// way, so supplying a different apiVersion and kind overwrites them. Getting
// a removed resource restores it.
func (c *Resources) GetOrCreate(name string, o ...ResourceOption) (*Resource, error) {
	if name == "" {
		return nil, errors.New(errEmptyName)
	}
	r, ok := c.byName[name]
	if !ok {
		r = newResource(name, nil, nil, ReadyUnspecified, false)
		c.register(r)
	}
	r.removed = false
	for _, fn := range o {
		fn(r)
	}
	return r, nil
}

func (c *Resources) register(r *Resource) {
	if _, ok := c.byName[r.name]; !ok {
		c.order = append(c.order, r.name)
	}
	if o, ok := c.observed[r.name]; ok {
		r.observed = o
	}
	c.byName[r.name] = r
}

// Get returns the named resource if it exists and has not been removed.
func (c *Resources) Get(name string) (*Resource, bool) {
	r, ok := c.byName[name]
	if !ok || r.removed {
		return nil, false
	}
	return r, true
}

// Remove marks the named resource for omission from the response. Removing
// an absent resource is a no-op.
func (c *Resources) Remove(name string) {
	if r, ok := c.byName[name]; ok {
		r.removed = true
	}
}

// All returns every resource that has not been removed, in insertion order.
func (c *Resources) All() []*Resource {
	out := make([]*Resource, 0, len(c.order))
	for _, n := range c.order {
		if r := c.byName[n]; !r.removed {
			out = append(out, r)
		}
	}
	return out
}

// Names returns the names of every resource that has not been removed, in
// insertion order.
func (c *Resources) Names() []string {
	all := c.All()
	out := make([]string, len(all))
	for i := range all {
		out[i] = all[i].name
	}
	return out
}

// Removed returns the names of every removed resource.
func (c *Resources) Removed() []string {
	out := []string{}
	for _, n := range c.order {
		if c.byName[n].removed {
			out = append(out, n)
		}
	}
	return out
}

// Len returns the number of resources that have not been removed.
func (c *Resources) Len() int {
	return len(c.All())
}
