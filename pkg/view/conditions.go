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
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"

	xpv1 "github.com/crossplane/crossplane-runtime/apis/common/v1"

	"github.com/n3wscott/function-script/pkg/structured"
)

// Conditions presents the status conditions of an observed object, keyed by
// condition type. Mutable Conditions additionally record conditions set
// during this invocation, which take precedence over observed ones.
type Conditions struct {
	observed structured.Binding
	mutable  bool
	set      []xpv1.Condition
}

// NewConditions returns read-only Conditions over the status.conditions of
// the supplied observed object.
func NewConditions(observed map[string]any) *Conditions {
	return &Conditions{observed: structured.Bind(observed).Field("status").Field("conditions")}
}

// NewMutableConditions returns Conditions that accept Set.
func NewMutableConditions(observed map[string]any) *Conditions {
	c := NewConditions(observed)
	c.mutable = true
	return c
}

// Mutable returns true if conditions may be set.
func (c *Conditions) Mutable() bool {
	return c.mutable
}

// Get returns the condition of the supplied type. A condition that is
// neither set nor observed has status Unknown.
func (c *Conditions) Get(ct xpv1.ConditionType) xpv1.Condition {
	for i := range c.set {
		if c.set[i].Type == ct {
			return c.set[i]
		}
	}
	for _, cd := range c.observedConditions() {
		if cd.Type == ct {
			return cd
		}
	}
	return xpv1.Condition{Type: ct, Status: corev1.ConditionUnknown}
}

// Set the supplied conditions, replacing any already set of the same type.
func (c *Conditions) Set(cs ...xpv1.Condition) error {
	if !c.mutable {
		return &ReadOnlyError{View: "conditions"}
	}
	for _, cd := range cs {
		replaced := false
		for i := range c.set {
			if c.set[i].Type == cd.Type {
				c.set[i] = cd
				replaced = true
				break
			}
		}
		if !replaced {
			c.set = append(c.set, cd)
		}
	}
	return nil
}

// Changed returns the conditions set during this invocation, in the order
// they were first set.
func (c *Conditions) Changed() []xpv1.Condition {
	return append([]xpv1.Condition{}, c.set...)
}

// Types returns the types of every observed or set condition.
func (c *Conditions) Types() []xpv1.ConditionType {
	seen := map[xpv1.ConditionType]bool{}
	out := []xpv1.ConditionType{}
	for _, cd := range c.observedConditions() {
		if !seen[cd.Type] {
			seen[cd.Type] = true
			out = append(out, cd.Type)
		}
	}
	for _, cd := range c.set {
		if !seen[cd.Type] {
			seen[cd.Type] = true
			out = append(out, cd.Type)
		}
	}
	return out
}

// observedConditions decodes whatever well-formed conditions are observed.
// Malformed entries are skipped.
func (c *Conditions) observedConditions() []xpv1.Condition {
	v, _, err := c.observed.Lookup()
	if err != nil {
		return nil
	}
	a, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]xpv1.Condition, 0, len(a))
	for _, e := range a {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		cd := xpv1.Condition{}
		if err := runtime.DefaultUnstructuredConverter.FromUnstructured(m, &cd); err != nil {
			continue
		}
		out = append(out, cd)
	}
	return out
}
