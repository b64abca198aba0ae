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
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	corev1 "k8s.io/api/core/v1"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/n3wscott/function-script/pkg/metrics"
	"github.com/n3wscott/function-script/pkg/structured"
	"github.com/n3wscott/function-script/pkg/view"
)

func observedXR() map[string]any {
	return map[string]any{
		"apiVersion": "example.org/v1",
		"kind":       "XBucket",
		"metadata":   map[string]any{"name": "cool-xr"},
		"spec": map[string]any{
			"region":   "us-east-1",
			"replicas": 3.0,
			"tags":     []any{"x", "y"},
			"labels":   map[string]any{"team": "infra", "env": "dev"},
		},
		"status": map[string]any{"conditions": []any{
			map[string]any{"type": "Ready", "status": "True", "reason": "Available"},
		}},
	}
}

func newComposite(t *testing.T) *view.Composite {
	t.Helper()
	rs := view.NewResources()
	if _, err := rs.Seed("a", map[string]any{"spec": map[string]any{"existing": "yes"}}, nil, view.ReadyUnspecified); err != nil {
		t.Fatalf("Seed(a): %v", err)
	}
	if _, err := rs.Seed("b", nil, nil, view.ReadyUnspecified); err != nil {
		t.Fatalf("Seed(b): %v", err)
	}
	return view.NewComposite(view.WithObserved(observedXR()), view.WithResources(rs))
}

func desired(t *testing.T, c *view.Composite, name string) map[string]any {
	t.Helper()
	r, ok := c.Resources().Get(name)
	if !ok {
		t.Fatalf("resource %q does not exist", name)
	}
	return r.Desired()
}

func TestExecute(t *testing.T) {
	type want struct {
		resources map[string]map[string]any
		composite map[string]any
	}

	cases := map[string]struct {
		reason string
		source string
		want   want
	}{
		"CreateBucket": {
			reason: "Chained attribute writes should create a resource and every intermediate mapping.",
			source: `
def compose(composite):
    bucket = composite.resources.bucket
    bucket.apiVersion = "s3.aws.upbound.io/v1beta1"
    bucket.kind = "Bucket"
    bucket.spec.forProvider.region = composite.spec.region
`,
			want: want{
				resources: map[string]map[string]any{
					"bucket": {
						"apiVersion": "s3.aws.upbound.io/v1beta1",
						"kind":       "Bucket",
						"spec":       map[string]any{"forProvider": map[string]any{"region": "us-east-1"}},
					},
				},
				composite: map[string]any{},
			},
		},
		"CallResource": {
			reason: "Calling a resource should set its apiVersion and kind and merge keyword arguments.",
			source: `
def compose(composite):
    composite.resources["my-queue"]("sqs.aws.upbound.io/v1beta1", "Queue", spec={"forProvider": {"region": "eu-west-1"}})
    composite.resources["my-queue"](spec={"forProvider": {"delay": 5}})
`,
			want: want{
				resources: map[string]map[string]any{
					"my-queue": {
						"apiVersion": "sqs.aws.upbound.io/v1beta1",
						"kind":       "Queue",
						"spec":       map[string]any{"forProvider": map[string]any{"region": "eu-west-1", "delay": 5.0}},
					},
				},
				composite: map[string]any{},
			},
		},
		"PartialUpdate": {
			reason: "Writing one field of a seeded resource should preserve its other fields.",
			source: `
def compose(composite):
    composite.resources.a.spec.added = True
`,
			want: want{
				resources: map[string]map[string]any{
					"a": {"spec": map[string]any{"existing": "yes", "added": true}},
				},
				composite: map[string]any{},
			},
		},
		"Numbers": {
			reason: "Integral numbers should be presented as ints and written back as numbers.",
			source: `
def compose(composite):
    n = composite.spec.replicas
    if type(n) != "int":
        fail("want int, got " + type(n))
    composite.status.replicas = n + 1
    composite.status.ratio = n / 2
`,
			want: want{
				composite: map[string]any{"status": map[string]any{"replicas": 4.0, "ratio": 1.5}},
			},
		},
		"Iterate": {
			reason: "Resources should iterate in insertion order, sequences by element and mappings by sorted key.",
			source: `
def compose(composite):
    names = []
    for name in composite.resources:
        names.append(name)
    composite.status.names = names
    composite.status.tags = [t.upper() for t in composite.spec.tags]
    composite.status.keys = [k for k in composite.spec.labels]
    composite.status.count = len(composite.resources)
`,
			want: want{
				composite: map[string]any{"status": map[string]any{
					"names": []any{"a", "b"},
					"tags":  []any{"X", "Y"},
					"keys":  []any{"env", "team"},
					"count": 2.0,
				}},
			},
		},
		"Builtins": {
			reason: "The exists, unwrap and delete builtins and the list methods should work on fields.",
			source: `
def compose(composite):
    if not exists(composite.spec.labels):
        fail("labels should exist")
    if exists(composite.spec.missing):
        fail("missing should not exist")
    if unwrap(composite.spec.tags) != ["x", "y"]:
        fail("unexpected tags")
    if "team" not in composite.spec.labels:
        fail("team label should be present")
    if "nope" in composite.spec.labels:
        fail("nope label should be absent")
    r = composite.resources.a
    r.spec.keep = True
    r.spec.drop = 1
    delete(r.spec, "drop")
    r.spec.list = [1, 2, 3]
    delete(r.spec.list, -1)
    r.spec.list.append(4)
    r.spec.more.extend(["a"])
    r.metadata.labels = struct(team = "infra")
`,
			want: want{
				resources: map[string]map[string]any{
					"a": {
						"metadata": map[string]any{"labels": map[string]any{"team": "infra"}},
						"spec": map[string]any{
							"existing": "yes",
							"keep":     true,
							"list":     []any{1.0, 2.0, 4.0},
							"more":     []any{"a"},
						},
					},
				},
				composite: map[string]any{},
			},
		},
		"AssignView": {
			reason: "Assigning one view to another should copy the value rather than alias it.",
			source: `
def compose(composite):
    composite.status.labels = composite.spec.labels
    composite.status.labels.team = "platform"
    if composite.spec.labels.team != "infra":
        fail("assigning a view should not alias it")
`,
			want: want{
				composite: map[string]any{"status": map[string]any{"labels": map[string]any{"team": "platform", "env": "dev"}}},
			},
		},
		"Modules": {
			reason: "The json and math modules should be available to scripts.",
			source: `
def compose(composite):
    composite.status.encoded = json.encode({"a": 1})
    composite.status.floor = math.floor(2.5)
`,
			want: want{
				composite: map[string]any{"status": map[string]any{"encoded": `{"a":1}`, "floor": 2.0}},
			},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c := newComposite(t)
			if err := New().Execute(context.Background(), tc.source, c); err != nil {
				t.Fatalf("\n%s\nExecute(...): %v", tc.reason, err)
			}
			for rn, want := range tc.want.resources {
				if diff := cmp.Diff(want, desired(t, c, rn)); diff != "" {
					t.Errorf("\n%s\nExecute(...): resource %q: -want, +got:\n%s", tc.reason, rn, diff)
				}
			}
			if tc.want.composite != nil {
				if diff := cmp.Diff(tc.want.composite, c.DesiredObject()); diff != "" {
					t.Errorf("\n%s\nExecute(...): composite: -want, +got:\n%s", tc.reason, diff)
				}
			}
		})
	}
}

func TestExecuteCompositeSurface(t *testing.T) {
	source := `
def compose(composite):
    composite.status.observedReady = composite.conditions["Ready"].status
    composite.status.readyReason = composite.conditions.Ready.reason
    composite.status.synced = composite.conditions.Synced.status
    composite.conditions.set("DatabaseReady", False, reason="Creating", message="creating")
    composite.normal("hello")
    composite.warning("careful")
    composite.require_extra_resources("envs", "example.org/v1", "Env", match_labels={"team": "infra"})
    composite.log.info("composed", count=2)
    composite.ready = True
    print("done")
`
	c := newComposite(t)
	if err := New().Execute(context.Background(), source, c); err != nil {
		t.Fatalf("Execute(...): %v", err)
	}

	if diff := cmp.Diff(map[string]any{"status": map[string]any{
		"observedReady": "True",
		"readyReason":   "Available",
		"synced":        "Unknown",
	}}, c.DesiredObject()); diff != "" {
		t.Errorf("desired: -want, +got:\n%s", diff)
	}
	changed := c.Conditions().Changed()
	if len(changed) != 1 || changed[0].Type != "DatabaseReady" || changed[0].Status != corev1.ConditionFalse || changed[0].Reason != "Creating" {
		t.Errorf("conditions: got %v", changed)
	}
	wantResults := []view.Result{
		{Severity: view.SeverityNormal, Message: "hello"},
		{Severity: view.SeverityWarning, Message: "careful"},
	}
	if diff := cmp.Diff(wantResults, c.Results()); diff != "" {
		t.Errorf("results: -want, +got:\n%s", diff)
	}
	wantReq := map[string]view.ExtraResourceSelector{
		"envs": {APIVersion: "example.org/v1", Kind: "Env", MatchLabels: map[string]string{"team": "infra"}},
	}
	if diff := cmp.Diff(wantReq, c.Requirements()); diff != "" {
		t.Errorf("requirements: -want, +got:\n%s", diff)
	}
	if !c.Ready() {
		t.Errorf("ready: want true")
	}
}

func TestExecuteFailure(t *testing.T) {
	loop := `
def compose(composite):
    while True:
        pass
`
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	cases := map[string]struct {
		reason  string
		ctx     context.Context
		source  string
		opts    []Option
		is      func(error) bool
		message string
	}{
		"TypeMismatch": {
			reason: "Setting a key of a sequence should fail with a type mismatch.",
			source: `
def compose(composite):
    composite.status.tags = ["a"]
    composite.status.tags.x = 1
`,
			is: structured.IsTypeMismatch,
		},
		"WriteThroughScalar": {
			reason: "Setting a field of a resource spec that was assigned a scalar should fail with a type mismatch.",
			source: `
def compose(composite):
    r = composite.resources.get_or_create("bucket")
    r.spec = 5
    r.spec.x = 1
`,
			is: structured.IsTypeMismatch,
		},
		"IndexError": {
			reason: "Setting an element past the end of a sequence should fail with an index error.",
			source: `
def compose(composite):
    composite.status.tags = ["a"]
    composite.status.tags[5] = "b"
`,
			is: structured.IsIndexError,
		},
		"ReadOnly": {
			reason: "Writing composite metadata should fail because it is read-only.",
			source: `
def compose(composite):
    composite.metadata.name = "x"
`,
			is: view.IsReadOnly,
		},
		"Fail": {
			reason:  "A script that calls fail should fail with its message.",
			source:  "def compose(composite):\n    fail(\"boom\")\n",
			message: "boom",
		},
		"Syntax": {
			reason: "A script that does not parse should fail.",
			source: "def compose(composite)\n    pass\n",
		},
		"NoEntrypoint": {
			reason:  "A script without a compose function should fail.",
			source:  "x = 1\n",
			message: errNoEntrypoint,
		},
		"MaxSteps": {
			reason: "A script that runs too long should be stopped.",
			source: loop,
			opts:   []Option{WithMaxExecutionSteps(1000)},
		},
		"Cancelled": {
			reason: "A script should be stopped when its context is cancelled.",
			ctx:    cancelled,
			source: loop,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := tc.ctx
			if ctx == nil {
				ctx = context.Background()
			}
			err := New(tc.opts...).Execute(ctx, tc.source, newComposite(t))
			if !IsScriptFailure(err) {
				t.Fatalf("\n%s\nExecute(...): want script failure, got %v", tc.reason, err)
			}
			if tc.is != nil && !tc.is(err) {
				t.Errorf("\n%s\nExecute(...): unexpected kind of failure: %v", tc.reason, err)
			}
			if tc.message != "" && !strings.Contains(err.Error(), tc.message) {
				t.Errorf("\n%s\nExecute(...): want message containing %q, got %q", tc.reason, tc.message, err.Error())
			}
		})
	}
}

func TestFailureBacktrace(t *testing.T) {
	source := `
def helper():
    fail("deep")

def compose(composite):
    helper()
`
	err := New().Execute(context.Background(), source, newComposite(t))
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("Execute(...): want script failure, got %v", err)
	}
	if !strings.Contains(f.Backtrace, "helper") {
		t.Errorf("Backtrace: want a frame for helper, got %q", f.Backtrace)
	}
}

type recorder struct {
	metrics.NopRecorder
	hits, misses int
}

func (r *recorder) RecordCompile(hit bool) {
	if hit {
		r.hits++
		return
	}
	r.misses++
}

func TestCache(t *testing.T) {
	rec := &recorder{}
	c := NewCache(WithRecorder(rec))
	e := New(WithCache(c))

	source := "def compose(composite):\n    composite.status.ok = True\n"
	for range 3 {
		if err := e.Execute(context.Background(), source, newComposite(t)); err != nil {
			t.Fatalf("Execute(...): %v", err)
		}
	}
	if _, err := c.Compile("def compose(:"); !IsScriptFailure(err) {
		t.Errorf("Compile(...): want script failure, got %v", err)
	}

	if diff := cmp.Diff(1, c.Len()); diff != "" {
		t.Errorf("Len(): -want, +got:\n%s", diff)
	}
	if diff := cmp.Diff(2, rec.hits); diff != "" {
		t.Errorf("hits: -want, +got:\n%s", diff)
	}
	if diff := cmp.Diff(2, rec.misses); diff != "" {
		t.Errorf("misses: -want, +got:\n%s", diff)
	}
}

func TestCacheConcurrent(t *testing.T) {
	c := NewCache()
	e := New(WithCache(c))
	source := "def compose(composite):\n    composite.status.ok = True\n"

	errs := make(chan error, 8)
	for range 8 {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			errs <- e.Execute(ctx, source, view.NewComposite())
		}()
	}
	for range 8 {
		if err := <-errs; err != nil {
			t.Errorf("Execute(...): %v", err)
		}
	}
	if diff := cmp.Diff(1, c.Len()); diff != "" {
		t.Errorf("Len(): -want, +got:\n%s", diff)
	}
}
