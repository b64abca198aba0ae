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

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderCommand(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "greet.star"), []byte("def compose(composite):\n    composite.status.greeting = \"hi\"\n"), 0o600); err != nil {
		t.Fatalf("WriteFile(...): %v", err)
	}
	req := `
input:
  scriptRef: greet.star
observed:
  composite:
    resource:
      apiVersion: example.org/v1
      kind: XGreeting
      metadata:
        name: world
`
	path := filepath.Join(dir, "request.yaml")
	if err := os.WriteFile(path, []byte(req), 0o600); err != nil {
		t.Fatalf("WriteFile(...): %v", err)
	}

	out := &bytes.Buffer{}
	cmd := newRootCommand()
	cmd.SetOut(out)
	cmd.SetArgs([]string{"render", "--script-dir", dir, path})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out.String(), "greeting: hi") {
		t.Errorf("render: want output containing the composed status, got:\n%s", out.String())
	}
}

func TestServeInvalidConfig(t *testing.T) {
	t.Setenv(EnvTLSCertsDir, "")
	cmd := newRootCommand()
	cmd.SetArgs([]string{"serve", "--address", ":9443", "--metrics-address", ":9443"})
	if err := cmd.ExecuteContext(context.Background()); err == nil {
		t.Errorf("serve: want error for an invalid configuration, got nil")
	}
}
