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

package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func TestLoadFromFile(t *testing.T) {
	type want struct {
		cfg Config
		err bool
	}

	cases := map[string]struct {
		reason string
		file   string
		opts   []Option
		want   want
	}{
		"Partial": {
			reason: "Fields the file does not set should keep their defaults.",
			file: `
insecure: true
scriptDir: /scripts
maxExecutionSteps: 100000
keepalive:
  time: 1m
`,
			want: want{cfg: func() Config {
				c := Default()
				c.Insecure = true
				c.ScriptDir = "/scripts"
				c.MaxExecutionSteps = 100000
				c.Keepalive.Time = metav1.Duration{Duration: time.Minute}
				return c
			}()},
		},
		"Options": {
			reason: "Options should be applied after the file is parsed.",
			file:   `address: ":1234"`,
			opts:   []Option{WithAddress(":5678"), WithInsecure(true)},
			want: want{cfg: func() Config {
				c := Default()
				c.Address = ":5678"
				c.Insecure = true
				return c
			}()},
		},
		"Malformed": {
			reason: "A file that is not YAML should fail to load.",
			file:   "address: [",
			want:   want{err: true},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			if err := afero.WriteFile(fs, "/config.yaml", []byte(tc.file), 0o600); err != nil {
				t.Fatalf("WriteFile(...): %v", err)
			}
			got, err := LoadFromFile(fs, "/config.yaml", tc.opts...)
			if tc.want.err {
				if err == nil {
					t.Errorf("\n%s\nLoadFromFile(...): want error, got nil", tc.reason)
				}
				return
			}
			if err != nil {
				t.Fatalf("\n%s\nLoadFromFile(...): %v", tc.reason, err)
			}
			if diff := cmp.Diff(tc.want.cfg, got); diff != "" {
				t.Errorf("\n%s\nLoadFromFile(...): -want, +got:\n%s", tc.reason, diff)
			}
		})
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile(afero.NewMemMapFs(), "/nope.yaml"); err == nil {
		t.Errorf("LoadFromFile(...): want error for a missing file, got nil")
	}
}

func TestResolve(t *testing.T) {
	base := Config{Address: ":1111", ScriptDir: "/from-file", Insecure: true}
	overrides := Config{ScriptDir: "/from-flag", MaxExecutionSteps: 10}

	got, err := Resolve(base, overrides)
	if err != nil {
		t.Fatalf("Resolve(...): %v", err)
	}

	want := Default()
	want.Address = ":1111"
	want.ScriptDir = "/from-flag"
	want.Insecure = true
	want.MaxExecutionSteps = 10
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resolve(...): -want, +got:\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	valid := func(fn func(c *Config)) Config {
		c := Default()
		c.TLSCertsDir = "/tls"
		fn(&c)
		return c
	}

	cases := map[string]struct {
		reason string
		cfg    Config
		err    bool
	}{
		"Valid": {
			reason: "The defaults plus a certificate directory should be valid.",
			cfg:    valid(func(_ *Config) {}),
		},
		"Insecure": {
			reason: "An insecure config needs no certificate directory.",
			cfg:    valid(func(c *Config) { c.TLSCertsDir = ""; c.Insecure = true }),
		},
		"NoCerts": {
			reason: "A secure config needs a certificate directory.",
			cfg:    valid(func(c *Config) { c.TLSCertsDir = "" }),
			err:    true,
		},
		"NoAddress": {
			reason: "An address is required.",
			cfg:    valid(func(c *Config) { c.Address = "" }),
			err:    true,
		},
		"SameAddress": {
			reason: "Metrics cannot be served on the gRPC address.",
			cfg:    valid(func(c *Config) { c.MetricsAddress = c.Address }),
			err:    true,
		},
		"ZeroTTL": {
			reason: "The default TTL must be positive.",
			cfg:    valid(func(c *Config) { c.DefaultTTL = metav1.Duration{} }),
			err:    true,
		},
		"NegativeKeepalive": {
			reason: "Keepalive durations cannot be negative.",
			cfg:    valid(func(c *Config) { c.Keepalive.Timeout = metav1.Duration{Duration: -time.Second} }),
			err:    true,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := Validate(tc.cfg)
			if diff := cmp.Diff(tc.err, err != nil); diff != "" {
				t.Errorf("\n%s\nValidate(...): -want error, +got error:\n%s\n%v", tc.reason, diff, err)
			}
		})
	}
}
