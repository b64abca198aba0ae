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

// Package config loads and validates the function's runtime configuration.
package config

import (
	"time"

	"dario.cat/mergo"
	"github.com/spf13/afero"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
)

// Error strings.
const (
	errReadConfig  = "cannot read config file"
	errParseConfig = "cannot parse config file"
	errMergeConfig = "cannot merge config"
	errNoAddress   = "address is required"
	errNoCerts     = "tlsCertsDir is required unless insecure is true"
	errNegativeTTL = "defaultTTL must be positive"
	errKeepalive   = "keepalive durations must not be negative"
	errSameAddress = "metricsAddress must differ from address"
)

// Defaults.
const (
	defaultAddress     = ":9443"
	defaultMetrics     = ":8080"
	defaultTTL         = time.Minute
	defaultKATime      = 30 * time.Second
	defaultKATimeout   = 10 * time.Second
	defaultKAMinPeriod = 5 * time.Second
)

// Keepalive configures gRPC server keepalive.
type Keepalive struct {
	// Time after which the server pings an idle client.
	Time metav1.Duration `json:"time,omitempty"`

	// Timeout after which an unresponsive client is closed.
	Timeout metav1.Duration `json:"timeout,omitempty"`

	// MinTime clients must wait between pings.
	MinTime metav1.Duration `json:"minTime,omitempty"`
}

// Config of the function runtime.
type Config struct {
	// Debug enables debug logging.
	Debug bool `json:"debug,omitempty"`

	// Address the gRPC server listens on.
	Address string `json:"address,omitempty"`

	// Insecure serves without TLS. Only for local development.
	Insecure bool `json:"insecure,omitempty"`

	// TLSCertsDir contains tls.crt, tls.key and ca.crt.
	TLSCertsDir string `json:"tlsCertsDir,omitempty"`

	// MetricsAddress the Prometheus endpoint listens on. Empty disables it.
	MetricsAddress string `json:"metricsAddress,omitempty"`

	// ScriptDir that scriptRef inputs are resolved against.
	ScriptDir string `json:"scriptDir,omitempty"`

	// MaxExecutionSteps a script may run. Zero means no bound.
	MaxExecutionSteps uint64 `json:"maxExecutionSteps,omitempty"`

	// DefaultTTL of responses whose input sets none.
	DefaultTTL metav1.Duration `json:"defaultTTL,omitempty"`

	// Keepalive of the gRPC server.
	Keepalive Keepalive `json:"keepalive,omitempty"`
}

// An Option modifies a Config.
type Option func(c *Config)

// WithAddress sets the gRPC listen address.
func WithAddress(a string) Option {
	return func(c *Config) {
		c.Address = a
	}
}

// WithInsecure disables TLS.
func WithInsecure(insecure bool) Option {
	return func(c *Config) {
		c.Insecure = insecure
	}
}

// Default returns the default Config.
func Default() Config {
	return Config{
		Address:        defaultAddress,
		MetricsAddress: defaultMetrics,
		DefaultTTL:     metav1.Duration{Duration: defaultTTL},
		Keepalive: Keepalive{
			Time:    metav1.Duration{Duration: defaultKATime},
			Timeout: metav1.Duration{Duration: defaultKATimeout},
			MinTime: metav1.Duration{Duration: defaultKAMinPeriod},
		},
	}
}

// LoadFromFile loads a YAML or JSON Config from the supplied filesystem.
// Anything the file does not set keeps its default.
func LoadFromFile(fs afero.Fs, path string, o ...Option) (Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Config{}, errors.Wrap(err, errReadConfig)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, errParseConfig)
	}
	for _, fn := range o {
		fn(&cfg)
	}
	return cfg, errors.Wrap(mergo.Merge(&cfg, Default()), errMergeConfig)
}

// Resolve overlays the supplied overrides, typically set from flags, on the
// supplied base and fills anything still unset with defaults. Only non-zero
// overrides apply, so an override cannot turn a boolean off.
func Resolve(base, overrides Config) (Config, error) {
	out := base
	if err := mergo.Merge(&out, overrides, mergo.WithOverride); err != nil {
		return Config{}, errors.Wrap(err, errMergeConfig)
	}
	if err := mergo.Merge(&out, Default()); err != nil {
		return Config{}, errors.Wrap(err, errMergeConfig)
	}
	return out, nil
}

// Validate returns an error if the supplied Config cannot be served.
func Validate(c Config) error {
	if c.Address == "" {
		return errors.New(errNoAddress)
	}
	if !c.Insecure && c.TLSCertsDir == "" {
		return errors.New(errNoCerts)
	}
	if c.MetricsAddress != "" && c.MetricsAddress == c.Address {
		return errors.New(errSameAddress)
	}
	if c.DefaultTTL.Duration <= 0 {
		return errors.New(errNegativeTTL)
	}
	for _, d := range []metav1.Duration{c.Keepalive.Time, c.Keepalive.Timeout, c.Keepalive.MinTime} {
		if d.Duration < 0 {
			return errors.New(errKeepalive)
		}
	}
	return nil
}
