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
	"context"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
	"github.com/crossplane/crossplane-runtime/pkg/logging"

	"github.com/n3wscott/function-script/pkg/config"
	"github.com/n3wscott/function-script/pkg/function"
	"github.com/n3wscott/function-script/pkg/metrics"
	"github.com/n3wscott/function-script/pkg/script"
	"github.com/n3wscott/function-script/pkg/server"
)

// EnvTLSCertsDir is read when --tls-certs-dir is not set.
const EnvTLSCertsDir = "TLS_SERVER_CERTS_DIR"

type serveFlags struct {
	configPath        string
	address           string
	tlsCertsDir       string
	insecure          bool
	metricsAddress    string
	scriptDir         string
	maxExecutionSteps uint64
	defaultTTL        time.Duration
}

func newServeCommand(g *globalFlags) *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the function over gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), g, f, cmd.Flags())
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "Path to a YAML configuration file. Flags override it.")
	fl.StringVar(&f.address, "address", "", "Address at which to listen for gRPC connections. (default \":9443\")")
	fl.StringVar(&f.tlsCertsDir, "tls-certs-dir", "", "Serve using mTLS certificates from this directory. Defaults to $"+EnvTLSCertsDir+".")
	fl.BoolVar(&f.insecure, "insecure", false, "Run without mTLS credentials. If you supply this flag --tls-certs-dir will be ignored.")
	fl.StringVar(&f.metricsAddress, "metrics-address", "", "Address at which to serve Prometheus metrics. (default \":8080\")")
	fl.StringVar(&f.scriptDir, "script-dir", "", "Directory that scriptRef inputs are resolved against.")
	fl.Uint64Var(&f.maxExecutionSteps, "max-execution-steps", 0, "Maximum number of Starlark steps a script may run. Zero means no bound.")
	fl.DurationVar(&f.defaultTTL, "default-ttl", 0, "TTL of responses whose input sets none. (default 1m)")
	return cmd
}

// overrides returns a Config holding only what was set by flags.
func (f *serveFlags) overrides(fl *pflag.FlagSet) config.Config {
	o := config.Config{
		Address:           f.address,
		TLSCertsDir:       f.tlsCertsDir,
		Insecure:          f.insecure,
		MetricsAddress:    f.metricsAddress,
		ScriptDir:         f.scriptDir,
		MaxExecutionSteps: f.maxExecutionSteps,
		DefaultTTL:        metav1.Duration{Duration: f.defaultTTL},
	}
	if !fl.Changed("tls-certs-dir") {
		o.TLSCertsDir = os.Getenv(EnvTLSCertsDir)
	}
	return o
}

func serve(ctx context.Context, g *globalFlags, f *serveFlags, fl *pflag.FlagSet) error {
	fs := afero.NewOsFs()
	base := config.Default()
	if f.configPath != "" {
		var err error
		if base, err = config.LoadFromFile(fs, f.configPath); err != nil {
			return err
		}
	}
	cfg, err := config.Resolve(base, f.overrides(fl))
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	log, err := newLogger(cfg.Debug || g.debug)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec, err := metrics.NewPrometheusRecorder(reg)
	if err != nil {
		return err
	}
	if cfg.MetricsAddress != "" {
		go serveMetrics(ctx, log, cfg.MetricsAddress, reg)
	}

	engine := script.New(
		script.WithCache(script.NewCache(script.WithRecorder(rec))),
		script.WithMaxExecutionSteps(cfg.MaxExecutionSteps),
		script.WithLogger(log),
	)
	fn := function.NewFunction(engine,
		function.WithLogger(log),
		function.WithFs(fs),
		function.WithScriptDir(cfg.ScriptDir),
		function.WithDefaultTTL(cfg.DefaultTTL.Duration),
		function.WithRecorder(rec),
	)

	opts := []server.FunctionServerOption{
		server.WithServerLogger(log),
		server.WithGRPCServerOptions(server.DefaultServerOptions(cfg.Keepalive.Time.Duration, cfg.Keepalive.Timeout.Duration, cfg.Keepalive.MinTime.Duration)...),
	}
	if !cfg.Insecure {
		creds, err := server.LoadTLSCredentials(fs, cfg.TLSCertsDir)
		if err != nil {
			return err
		}
		opts = append(opts, server.WithTLSCredentials(creds))
	}
	srv, err := server.NewFunctionServer(fn, opts...)
	if err != nil {
		return err
	}
	return srv.Serve(ctx, cfg.Address)
}

func serveMetrics(ctx context.Context, log logging.Logger, address string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	s := &http.Server{Addr: address, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(sctx)
	}()

	log.Info("Serving metrics", "address", address)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Info("Cannot serve metrics", "error", err)
	}
}
