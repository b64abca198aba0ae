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

// Package function implements a composition function that runs scripts.
package function

import (
	"context"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
	"github.com/crossplane/crossplane-runtime/pkg/fieldpath"
	"github.com/crossplane/crossplane-runtime/pkg/logging"
	fnv1 "github.com/crossplane/function-sdk-go/proto/v1"
	"github.com/crossplane/function-sdk-go/response"

	"github.com/n3wscott/function-script/pkg/converge"
	"github.com/n3wscott/function-script/pkg/metrics"
	"github.com/n3wscott/function-script/pkg/script"
	"github.com/n3wscott/function-script/pkg/structured"
)

// Error strings.
const (
	errInput        = "invalid function input"
	errNoScript     = "input must set one of \"script\" or \"scriptRef\""
	errBothSources  = "input must set only one of \"script\" or \"scriptRef\""
	errNoScriptDir  = "scriptRef requires the function to be started with a script directory"
	errScriptRef    = "scriptRef must be a relative path within the script directory"
	errReadScript   = "cannot read script"
	errScriptFailed = "cannot run script"
)

// An Option configures a Function.
type Option func(f *Function)

// WithLogger sets the logger of a Function.
func WithLogger(l logging.Logger) Option {
	return func(f *Function) {
		f.log = l
	}
}

// WithFs sets the filesystem scriptRefs are read from.
func WithFs(fs afero.Fs) Option {
	return func(f *Function) {
		f.fs = fs
	}
}

// WithScriptDir sets the directory scriptRefs are resolved against.
func WithScriptDir(dir string) Option {
	return func(f *Function) {
		f.scriptDir = dir
	}
}

// WithDefaultTTL sets the TTL of responses whose input sets none.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(f *Function) {
		f.ttl = ttl
	}
}

// WithRecorder sets the recorder runs are reported to.
func WithRecorder(r metrics.Recorder) Option {
	return func(f *Function) {
		f.metrics = r
	}
}

// Function runs a script against each RunFunctionRequest.
type Function struct {
	fnv1.UnimplementedFunctionRunnerServiceServer

	converger *converge.Converger
	fs        afero.Fs
	scriptDir string
	ttl       time.Duration
	log       logging.Logger
	metrics   metrics.Recorder
}

// NewFunction returns a Function that runs scripts with the supplied engine.
func NewFunction(e converge.Engine, o ...Option) *Function {
	f := &Function{
		fs:      afero.NewOsFs(),
		ttl:     response.DefaultTTL,
		log:     logging.NewNopLogger(),
		metrics: metrics.NopRecorder{},
	}
	for _, fn := range o {
		fn(f)
	}
	f.converger = converge.NewConverger(e, converge.WithLogger(f.log))
	return f
}

// RunFunction runs the Function. Failures are returned as a single fatal
// result alongside the request's desired state, never as an error.
func (f *Function) RunFunction(ctx context.Context, req *fnv1.RunFunctionRequest) (*fnv1.RunFunctionResponse, error) {
	start := time.Now()
	log := f.logger(req)

	in, err := ParseInput(req.GetInput())
	if in.Step != "" {
		log = log.WithValues("step", in.Step)
	}
	ttl := f.ttl
	if in.TTL != nil {
		ttl = *in.TTL
	}
	log.Debug("Running function", "ttl", ttl.String())
	rsp := response.To(req, ttl)

	if err != nil {
		return f.fatal(log, rsp, start, errors.Wrap(err, errInput)), nil
	}

	source, err := f.source(in)
	if err != nil {
		return f.fatal(log, rsp, start, err), nil
	}

	if err := f.converger.Converge(ctx, req, rsp, converge.Invocation{Source: source, AutoReady: in.AutoReady, Log: log}); err != nil {
		var sf *script.Failure
		if errors.As(err, &sf) && sf.Backtrace != "" {
			log = log.WithValues("backtrace", sf.Backtrace)
		}
		return f.fatal(log, rsp, start, errors.Wrap(err, errScriptFailed)), nil
	}

	log.Debug("Returning", "duration", time.Since(start).String())
	f.metrics.RecordRun(metrics.OutcomeSuccess, time.Since(start))
	return rsp, nil
}

func (f *Function) logger(req *fnv1.RunFunctionRequest) logging.Logger {
	xr := fieldpath.Pave(structured.FromStruct(req.GetObserved().GetComposite().GetResource()))
	apiVersion, _ := xr.GetString("apiVersion")
	kind, _ := xr.GetString("kind")
	name, _ := xr.GetString("metadata.name")
	log := f.log.WithValues("xr-apiversion", apiVersion, "xr-kind", kind, "xr-name", name)
	if tag := req.GetMeta().GetTag(); tag != "" {
		log = log.WithValues("tag", tag)
	}
	return log
}

func (f *Function) fatal(log logging.Logger, rsp *fnv1.RunFunctionResponse, start time.Time, err error) *fnv1.RunFunctionResponse {
	log.Info("Returning fatal result", "error", err)
	response.Fatal(rsp, err)
	f.metrics.RecordRun(metrics.OutcomeFatal, time.Since(start))
	return rsp
}

// source returns the script to run, reading it from the script directory if
// the input references a file.
func (f *Function) source(in Input) (string, error) {
	switch {
	case in.Script != "" && in.ScriptRef != "":
		return "", errors.New(errBothSources)
	case in.Script != "":
		return in.Script, nil
	case in.ScriptRef == "":
		return "", errors.New(errNoScript)
	case f.scriptDir == "":
		return "", errors.New(errNoScriptDir)
	case !filepath.IsLocal(in.ScriptRef):
		return "", errors.New(errScriptRef)
	}
	b, err := afero.ReadFile(f.fs, filepath.Join(f.scriptDir, in.ScriptRef))
	return string(b), errors.Wrapf(err, "%s %q", errReadScript, in.ScriptRef)
}
