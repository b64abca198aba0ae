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

// Command function-script is a Crossplane composition function that runs
// Starlark scripts.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
	"github.com/crossplane/crossplane-runtime/pkg/logging"
)

// Version is set at build time.
var Version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalFlags struct {
	debug bool
}

func newRootCommand() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "function-script",
		Short:         "A Crossplane composition function that runs Starlark scripts",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&g.debug, "debug", "d", false, "Emit debug logs.")

	root.AddCommand(newServeCommand(g))
	root.AddCommand(newRenderCommand(g))
	return root
}

// newLogger returns a logger that writes JSON in production and console
// output with debug logs in debug mode.
func newLogger(debug bool) (logging.Logger, error) {
	zl, err := zap.NewProduction()
	if debug {
		zl, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, errors.Wrap(err, "cannot create logger")
	}
	return logging.NewLogrLogger(zapr.NewLogger(zl)), nil
}
