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
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/n3wscott/function-script/pkg/function"
	"github.com/n3wscott/function-script/pkg/script"
)

type renderFlags struct {
	scriptDir         string
	maxExecutionSteps uint64
}

func newRenderCommand(g *globalFlags) *cobra.Command {
	f := &renderFlags{}
	cmd := &cobra.Command{
		Use:   "render <request.yaml>",
		Short: "Run the function once against a RunFunctionRequest and print the response",
		Long: "Run the function once, in process, against a RunFunctionRequest read from a YAML or JSON\n" +
			"file, and print the RunFunctionResponse as YAML. Useful when developing scripts.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(g.debug)
			if err != nil {
				return err
			}
			fs := afero.NewOsFs()
			in, err := afero.ReadFile(fs, args[0])
			if err != nil {
				return errors.Wrap(err, "cannot read request")
			}
			fn := function.NewFunction(
				script.New(script.WithMaxExecutionSteps(f.maxExecutionSteps), script.WithLogger(log)),
				function.WithLogger(log),
				function.WithFs(fs),
				function.WithScriptDir(f.scriptDir),
			)
			out, err := function.Render(cmd.Context(), fn, in)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return errors.Wrap(err, "cannot write response")
		},
	}
	cmd.Flags().StringVar(&f.scriptDir, "script-dir", ".", "Directory that scriptRef inputs are resolved against.")
	cmd.Flags().Uint64Var(&f.maxExecutionSteps, "max-execution-steps", 0, "Maximum number of Starlark steps a script may run. Zero means no bound.")
	return cmd
}
