// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	nodegraph "github.com/AleutianAI/objectnodes/services/nodegraph"
	"github.com/AleutianAI/objectnodes/services/nodegraph/tree"
)

// compileFlags are shared by compile, eval and watch.
type compileFlags struct {
	args      []string
	iteration int32
	evaluate  bool
	persist   bool
	snapshot  bool
	output    string
}

func (f *compileFlags) register(cmd *cobra.Command, withEvaluate bool) {
	cmd.Flags().StringArrayVarP(&f.args, "arg", "a", nil, "Graph input value as name=value (repeatable)")
	cmd.Flags().Int32Var(&f.iteration, "iteration", 0, "Value produced by Iteration nodes")
	cmd.Flags().StringVarP(&f.output, "output", "o", formatJSON, "Output format (json, yaml)")
	if withEvaluate {
		cmd.Flags().BoolVar(&f.evaluate, "evaluate", false, "Evaluate graph outputs after compiling")
		cmd.Flags().BoolVar(&f.persist, "persist", false, "Save the compiled graph to the store")
		cmd.Flags().BoolVar(&f.snapshot, "snapshot", false, "Include the compiled graph in the output")
	}
}

func (f *compileFlags) options() (nodegraph.CompileOptions, error) {
	args, err := parseArgs(f.args)
	if err != nil {
		return nodegraph.CompileOptions{}, err
	}
	return nodegraph.CompileOptions{
		Evaluate:  f.evaluate || len(args) > 0,
		Args:      args,
		Iteration: f.iteration,
		Persist:   f.persist,
	}, nil
}

// fileResult is one compiled document in compile and watch output.
type fileResult struct {
	File   string                     `json:"file"`
	Result *nodegraph.CompileResponse `json:"result,omitempty"`
	Error  string                     `json:"error,omitempty"`
}

func newCompileCmd(a *app) *cobra.Command {
	var flags compileFlags
	cmd := &cobra.Command{
		Use:   "compile FILE...",
		Short: "Compile tree documents into backend graphs",
		Long: `Compile one or more tree documents (YAML or JSON).

Files are compiled concurrently, each into its own graph. The command fails
if any file fails; the first error is reported.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, files []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			svc, closeSvc, err := a.newService(flags.persist)
			if err != nil {
				return err
			}
			defer closeSvc()

			results, err := compileFiles(cmd.Context(), svc, files, opts, flags.snapshot)
			if err != nil {
				return err
			}
			return writeOutput(a.out, flags.output, results)
		},
	}
	flags.register(cmd, true)
	return cmd
}

// compileFiles compiles files concurrently and returns results in argument
// order.
func compileFiles(ctx context.Context, svc *nodegraph.Service, files []string, opts nodegraph.CompileOptions, snapshot bool) ([]fileResult, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, file := range files {
		g.Go(func() error {
			resp, err := compileFile(ctx, svc, file, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			if !snapshot {
				resp.Snapshot = nil
			}
			results[i] = fileResult{File: file, Result: resp}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func compileFile(ctx context.Context, svc *nodegraph.Service, file string, opts nodegraph.CompileOptions) (*nodegraph.CompileResponse, error) {
	lib, err := tree.LoadFile(file)
	if err != nil {
		return nil, err
	}
	return svc.Compile(ctx, lib, opts)
}

func newEvalCmd(a *app) *cobra.Command {
	var flags compileFlags
	cmd := &cobra.Command{
		Use:   "eval FILE",
		Short: "Compile a tree document and print its evaluated outputs",
		Example: `  nodec eval scene.yaml --arg float=2.5 --arg vector="[1, 0, 0]"
  nodec eval anim.yaml --iteration 12 -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, files []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			opts.Evaluate = true

			svc, closeSvc, err := a.newService(false)
			if err != nil {
				return err
			}
			defer closeSvc()

			resp, err := compileFile(cmd.Context(), svc, files[0], opts)
			if err != nil {
				return fmt.Errorf("%s: %w", files[0], err)
			}
			return writeOutput(a.out, flags.output, resp.Outputs)
		},
	}
	flags.register(cmd, false)
	return cmd
}
