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
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/cobra"

	nodegraph "github.com/AleutianAI/objectnodes/services/nodegraph"
	"github.com/AleutianAI/objectnodes/services/nodegraph/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		flags    compileFlags
		debounce time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch FILE...",
		Short: "Recompile tree documents whenever they change",
		Long: `Compile the given documents once, then again after every save.

Compile errors are printed and watching continues. Stop with Ctrl-C.`,
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

			return a.watch(cmd.Context(), svc, files, opts, flags, debounce)
		},
	}
	flags.register(cmd, true)
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period before recompiling")
	return cmd
}

// watch compiles files once and then on every change until ctx is done.
func (a *app) watch(ctx context.Context, svc *nodegraph.Service, files []string, opts nodegraph.CompileOptions, flags compileFlags, debounce time.Duration) error {
	var mu sync.Mutex
	recompile := func(ctx context.Context, paths []string) {
		mu.Lock()
		defer mu.Unlock()

		results := make([]fileResult, len(paths))
		for i, path := range paths {
			results[i].File = path
			resp, err := compileFile(ctx, svc, path, opts)
			if err != nil {
				results[i].Error = err.Error()
				a.logger.Warn("compile failed", slog.String("file", path), slog.String("error", err.Error()))
				continue
			}
			if !flags.snapshot {
				resp.Snapshot = nil
			}
			results[i].Result = resp
		}
		if err := writeOutput(a.out, flags.output, results); err != nil {
			a.logger.Error("write output failed", slog.String("error", err.Error()))
		}
	}

	w, err := watch.New(files, recompile, watch.Options{Debounce: debounce, Logger: a.logger})
	if err != nil {
		return err
	}
	defer w.Close()

	recompile(ctx, files)
	a.logger.Info("watching for changes", slog.Int("files", len(files)))

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
