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
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/objectnodes/pkg/logging"
	nodegraph "github.com/AleutianAI/objectnodes/services/nodegraph"
	"github.com/AleutianAI/objectnodes/services/nodegraph/backend"
	"github.com/AleutianAI/objectnodes/services/nodegraph/compiler"
	"github.com/AleutianAI/objectnodes/services/nodegraph/config"
	"github.com/AleutianAI/objectnodes/services/nodegraph/nodes"
	"github.com/AleutianAI/objectnodes/services/nodegraph/store"
)

// skipConfig marks commands that run without loading configuration.
const skipConfig = "nodec.skip-config"

// app holds state shared by all subcommands of one invocation.
type app struct {
	out    io.Writer
	errOut io.Writer

	configPath string
	logLevel   string
	logFormat  string

	cfg    config.Config
	log    *logging.Logger
	logger *slog.Logger
}

// newRootCmd builds the command tree writing results to out and logs to
// errOut.
func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	root := &cobra.Command{
		Use:          "nodec",
		Short:        "Compile object node trees into backend graphs",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipConfig] == "true" {
				return nil
			}
			return a.setup()
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if a.log != nil {
				return a.log.Close()
			}
			return nil
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to a YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format (text, json, auto)")

	root.AddCommand(
		newCompileCmd(a),
		newEvalCmd(a),
		newValidateCmd(a),
		newTypesCmd(a),
		newWatchCmd(a),
		newServeCmd(a),
		newInitConfigCmd(a),
	)

	return root
}

// setup loads configuration, applies flag overrides and builds the logger.
func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	log, err := logging.New(logging.Config{
		Level:   level,
		Format:  logging.Format(cfg.Log.Format),
		Output:  a.errOut,
		LogDir:  cfg.Log.Dir,
		Service: "nodec",
	})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	a.cfg = cfg
	a.log = log
	a.logger = log.Slog()
	return nil
}

// newService wires the node type table, kinds, compiler and, when
// withStore is set and the store is enabled, the graph store.
//
// The returned close function releases the store and is never nil.
func (a *app) newService(withStore bool) (*nodegraph.Service, func() error, error) {
	noop := func() error { return nil }

	var (
		types *backend.NodeTypeTable
		err   error
	)
	if a.cfg.NodeTypes != "" {
		types, err = backend.LoadNodeTypesFile(a.cfg.NodeTypes)
	} else {
		types, err = backend.DefaultNodeTypes()
	}
	if err != nil {
		return nil, noop, fmt.Errorf("load node types: %w", err)
	}

	kinds, err := nodes.Builtin()
	if err != nil {
		return nil, noop, err
	}
	comp, err := compiler.New(kinds, a.logger)
	if err != nil {
		return nil, noop, err
	}

	var st *store.Store
	closeFn := noop
	if withStore && a.cfg.Store.Enabled {
		opts := a.cfg.Store.StoreOptions()
		opts.Logger = a.logger
		st, err = store.Open(opts)
		if err != nil {
			return nil, noop, err
		}
		closeFn = st.Close
	}

	svc, err := nodegraph.NewService(a.cfg.Service, types, comp, st, a.logger)
	if err != nil {
		_ = closeFn()
		return nil, noop, err
	}
	return svc, closeFn, nil
}
