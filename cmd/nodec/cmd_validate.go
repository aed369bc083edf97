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
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	nodegraph "github.com/AleutianAI/objectnodes/services/nodegraph"
	"github.com/AleutianAI/objectnodes/services/nodegraph/config"
)

// errInvalidDocuments makes validate exit non-zero after printing results.
var errInvalidDocuments = errors.New("one or more documents are invalid")

type validateResult struct {
	File string `json:"file"`
	*nodegraph.ValidateResponse
}

func newValidateCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check tree documents without compiling them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, files []string) error {
			svc, closeSvc, err := a.newService(false)
			if err != nil {
				return err
			}
			defer closeSvc()

			results := make([]validateResult, 0, len(files))
			valid := true
			for _, file := range files {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read %s: %w", file, err)
				}
				resp, err := svc.Validate(cmd.Context(), data)
				if err != nil {
					return fmt.Errorf("%s: %w", file, err)
				}
				valid = valid && resp.Valid
				results = append(results, validateResult{File: file, ValidateResponse: resp})
			}

			if err := writeOutput(a.out, output, results); err != nil {
				return err
			}
			if !valid {
				return errInvalidDocuments
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", formatJSON, "Output format (json, yaml)")
	return cmd
}

func newTypesCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "types",
		Short: "List value types, node kinds, backend node types and conversions",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			svc, closeSvc, err := a.newService(false)
			if err != nil {
				return err
			}
			defer closeSvc()
			return writeOutput(a.out, output, svc.Types())
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", formatJSON, "Output format (json, yaml)")
	return cmd
}

func newInitConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "init-config [PATH]",
		Short:       "Write the default configuration to PATH (default nodegraph.yaml)",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(_ *cobra.Command, args []string) error {
			path := "nodegraph.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			_, err := fmt.Fprintf(a.out, "wrote %s\n", path)
			return err
		},
	}
}
