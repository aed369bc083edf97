// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command nodec compiles object node trees into backend graphs.
//
// Usage:
//
//	nodec compile scene.yaml             # compile and print stats
//	nodec eval scene.yaml --arg float=2  # compile and evaluate outputs
//	nodec validate a.yaml b.yaml         # parse and check documents
//	nodec types                          # list value types and node kinds
//	nodec watch scene.yaml --evaluate    # recompile on every save
//	nodec serve --config nodegraph.yaml  # run the HTTP service
//	nodec init-config nodegraph.yaml     # write a default config file
//
// Example requests against a running server:
//
//	curl http://localhost:8080/v1/nodegraph/health
//
//	curl -X POST http://localhost:8080/v1/nodegraph/compile \
//	  -H "Content-Type: application/json" \
//	  -d '{"library": {...}, "evaluate": true}'
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
