// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package nodegraph

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/objectnodes/services/nodegraph/telemetry"
	"github.com/AleutianAI/objectnodes/services/nodegraph/tree"
)

// Handlers contains the HTTP handlers for the node graph API.
type Handlers struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandlers creates handlers over svc.
func NewHandlers(svc *Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{svc: svc, logger: logger}
}

// requestLogger returns a logger tagged with the request and trace ids.
func (h *Handlers) requestLogger(c *gin.Context, handler string) *slog.Logger {
	logger := h.logger.With(
		slog.String("request_id", requestID(c)),
		slog.String("handler", handler),
	)
	return telemetry.LoggerWithTrace(c.Request.Context(), logger)
}

// fail writes the classified error response.
func (h *Handlers) fail(c *gin.Context, logger *slog.Logger, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", slog.String("code", code), slog.String("error", err.Error()))
	} else {
		logger.Warn("request rejected", slog.String("code", code), slog.String("error", err.Error()))
	}
	c.JSON(status, ErrorResponse{
		Error:     err.Error(),
		Code:      code,
		RequestID: requestID(c),
	})
}

// HandleCompile handles POST /v1/nodegraph/compile.
//
// Description:
//
//	Compiles the library in the request body. Optionally evaluates the
//	value outputs and persists the compiled graph.
//
// Response:
//
//	200 OK: CompileResponse
//	400 Bad Request: malformed body or invalid tree
//	413 Request Entity Too Large: body exceeds tree.MaxDocumentSize
//	422 Unprocessable Entity: the tree does not compile
//	429 Too Many Requests: rate limited
func (h *Handlers) HandleCompile(c *gin.Context) {
	logger := h.requestLogger(c, "HandleCompile")

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, tree.MaxDocumentSize)

	var req CompileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(c, logger, fmt.Errorf("%w: body exceeds %d bytes", tree.ErrDocumentTooLarge, tooLarge.Limit))
			return
		}
		logger.Warn("invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "invalid request body: " + err.Error(),
			Code:      "INVALID_REQUEST",
			RequestID: requestID(c),
		})
		return
	}

	resp, err := h.svc.Compile(c.Request.Context(), req.Library, CompileOptions{
		Evaluate:  req.Evaluate,
		Args:      req.Args,
		Iteration: req.Iteration,
		Persist:   req.Persist,
	})
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	if !req.IncludeSnapshot {
		resp.Snapshot = nil
	}

	logger.Info("graph compiled",
		slog.String("tree_hash", resp.TreeHash),
		slog.String("session_id", resp.SessionID),
		slog.Int("nodes", resp.Stats.Nodes),
		slog.Int("conversions", resp.Stats.Conversions),
		slog.Int64("duration_ms", resp.DurationMs),
	)
	c.JSON(http.StatusOK, resp)
}

// HandleValidate handles POST /v1/nodegraph/validate.
//
// The body is a raw YAML or JSON library document. Invalid documents get a
// 200 with valid=false.
func (h *Handlers) HandleValidate(c *gin.Context) {
	logger := h.requestLogger(c, "HandleValidate")

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, tree.MaxDocumentSize+1))
	if err != nil {
		h.fail(c, logger, err)
		return
	}

	resp, err := h.svc.Validate(c.Request.Context(), data)
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleTypes handles GET /v1/nodegraph/types.
func (h *Handlers) HandleTypes(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Types())
}

// HandleGetGraph handles GET /v1/nodegraph/graphs/:hash.
func (h *Handlers) HandleGetGraph(c *gin.Context) {
	logger := h.requestLogger(c, "HandleGetGraph")

	rec, err := h.svc.Graph(c.Request.Context(), c.Param("hash"))
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// HandleListGraphs handles GET /v1/nodegraph/graphs.
func (h *Handlers) HandleListGraphs(c *gin.Context) {
	logger := h.requestLogger(c, "HandleListGraphs")

	hashes, err := h.svc.Graphs(c.Request.Context())
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	if hashes == nil {
		hashes = []string{}
	}
	c.JSON(http.StatusOK, GraphListResponse{Hashes: hashes})
}

// HandleDeleteGraph handles DELETE /v1/nodegraph/graphs/:hash.
func (h *Handlers) HandleDeleteGraph(c *gin.Context) {
	logger := h.requestLogger(c, "HandleDeleteGraph")

	if err := h.svc.DeleteGraph(c.Request.Context(), c.Param("hash")); err != nil {
		h.fail(c, logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleHealth handles GET /v1/nodegraph/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
		Store:   h.svc.HasStore(),
	})
}
