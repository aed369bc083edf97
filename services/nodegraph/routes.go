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
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/objectnodes/services/nodegraph/telemetry"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	// ServiceName names the otelgin server spans.
	ServiceName string

	// CompileRate is the sustained compile rate in requests per second.
	// Zero disables rate limiting.
	CompileRate float64

	// CompileBurst is the compile token bucket size.
	CompileBurst int

	// Metrics records HTTP instruments. May be nil.
	Metrics *telemetry.Metrics

	// MetricsHandler is mounted at /metrics when not nil.
	MetricsHandler http.Handler
}

// RegisterRoutes registers the node graph routes.
//
// Endpoints:
//
//	POST   /v1/nodegraph/compile - Compile (and optionally evaluate) a library
//	POST   /v1/nodegraph/validate - Validate a library document
//	GET    /v1/nodegraph/types - List value types, kinds, node types, signatures
//	GET    /v1/nodegraph/graphs - List stored graph hashes
//	GET    /v1/nodegraph/graphs/:hash - Get a stored graph
//	DELETE /v1/nodegraph/graphs/:hash - Delete a stored graph
//	GET    /v1/nodegraph/health - Health check
//
// The compile route is wrapped in compileLimit, which may be nil.
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers, compileLimit gin.HandlerFunc) {
	ng := rg.Group("/nodegraph")
	{
		if compileLimit != nil {
			ng.POST("/compile", compileLimit, handlers.HandleCompile)
		} else {
			ng.POST("/compile", handlers.HandleCompile)
		}
		ng.POST("/validate", handlers.HandleValidate)
		ng.GET("/types", handlers.HandleTypes)

		ng.GET("/graphs", handlers.HandleListGraphs)
		ng.GET("/graphs/:hash", handlers.HandleGetGraph)
		ng.DELETE("/graphs/:hash", handlers.HandleDeleteGraph)

		ng.GET("/health", handlers.HandleHealth)
	}
}

// NewRouter builds the gin engine for the service.
//
// Middleware order: recovery, tracing, request id, metrics. The compile
// route is additionally rate limited.
func NewRouter(cfg RouterConfig, handlers *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		router.Use(otelgin.Middleware(cfg.ServiceName))
	}
	router.Use(RequestIDMiddleware())
	if cfg.Metrics != nil {
		router.Use(MetricsMiddleware(cfg.Metrics))
	}

	var limit gin.HandlerFunc
	if cfg.CompileRate > 0 {
		burst := cfg.CompileBurst
		if burst < 1 {
			burst = 1
		}
		limit = RateLimitMiddleware(rate.NewLimiter(rate.Limit(cfg.CompileRate), burst), cfg.Metrics)
	}

	RegisterRoutes(router.Group("/v1"), handlers, limit)

	if cfg.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}
	return router
}
