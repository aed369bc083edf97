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
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/objectnodes/services/nodegraph/telemetry"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "nodegraph.request_id"
)

// RequestIDMiddleware reuses the caller's X-Request-ID or assigns a new one
// and echoes it on the response.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// requestID returns the id assigned by RequestIDMiddleware.
func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// RateLimitMiddleware rejects requests beyond the token bucket with 429.
//
// Description:
//
//	A single limiter is shared by every request through the middleware.
//	Rejected requests get Retry-After with the wait until the next token.
//	A nil limiter disables limiting.
//
// Inputs:
//
//	limiter - Token bucket. May be nil.
//	metrics - Instruments for counting rejections. May be nil.
func RateLimitMiddleware(limiter *rate.Limiter, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		r := limiter.Reserve()
		if !r.OK() {
			abortRateLimited(c, metrics, time.Second)
			return
		}
		if delay := r.Delay(); delay > 0 {
			r.Cancel()
			abortRateLimited(c, metrics, delay)
			return
		}
		c.Next()
	}
}

func abortRateLimited(c *gin.Context, metrics *telemetry.Metrics, wait time.Duration) {
	if metrics != nil {
		metrics.RateLimitedTotal.Add(c.Request.Context(), 1,
			metric.WithAttributes(attribute.String("route", c.FullPath())))
	}
	c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
		Error:     "rate limit exceeded",
		Code:      "RATE_LIMITED",
		RequestID: requestID(c),
	})
}

// MetricsMiddleware records request count, duration and in-flight requests.
// Routes are labeled by their pattern, not the raw path.
func MetricsMiddleware(metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()

		metrics.HTTPActiveRequests.Add(ctx, 1)
		defer metrics.HTTPActiveRequests.Add(ctx, -1)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		attrs := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("route", route),
			attribute.Int("status", c.Writer.Status()),
		)
		metrics.HTTPRequestsTotal.Add(ctx, 1, attrs)
		metrics.HTTPRequestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}
