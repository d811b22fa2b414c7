// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/AleutianAI/AleutianCatalog/services/catalog/observability"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimit guards write endpoints with a shared token bucket.
//
// # Description
//
// Requests that find the bucket empty are refused with 429 and a
// Retry-After hint instead of being queued. A non-positive perSecond
// disables limiting.
//
// # Inputs
//
//   - perSecond: Sustained requests per second.
//   - burst: Bucket size. Values below 1 are raised to 1.
//   - metrics: Counts refusals under reason "rate_limited". May be nil.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware for a route group.
//
// # Limitations
//
//   - The bucket is process wide, not per client.
func RateLimit(perSecond float64, burst int, metrics *observability.Metrics) gin.HandlerFunc {
	if perSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	retryAfter := strconv.Itoa(int(math.Ceil(1 / perSecond)))

	return func(c *gin.Context) {
		if !limiter.Allow() {
			metrics.RecordRejection(c.FullPath(), observability.RejectRateLimited)
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many write requests",
			})
			return
		}
		c.Next()
	}
}
