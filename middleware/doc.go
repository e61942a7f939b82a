// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs request start (method, path, remote) and completion (status, duration_ms).

# CORS Middleware

Enable cross-origin requests for the dashboard frontend:

	server := http.Server{
		Handler: middleware.CORS(cfg.CORSOrigin)(mux),
	}

An empty origin echoes the request's Origin header. Allows methods GET,
POST, DELETE, OPTIONS with headers Content-Type, Authorization.

# Rate Limiting

Vote submission is limited per client IP with a token bucket
(golang.org/x/time/rate):

	limiter := middleware.NewIPRateLimiter(rate.Limit(2), 5)
	go limiter.Cleanup(ctx, 10*time.Minute, time.Hour)
	mux.HandleFunc("POST /vote", middleware.RateLimit(limiter, cfg.TrustedProxies)(handler))

Requests over budget get 429 Too Many Requests.

# JSON Helpers

Write JSON responses:

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

Parse JSON request bodies:

	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

# Client IP Extraction

Clients are identified by the TCP peer address. Forwarding headers
(X-Forwarded-For, X-Real-IP) only count when the peer is a trusted proxy:

	trusted, err := middleware.ParseTrustedProxies("10.0.0.0/8, 192.0.2.10")
	ip := middleware.GetClientIP(r, trusted)

Behind a trusted proxy the X-Forwarded-For chain is walked from the right
and the first untrusted hop is the client, so hops a caller prepends are
ignored. Used for rate limiting and hashed IPs in vote logs.
*/
package middleware
