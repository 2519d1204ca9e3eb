// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/redinnova/innovanet/internal/auth"
)

// HTTPRequests counts handled requests by route pattern and status code.
// Use RegisterMetrics to register this with a Prometheus registry.
var HTTPRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "innovanet_http_requests_total",
		Help: "Total number of HTTP API requests by route and status",
	},
	[]string{"route", "status"},
)

// RegisterMetrics registers api package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(HTTPRequests)
}

const unmatchedRoute = "unmatched"

// instrument logs and counts every request once the handler has returned,
// when chi has resolved the route pattern.
func instrument(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := unmatchedRoute
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()

			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(r.Context(), level, "http request",
				"method", r.Method,
				"route", route,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(started),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

type accountKey struct{}

// AccountFromContext returns the account behind the bearer token, as loaded
// when the request was authenticated.
func AccountFromContext(ctx context.Context) (*auth.Account, bool) {
	a, ok := ctx.Value(accountKey{}).(*auth.Account)
	return a, ok
}

// requireToken rejects requests without a valid bearer token and loads the
// account it names. Tokens of deleted accounts are rejected.
func (h *Handler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, r, http.StatusUnauthorized, "missing or invalid authorization header")
			return
		}

		claims, err := h.tokens.Parse(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			h.logger.DebugContext(r.Context(), "bearer token rejected",
				"request_id", middleware.GetReqID(r.Context()),
				"error", err,
			)
			writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		id, err := claims.AccountID()
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		account, err := h.svc.GetAccount(r.Context(), id)
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, r, http.StatusUnauthorized, "account no longer exists")
			return
		}
		if err != nil {
			h.fail(w, r, "loading token account failed", err)
			return
		}

		ctx := context.WithValue(r.Context(), accountKey{}, account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole rejects authenticated requests whose account does not
// currently hold role. The role in the token is not consulted, so a demoted
// account loses access before its token expires.
func requireRole(role auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account, ok := AccountFromContext(r.Context())
			if !ok || account.Role != role {
				writeError(w, r, http.StatusForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
