package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/DevTable/BitBucket-api/pkg/domain/model"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/ctxlog"
)

// LoggingMiddleware returns a middleware that logs HTTP requests and puts a
// request scoped logger into the request context
func LoggingMiddleware(ctx context.Context) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			logger := ctxlog.From(ctx).With("request_id", middleware.GetReqID(r.Context()))

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("HTTP request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
				)
			}()

			next.ServeHTTP(ww, r.WithContext(ctxlog.With(r.Context(), logger)))
		})
	}
}

// statusOf maps a use case error to the response status
func statusOf(err error) int {
	var dlErr *model.DownloadError
	if errors.As(err, &dlErr) && dlErr.Kind == model.DownloadNotFound {
		return http.StatusNotFound
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return http.StatusNotFound
	}

	switch {
	case errors.Is(err, model.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrStoreNotConfigured):
		return http.StatusServiceUnavailable
	}

	return http.StatusBadGateway
}

// writeJSON writes v as a JSON response
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		ctxlog.From(r.Context()).Error("Failed to encode response", "error", err)
	}
}

// writeError logs err and writes an error response
func writeError(w http.ResponseWriter, r *http.Request, err error, status int) {
	logger := ctxlog.From(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "error", err, "status", status)
	} else {
		logger.Warn("Request rejected", "error", err, "status", status)
	}

	writeJSON(w, r, status, map[string]string{
		"error": err.Error(),
	})
}
