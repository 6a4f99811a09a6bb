package middleware

import (
	"net/http"
	"strconv"
	"time"

	"civicforge/internal/contextutils"
	"civicforge/internal/services"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

// RequestID assigns each request a unique ID, honoring an inbound
// X-Request-ID header
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = contextutils.NewRequestID()
		}
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(
			contextutils.WithRequestID(r.Context(), requestID)))
	})
}

// Actor extracts the already-authenticated member identity from the
// X-Actor-ID, X-Community-ID, and X-Actor-Tier headers. Requests without a
// complete identity are rejected; authentication itself happens upstream.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actorID, err := uuid.FromString(r.Header.Get("X-Actor-ID"))
		if err != nil {
			http.Error(w, `{"success":false,"error":{"type":"VALIDATION_ERROR","message":"missing or invalid X-Actor-ID header"}}`, http.StatusUnauthorized)
			return
		}
		communityID, err := uuid.FromString(r.Header.Get("X-Community-ID"))
		if err != nil {
			http.Error(w, `{"success":false,"error":{"type":"VALIDATION_ERROR","message":"missing or invalid X-Community-ID header"}}`, http.StatusUnauthorized)
			return
		}
		tier, err := strconv.Atoi(r.Header.Get("X-Actor-Tier"))
		if err != nil || tier < 1 {
			tier = 1
		}

		actor := services.Actor{ID: actorID, CommunityID: communityID, Tier: tier}
		next.ServeHTTP(w, r.WithContext(
			contextutils.WithActor(r.Context(), actor)))
	})
}

// Recovery converts handler panics into 500 responses
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("Handler panic recovered",
						zap.Any("panic", rec),
						zap.String("path", r.URL.Path),
						zap.String("request_id", contextutils.GetRequestID(r.Context())))
					http.Error(w, `{"success":false,"error":{"type":"INTERNAL_ERROR","message":"an unexpected error occurred"}}`, http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// statusRecorder captures the response status for logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Logging logs one structured line per request
func Logging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			logger.Info("Request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", recorder.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", contextutils.GetRequestID(r.Context())))
		})
	}
}

// Chain applies middlewares outermost-first
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
