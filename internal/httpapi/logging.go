package httpapi

import (
	"expvar"
	"net/http"
	"time"

	"go.uber.org/zap"
)

var (
	requestsTotal   = expvar.NewInt("requests_total")
	requestsErrors  = expvar.NewInt("requests_errors_total")
	checkInsCreated = expvar.NewInt("checkins_created_total")
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func LoggingMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		writer := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(writer, r)
		duration := time.Since(start)
		requestsTotal.Add(1)
		if writer.status >= http.StatusBadRequest {
			requestsErrors.Add(1)
		}
		if r.Method == http.MethodPost && writer.status == http.StatusCreated {
			checkInsCreated.Add(1)
		}
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", writer.status),
			zap.Int64("duration_ms", duration.Milliseconds()),
			zap.String("request_id", requestIDFromRequest(r)),
		}
		if writer.status >= http.StatusInternalServerError {
			logger.Warn("request", fields...)
			return
		}
		logger.Info("request", fields...)
	})
}
