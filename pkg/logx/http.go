package logx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// HTTPMiddleware logs one line per request. Health checks and static assets
// are logged at debug level to keep the access log readable.
func HTTPMiddleware(log Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []Field{
				String("method", r.Method),
				String("path", r.URL.Path),
				Int("status", status),
				Int("bytes", ww.BytesWritten()),
				Duration("dur", time.Since(start)),
				String("remote", r.RemoteAddr),
			}
			if id := middleware.GetReqID(r.Context()); id != "" {
				fields = append(fields, String("req_id", id))
			}

			switch {
			case status >= 500:
				log.Error("http request", fields...)
			case isQuietPath(r.URL.Path):
				log.Debug("http request", fields...)
			default:
				log.Info("http request", fields...)
			}
		})
	}
}

func isQuietPath(p string) bool {
	if p == "/healthz" {
		return true
	}
	for _, prefix := range []string{"/static/", "/uploads/"} {
		if len(p) >= len(prefix) && p[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
