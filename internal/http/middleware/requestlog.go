package middlewarex

import (
	"context"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// RequestLogger records each request in the relational request log. The write
// is best-effort on a detached context so a slow database never delays the
// response path.
type RequestLogger interface {
	InsertRequestLog(ctx context.Context, method, path, remoteAddr string, status int, durationMS int64) error
}

func RequestLog(logger RequestLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			go func() {
				ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 2*time.Second)
				defer cancel()
				_ = logger.InsertRequestLog(ctx, r.Method, r.URL.Path, r.RemoteAddr,
					ww.Status(), time.Since(start).Milliseconds())
			}()
		})
	}
}
