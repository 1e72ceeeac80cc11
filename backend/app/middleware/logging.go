package middleware

import (
	"net/http"
	"time"

	"patchpilot/backend/global"
)

type statusWriter struct {
	http.ResponseWriter
	status int
	route  string
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) SetRoute(pattern string) { w.route = pattern }

func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(sw, r)
		duration := time.Since(start)
		ev := global.Logger.Info()
		if sw.status >= 500 {
			ev = global.Logger.Error()
		}
		ev.Str("ip", r.RemoteAddr).Str("method", r.Method).Str("path", r.URL.Path).Str("route", sw.route).
			Int("status", sw.status).Dur("duration", duration).Msg("request")
	})
}
