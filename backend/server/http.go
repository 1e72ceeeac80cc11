package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"patchpilot/backend/global"
)

// HTTPServer wraps net/http with the timeouts long-polling needs.
type HTTPServer struct {
	srv *http.Server
}

func NewHTTPServer(host string, port int, handler http.Handler) *HTTPServer {
	return &HTTPServer{srv: &http.Server{
		Addr:              net.JoinHostPort(host, strconv.Itoa(port)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// long-polls may be held for up to two minutes
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}}
}

// Run serves until ctx is done, then drains in-flight requests.
func (s *HTTPServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		global.Logger.Info().Str("addr", s.srv.Addr).Msg("http server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	global.Logger.Info().Msg("http server shutting down")
	return s.srv.Shutdown(shutdownCtx)
}
