// Package server wraps http.Server with the timeouts the export endpoint uses.
package server

import (
	"context"
	"net/http"
	"time"
)

const (
	_readHeaderTimeout = 5 * time.Second
	_idleTimeout       = 60 * time.Second
)

type HTTPServer struct {
	srv *http.Server
}

func NewHTTPServer(addr string, handler http.Handler, writeTimeout time.Duration) *HTTPServer {
	return &HTTPServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: _readHeaderTimeout,
			// Leave room for the handler timeout to answer first.
			WriteTimeout: writeTimeout + time.Second,
			IdleTimeout:  _idleTimeout,
		},
	}
}

// Start blocks until the server stops. It returns http.ErrServerClosed
// after Shutdown.
func (s *HTTPServer) Start() error {
	return s.srv.ListenAndServe()
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *HTTPServer) Addr() string {
	return s.srv.Addr
}
