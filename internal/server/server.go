// Package server wraps http.Server with sane timeouts and graceful shutdown.
package server

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"
)

// Server is the HTTP front of the service
type Server struct {
	srv     *http.Server
	tlsCert string
	tlsKey  string
}

// New creates a server on the given port. WriteTimeout is generous because
// chat turns can spend most of a minute waiting on the model.
func New(handler http.Handler, port, tlsCert, tlsKey string) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         ":" + port,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 180 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		tlsCert: tlsCert,
		tlsKey:  tlsKey,
	}
}

// Start begins serving in the background. Errors other than a clean
// shutdown surface on the returned channel.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)

	serve := func() error {
		if s.tlsCert != "" && s.tlsKey != "" {
			s.srv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			return s.srv.ListenAndServeTLS(s.tlsCert, s.tlsKey)
		}
		return s.srv.ListenAndServe()
	}

	go func() {
		if err := serve(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// Shutdown drains in-flight requests and stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
