package http

import (
	"context"
	"errors"
	stdhttp "net/http"
	"time"

	"instapilot/internal/platform/config"
	"instapilot/internal/platform/logger"

	"github.com/go-chi/chi/v5"
)

// Server owns the chi mux and the listener behind it
type Server struct {
	addr string
	mux  *chi.Mux
	srv  *stdhttp.Server
}

// NewServer listens on API_PORT (default :4000); opts can mount on the raw mux
func NewServer(cfg config.Conf, opts ...func(*chi.Mux)) *Server {
	addr := cfg.MayString("API_PORT", ":4000")
	m := chi.NewRouter()
	for _, o := range opts {
		o(m)
	}
	return &Server{
		addr: addr,
		mux:  m,
		srv: &stdhttp.Server{
			Addr:              addr,
			Handler:           m,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Router is the module facing view of the mux
func (s *Server) Router() Router { return AdaptChi(s.mux) }

// Handler serves the mux directly, for tests and embedding
func (s *Server) Handler() stdhttp.Handler { return s.mux }

func (s *Server) Addr() string { return s.addr }

// Run blocks until the listener fails or Shutdown is called
func (s *Server) Run(_ context.Context) error {
	logger.Named("http").Info().Str("addr", s.addr).Msg("http listening")
	if err := s.srv.ListenAndServe(); !errors.Is(err, stdhttp.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx ends
func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }
