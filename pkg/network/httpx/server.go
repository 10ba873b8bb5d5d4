package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/okonor/parley/pkg/logger"
)

type Server struct {
	http.Server

	opts     Options
	listener *Listener
	log      *logger.Logger
}

func NewServer(address string, handler func(*Server) http.Handler, options ...Option) (*Server, error) {
	opts := &Options{
		HttpsRedirect: false,
		IdleTimeout:   120 * time.Second,
		ReadTimeout:   60 * time.Second,
		WriteTimeout:  60 * time.Second,
	}
	opts.override(options...)
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}

	server := &Server{
		Server: http.Server{
			Addr:         address,
			IdleTimeout:  opts.IdleTimeout,
			ReadTimeout:  opts.ReadTimeout,
			WriteTimeout: opts.WriteTimeout,
		},
		opts: *opts,
		log:  opts.Logger,
	}
	server.Handler = handler(server)

	if opts.Https && opts.IsAutoHttpsCert() {
		manager := NewTLSConfig(opts.HttpsDomain).CertManager
		server.TLSConfig = manager.TLSConfig()
	}

	listener, err := NewListener(server.Addr, opts.PortRoll)
	if err != nil {
		return nil, err
	}
	server.listener = listener
	server.log.Info().Msgf("httpx %v (%v)", listener.Addr(), server.Addr)

	return server, nil
}

func (s *Server) Run() {
	protocol := s.GetProtocol()
	s.log.Debug().Msgf("Starting %s server on %s", protocol, s.Addr)

	var err error
	if s.opts.Https {
		err = s.ServeTLS(*s.listener, s.opts.HttpsCert, s.opts.HttpsKey)
	} else {
		err = s.Serve(*s.listener)
	}
	if err != nil && err != http.ErrServerClosed {
		s.log.Error().Err(err).Msgf("%s server fail", protocol)
	}
}

func (s *Server) Shutdown(ctx context.Context) error { return s.Server.Shutdown(ctx) }

func (s *Server) GetProtocol() string {
	if s.opts.Https {
		return "https"
	}
	return "http"
}
