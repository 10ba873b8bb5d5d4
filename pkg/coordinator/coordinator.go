package coordinator

import (
	"context"
	"net/http"

	"github.com/okonor/parley/pkg/config"
	"github.com/okonor/parley/pkg/logger"
	"github.com/okonor/parley/pkg/monitoring"
	"github.com/okonor/parley/pkg/network/httpx"
	"github.com/okonor/parley/pkg/service"
)

type Coordinator struct {
	conf     config.Config
	log      *logger.Logger
	services service.Group
}

func New(conf config.Config, log *logger.Logger) (*Coordinator, error) {
	c := &Coordinator{conf: conf, log: log}
	hub := NewHub(conf.Coordinator, log)

	srv, err := NewHTTPServer(conf.Coordinator, log, func(mux *http.ServeMux) {
		mux.HandleFunc("/ws", hub.handleUserConnection)
	})
	if err != nil {
		return nil, err
	}
	c.services.Add(srv)
	if conf.Coordinator.Monitoring.IsEnabled() {
		c.services.Add(monitoring.New(conf.Coordinator.Monitoring, "cord", log))
	}
	return c, nil
}

func (c *Coordinator) Start() { c.services.Start() }

func (c *Coordinator) Shutdown(ctx context.Context) error { return c.services.Shutdown(ctx) }

type httpService struct{ *httpx.Server }

func (s httpService) Run()           { go s.Server.Run() }
func (s httpService) String() string { return "http::" + s.Addr }

func NewHTTPServer(conf config.Coordinator, log *logger.Logger, fnMux func(mux *http.ServeMux)) (service.RunnableService, error) {
	options := []httpx.Option{httpx.WithLogger(log), httpx.WithPortRoll(conf.Server.PortRoll)}
	if conf.Server.Https {
		options = append(options,
			httpx.WithHttps(conf.Server.Tls.HttpsCert, conf.Server.Tls.HttpsKey, conf.Server.Tls.Domain))
	}
	srv, err := httpx.NewServer(
		conf.Server.Address,
		func(*httpx.Server) http.Handler {
			h := http.NewServeMux()
			h.Handle("/", index(conf.WebRoot))
			fnMux(h)
			return h
		},
		options...,
	)
	if err != nil {
		return nil, err
	}
	return httpService{srv}, nil
}

// index serves the browser client assets.
func index(root string) http.Handler {
	if root == "" {
		root = "./web"
	}
	return http.FileServer(http.Dir(root))
}
