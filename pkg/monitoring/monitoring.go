package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"

	"github.com/okonor/parley/pkg/config"
	"github.com/okonor/parley/pkg/logger"
	"github.com/okonor/parley/pkg/network/httpx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Monitoring struct {
	conf   config.Monitoring
	tag    string
	log    *logger.Logger
	server *httpx.Server
}

// New creates new monitoring service.
// The tag param specifies owner label for logs.
func New(conf config.Monitoring, tag string, log *logger.Logger) *Monitoring {
	serv, _ := httpx.NewServer(
		fmt.Sprintf(":%d", conf.Port),
		func(serv *httpx.Server) http.Handler {
			h := http.NewServeMux()

			if conf.ProfilingEnabled {
				prefix := conf.URLPrefix + "/debug/pprof"
				log.Info().Msgf("[%v] profiling is enabled at %v", tag, serv.Addr+prefix)
				h.HandleFunc(prefix+"/", pprof.Index)
				h.HandleFunc(prefix+"/cmdline", pprof.Cmdline)
				h.HandleFunc(prefix+"/profile", pprof.Profile)
				h.HandleFunc(prefix+"/symbol", pprof.Symbol)
				h.HandleFunc(prefix+"/trace", pprof.Trace)
				h.Handle(prefix+"/allocs", pprof.Handler("allocs"))
				h.Handle(prefix+"/block", pprof.Handler("block"))
				h.Handle(prefix+"/goroutine", pprof.Handler("goroutine"))
				h.Handle(prefix+"/heap", pprof.Handler("heap"))
				h.Handle(prefix+"/mutex", pprof.Handler("mutex"))
				h.Handle(prefix+"/threadcreate", pprof.Handler("threadcreate"))
			}

			if conf.MetricEnabled {
				metricPath := conf.URLPrefix + "/metrics"
				log.Info().Msgf("[%v] prometheus metrics are enabled at %v", tag, serv.Addr+metricPath)
				h.Handle(metricPath, promhttp.Handler())
			}

			return h
		},
		httpx.WithLogger(log),
	)
	return &Monitoring{conf: conf, tag: tag, log: log, server: serv}
}

func (m *Monitoring) Run() {
	m.log.Info().Msgf("[%v] starting monitoring server at %v", m.tag, m.server.Addr)
	go m.server.Run()
}

func (m *Monitoring) Shutdown(ctx context.Context) error {
	m.log.Info().Msgf("[%v] shutting down monitoring server", m.tag)
	return m.server.Shutdown(ctx)
}

func (m *Monitoring) String() string {
	return fmt.Sprintf("monitoring::%s:%d", m.conf.URLPrefix, m.conf.Port)
}
