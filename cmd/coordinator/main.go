package main

import (
	"context"

	"github.com/okonor/parley/pkg/config"
	"github.com/okonor/parley/pkg/coordinator"
	"github.com/okonor/parley/pkg/logger"
	"github.com/okonor/parley/pkg/os"
)

var Version = "?"

func main() {
	conf := config.NewConfig()
	conf.ParseFlags()

	log := logger.NewConsole(conf.Coordinator.Debug, "c", false)

	log.Info().Msgf("version %s", Version)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}
	c, err := coordinator.New(conf, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init fail")
	}
	c.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		if err := c.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("service shutdown errors")
		}
	}()
	<-os.ExpectTermination()
	cancel()
}
