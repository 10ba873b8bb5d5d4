package main

import (
	"context"

	"github.com/okonor/parley/pkg/agent"
	"github.com/okonor/parley/pkg/config"
	"github.com/okonor/parley/pkg/logger"
	"github.com/okonor/parley/pkg/os"
)

var Version = "?"

func main() {
	conf := config.NewConfig()
	conf.ParseAgentFlags()

	log := logger.NewConsole(conf.Agent.Debug, "a", false)

	log.Info().Msgf("version %s", Version)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}
	a := agent.New(conf, log)
	if err := a.Start(); err != nil {
		log.Fatal().Err(err).Msg("agent start fail")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		if err := a.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("service shutdown errors")
		}
	}()

	done := os.ExpectTermination()
	go func() {
		// a dropped coordinator link ends the agent as well
		a.Wait()
		done <- struct{}{}
	}()
	<-done
	cancel()
}
