package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"hotel_agent/internal/adapters/observability"
	"hotel_agent/internal/app"
	"hotel_agent/internal/bootstrap"
	"hotel_agent/internal/shared"
)

// cycle runs one publishing cycle and prints the run as JSON.
func main() {
	variety := flag.Bool("variety", false, "pick the location uniformly from the whole pool")
	location := flag.String("location", "", "publish for this location instead of selecting one")
	flag.Parse()

	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agent, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("agent setup failed")
	}

	run, err := agent.Orchestrator.RunCycle(ctx, app.Request{
		Trigger:  app.TriggerManual,
		Variety:  *variety,
		Location: *location,
	})
	if run != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(run)
	}
	if cerr := agent.Close(); cerr != nil {
		log.Warn().Err(cerr).Msg("close failed")
	}

	var se *app.StageError
	switch {
	case errors.As(err, &se):
		log.Error().Err(se.Err).Str("stage", string(se.Stage)).Msg("cycle failed")
		os.Exit(1)
	case err != nil:
		log.Error().Err(err).Msg("cycle failed")
		os.Exit(1)
	}
	log.Info().Str("post_id", run.PostID).Msg("cycle completed")
}
