package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/local/slideforge/internal/api"
	cfgpkg "github.com/local/slideforge/internal/config"
	"github.com/local/slideforge/internal/enhance"
	logpkg "github.com/local/slideforge/internal/logger"
	"github.com/local/slideforge/internal/metrics"
	"github.com/local/slideforge/internal/orchestrator"
	"github.com/local/slideforge/internal/progress"
	"github.com/local/slideforge/internal/session"
	"github.com/local/slideforge/internal/statuscheck"
)

func main() {
	_ = godotenv.Load()
	cfg := cfgpkg.FromEnv()

	// Init logging
	_ = logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
	defer logpkg.Close()

	metrics.Init()

	// Progress store
	store, err := progress.NewRedis(cfg.Redis.URL, cfg.Session.ProgressTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer store.Close()

	// Session registry
	reg, err := session.NewRegistry(cfg.Session.Dir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init session registry")
	}

	// Enhancement service
	gem, err := enhance.NewGemini(context.Background(), cfg.Gemini)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init gemini client")
	}
	defer gem.Close()

	breaker, err := enhance.NewBreaker(gem, cfg.Redis.URL, cfg.Gemini.Model)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init circuit breaker")
	}
	defer breaker.Close()

	orch := orchestrator.New(reg, breaker, store, cfg.Enhance, cfg.Session)

	checker := statuscheck.New(statuscheck.Options{
		Redis:       store,
		GeminiKey:   cfg.Gemini.APIKey,
		SessionsDir: cfg.Session.Dir,
	})

	mux := http.NewServeMux()
	srv := api.New(api.Options{
		Orchestrator: orch,
		Checker:      checker,
		MaxUploadMB:  cfg.Session.MaxUploadMB,
		StaticDir:    "web/static",
	})
	srv.RegisterRoutes(mux)

	// Idle session sweeper
	sweepStop := make(chan struct{})
	go func() {
		t := time.NewTicker(time.Hour)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				if n := reg.Sweep(24 * time.Hour); n > 0 {
					metrics.SetActiveSessions(reg.Count())
					log.Info().Int("removed", n).Msg("idle sessions swept")
				}
			case <-sweepStop:
				return
			}
		}
	}()

	httpSrv := &http.Server{Addr: ":" + cfg.HTTP.Port, Handler: mux}
	go func() {
		log.Info().Msgf("HTTP server listening on :%s", cfg.HTTP.Port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	close(sweepStop)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
	fmt.Println("shutdown complete")
}
