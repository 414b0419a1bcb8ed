package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/antoniostano/tauntbot/internal/clips"
	"github.com/antoniostano/tauntbot/internal/config"
	"github.com/antoniostano/tauntbot/internal/discord"
	"github.com/antoniostano/tauntbot/internal/dispatch"
	"github.com/antoniostano/tauntbot/internal/httpapi"
	"github.com/antoniostano/tauntbot/internal/observability"
	"github.com/antoniostano/tauntbot/internal/playback"
	"github.com/antoniostano/tauntbot/internal/reliability"
	"github.com/antoniostano/tauntbot/internal/resolve"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics := observability.NewMetrics(cfg.MetricsNamespace, nil)

	store := clips.NewDirStore(cfg.TauntsPath, cfg.TauntExt)
	validator := clips.NewValidator(store, cfg.TauntMax)
	if available, err := store.List(); err != nil {
		logger.Warn("taunt directory unreadable", zap.String("path", store.Dir()), zap.Error(err))
	} else {
		logger.Info("taunt assets found", zap.String("path", store.Dir()), zap.Int("count", len(available)), zap.Int("max", validator.Max()))
	}

	gateway, err := discord.NewGateway(cfg.DiscordToken, discord.Presence{
		Status:   cfg.BotStatus,
		Activity: cfg.BotActivity,
	}, metrics, logger.Named("gateway"))
	if err != nil {
		logger.Fatal("discord gateway init failed", zap.Error(err))
	}

	breaker := reliability.NewBreaker(reliability.BreakerConfig{
		Name:                "voice",
		ConsecutiveFailures: uint32(cfg.VoiceBreakerFailures),
		Cooldown:            cfg.VoiceBreakerCooldown,
	}, logger.Named("breaker"))
	transport := playback.Guard(
		discord.NewVoiceTransport(gateway.Session(), cfg.VoiceFrameTimeout, logger.Named("voice")),
		breaker,
	)

	sessionLog := logger.Named("playback")
	sessions := playback.NewManager(transport, sessionLog,
		playback.WithMetrics(metrics),
		playback.WithObserver(func(s *playback.Session, from, to playback.State) {
			sessionLog.Debug("session transition",
				zap.String("session_id", s.ID),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		}),
	)

	dispatcher := dispatch.New(
		dispatch.Config{Mentions: cfg.EnableMentions},
		resolve.New(gateway, gateway, logger.Named("resolve")),
		validator,
		sessions,
		gateway,
		metrics,
		logger.Named("dispatch"),
	)
	stopCommands := gateway.OnMessage(dispatcher.Handle)

	api := httpapi.New(gateway, store, breaker, validator.Max())
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	go func() {
		logger.Info("ops server listening", zap.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen error", zap.Error(err))
		}
	}()

	if err := gateway.Open(runCtx); err != nil {
		logger.Fatal("discord login failed", zap.Error(err))
	}
	logger.Info("taunt bot running", zap.Bool("mentions", cfg.EnableMentions))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Stop taking commands and let running clips finish before the voice
	// connections go away with the gateway.
	stopCommands()
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Warn("sessions still playing at shutdown", zap.Error(err))
	}
	runCancel()
	if err := gateway.Close(); err != nil {
		logger.Warn("discord close failed", zap.Error(err))
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		_ = httpServer.Close()
	}

	logger.Info("shutdown complete")
}
