package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/vigil/internal/api/ws"
	"github.com/gosuda/vigil/internal/auth"
	"github.com/gosuda/vigil/internal/config"
	"github.com/gosuda/vigil/internal/detect"
	"github.com/gosuda/vigil/internal/domain"
	"github.com/gosuda/vigil/internal/manager"
	"github.com/gosuda/vigil/internal/messenger/desktop"
	"github.com/gosuda/vigil/internal/messenger/slack"
	"github.com/gosuda/vigil/internal/messenger/telegram"
	"github.com/gosuda/vigil/internal/notify"
	"github.com/gosuda/vigil/internal/runtime"
	"github.com/gosuda/vigil/internal/server"
	"github.com/gosuda/vigil/internal/store/postgres"
	redisstore "github.com/gosuda/vigil/internal/store/redis"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error { //nolint:funlen,gocognit // startup wiring
	// Initialize structured logging from environment.
	logLevel := os.Getenv("VIGIL_LOG_LEVEL")
	level, parseErr := zerolog.ParseLevel(logLevel)
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logFormat := os.Getenv("VIGIL_LOG_FORMAT")
	if logFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	ctx := context.Background()

	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
		return fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
	}

	// Connect to PostgreSQL and ensure the schema exists.
	store, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
	if err != nil {
		return err
	}
	defer store.Close()

	if err = store.EnsureSchema(ctx); err != nil {
		return err
	}

	// Connect to Redis.
	pubsub, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer pubsub.Close()

	// Create auth service.
	authSvc := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.PasswordHash, cfg.Auth.TokenTTL)

	// Register configured notification messengers.
	registry := notify.NewRegistry()
	targets := make([]notify.Target, 0, 3)

	if cfg.Telegram.BotToken != "" {
		registry.Register("telegram", telegram.NewTelegramMessenger(telegram.NewBotClient(cfg.Telegram.BotToken)))
		targets = append(targets, notify.Target{Platform: "telegram", ChannelID: cfg.Telegram.ChatID})
	}
	if cfg.Slack.BotToken != "" {
		registry.Register("slack", slack.NewFromToken(cfg.Slack.BotToken))
		targets = append(targets, notify.Target{Platform: "slack", ChannelID: cfg.Slack.ChannelID})
	}
	if cfg.Notifications.Desktop {
		registry.Register("desktop", desktop.NewDesktopMessenger("vigil"))
		targets = append(targets, notify.Target{Platform: "desktop"})
	}

	notifier := notify.New(registry, targets)

	// The scheduler re-validates pending notifications against the manager's
	// live status; the manager is created just below, so defer through a
	// closure.
	var mgr *manager.Manager
	scheduler := notify.NewScheduler(notifier, func(agentID uuid.UUID) (domain.AgentStatus, bool) {
		return mgr.Live(agentID)
	}, notify.Flags{
		OnWaiting:  cfg.Notifications.OnWaiting,
		OnComplete: cfg.Notifications.OnComplete,
		OnError:    cfg.Notifications.OnError,
	})

	// Create the agent manager with persistence and fleet-wide broadcast.
	detector := detect.New(detect.DefaultPatterns())
	mgr = manager.New(detector, scheduler,
		manager.WithRepository(store.Agents()),
		manager.WithBroadcast(statusBroadcaster(pubsub)),
	)

	// Restore agents persisted by a previous run.
	persisted, err := store.Agents().List(ctx)
	if err != nil {
		return err
	}
	for _, agent := range persisted {
		if restoreErr := mgr.Restore(ctx, agent); restoreErr != nil {
			log.Warn().Err(restoreErr).Str("agent_id", agent.ID.String()).Msg("agent restore failed")
		}
	}
	log.Info().Int("agents", len(persisted)).Msg("restored persisted agents")

	// Create Docker runtime; its output pump feeds the manager and mirrors
	// chunks onto per-agent Redis channels for live subscribers.
	sink := &outputSink{Manager: mgr, pubsub: pubsub}
	dockerRuntime, err := runtime.NewDockerRuntime(
		cfg.Docker.Host,
		cfg.Docker.ImageDefault,
		cfg.Docker.CPULimit,
		cfg.Docker.MemLimit,
		sink,
	)
	if err != nil {
		return fmt.Errorf("docker runtime: %w", err)
	}
	defer dockerRuntime.Close()

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Create HTTP server with all routes wired.
	srv := server.New(ctx, cfg, pubsub, mgr, dockerRuntime, authSvc)

	// Background re-evaluation loop: detects quiescence on agents that have
	// gone silent at a prompt.
	go mgr.Run(ctx)

	// Start server in background goroutine.
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	// Persist output tails so agents survive a restart.
	if saveErr := mgr.SaveAll(shutdownCtx); saveErr != nil {
		log.Error().Err(saveErr).Msg("saving agent output tails failed")
	}

	log.Info().Msg("stopped")
	return nil
}

// statusBroadcaster publishes committed status transitions to the fleet-wide
// Redis channel consumed by /ws/status subscribers.
func statusBroadcaster(pubsub *redisstore.PubSub) manager.BroadcastFunc {
	return func(ctx context.Context, t domain.StatusTransition) {
		event := ws.StatusEvent{
			Type:      "status_change",
			AgentID:   t.AgentID,
			Previous:  t.Previous,
			Next:      t.Next,
			Timestamp: t.At,
		}
		payload, err := json.Marshal(event)
		if err != nil {
			log.Error().Err(err).Msg("status event marshal failed")
			return
		}
		if pubErr := pubsub.Publish(ctx, redisstore.StatusChannel(), payload); pubErr != nil {
			log.Warn().Err(pubErr).Msg("status broadcast failed")
		}
	}
}

// outputSink forwards runtime output and exit events to the manager and
// mirrors each chunk onto the agent's Redis channel for live WebSocket
// subscribers.
type outputSink struct {
	*manager.Manager
	pubsub *redisstore.PubSub
}

func (s *outputSink) HandleOutput(ctx context.Context, agentID uuid.UUID, chunk string) error {
	event := ws.OutputEvent{
		Type:      "output",
		AgentID:   agentID,
		Chunk:     chunk,
		Timestamp: time.Now(),
	}
	if payload, err := json.Marshal(event); err == nil {
		if pubErr := s.pubsub.Publish(ctx, redisstore.AgentChannel(agentID), payload); pubErr != nil {
			log.Debug().Err(pubErr).Msg("output publish failed")
		}
	}

	return s.Manager.HandleOutput(ctx, agentID, chunk)
}
