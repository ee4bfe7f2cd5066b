// notifyd is the notification delivery daemon. It hosts the public HTTP API
// (message intake, profiles, delivery status) and the queue workers that
// resolve and deliver notifications.
//
// Startup order: env → config → logging → tracing → database → queue →
// stores → pipeline → workers → HTTP server. Shutdown reverses it: stop
// accepting requests, drain in-flight handlers, cancel the workers, flush
// traces.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/civicnotify/go-notify-backend/internal/channel"
	"github.com/civicnotify/go-notify-backend/internal/config"
	"github.com/civicnotify/go-notify-backend/internal/domain"
	httpapi "github.com/civicnotify/go-notify-backend/internal/http"
	"github.com/civicnotify/go-notify-backend/internal/observability"
	"github.com/civicnotify/go-notify-backend/internal/pipeline"
	"github.com/civicnotify/go-notify-backend/internal/queue"
	"github.com/civicnotify/go-notify-backend/internal/repo"
	"github.com/civicnotify/go-notify-backend/internal/services"
	"github.com/civicnotify/go-notify-backend/internal/sysutil"
	"github.com/civicnotify/go-notify-backend/internal/worker"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// Local development convenience; absence of a .env file is fine.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(rootCtx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(ctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate entities failed")
	}
	if err := queue.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate queue failed")
	}

	q := queue.NewSQLQueue(db, cfg.Queue.MaxDequeueCount)

	// Versioned stores
	messages := repo.NewVersionedStore[domain.Message](db)
	profiles := repo.NewVersionedStore[domain.Profile](db)
	svcStore := repo.NewVersionedStore[domain.Service](db)
	notifications := repo.NewVersionedStore[domain.Notification](db)
	notifStatuses := repo.NewVersionedStore[domain.NotificationStatus](db)
	msgStatuses := repo.NewVersionedStore[domain.MessageStatus](db)

	// Pipeline
	recovery := &pipeline.Recovery{
		Scheduler: &queue.Scheduler{Queue: q, Log: log.With().Str("component", "scheduler").Logger()},
		Log:       log.With().Str("component", "recovery").Logger(),
	}
	resolver := &pipeline.Resolver{
		Messages:             messages,
		Profiles:             profiles,
		Services:             svcStore,
		Notifications:        notifications,
		NotificationStatuses: notifStatuses,
		MessageStatuses:      msgStatuses,
		Queue:                q,
		Recovery:             recovery,
		Log:                  log.With().Str("component", "resolver").Logger(),
	}
	delivery := &pipeline.Delivery{
		Messages:      messages,
		Notifications: notifications,
		Statuses:      notifStatuses,
		Senders: map[domain.Channel]channel.Sender{
			domain.ChannelEmail: channel.NewEmailSender(
				cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From),
			domain.ChannelWebhook: channel.NewWebhookSender(cfg.WebhookTimeout),
		},
		Recovery: recovery,
		Log:      log.With().Str("component", "delivery").Logger(),
	}

	// Workers: one consumer loop per stage queue.
	workers := []*worker.Worker{
		{
			Queue:        q,
			QueueName:    pipeline.QueueCreatedMessages,
			Visibility:   cfg.Queue.Visibility,
			PollInterval: cfg.Queue.PollInterval,
			Handler:      resolver.HandleMessageCreated,
			Log:          log.With().Str("worker", pipeline.QueueCreatedMessages).Logger(),
		},
		{
			Queue:        q,
			QueueName:    pipeline.QueueEmailNotifications,
			Visibility:   cfg.Queue.Visibility,
			PollInterval: cfg.Queue.PollInterval,
			Handler: func(ctx context.Context, msg *queue.Message) error {
				return delivery.Handle(ctx, pipeline.QueueEmailNotifications, msg)
			},
			Log: log.With().Str("worker", pipeline.QueueEmailNotifications).Logger(),
		},
		{
			Queue:        q,
			QueueName:    pipeline.QueueWebhookNotifications,
			Visibility:   cfg.Queue.Visibility,
			PollInterval: cfg.Queue.PollInterval,
			Handler: func(ctx context.Context, msg *queue.Message) error {
				return delivery.Handle(ctx, pipeline.QueueWebhookNotifications, msg)
			},
			Log: log.With().Str("worker", pipeline.QueueWebhookNotifications).Logger(),
		},
	}

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *worker.Worker) {
			defer wg.Done()
			w.Run(rootCtx)
		}(w)
	}

	// HTTP API
	engine := gin.New()
	httpapi.RegisterRoutes(engine, httpapi.Services{
		Messages: &services.MessageService{
			Messages:        messages,
			Statuses:        msgStatuses,
			Queue:           q,
			MaxSubjectRunes: cfg.MaxSubjectRunes,
			MaxBodyRunes:    cfg.MaxBodyRunes,
			DefaultTTL:      cfg.DefaultTTL,
			MaxTTL:          cfg.MaxTTL,
		},
		Profiles:      &services.ProfileService{Profiles: profiles},
		Notifications: &services.NotificationService{Statuses: notifStatuses},
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown error")
	}

	// Workers stop because rootCtx is canceled.
	wg.Wait()
	log.Info().Msg("stopped")
}
