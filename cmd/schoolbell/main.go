package main

import (
	"github.com/joho/godotenv"
	"github.com/schoolbell-dev/schoolbell/db"
	"github.com/schoolbell-dev/schoolbell/internal/auth"
	"github.com/schoolbell-dev/schoolbell/internal/channels"
	"github.com/schoolbell-dev/schoolbell/internal/config"
	"github.com/schoolbell-dev/schoolbell/internal/handlers"
	"github.com/schoolbell-dev/schoolbell/internal/logger"
	"github.com/schoolbell-dev/schoolbell/internal/notifications"
	"github.com/schoolbell-dev/schoolbell/internal/router"
	"github.com/schoolbell-dev/schoolbell/internal/sweeper"
	"github.com/schoolbell-dev/schoolbell/internal/types"
	"github.com/schoolbell-dev/schoolbell/internal/ws"
)

func main() {
	// A missing .env file is fine in deployed environments.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(cfg.Environment, cfg.LogLevel)

	if err := auth.InitJWTSecret(cfg.JWTSecret); err != nil {
		logger.Log.Fatalf("Failed to initialize JWT: %v", err)
	}

	if err := db.ConnectDatabase(cfg.DatabaseDSN); err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.MigrateDatabase(); err != nil {
		logger.Log.Fatalf("Failed to migrate database: %v", err)
	}

	hub := ws.NewHub()

	registry := channels.NewRegistry(
		channels.NewEmailChannel(channels.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}),
		channels.NewInAppChannel(),
		channels.NewWebSocketChannel(hub),
		channels.NewPushChannel(db.DB, cfg.FCMKey),
	)

	store := notifications.NewStore(db.DB)
	dispatcher := notifications.NewDispatcher(db.DB, registry, hub)
	aggregator := notifications.NewAggregator(db.DB)
	retries := sweeper.New(db.DB, registry[types.ChannelEmail], dispatcher, hub)

	handlers.Init(store, dispatcher, aggregator, retries, hub)

	if err := retries.Start(cfg.SweeperCron); err != nil {
		logger.Log.Fatalf("Failed to start retry sweeper: %v", err)
	}
	defer retries.Stop()

	r := router.NewRouter()

	logger.Log.Infof("Schoolbell listening on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
