package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/bravesteps/app"
	"github.com/cppla/bravesteps/config"
	"github.com/cppla/bravesteps/routes"
	"github.com/cppla/bravesteps/storage"
	"github.com/cppla/bravesteps/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	log, err := utils.NewLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	a, err := app.New(cfg, log)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
	if err := storage.Migrate(a.DB); err != nil {
		log.Fatal("migrate failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	if cfg.ReminderIntervalSec > 0 {
		a.Reminder.Start(ctx, time.Duration(cfg.ReminderIntervalSec)*time.Second)
	}

	r := routes.SetupRouter(a.RouterDeps())
	srv := utils.NewServer(":"+cfg.AppPort, r, log)
	srv.OnShutdown(cancel)
	srv.OnShutdown(a.Close)

	log.Info("starting server (graceful)", zap.String("port", cfg.AppPort), zap.String("db", cfg.DBDriver), zap.Bool("redis", a.Redis != nil))
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal("server stopped with error", zap.Error(err))
	}
}
