// Package app builds the long-lived services shared by the HTTP server and trackerctl.
package app

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/bravesteps/config"
	"github.com/cppla/bravesteps/insights"
	"github.com/cppla/bravesteps/notify"
	"github.com/cppla/bravesteps/progression"
	"github.com/cppla/bravesteps/routes"
	"github.com/cppla/bravesteps/storage"
	"github.com/cppla/bravesteps/utils"
)

// completionLockTTL is not extended while a submission runs. The (user_id, completion_day)
// unique index still rejects a second entry if a slow submission outlives its lock.
const completionLockTTL = 15 * time.Second

type App struct {
	Config   config.AppConfig
	Log      *zap.Logger
	DB       *gorm.DB
	Redis    *redis.Client
	Cache    *utils.Cache
	Catalog  *storage.AchievementCatalog
	Engine   *progression.Engine
	Coach    *insights.Coach
	Notifier notify.Notifier
	Reminder *notify.Reminder
	Location *time.Location
}

// New opens the database and wires every service. Migrations are not run here.
func New(cfg config.AppConfig, log *zap.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("time zone %q: %w", cfg.TimeZone, err)
	}
	db, err := config.InitDatabase(cfg)
	if err != nil {
		return nil, err
	}
	return Wire(cfg, log, db, utils.NewRedis(cfg, log), loc)
}

// Wire builds the services over an already open database. rc may be nil.
func Wire(cfg config.AppConfig, log *zap.Logger, db *gorm.DB, rc *redis.Client, loc *time.Location) (*App, error) {
	notifier, err := notify.New(cfg, log)
	if err != nil {
		return nil, err
	}
	cache := utils.NewCache(rc, log)
	catalog := storage.NewAchievementCatalog(db, cache)

	var locker progression.Locker = progression.NewKeyedMutex()
	if rc != nil {
		locker = utils.NewRedisLocker(rc, completionLockTTL, log)
	}
	engine := progression.NewEngine(
		storage.NewProgressionStore(db),
		catalog,
		progression.WithLocker(locker),
		progression.WithLogger(log),
	)

	var chat insights.ChatClient
	if c := insights.NewClient(cfg); c != nil {
		chat = c
	}

	return &App{
		Config:   cfg,
		Log:      log,
		DB:       db,
		Redis:    rc,
		Cache:    cache,
		Catalog:  catalog,
		Engine:   engine,
		Coach:    insights.NewCoach(chat, cache, log),
		Notifier: notifier,
		Reminder: notify.NewReminder(db, notifier, log, loc, time.Duration(cfg.ReminderWindowMin)*time.Minute),
		Location: loc,
	}, nil
}

// RouterDeps exposes the services the HTTP layer needs.
func (a *App) RouterDeps() routes.Deps {
	return routes.Deps{
		Config:    a.Config,
		DB:        a.DB,
		Log:       a.Log,
		Engine:    a.Engine,
		Coach:     a.Coach,
		Reminder:  a.Reminder,
		Notifier:  a.Notifier,
		Blacklist: utils.NewTokenBlacklist(a.Redis),
		Guard:     utils.NewLoginGuard(a.Redis, a.Config.LoginMaxFailures, time.Duration(a.Config.LoginBanMinutes)*time.Minute),
	}
}

// Close releases the database pool and the Redis client.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Log.Warn("close redis", zap.Error(err))
		}
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.Log.Warn("close database", zap.Error(err))
		}
	}
}
