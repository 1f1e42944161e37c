package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"talent-mirror/internal/api"
	"talent-mirror/internal/applications"
	"talent-mirror/internal/cache"
	"talent-mirror/internal/company"
	"talent-mirror/internal/dedup"
	"talent-mirror/internal/feed"
	"talent-mirror/internal/logger"
	"talent-mirror/internal/matching"
	"talent-mirror/internal/mirror"
	"talent-mirror/internal/notifier"
	"talent-mirror/internal/profile"
	"talent-mirror/internal/scheduler"
	"talent-mirror/internal/storage"
)

// appScheduler 是命令层使用的调度能力。
type appScheduler interface {
	Start(ctx context.Context) error
	RunOnce(ctx context.Context) (scheduler.Report, error)
	RunCompanies(ctx context.Context, ids []string) (scheduler.Report, error)
}

// appDeps 组装完成的运行时组件。bridge 为 nil 表示未启用 Redis。
type appDeps struct {
	sched   appScheduler
	handler http.Handler
	bridge  *feed.RedisBridge
}

type appBuilder func(AppConfig) (appDeps, func(), error)

// newAppBuilder 返回按配置组装全部组件的构造函数。
func newAppBuilder(log *zap.Logger) appBuilder {
	return func(cfg AppConfig) (appDeps, func(), error) {
		return buildApp(cfg, log)
	}
}

func buildApp(cfg AppConfig, log *zap.Logger) (appDeps, func(), error) {
	hub := feed.NewHub(feed.WithLogger(logger.Named(log, "feed")))

	store, err := storage.Open(cfg.Database, storage.WithLogger(logger.Named(log, "storage")))
	if err != nil {
		hub.Close()
		return appDeps{}, func() {}, fmt.Errorf("init store: %w", err)
	}

	var (
		set    cache.AppliedSet = cache.NewMemorySet()
		bridge *feed.RedisBridge
		rdb    *redis.Client
	)
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		bridge = feed.NewRedisBridge(hub, rdb, cfg.Redis.Channel, logger.Named(log, "feed"))
		store.SetPublisher(bridge)
		set = cache.NewRedisSet(rdb, cfg.Redis.Prefix, cfg.Redis.ttl())
	} else {
		store.SetPublisher(hub)
	}

	client := matching.NewClient(cfg.Matching, nil, log)
	gate := dedup.NewGate(store, logger.Named(log, "dedup"))
	profiles := profile.NewService(client, store, gate, logger.Named(log, "profile"))
	syncer := mirror.New(client, store, cfg.Mirror, logger.Named(log, "mirror"))
	tracker := applications.NewTracker(client, store, set, logger.Named(log, "applications"))
	companies := company.NewService(store, cfg.Company)

	notif := notifier.Multi{notifier.NewLogNotifier(logger.Named(log, "notifier"))}
	if cfg.Notifier.Match {
		notif = append(notif, notifier.NewMatchNotifier(client, cfg.Notifier.TopN, cfg.Notifier.MinScore, logger.Named(log, "notifier")))
	}
	sched := scheduler.NewScheduler(syncer, store, notif, cfg.Scheduler, logger.Named(log, "scheduler"))

	handler := api.NewHandler(api.Deps{
		Store:        store,
		Profiles:     profiles,
		Mirror:       syncer,
		Scheduler:    sched,
		Matcher:      client,
		Applications: tracker,
		Companies:    companies,
		Hub:          hub,
		Log:          logger.Named(log, "api"),
	})

	cleanup := func() {
		hub.Close()
		if rdb != nil {
			if err := rdb.Close(); err != nil {
				log.Warn("close redis", zap.Error(err))
			}
		}
		if err := store.Close(); err != nil {
			log.Warn("close store", zap.Error(err))
		}
	}
	return appDeps{sched: sched, handler: handler, bridge: bridge}, cleanup, nil
}
