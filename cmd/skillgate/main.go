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
	"github.com/nidhogg/skillgate/internal/access"
	"github.com/nidhogg/skillgate/internal/api"
	"github.com/nidhogg/skillgate/internal/broker"
	"github.com/nidhogg/skillgate/internal/config"
	"github.com/nidhogg/skillgate/internal/events"
	"github.com/nidhogg/skillgate/internal/notify"
	"github.com/nidhogg/skillgate/internal/profile"
	"github.com/nidhogg/skillgate/internal/render"
	"github.com/nidhogg/skillgate/internal/skill"
	pgstore "github.com/nidhogg/skillgate/internal/store"
	"github.com/nidhogg/skillgate/internal/store/memstore"
	"go.uber.org/zap"
)

// backend is satisfied by both the Postgres and the in-memory store.
type backend interface {
	broker.Store
	skill.Upserter
}

func main() {
	_ = godotenv.Load()

	zcfg := zap.NewDevelopmentConfig()
	logger, _ := zcfg.Build()
	defer logger.Sync()

	logger.Info("Starting skillgate...")

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/skillgate.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	if cfg.Server.LogLevel != "" {
		if lvlErr := zcfg.Level.UnmarshalText([]byte(cfg.Server.LogLevel)); lvlErr != nil {
			logger.Warn("ignoring log level", zap.String("level", cfg.Server.LogLevel), zap.Error(lvlErr))
		}
	}

	if cfg.LLM.DefaultModel != "" {
		profile.Fallback = profile.ModelChoice{Provider: cfg.LLM.DefaultProvider, Model: cfg.LLM.DefaultModel}
	}

	ctx := context.Background()

	// Initialize store
	var store backend
	var pgStore *pgstore.Store
	if cfg.Database.Postgres.DSN != "" {
		ps, pgErr := pgstore.New(ctx, cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, running with in-memory store", zap.Error(pgErr))
		} else {
			if mErr := ps.Migrate(ctx, "migrations"); mErr != nil {
				logger.Fatal("migration failed", zap.Error(mErr))
			}
			pgStore = ps
			store = ps
		}
	}
	if store == nil {
		store = memstore.New()
	}

	// Seed the global catalog
	catalog := skill.NewManager()
	skill.RegisterBuiltins(catalog)
	seeded, err := skill.LoadFromDir(cfg.SkillsDir)
	if err != nil {
		logger.Warn("failed to load skills directory", zap.String("dir", cfg.SkillsDir), zap.Error(err))
	}
	for _, s := range seeded {
		catalog.Add(s)
	}
	n, err := catalog.Seed(ctx, store)
	if err != nil {
		logger.Fatal("failed to seed skill catalog", zap.Error(err))
	}
	logger.Info("Skill catalog seeded", zap.Int("count", n))

	// Initialize event stream
	var publisher events.Publisher = events.Nop{}
	var bus *events.Bus
	if cfg.Database.Redis.URL != "" {
		b, busErr := events.NewBus(ctx, cfg.Database.Redis.URL, cfg.Database.Redis.Stream, logger)
		if busErr != nil {
			logger.Warn("Redis unavailable, running without events", zap.Error(busErr))
		} else {
			bus = b
			publisher = b
		}
	}

	// Initialize admin notifications
	fanout := notify.NewFanout(logger)
	if cfg.Notify.Slack.Enabled {
		fanout.Add(notify.NewSlackNotifier(cfg.Notify.Slack.BotToken, cfg.Notify.Slack.Channel, logger))
	}
	if cfg.Notify.Discord.Enabled {
		dn, dErr := notify.NewDiscordNotifier(cfg.Notify.Discord.BotToken, cfg.Notify.Discord.ChannelID, logger)
		if dErr != nil {
			logger.Warn("Discord notifier unavailable", zap.Error(dErr))
		} else {
			fanout.Add(dn)
		}
	}
	logger.Info("Notifiers configured", zap.Strings("platforms", fanout.Platforms()))

	// Build service
	blocked, err := blockedCategories(cfg.IndividualBlockedCategories)
	if err != nil {
		logger.Fatal("invalid individual_blocked_categories", zap.Error(err))
	}
	resolver := access.NewResolver(blocked, logger)
	svc := broker.NewService(store, resolver, render.NewPlaceholderRenderer(), publisher, fanout, logger)
	handler := api.NewHandler(svc, logger)

	// Start server
	port := fmt.Sprintf("%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("skillgate listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down skillgate...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	if bus != nil {
		bus.Close()
	}
	if pgStore != nil {
		pgStore.Close()
	}
}

func blockedCategories(names []string) ([]access.Category, error) {
	out := make([]access.Category, 0, len(names))
	for _, name := range names {
		c, err := access.ParseCategory(name)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
