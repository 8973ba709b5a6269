package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"mudhumeni-backend/internal/advisor"
	"mudhumeni-backend/internal/catalog"
	"mudhumeni-backend/internal/config"
	"mudhumeni-backend/internal/db"
	"mudhumeni-backend/internal/farming"
	"mudhumeni-backend/internal/logger"
	"mudhumeni-backend/internal/predictor"
	"mudhumeni-backend/internal/server"
	"mudhumeni-backend/internal/store"
	"mudhumeni-backend/internal/ussd"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		os.Stderr.WriteString("failed to build logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	log = log.WithSalt(cfg.LogSalt)
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server stopped", "error", err)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, log *logger.Logger) error {
	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	var sessions store.SessionStore
	switch cfg.SessionDriver {
	case "redis":
		rs := store.NewRedisSessionStore(redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}), cfg.SessionTTL)
		defer rs.Close()
		sessions = rs
	default:
		ms := store.NewMemorySessionStore(cfg.SessionTTL)
		g.Go(func() error {
			return ms.Run(ctx, cfg.SweepInterval, func(removed int) {
				log.Debug("expired ussd sessions removed", "count", removed, "remaining", ms.Len())
			})
		})
		sessions = ms
	}

	var database *db.DB
	var prefs store.PreferenceStore
	switch cfg.PreferenceDriver {
	case db.DriverPostgres, db.DriverSQLite:
		database, err = db.Open(cfg.PreferenceDriver, cfg.DatabaseURL, log)
		if err != nil {
			return err
		}
		defer database.Close()
		if err := database.RunMigrations(ctx); err != nil {
			return err
		}
		log.Info("database ready", "driver", database.Driver())
		prefs = store.NewDatabaseStore(database)
	case "file":
		prefs = store.NewFilePreferenceStore(cfg.PreferenceFile)
	default:
		log.Warn("preferences are kept in memory and lost on restart")
		prefs = store.NewMemoryPreferenceStore()
	}

	adv, err := buildAdvisor(cfg, log)
	if err != nil {
		return err
	}
	pred, err := buildPredictor(cfg)
	if err != nil {
		return err
	}

	svc := farming.NewService(cat, prefs, adv, pred, farming.Config{AnswerMax: cfg.AnswerMaxLength}, log)
	engine, err := ussd.NewEngine(cat, sessions, prefs, svc.Actions(), ussd.Options{
		MaxDepth:      cfg.MaxDepth,
		ActionTimeout: cfg.AdvisorTimeout,
		Substitutions: svc.Substitutions,
		Logger:        log,
	})
	if err != nil {
		return err
	}

	srv, err := server.NewServer(cfg, server.Deps{
		Catalog:  cat,
		Engine:   engine,
		Farming:  svc,
		History:  store.NewHistoryStore(cfg.ChatHistory),
		Database: database,
		Logger:   log,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		log.Info("mudhumeni server listening", "addr", httpServer.Addr, "sessions", cfg.SessionDriver, "preferences", cfg.PreferenceDriver)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func loadCatalog(cfg config.Config) (*catalog.Catalog, error) {
	if cfg.CatalogDir != "" {
		return catalog.LoadDir(cfg.CatalogDir)
	}
	return catalog.Default()
}

func buildAdvisor(cfg config.Config, log *logger.Logger) (advisor.Advisor, error) {
	if cfg.AdvisorProvider == "static" {
		log.Warn("no language model configured, serving static advice")
		return advisor.NewStatic(), nil
	}
	spec, err := advisor.DefaultPromptSpec()
	if cfg.PromptFile != "" {
		spec, err = advisor.LoadPromptSpec(cfg.PromptFile)
	}
	if err != nil {
		return nil, err
	}
	return advisor.NewOpenAI(advisor.Config{
		APIKey:  cfg.AdvisorAPIKey,
		BaseURL: cfg.AdvisorBaseURL,
		Model:   cfg.AdvisorModel,
		Timeout: cfg.AdvisorTimeout,
	}, spec, log)
}

func buildPredictor(cfg config.Config) (predictor.Predictor, error) {
	if cfg.PredictorURL == "" {
		return predictor.Rules{}, nil
	}
	return predictor.NewClient(predictor.ClientConfig{
		URL:          cfg.PredictorURL,
		ClientID:     cfg.PredictorClientID,
		ClientSecret: cfg.PredictorClientSecret,
		TokenURL:     cfg.PredictorTokenURL,
		Scopes:       cfg.PredictorScopes,
	})
}
