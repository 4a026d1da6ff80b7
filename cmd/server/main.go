package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/account-service/internal/config"
	"github.com/iliyamo/account-service/internal/database"
	"github.com/iliyamo/account-service/internal/handler"
	"github.com/iliyamo/account-service/internal/logging"
	"github.com/iliyamo/account-service/internal/mail"
	"github.com/iliyamo/account-service/internal/oauth"
	"github.com/iliyamo/account-service/internal/queue"
	"github.com/iliyamo/account-service/internal/repository"
	"github.com/iliyamo/account-service/internal/router"
	"github.com/iliyamo/account-service/internal/service"
	"github.com/iliyamo/account-service/internal/storage"
	"github.com/iliyamo/account-service/internal/tracing"
)

const usage = `usage: server [serve|migrate|create-admin]

  serve         run the HTTP API (default)
  migrate       apply database migrations and exit
  create-admin  create or promote DEFAULT_ADMIN_EMAIL and exit`

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, reading configuration from the environment")
	}
	cfg := config.Load()
	logger := logging.SetupGlobalHandler(cfg.Tracing.ServiceName)

	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "serve":
		err = serve(ctx, cfg, logger)
	case "migrate":
		err = migrate(ctx, cfg, logger)
	case "create-admin":
		err = createAdmin(ctx, cfg, logger)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("exit", "command", cmd, "err", err)
		os.Exit(1)
	}
}

func openDB(ctx context.Context, cfg config.Config) (*sqlx.DB, error) {
	return database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
}

func migrate(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db.DB); err != nil {
		return err
	}
	logger.Info("migrations applied")
	return nil
}

func createAdmin(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.Admin.Email == "" || cfg.Admin.Password == "" {
		return errors.New("DEFAULT_ADMIN_EMAIL and DEFAULT_ADMIN_PASSWORD are required")
	}
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	created, err := service.EnsureAdmin(ctx, repository.NewUserRepo(db), cfg.Admin.Email, cfg.Admin.Password, cfg.BcryptCost)
	if err != nil {
		return err
	}
	if created {
		logger.Info("admin user created", "email", cfg.Admin.Email)
	} else {
		logger.Info("admin user already present", "email", cfg.Admin.Email)
	}
	return nil
}

// mailSender picks the transport. The returned func releases it.
func mailSender(cfg config.Config, logger *slog.Logger) (mail.Sender, func()) {
	switch cfg.Mail.Transport {
	case "queue":
		p := queue.NewPublisher(cfg.RabbitURL, cfg.Mail.Queue)
		return p, func() { _ = p.Close() }
	case "smtp":
		return mail.NewSMTPSender(cfg.Mail), func() {}
	default:
		return mail.LogSender{Logger: logger}, func() {}
	}
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	shutdownTracer, err := tracing.InitTracerProvider(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("tracer shutdown", "err", err)
		}
	}()

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable: rate limiting, caching and the code throttle are disabled")
	} else {
		defer func(c *redis.Client) { _ = c.Close() }(rdb)
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	composer, err := mail.NewComposer(cfg.Mail.FromName, cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("load mail templates: %w", err)
	}
	sender, closeSender := mailSender(cfg, logger)
	defer closeSender()

	users := repository.NewUserRepo(db)
	deps := service.Deps{
		Users:    users,
		Codes:    repository.NewCodeRepo(db),
		Tokens:   repository.NewTokenRepo(db),
		Links:    repository.NewAccountRepo(db),
		Activity: repository.NewActivityRepo(db),
		Settings: repository.NewSettingsRepo(db),
		Mail:     sender,
		Composer: composer,
		Throttle: service.NewRedisThrottle(rdb, "throttle"),
		Storage:  store,
		Logger:   logger,
		Opts:     service.OptionsFrom(cfg),
	}
	accounts := service.NewAccounts(deps)
	admin := service.NewAdmin(deps)

	if cfg.Admin.Email != "" && cfg.Admin.Password != "" {
		if _, err := service.EnsureAdmin(ctx, users, cfg.Admin.Email, cfg.Admin.Password, cfg.BcryptCost); err != nil {
			logger.Warn("ensure default admin", "err", err)
		}
	}

	cacheCfg := config.LoadCacheConfig()
	d := router.Deps{
		Cfg:           cfg,
		Logger:        logger,
		DB:            db,
		Redis:         rdb,
		Loader:        accounts,
		Policy:        accounts,
		Auth:          handler.NewAuthHandler(cfg, accounts),
		Profile:       handler.NewProfileHandler(accounts),
		Admin:         router.NewAdminHandler(admin, rdb, cacheCfg),
		RateLimit:     config.LoadRateLimitConfig(),
		AuthRateLimit: config.LoadAuthRateLimitConfig(),
		Cache:         cacheCfg,
	}
	if cfg.OAuth.Enabled() {
		d.OAuth = handler.NewOAuthHandler(cfg, accounts, oauth.NewGoogle(cfg.OAuth))
	}
	e := router.New(d)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env, "mail", cfg.Mail.Transport, "storage", cfg.Storage.Type)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
