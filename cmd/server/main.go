package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/iliyamo/dorm-seat-reservation/internal/config"
	"github.com/iliyamo/dorm-seat-reservation/internal/database"
	"github.com/iliyamo/dorm-seat-reservation/internal/handler"
	"github.com/iliyamo/dorm-seat-reservation/internal/logger"
	"github.com/iliyamo/dorm-seat-reservation/internal/middleware"
	"github.com/iliyamo/dorm-seat-reservation/internal/notify"
	"github.com/iliyamo/dorm-seat-reservation/internal/queue"
	"github.com/iliyamo/dorm-seat-reservation/internal/repository"
	"github.com/iliyamo/dorm-seat-reservation/internal/router"
	"github.com/iliyamo/dorm-seat-reservation/internal/scheduler"
	"github.com/iliyamo/dorm-seat-reservation/internal/service"
	"github.com/iliyamo/dorm-seat-reservation/internal/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "dorm-seat-reservation:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		envFile string
		port    string
		migrate bool
	)
	flagSet := pflag.NewFlagSet("dorm-seat-reservation", pflag.ContinueOnError)
	flagSet.StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	flagSet.StringVar(&port, "port", "", "HTTP port (overrides APP_PORT)")
	flagSet.BoolVar(&migrate, "migrate", true, "create missing tables on startup (mysql driver)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	// a missing .env is normal in containers
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if port != "" {
		cfg.Port = port
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "dorm-seat-reservation")
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	for _, w := range adminWarnings(cfg) {
		log.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reservations, settings, closeStore, err := openStore(ctx, cfg, migrate, log)
	if err != nil {
		return err
	}
	defer closeStore()

	rdb, err := config.NewRedisClient(config.LoadRedisConfig())
	if err != nil {
		// limiter and cache degrade to pass-through
		log.Warn("redis unavailable", zap.Error(err))
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}
	rlCfg := config.LoadRateLimitConfig()
	cacheCfg := config.LoadCacheConfig()

	hub := notify.NewHub(log)
	go hub.Run(ctx)
	fanout := &notify.Fanout{Hub: hub, Log: log}
	if inv := middleware.NewCacheInvalidator(cacheCfg, rdb); inv != nil {
		fanout.Cache = inv
	}

	deps := service.Deps{
		Reservations: reservations,
		Settings:     settings,
		Admins:       service.NewAdminVerifier(cfg.AdminSecret, cfg.AdminNames, cfg.JWTSecret, cfg.AdminTokenTTLMin),
		Hasher:       utils.BcryptHasher{Cost: cfg.BcryptCost},
		Notifier:     fanout,
		Policy: service.Policy{
			PasswordPolicy:           cfg.PasswordPolicy,
			SelfCancelRequiresWindow: cfg.SelfCancelRequiresWindow,
			StrictDeviceBinding:      cfg.StrictDeviceBinding,
			AuditCancellations:       cfg.AuditCancellations,
			StoreTimeout:             cfg.StoreTimeout,
		},
		Log: log.Named("service"),
	}
	if cfg.AMQPEnabled {
		deps.Journal = queue.NewPublisher(cfg.AMQPURL, cfg.AMQPQueue, log)
		consumer := queue.NewConsumer(cfg.AMQPURL, cfg.AMQPQueue, "logs", log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("journal consumer stopped", zap.Error(err))
			}
		}()
	}

	resSvc := service.NewReservationService(deps)
	modSvc := service.NewModerationService(deps)
	if err := modSvc.SeedWindow(ctx, cfg.WindowStart, cfg.WindowEnd); err != nil {
		return fmt.Errorf("seed booking window: %w", err)
	}

	if cfg.WatchSpec != "" {
		watcher := scheduler.NewWindowWatcher(modSvc, cfg.WatchSpec, log)
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("window watcher: %w", err)
		}
		defer watcher.Stop()
	}

	e := router.New(log, cfg.CORSOrigins)
	router.RegisterRoutes(e, router.Handlers{
		Reservations: handler.NewReservationHandler(resSvc),
		Admin:        handler.NewAdminHandler(modSvc),
		Realtime:     handler.NewRealtimeHandler(hub, modSvc, cfg.CORSOrigins),
	}, router.Middleware{
		RateLimit: middleware.NewTokenBucket(rlCfg, rdb, log),
		Cache:     middleware.NewRedisCache(cacheCfg, rdb),
	})

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("store", cfg.Driver))
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
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// adminWarnings reports admin settings that are legal but probably not
// intended.
func adminWarnings(cfg config.Config) []string {
	if cfg.AdminSecret == "" {
		return []string{"ADMIN_SECRET is not set; every admin operation will fail with ServerMisconfigured"}
	}
	if len(cfg.AdminNames) == 0 {
		return []string{"ADMIN_NAMES is empty; any admin name is accepted with the shared secret"}
	}
	return nil
}

// openStore selects the reservation store named by STORE_DRIVER.
func openStore(ctx context.Context, cfg config.Config, migrate bool, log *zap.Logger) (service.ReservationStore, service.SettingsStore, func(), error) {
	if cfg.Driver == config.DriverMemory {
		log.Warn("using in-memory store; reservations are lost on restart")
		mem := repository.NewMemoryStore()
		return mem, mem, func() {}, nil
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("database: %w", err)
	}
	if migrate {
		mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := database.Migrate(mctx, db); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return repository.NewReservationRepo(db), repository.NewSettingsRepo(db), func() { db.Close() }, nil
}
