// Package bootstrap builds the shared infrastructure of the server, the
// worker and studyctl from configuration: loggers, stores and Redis.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/safe1124/studyhub/config"
	"github.com/safe1124/studyhub/internal/domain/economy"
	"github.com/safe1124/studyhub/internal/domain/progression"
	"github.com/safe1124/studyhub/internal/domain/study"
	"github.com/safe1124/studyhub/internal/infrastructure/persistence/memory"
	"github.com/safe1124/studyhub/internal/infrastructure/persistence/postgres"
	"github.com/safe1124/studyhub/internal/infrastructure/persistence/redis"
	"github.com/safe1124/studyhub/pkg/logger"
	"github.com/safe1124/studyhub/pkg/retry"
	"github.com/safe1124/studyhub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOGGING
// ══════════════════════════════════════════════════════════════════════════════

// Loggers pairs the process logger (slog, used by binaries, the bus and the
// scheduler) with the structured library logger.
type Loggers struct {
	Slog *slog.Logger
	Lib  *logger.Logger
}

// NewLoggers configures both loggers from the app section and installs the
// slog one as default.
func NewLoggers(cfg config.AppConfig) Loggers {
	level := logger.ParseLevel(cfg.LogLevel)
	if cfg.Debug {
		level = logger.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: slogLevel(level)}
	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	sl := slog.New(handler).With("app", cfg.Name, "env", string(cfg.Environment))
	slog.SetDefault(sl)

	lib := logger.New(logger.Options{Output: os.Stdout, Level: level, AddCaller: cfg.Debug})
	return Loggers{Slog: sl, Lib: lib}
}

func slogLevel(l logger.Level) slog.Level {
	switch l {
	case logger.LevelDebug:
		return slog.LevelDebug
	case logger.LevelWarn:
		return slog.LevelWarn
	case logger.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ApplyStudyConfig installs the reference zone. Call before creating clocks.
func ApplyStudyConfig(cfg config.StudyConfig) {
	timeutil.SetReference(cfg.TimezoneName, cfg.TimezoneOffset)
}

// ══════════════════════════════════════════════════════════════════════════════
// STORES
// ══════════════════════════════════════════════════════════════════════════════

// Stores are the four persistent repositories.
type Stores struct {
	Records   study.RecordRepository
	Progress  progression.Repository
	Wallets   economy.WalletRepository
	Inventory economy.InventoryRepository

	// DB is nil when running on the memory store.
	DB *postgres.Connection
}

// Close releases the database pool, if any.
func (s *Stores) Close() {
	if s.DB != nil {
		s.DB.Close()
	}
}

// OpenStores connects to Postgres (retrying while it comes up) and applies
// migrations when configured, or builds the memory store.
func OpenStores(ctx context.Context, cfg config.DatabaseConfig, clock timeutil.Clock, log *slog.Logger) (*Stores, error) {
	if cfg.UseMemoryStore {
		log.Warn("using in-memory store, data is lost on restart")
		econ := memory.NewEconomy(clock)
		return &Stores{
			Records:   memory.NewRecords(),
			Progress:  memory.NewProgressions(clock),
			Wallets:   econ.Wallets(),
			Inventory: econ.Inventory(),
		}, nil
	}

	conn, err := ConnectPostgres(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := Migrate(ctx, conn, log); err != nil {
			conn.Close()
			return nil, err
		}
	}

	return &Stores{
		Records:   postgres.NewRecordRepository(conn),
		Progress:  postgres.NewProgressionRepository(conn, clock),
		Wallets:   postgres.NewWalletRepository(conn, clock),
		Inventory: postgres.NewInventoryRepository(conn, clock),
		DB:        conn,
	}, nil
}

// ConnectPostgres opens the pool with startup retries.
func ConnectPostgres(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*postgres.Connection, error) {
	pgCfg := postgres.DefaultConfig(cfg.URL)
	if cfg.MaxConns > 0 {
		pgCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		pgCfg.MinConns = int32(cfg.MinConns)
	}
	pgCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime

	if _, err := pgCfg.PoolConfig(); err != nil {
		return nil, err
	}

	log.Info("connecting to database...")
	conn, err := retry.DoWithData(ctx, startupRetrier(log, "postgres"), func(ctx context.Context) (*postgres.Connection, error) {
		return postgres.NewConnection(ctx, pgCfg)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("database connection established")
	return conn, nil
}

// Migrate applies pending migrations and logs the result.
func Migrate(ctx context.Context, conn *postgres.Connection, log *slog.Logger) error {
	log.Info("running database migrations...")
	migrator := postgres.NewMigrator(conn)
	n, err := migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	status, err := migrator.Status(ctx)
	if err != nil {
		log.Warn("failed to get migration status", "error", err)
		return nil
	}
	applied := 0
	for _, m := range status {
		if m.IsApplied {
			applied++
		}
	}
	log.Info("migrations completed", "new", n, "applied", applied, "total", len(status))
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REDIS
// ══════════════════════════════════════════════════════════════════════════════

// OpenRedis connects to Redis with startup retries. It returns nil, nil when
// Redis is disabled.
func OpenRedis(ctx context.Context, cfg config.RedisConfig, log *slog.Logger) (*redis.Cache, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	rcfg := redis.DefaultConfig(cfg.URL)
	rcfg.PoolSize = cfg.PoolSize
	rcfg.MinIdleConns = cfg.MinIdleConns
	rcfg.DialTimeout = cfg.DialTimeout
	rcfg.ReadTimeout = cfg.ReadTimeout
	rcfg.WriteTimeout = cfg.WriteTimeout
	if cfg.Namespace != "" {
		rcfg.Namespace = cfg.Namespace
	}

	log.Info("connecting to Redis...")
	cache, err := retry.DoWithData(ctx, startupRetrier(log, "redis"), func(ctx context.Context) (*redis.Cache, error) {
		return redis.NewCache(ctx, rcfg)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Info("Redis connection established")
	return cache, nil
}

func startupRetrier(log *slog.Logger, target string) *retry.Retrier {
	return retry.New(retry.StartupConfig(), retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
		log.Warn("dependency not ready, retrying",
			"target", target,
			"attempt", attempt,
			"delay", delay.String(),
			"error", err,
		)
	}))
}
