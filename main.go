package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ms-topup/internal/analytics"
	analytics_api "ms-topup/internal/analytics/api"
	"ms-topup/internal/auth"
	"ms-topup/internal/config"
	"ms-topup/internal/database/migrations"
	"ms-topup/internal/kafka"
	"ms-topup/internal/logger"
	"ms-topup/internal/metrics"
	"ms-topup/internal/order"
	"ms-topup/internal/order/db"
	"ms-topup/internal/order/discount"
	orderkafka "ms-topup/internal/order/kafka"
	"ms-topup/internal/order/order_api"
	rediswrap "ms-topup/internal/order/redis"
	"ms-topup/internal/sse"

	"github.com/fatih/color"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"golang.org/x/sync/errgroup"
)

func connectPostgres(cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	var sqldb *sql.DB
	var err error
	maxRetries := cfg.ConnectRetry
	if maxRetries < 1 {
		maxRetries = 1
	}

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.QueryTimeout)
		err = sqldb.PingContext(ctx)
		cancel()
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		_ = sqldb.Close()
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("postgres unreachable after %d attempts: %w", maxRetries, err)
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// connectRedis returns nil when Redis is disabled or unreachable; the
// sweeper then runs without the cluster lock.
func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	if !cfg.Enabled {
		log.Info("REDIS", "Redis disabled, expiry sweeps run without a lock")
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, DB: cfg.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Redis connection error, sweeping without a lock: %v", err))
		_ = client.Close()
		return nil
	}
	log.Info("REDIS", fmt.Sprintf("Redis connection successful to %s (DB: %d)", cfg.Addr, cfg.DB))
	return client
}

func setupEvents(cfg config.KafkaConfig, log *logger.Logger) (order.EventPublisher, func()) {
	if !cfg.Enabled {
		log.Info("KAFKA", "Kafka disabled, order events are not published")
		return nil, func() {}
	}
	log.Info("KAFKA", fmt.Sprintf("Using Kafka brokers %v", cfg.Brokers))
	if err := kafka.EnsureTopicsExist(cfg.Brokers, cfg.Topics.All()); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	} else {
		log.Info("KAFKA", "Required topics ensured successfully")
	}

	producer := kafka.NewProducer(cfg.Brokers)
	return orderkafka.NewEventPublisher(producer, cfg.Topics, log), func() {
		if err := producer.Close(); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Failed to close producer: %v", err))
		}
	}
}

func setupAuth(ctx context.Context, cfg config.AuthConfig, log *logger.Logger) (auth.Resolver, error) {
	var resolvers auth.Resolvers
	if cfg.JWTSecret != "" {
		resolvers = append(resolvers, auth.NewJWTResolver(cfg.JWTSecret, cfg.CookieName))
		log.Info("AUTH", "Session token resolver enabled")
	}
	if cfg.OIDCIssuer != "" {
		oidcResolver, err := auth.NewOIDCResolver(ctx, cfg.OIDCIssuer)
		if err != nil {
			return nil, err
		}
		resolvers = append(resolvers, oidcResolver)
		log.Info("AUTH", fmt.Sprintf("OIDC resolver enabled for %s", cfg.OIDCIssuer))
	}
	if len(resolvers) == 0 {
		return nil, errors.New("neither JWT_SECRET nor OIDC_ISSUER is set")
	}
	return resolvers, nil
}

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(logger.Options{
		Service: cfg.App.Name,
		Dir:     cfg.App.LogDir,
		Level:   logger.ParseLevel(cfg.App.Level),
		Color:   !color.NoColor,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	log.Info("APP", fmt.Sprintf("Starting %s (%s)", cfg.App.Name, cfg.App.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB, err := connectPostgres(cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB.DB, migrations.MigrateOptions{MigrationsDir: cfg.Database.MigrationsDir, AutoMigrate: true}, log)
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("MIGRATE", fmt.Sprintf("Failed to run migrations: %v", err))
		}
		// closing the runner would close the shared *sql.DB
	}

	redisClient := connectRedis(ctx, cfg.Redis, log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	kafkaEvents, closeEvents := setupEvents(cfg.Kafka, log)
	defer closeEvents()

	stream := sse.NewOrderEmitter()
	events := order.Publishers{stream}
	if kafkaEvents != nil {
		events = append(events, kafkaEvents)
	}

	resolver, err := setupAuth(ctx, cfg.Auth, log)
	if err != nil {
		log.Fatal("AUTH", err.Error())
	}

	m := metrics.New()
	gateway := db.New(bunDB, cfg.Database.QueryTimeout)
	vouchers := discount.NewEngine(gateway, log, m)
	orderService := order.NewOrderService(gateway, vouchers, events, m, log, cfg.Order)

	var sweeper *order.Sweeper
	if redisClient != nil {
		sweeper = order.NewSweeper(orderService, rediswrap.NewSweepLock(redisClient, cfg.Order.SweepLockTTL), cfg.Order.SweepInterval)
	} else {
		sweeper = order.NewSweeper(orderService, nil, cfg.Order.SweepInterval)
	}

	handler := order_api.NewHandler(orderService, log, !cfg.App.IsProduction()).WithStream(stream)
	analyticsHandler := analytics_api.NewHandler(analytics.NewService(analytics.NewDB(bunDB), log), log)
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      newRouter(cfg, handler, analyticsHandler, auth.Middleware(resolver, log), gateway, m, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP", fmt.Sprintf("Order service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("APP", fmt.Sprintf("Service stopped with error: %v", err))
		return
	}
	log.Info("APP", "Order service shutdown complete")
}
