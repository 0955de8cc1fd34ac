package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/iliyamo/restaurant-reservation/internal/booking"
	"github.com/iliyamo/restaurant-reservation/internal/config"
	"github.com/iliyamo/restaurant-reservation/internal/handler"
	"github.com/iliyamo/restaurant-reservation/internal/middleware"
	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/queue"
	"github.com/iliyamo/restaurant-reservation/internal/repository"
	"github.com/iliyamo/restaurant-reservation/internal/router"
	"github.com/iliyamo/restaurant-reservation/internal/service"
)

func newServeCmd() *cobra.Command {
	var (
		migrateUp   bool
		consume     bool
		eventLogDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			slog.SetDefault(logger)

			cfg := config.Load()
			bcfg := config.LoadBookingConfig()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			st, err := openStores(ctx, cfg, migrateUp)
			if err != nil {
				return err
			}
			defer st.Close()

			if n, err := st.Tokens.PurgeExpired(ctx, time.Now().UTC()); err != nil {
				logger.Warn("purge expired refresh tokens", "err", err)
			} else if n > 0 {
				logger.Info("purged expired refresh tokens", "count", n)
			}
			seedAdmin(ctx, logger, st, cfg)

			rdb := config.NewRedisClient(ctx)
			if rdb == nil {
				logger.Warn("redis unavailable; slot cache and rate limiting disabled")
			} else {
				defer func() { _ = rdb.Close() }()
			}
			cache := middleware.NewSlotCache(config.LoadCacheConfig(), rdb, bcfg.Location)

			opts := booking.Options{
				MaxCapacity: bcfg.MaxCapacity,
				MaxAttempts: bcfg.MaxAttempts,
				Cache:       cache,
				Logger:      logger,
			}
			if cfg.RabbitMQURL != "" {
				opts.Events = service.NewPublisher(cfg.RabbitMQURL)
				if consume {
					c := &queue.Consumer{URL: cfg.RabbitMQURL, Dir: eventLogDir, Logger: logger}
					go func() {
						if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
							logger.Error("reservation consumer stopped", "err", err)
						}
					}()
				}
			} else {
				logger.Info("RABBITMQ_URL not set; reservation events disabled")
			}
			svc := booking.NewService(st.Reservations, bcfg.Rules(), opts)

			e := newEcho(logger)
			router.RegisterRoutes(e, readinessChecks(st, rdb))
			router.RegisterPublic(e,
				handler.NewReservationHandler(svc, time.Now, logger),
				cache.Middleware(),
				middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
			router.RegisterAuth(e, handler.NewAuthHandler(cfg, st.Users, st.Tokens), cfg.JWTSecret)
			router.RegisterAdmin(e, handler.NewAdminReservationHandler(svc, time.Now, logger), cfg.JWTSecret)

			addr := ":" + cfg.Port
			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", "addr", addr, "env", cfg.Env, "storage", cfg.Storage,
					"max_capacity", bcfg.MaxCapacity, "tz", bcfg.Location.String())
				errCh <- e.Start(addr)
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
			defer stop()
			return e.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	cmd.Flags().BoolVar(&consume, "consume-events", true, "run the reservation event consumer in-process")
	cmd.Flags().StringVar(&eventLogDir, "event-log-dir", "logs", "directory of the reservation event log")
	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}

func newEcho(logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method, "uri", v.URI, "status", v.Status,
				"latency_ms", v.Latency.Milliseconds(), "request_id", v.RequestID,
			}
			if v.Error != nil {
				logger.LogAttrs(c.Request().Context(), slog.LevelError, "request", slog.Group("http", attrs...), slog.String("err", v.Error.Error()))
				return nil
			}
			logger.LogAttrs(c.Request().Context(), slog.LevelInfo, "request", slog.Group("http", attrs...))
			return nil
		},
	}))
	return e
}

func readinessChecks(st *stores, rdb *redis.Client) map[string]handler.Check {
	checks := map[string]handler.Check{}
	if st.DB != nil {
		checks["mysql"] = st.DB.PingContext
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return checks
}

// seedAdmin creates the ADMIN_EMAIL account on startup when it does not
// exist yet.  The memory driver has no other way to get an admin.
func seedAdmin(ctx context.Context, logger *slog.Logger, st *stores, cfg config.Config) {
	email, password := os.Getenv("ADMIN_EMAIL"), os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		return
	}
	id, err := st.Users.Create(ctx, email, password, model.RoleAdmin, cfg.BcryptCost)
	switch {
	case errors.Is(err, repository.ErrEmailExists):
	case err != nil:
		logger.Error("seed admin", "email", email, "err", err)
	default:
		logger.Info("seeded admin account", "email", email, "id", id)
	}
}
