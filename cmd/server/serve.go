package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/iliyamo/venue-reservation/internal/config"
	"github.com/iliyamo/venue-reservation/internal/database"
	"github.com/iliyamo/venue-reservation/internal/handler"
	"github.com/iliyamo/venue-reservation/internal/middleware"
	"github.com/iliyamo/venue-reservation/internal/queue"
	"github.com/iliyamo/venue-reservation/internal/router"
)

func newServeCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the expiry sweeper and the event consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(prometheus.DefaultRegisterer)
			if err != nil {
				return err
			}
			defer a.Close()

			if migrateUp {
				if err := database.Migrate(ctx, a.db); err != nil {
					return err
				}
			}

			if a.cfg.Sweeper.Enabled {
				sw := a.sweeper()
				go func() { _ = sw.Run(ctx) }()
			}
			if a.cfg.Events.Enabled {
				cc := queue.ConsumerConfig{URL: a.cfg.Events.URL, Queue: a.cfg.Events.Queue}
				go func() { _ = queue.StartReservationConsumer(ctx, cc, a.log) }()
			}

			e := echo.New()
			e.HideBanner = true
			e.Validator = handler.NewRequestValidator()
			e.Use(echomw.Recover())
			e.Use(middleware.RequestLogger(a.log))
			e.Use(middleware.NewRateLimiter(config.LoadRateLimitConfig(), a.rdb, a.log).Middleware())

			router.RegisterRoutes(e, a.db, a.cfg.MetricsEnabled)
			router.RegisterPublic(e, handler.NewPublicHandler(a.svc, a.log),
				middleware.NewRedisCache(config.LoadCacheConfig(), a.rdb, a.log))
			router.RegisterCustomer(e, handler.NewCustomerHandler(a.svc, a.log), a.cfg.JWTSecret)
			router.RegisterOwnerReservations(e, handler.NewOwnerReservationHandler(a.svc, a.log), a.cfg.JWTSecret)

			addr := ":" + a.cfg.Port
			errc := make(chan error, 1)
			go func() {
				a.log.Info().Str("addr", addr).Str("env", a.cfg.Env).Msg("listening")
				if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- err
				}
			}()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}

			a.log.Info().Msg("shutting down")
			shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
			defer stop()
			return e.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", false, "apply the schema before serving")
	return cmd
}
