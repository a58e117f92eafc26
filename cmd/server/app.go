package main

import (
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/venue-reservation/internal/config"
	"github.com/iliyamo/venue-reservation/internal/database"
	"github.com/iliyamo/venue-reservation/internal/logger"
	"github.com/iliyamo/venue-reservation/internal/metrics"
	"github.com/iliyamo/venue-reservation/internal/repository"
	"github.com/iliyamo/venue-reservation/internal/service"
	"github.com/iliyamo/venue-reservation/internal/worker"
)

// defaultGradeTTL bounds how long the default grade is cached in-process.
const defaultGradeTTL = 5 * time.Minute

// app holds the dependencies shared by the serve and sweep commands.
type app struct {
	cfg       config.Config
	log       zerolog.Logger
	db        *sql.DB
	rdb       *redis.Client
	metrics   *metrics.Metrics
	publisher *service.AMQPPublisher
	svc       *service.ReservationService
}

// newApp loads configuration and opens the database, redis and broker
// connections.  Redis and the broker are optional: without redis the
// limiter and sweep lock run locally or on MySQL, and without events the
// lifecycle simply publishes nothing.
func newApp(reg prometheus.Registerer) (*app, error) {
	cfg := config.Load()
	log := logger.New(logger.Config{Level: cfg.LogLevel, Env: cfg.Env, Service: "venue-reservation"})

	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, db: db}
	if cfg.MetricsEnabled && reg != nil {
		a.metrics = metrics.NewMetrics(reg, "venue", "reservations")
	}

	a.rdb = config.NewRedisClient(config.LoadRedisConfig())
	if a.rdb == nil {
		log.Warn().Msg("redis unavailable; using local rate limiting, no response cache and a MySQL sweep lock")
	}

	var pub service.Publisher
	if cfg.Events.Enabled {
		a.publisher = service.NewAMQPPublisher(cfg.Events.URL, cfg.Events.Queue, log)
		pub = a.publisher
	}

	store := repository.NewStore(db, defaultGradeTTL)
	a.svc = service.NewReservationService(store, cfg.Booking, pub, log, a.metrics)
	return a, nil
}

// sweeper builds the expiry sweeper with a redis lock when redis is up
// and a MySQL advisory lock otherwise.
func (a *app) sweeper() *worker.ExpirySweeper {
	var locker worker.Locker
	if a.rdb != nil {
		locker = worker.NewRedisLocker(a.rdb, a.cfg.Sweeper.LockName, a.cfg.Sweeper.LockTTL)
	} else {
		locker = worker.NewMySQLLocker(a.db, a.cfg.Sweeper.LockName)
	}
	return worker.NewExpirySweeper(a.svc, locker, a.cfg.Sweeper.Interval, a.log, a.metrics)
}

func (a *app) Close() {
	if a.publisher != nil {
		_ = a.publisher.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	_ = a.db.Close()
}
