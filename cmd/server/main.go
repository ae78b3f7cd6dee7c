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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/iliyamo/bus-seat-reservation/internal/broadcast"
	"github.com/iliyamo/bus-seat-reservation/internal/catalog"
	"github.com/iliyamo/bus-seat-reservation/internal/config"
	"github.com/iliyamo/bus-seat-reservation/internal/database"
	"github.com/iliyamo/bus-seat-reservation/internal/handler"
	"github.com/iliyamo/bus-seat-reservation/internal/logger"
	"github.com/iliyamo/bus-seat-reservation/internal/metrics"
	"github.com/iliyamo/bus-seat-reservation/internal/middleware"
	"github.com/iliyamo/bus-seat-reservation/internal/queue"
	"github.com/iliyamo/bus-seat-reservation/internal/repository"
	"github.com/iliyamo/bus-seat-reservation/internal/router"
	"github.com/iliyamo/bus-seat-reservation/internal/seatstore"
	"github.com/iliyamo/bus-seat-reservation/internal/upload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log, err := logger.New(cfg.App.Env, cfg.Log.Level)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Load(cfg.Catalog.File)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store := seatstore.New(cat.Lookup,
		seatstore.WithHoldTTL(cfg.Hold.TTL),
		seatstore.WithWatchWindow(cfg.Broadcast.WatchWindow),
		seatstore.WithLogger(log.Named("seatstore")),
		seatstore.WithObserver(m),
	)

	seats := handler.NewSeatHandler(store, cat, cfg.JWT.BcryptCost, log.Named("seats"))
	uploads, err := upload.NewStore(cfg.Upload.Dir, cfg.Upload.MaxBytes, cfg.Upload.AllowedTypes)
	if err != nil {
		return err
	}
	files := handler.NewUploadHandler(uploads, store, cfg.Upload.MaxBytes, log.Named("upload"))

	var background []func(context.Context)

	if cfg.DB.Enabled() {
		db, err := database.Open(ctx, cfg.DB)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		states := repository.NewSeatStateRepo(db)
		if err := store.Load(ctx, states); err != nil {
			return err
		}
		bookings := repository.NewBookingRepo(db)
		seats.Bookings = bookings
		seats.Reader = bookings
		files.Files = bookings
		background = append(background, func(ctx context.Context) {
			store.RunPersister(ctx, states, cfg.DB.FlushInterval)
		})
		log.Info("mysql persistence enabled", zap.String("host", cfg.DB.Host), zap.String("db", cfg.DB.Name))
	} else {
		log.Warn("DB_HOST not set, seat state is kept in memory only")
	}

	if cfg.RabbitMQ.URL != "" {
		seats.Events = queue.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, log.Named("rabbitmq"))
		consumer := queue.NewConsumer(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, cfg.RabbitMQ.LogFile, log.Named("booking-consumer"))
		background = append(background, func(ctx context.Context) { _ = consumer.Run(ctx) })
	} else {
		log.Warn("RABBITMQ_URL not set, booking events are disabled")
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
		pub := broadcast.NewRedisPublisher(rdb, cfg.Broadcast.Channel)
		b := broadcast.New(store, pub,
			broadcast.WithInterval(cfg.Broadcast.Interval),
			broadcast.WithMaxTrips(cfg.Broadcast.MaxTrips),
			broadcast.WithLogger(log.Named("broadcast")),
			broadcast.WithObserver(m),
		)
		background = append(background, b.Run)
	} else {
		log.Warn("redis unavailable, broadcast, rate limiting and caching are disabled", zap.String("addr", cfg.Redis.Address()))
	}

	background = append(background, func(ctx context.Context) {
		store.RunSweeper(ctx, cfg.Hold.SweepInterval)
	})

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log.Named("http"), m))

	router.RegisterRoutes(e, echo.WrapHandler(m.Handler()))
	router.RegisterSession(e, handler.NewSessionHandler(cfg.JWT.Secret, cfg.JWT.SessionTTL, log.Named("session")))
	router.RegisterCatalog(e, handler.NewCatalogHandler(cat, store), middleware.NewRedisCache(cfg.Cache, rdb))
	router.RegisterSeats(e, seats, files, cfg.JWT.Secret, middleware.NewTokenBucket(cfg.RateLimit, rdb, log.Named("ratelimit")))

	bgCtx, cancelBg := context.WithCancel(context.Background())
	done := make(chan struct{}, len(background))
	for _, fn := range background {
		go func(fn func(context.Context)) {
			defer func() { done <- struct{}{} }()
			fn(bgCtx)
		}(fn)
	}

	addr := ":" + cfg.App.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.App.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	// stopping the background loops flushes pending seat state
	cancelBg()
	for range background {
		select {
		case <-done:
		case <-shutdownCtx.Done():
			log.Warn("background workers did not stop in time")
			return runErr
		}
	}
	return runErr
}
