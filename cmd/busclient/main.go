package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/iliyamo/bus-seat-reservation/internal/broadcast"
	"github.com/iliyamo/bus-seat-reservation/internal/catalog"
	"github.com/iliyamo/bus-seat-reservation/internal/config"
	"github.com/iliyamo/bus-seat-reservation/internal/logger"
	"github.com/iliyamo/bus-seat-reservation/internal/reservation"
	"github.com/iliyamo/bus-seat-reservation/internal/session"
	"github.com/iliyamo/bus-seat-reservation/internal/tui"
	"github.com/iliyamo/bus-seat-reservation/internal/upload"
)

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	flags := pflag.NewFlagSet("busclient", pflag.ExitOnError)
	flags.StringVarP(&cfg.ServerURL, "server", "s", cfg.ServerURL, "seat server base URL")
	flags.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "redis address for live seat updates (empty polls the server)")
	flags.StringVar(&cfg.Channel, "channel", cfg.Channel, "redis channel carrying seat updates")
	flags.DurationVar(&cfg.PollEvery, "poll", cfg.PollEvery, "seat map refresh interval when redis is not used")
	flags.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "log file")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	_ = flags.Parse(os.Args[1:])

	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *config.Client) error {
	// the terminal belongs to the UI, so logs go to a file
	log, err := logger.NewFile(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res := reservation.NewClient(cfg.ServerURL, reservation.WithLogger(log.Named("reservation")))
	startCtx, startCancel := context.WithTimeout(ctx, 10*time.Second)
	sess, err := res.StartSession(startCtx)
	startCancel()
	if err != nil {
		return fmt.Errorf("start session at %s: %w", cfg.ServerURL, err)
	}
	log.Info("session started", zap.String("session_id", sess.SessionID), zap.Time("expires_at", sess.ExpiresAt))

	s := session.New(
		catalog.NewClient(cfg.ServerURL, nil),
		res,
		session.WithLogger(log.Named("session")),
		session.WithUploader(upload.NewClient(cfg.ServerURL, res.Token, nil)),
	)
	go func() {
		if err := s.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("session loop", zap.Error(err))
		}
	}()

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		sub := broadcast.NewRedisSubscriber(rdb, cfg.Channel, log.Named("broadcast"))
		go func() {
			if err := sub.Run(ctx, s.Snapshots()); err != nil && ctx.Err() == nil {
				log.Warn("seat updates unavailable, polling instead", zap.Error(err))
				poll(ctx, s, cfg.PollEvery)
			}
		}()
	} else {
		go poll(ctx, s, cfg.PollEvery)
	}

	_, err = tea.NewProgram(tui.New(s), tea.WithAltScreen()).Run()
	return err
}

// poll re-fetches the active seat map until ctx is done.
func poll(ctx context.Context, s *session.Session, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Refresh()
		}
	}
}
