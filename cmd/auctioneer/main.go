package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/auctionroom/config"
	"github.com/alejandrodnm/auctionroom/internal/adapters/broadcast"
	"github.com/alejandrodnm/auctionroom/internal/adapters/clock"
	"github.com/alejandrodnm/auctionroom/internal/adapters/seed"
	"github.com/alejandrodnm/auctionroom/internal/adapters/storage"
	"github.com/alejandrodnm/auctionroom/internal/adapters/ws"
	"github.com/alejandrodnm/auctionroom/internal/application/auction"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	demo := flag.Bool("demo", false, "run a seeded auction end to end with bot bidders and exit")
	demoSeed := flag.String("demo-seed", "seeds/demo.yaml", "setup file for -demo")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !*demo || !errors.Is(err, os.ErrNotExist) {
			slog.Error("failed to load config", "err", err, "path", *configPath)
			os.Exit(1)
		}
		cfg = config.Default()
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *demo {
		if err := runDemo(ctx, cfg, *demoSeed); err != nil {
			slog.Error("demo failed", "err", err)
			os.Exit(1)
		}
		return
	}

	slog.Info("auctioneer starting",
		"config", *configPath,
		"addr", cfg.Server.Addr,
		"storage", cfg.Storage.Driver,
	)

	if err := serve(ctx, cfg); err != nil {
		slog.Error("auctioneer exited with error", "err", err)
		os.Exit(1)
	}
	slog.Info("auctioneer stopped cleanly")
}

func serve(ctx context.Context, cfg *config.Config) error {
	store, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	hub := broadcast.NewHub()
	reg := auction.NewRegistry(auction.RegistryConfig{
		Clock:           clock.System{},
		Publisher:       hub,
		Store:           store,
		PersistAttempts: cfg.Storage.PersistAttempts,
		PersistBackoff:  cfg.Storage.PersistBackoff,
	})

	n, err := reg.RestoreAll(ctx)
	if err != nil {
		return err
	}
	slog.Info("auctions restored", "count", n)

	for _, path := range cfg.Server.SeedFiles {
		setup, err := seed.LoadFile(path, cfg.Auction)
		if err != nil {
			return err
		}
		if _, err := reg.Get(setup.ID); err == nil {
			continue
		}
		if _, err := reg.Create(ctx, setup); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: ws.NewServer(reg, ws.Config{
			BidInterval:      cfg.Server.BidDebounce,
			SubscriberBuffer: cfg.Server.SubscriberBuffer,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("http: listening", "addr", srv.Addr, "auctions", reg.IDs())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		// hijacked websocket connections are not tracked by Shutdown
		herr := srv.Shutdown(shutdownCtx)
		rerr := reg.Shutdown(shutdownCtx)
		return errors.Join(herr, rerr)
	})
	return g.Wait()
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
