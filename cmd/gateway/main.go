package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"sentinel/internal/backend"
	"sentinel/internal/config"
	"sentinel/internal/database"
	"sentinel/internal/exchange"
	"sentinel/internal/model"
	"sentinel/internal/pricebook"
)

// quotes older than this are not used to price wallets
const maxQuoteAge = 2 * time.Minute

func main() {
	configDir := flag.String("config-dir", ".", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	var sink pricebook.TickSink
	if cfg.Database.Enabled {
		repo, err := database.NewPostgresRepository(ctx, cfg.Database.DSN())
		if err != nil {
			logger.Error("Gateway: cannot connect to journal database", "error", err)
			os.Exit(1)
		}
		defer repo.Close()
		if err := repo.Migrate(ctx); err != nil {
			logger.Error("Gateway: cannot migrate journal database", "error", err)
			os.Exit(1)
		}
		recorder := database.NewRecorder(logger, repo, 0)
		sink = recorder
		g.Go(func() error { return recorder.Run(gctx) })
	}

	book := pricebook.New(logger, sink, maxQuoteAge)
	priceChan := make(chan model.PriceTick, 100)

	for name, exCfg := range cfg.Exchanges {
		if !exCfg.Enabled {
			continue
		}
		client, err := exchange.NewClient(name, logger, exCfg)
		if err != nil {
			logger.Error("Gateway: failed to create exchange client", "exchange", name, "error", err)
			continue
		}
		logger.Info("Gateway: starting price stream", "exchange", client.GetName(), "pairs", exCfg.Pairs)
		g.Go(func() error { return client.StartStream(gctx, priceChan) })
	}
	g.Go(func() error { return book.Consume(gctx, priceChan) })

	server := backend.NewServer(logger, cfg.Gateway, &backend.StopFlag{}, book)
	if err := server.LoadSeeds(); err != nil {
		logger.Error("Gateway: cannot load seeds", "error", err)
		os.Exit(1)
	}
	g.Go(func() error { return server.Start(gctx) })

	if err := g.Wait(); err != nil {
		logger.Error("Gateway: stopped with error", "error", err)
		stop()
		os.Exit(1)
	}
	logger.Info("Gateway: shut down")
}
