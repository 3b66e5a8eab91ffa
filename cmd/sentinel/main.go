package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"sentinel/internal/api"
	"sentinel/internal/config"
	"sentinel/internal/database"
	"sentinel/internal/emergency"
	"sentinel/internal/fetcher"
	"sentinel/internal/gateway"
	"sentinel/internal/metrics"
	"sentinel/internal/oplog"
	"sentinel/internal/syncloop"
)

func main() {
	configDir := flag.String("config-dir", ".", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()}))
	logger.Info("Sentinel: starting", "gateway", cfg.Monitor.GatewayURL, "interval", cfg.Monitor.PollInterval)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := gateway.NewClient(logger, cfg.Monitor)
	journal := oplog.New(oplog.DefaultCapacity)
	controller := emergency.NewController(logger, client, journal, cfg.Monitor.ToggleTimeout)
	loop := syncloop.New(logger, fetcher.New(logger, client, cfg.Monitor.MaxSignals), controller, cfg.Monitor.PollInterval)
	facade := api.NewServer(logger, cfg.Facade, cfg.Monitor.BaseCurrency, loop, controller, journal)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Database.Enabled {
		repo, err := database.NewPostgresRepository(ctx, cfg.Database.DSN())
		if err != nil {
			logger.Error("Sentinel: cannot connect to journal database", "error", err)
			os.Exit(1)
		}
		defer repo.Close()
		if err := repo.Migrate(ctx); err != nil {
			logger.Error("Sentinel: cannot migrate journal database", "error", err)
			os.Exit(1)
		}

		recorder := database.NewRecorder(logger, repo, 0)
		journal.Observe(recorder.RecordEntry)
		loop.OnUpdate(func(s syncloop.State) {
			summary := metrics.Summarize(s.Snapshot.Assets, cfg.Monitor.BaseCurrency)
			recorder.RecordSample(database.Sample{
				TakenAt:      s.LastAttempt,
				Connected:    s.Connected,
				Halted:       controller.Halted(),
				TotalValue:   summary.TotalValue.InexactFloat64(),
				CashBalance:  summary.CashBalance.InexactFloat64(),
				HoldingsPnL:  summary.HoldingsPnL.InexactFloat64(),
				AggregateROI: summary.AggregateROI.InexactFloat64(),
				AssetCount:   len(s.Snapshot.Assets),
			})
		})
		g.Go(func() error { return recorder.Run(gctx) })
		logger.Info("Sentinel: audit journal enabled", "host", cfg.Database.Host, "db", cfg.Database.DBName)
	}

	loop.OnUpdate(func(syncloop.State) { facade.Publish() })

	g.Go(func() error { return facade.Start(gctx) })
	g.Go(func() error {
		loop.Start(gctx)
		<-gctx.Done()
		loop.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Sentinel: stopped with error", "error", err)
		stop()
		os.Exit(1)
	}
	logger.Info("Sentinel: shut down")
}
