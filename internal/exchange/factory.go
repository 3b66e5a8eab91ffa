package exchange

import (
	"log/slog"

	"github.com/pkg/errors"

	"sentinel/internal/config"
)

// NewClient creates a new exchange client based on the given name and configuration.
func NewClient(name string, logger *slog.Logger, cfg config.ExchangeConfig) (ExchangeClient, error) {
	if len(cfg.Pairs) == 0 {
		return nil, errors.Errorf("exchange %s: no pairs configured", name)
	}
	switch name {
	case "kraken":
		return NewKrakenClient(logger, cfg.Pairs), nil
	case "binance":
		return NewBinanceClient(logger, cfg.Pairs), nil
	default:
		return nil, errors.Errorf("unknown exchange: %s", name)
	}
}
