package exchange

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"sentinel/internal/model"
)

const binanceURL = "wss://stream.binance.com:9443/stream"

// BinanceClient implements the ExchangeClient interface for Binance.
type BinanceClient struct {
	logger *slog.Logger
	url    string
	// stream symbol (BTCEUR) -> canonical pair (BTC/EUR)
	pairs map[string]string
}

// NewBinanceClient creates a new BinanceClient for the given "BASE/QUOTE" pairs.
func NewBinanceClient(logger *slog.Logger, pairs []string) *BinanceClient {
	b := &BinanceClient{logger: logger, pairs: make(map[string]string)}

	var streams []string
	for _, pair := range pairs {
		symbol := strings.ReplaceAll(model.NormalizeSymbol(pair), "/", "")
		b.pairs[symbol] = model.NormalizeSymbol(pair)
		streams = append(streams, strings.ToLower(symbol)+"@ticker")
	}
	b.url = binanceURL + "?streams=" + strings.Join(streams, "/")
	return b
}

func (b *BinanceClient) GetName() string {
	return "binance"
}

// StartStream connects to the Binance combined stream and sends a tick per
// ticker update until ctx is cancelled.
func (b *BinanceClient) StartStream(ctx context.Context, priceChan chan<- model.PriceTick) error {
	s := &session{
		name:   "BinanceClient",
		url:    b.url,
		logger: b.logger,
		decode: b.parseMessage,
	}
	return s.run(ctx, priceChan)
}

type binanceEnvelope struct {
	Stream string        `json:"stream"`
	Data   binanceTicker `json:"data"`
}

type binanceTicker struct {
	Symbol string `json:"s"`
	Bid    string `json:"b"`
	Ask    string `json:"a"`
}

func (b *BinanceClient) parseMessage(message []byte) ([]model.PriceTick, error) {
	var env binanceEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		return nil, errors.Wrap(err, "decode ticker")
	}
	if env.Data.Symbol == "" {
		return nil, nil
	}

	pair, ok := b.pairs[strings.ToUpper(env.Data.Symbol)]
	if !ok {
		return nil, errors.Errorf("unexpected symbol %q", env.Data.Symbol)
	}

	bid, err := strconv.ParseFloat(env.Data.Bid, 64)
	if err != nil {
		return nil, errors.Wrap(err, "parse bid price")
	}
	ask, err := strconv.ParseFloat(env.Data.Ask, 64)
	if err != nil {
		return nil, errors.Wrap(err, "parse ask price")
	}

	return []model.PriceTick{{Exchange: b.GetName(), Pair: pair, Bid: bid, Ask: ask}}, nil
}
