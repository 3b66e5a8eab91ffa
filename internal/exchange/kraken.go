package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"sentinel/internal/model"
)

const krakenURL = "wss://ws.kraken.com"

// Kraken names bitcoin XBT.
var krakenAliases = map[string]string{"BTC": "XBT"}

// KrakenClient implements the ExchangeClient interface for Kraken.
type KrakenClient struct {
	logger *slog.Logger
	url    string
	// kraken pair (XBT/EUR) -> canonical pair (BTC/EUR)
	pairs map[string]string
}

// NewKrakenClient creates a new KrakenClient for the given "BASE/QUOTE" pairs.
func NewKrakenClient(logger *slog.Logger, pairs []string) *KrakenClient {
	k := &KrakenClient{logger: logger, url: krakenURL, pairs: make(map[string]string)}
	for _, pair := range pairs {
		k.pairs[krakenPair(pair)] = model.NormalizeSymbol(pair)
	}
	return k
}

func krakenPair(pair string) string {
	parts := strings.SplitN(model.NormalizeSymbol(pair), "/", 2)
	for i, p := range parts {
		if alias, ok := krakenAliases[p]; ok {
			parts[i] = alias
		}
	}
	return strings.Join(parts, "/")
}

func (k *KrakenClient) GetName() string {
	return "kraken"
}

// StartStream subscribes to the Kraken ticker channel and sends a tick per
// update until ctx is cancelled.
func (k *KrakenClient) StartStream(ctx context.Context, priceChan chan<- model.PriceTick) error {
	s := &session{
		name:      "KrakenClient",
		url:       k.url,
		logger:    k.logger,
		subscribe: k.subscribe,
		decode:    k.parseMessage,
	}
	return s.run(ctx, priceChan)
}

func (k *KrakenClient) subscribe(c *websocket.Conn) error {
	pairs := make([]string, 0, len(k.pairs))
	for p := range k.pairs {
		pairs = append(pairs, p)
	}
	return c.WriteJSON(map[string]interface{}{
		"event": "subscribe",
		"pair":  pairs,
		"subscription": map[string]string{
			"name": "ticker",
		},
	})
}

type krakenTicker struct {
	Ask []string `json:"a"`
	Bid []string `json:"b"`
}

// parseMessage handles both event objects and ticker arrays of the form
// [channelID, {"a": [...], "b": [...]}, "ticker", "XBT/EUR"].
func (k *KrakenClient) parseMessage(message []byte) ([]model.PriceTick, error) {
	message = bytes.TrimSpace(message)
	if len(message) == 0 || message[0] != '[' {
		var event struct {
			Event        string `json:"event"`
			Status       string `json:"status"`
			ErrorMessage string `json:"errorMessage"`
		}
		if err := json.Unmarshal(message, &event); err != nil {
			return nil, errors.Wrap(err, "decode event")
		}
		if event.Status == "error" {
			return nil, errors.Errorf("subscription rejected: %s", event.ErrorMessage)
		}
		if event.Event == "subscriptionStatus" {
			k.logger.Info("KrakenClient: subscription confirmed", "status", event.Status)
		}
		return nil, nil
	}

	var frame []json.RawMessage
	if err := json.Unmarshal(message, &frame); err != nil {
		return nil, errors.Wrap(err, "decode frame")
	}
	if len(frame) < 4 {
		return nil, errors.Errorf("short ticker frame (%d elements)", len(frame))
	}

	var channel, krakenName string
	if err := json.Unmarshal(frame[len(frame)-2], &channel); err != nil || channel != "ticker" {
		return nil, nil
	}
	if err := json.Unmarshal(frame[len(frame)-1], &krakenName); err != nil {
		return nil, errors.Wrap(err, "decode pair")
	}
	pair, ok := k.pairs[krakenName]
	if !ok {
		return nil, errors.Errorf("unexpected pair %q", krakenName)
	}

	var ticker krakenTicker
	if err := json.Unmarshal(frame[1], &ticker); err != nil {
		return nil, errors.Wrap(err, "decode ticker")
	}
	if len(ticker.Bid) == 0 || len(ticker.Ask) == 0 {
		return nil, errors.New("ticker without bid or ask")
	}

	bid, err := strconv.ParseFloat(ticker.Bid[0], 64)
	if err != nil {
		return nil, errors.Wrap(err, "parse bid price")
	}
	ask, err := strconv.ParseFloat(ticker.Ask[0], 64)
	if err != nil {
		return nil, errors.Wrap(err, "parse ask price")
	}

	return []model.PriceTick{{Exchange: k.GetName(), Pair: pair, Bid: bid, Ask: ask}}, nil
}
