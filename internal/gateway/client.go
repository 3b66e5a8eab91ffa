// Package gateway is the HTTP client for the remote account gateway.
//
// Every call owns its own bounded timeout. Non-critical resources (trades and
// signals) degrade to an empty list on failure so one slow resource never
// aborts the others.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"sentinel/internal/config"
	"sentinel/internal/model"
)

var (
	// ErrUnexpectedStatus is returned when the gateway answers with a non-2xx code.
	ErrUnexpectedStatus = errors.New("unexpected gateway status")
	// ErrMalformedResponse is returned when a response body cannot be decoded.
	ErrMalformedResponse = errors.New("malformed gateway response")
)

const (
	pathStatus        = "/api/status"
	pathPortfolio     = "/api/portfolio"
	pathTrades        = "/api/trades"
	pathSignals       = "/api/signals"
	pathEmergencyStop = "/api/emergency-stop"

	maxBodyBytes = 4 << 20
)

// Client talks to the account gateway.
type Client struct {
	logger         *slog.Logger
	http           *http.Client
	baseURL        string
	requestTimeout time.Duration
	toggleTimeout  time.Duration
	maxTrades      int
}

// NewClient creates a gateway client from the monitor settings.
func NewClient(logger *slog.Logger, cfg config.MonitorConfig) *Client {
	return &Client{
		logger:         logger,
		http:           &http.Client{},
		baseURL:        strings.TrimRight(cfg.GatewayURL, "/"),
		requestTimeout: cfg.RequestTimeout,
		toggleTimeout:  cfg.ToggleTimeout,
		maxTrades:      cfg.MaxTrades,
	}
}

// Portfolio fetches the account balances. Failures are returned to the caller.
func (c *Client) Portfolio(ctx context.Context) ([]model.Asset, error) {
	body, err := c.do(ctx, http.MethodGet, pathPortfolio, nil, c.requestTimeout)
	if err != nil {
		return nil, err
	}
	assets, err := model.DecodeAssets(body)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedResponse, "portfolio: %v", err)
	}
	return assets, nil
}

// Trades fetches the recent trade history, or an empty list on failure.
func (c *Client) Trades(ctx context.Context) []model.Trade {
	body, err := c.do(ctx, http.MethodGet, pathTrades, nil, c.requestTimeout)
	if err != nil {
		c.logger.Warn("Gateway: trades unavailable, using empty list", "error", err)
		return []model.Trade{}
	}
	trades, err := model.DecodeTrades(body, c.maxTrades)
	if err != nil {
		c.logger.Warn("Gateway: trades malformed, using empty list", "error", err)
		return []model.Trade{}
	}
	return trades
}

// Signals fetches the advisory signals, or an empty list on failure.
func (c *Client) Signals(ctx context.Context) []model.Signal {
	body, err := c.do(ctx, http.MethodGet, pathSignals, nil, c.requestTimeout)
	if err != nil {
		c.logger.Warn("Gateway: signals unavailable, using empty list", "error", err)
		return []model.Signal{}
	}
	signals, err := model.DecodeSignals(body)
	if err != nil {
		c.logger.Warn("Gateway: signals malformed, using empty list", "error", err)
		return []model.Signal{}
	}
	return signals
}

// Status fetches the operational status. On failure it returns the fallback
// status (not stopped) together with the error, so callers decide whether the
// fallback may be trusted.
func (c *Client) Status(ctx context.Context) (model.Status, error) {
	fallback := model.Status{IsEmergencyStopped: false}

	body, err := c.do(ctx, http.MethodGet, pathStatus, nil, c.requestTimeout)
	if err != nil {
		return fallback, err
	}
	status, err := model.DecodeStatus(body)
	if err != nil {
		return fallback, errors.Wrapf(ErrMalformedResponse, "status: %v", err)
	}
	return status, nil
}

// SetEmergencyStop asks the gateway to set the emergency stop flag and returns
// its authoritative answer.
func (c *Client) SetEmergencyStop(ctx context.Context, stop bool) (model.StopResponse, error) {
	payload, err := json.Marshal(model.StopRequest{Stop: stop})
	if err != nil {
		return model.StopResponse{}, errors.Wrap(err, "encode stop request")
	}

	body, err := c.do(ctx, http.MethodPost, pathEmergencyStop, payload, c.toggleTimeout)
	if err != nil {
		return model.StopResponse{}, err
	}
	resp, err := model.DecodeStopResponse(body)
	if err != nil {
		return model.StopResponse{}, errors.Wrapf(ErrMalformedResponse, "emergency-stop: %v", err)
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, errors.Wrapf(err, "build request %s %s", method, path)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	c.logger.Debug("Gateway: response received",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"requestId", requestID,
		"latency", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Wrapf(ErrUnexpectedStatus, "%s %s: %d", method, path, resp.StatusCode)
	}
	return body, nil
}
