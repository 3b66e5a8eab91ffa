package exchange

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"sentinel/internal/model"
)

const (
	minBackoff = time.Second
	maxBackoff = 16 * time.Second
)

// ExchangeClient defines the standard interface for all exchange clients.
type ExchangeClient interface {
	GetName() string
	StartStream(ctx context.Context, priceChan chan<- model.PriceTick) error
}

// session is one websocket connection's lifecycle: an optional subscription
// followed by message decoding.
type session struct {
	name      string
	url       string
	logger    *slog.Logger
	subscribe func(c *websocket.Conn) error
	decode    func(message []byte) ([]model.PriceTick, error)
}

// run keeps a connection open until ctx is cancelled, reconnecting with
// exponential backoff.
func (s *session) run(ctx context.Context, priceChan chan<- model.PriceTick) error {
	backoff := minBackoff
	for {
		if ctx.Err() != nil {
			s.logger.Info(s.name + ": context cancelled, shutting down")
			return nil
		}

		s.logger.Info(s.name+": connecting to WebSocket", "url", s.url, "backoff", backoff)
		err := s.serve(ctx, priceChan, func() { backoff = minBackoff })
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Error(s.name+": connection lost", "error", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

func (s *session) serve(ctx context.Context, priceChan chan<- model.PriceTick, connected func()) error {
	c, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return errors.Wrap(err, "dial")
	}
	defer c.Close()

	// unblock ReadMessage on shutdown
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	if s.subscribe != nil {
		if err := s.subscribe(c); err != nil {
			return errors.Wrap(err, "subscribe")
		}
	}
	connected()
	s.logger.Info(s.name + ": connected successfully")

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "read message")
		}

		ticks, err := s.decode(message)
		if err != nil {
			s.logger.Warn(s.name+": failed to parse message", "error", err)
			continue
		}

		for _, tick := range ticks {
			tick.ReceivedAt = time.Now()
			select {
			case priceChan <- tick:
				s.logger.Debug(s.name+": sent price tick", "pair", tick.Pair, "bid", tick.Bid, "ask", tick.Ask)
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
