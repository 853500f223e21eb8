package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const (
	reconnectDelay   = 5 * time.Second
	statsLogInterval = 30 * time.Second
)

// Subscriber connects to the platform's gateway event stream and feeds
// inbound events through the per-sender dispatcher.
type Subscriber struct {
	url     string
	token   string
	handler Handler
	logger  *slog.Logger
}

// NewSubscriber creates a gateway subscriber.
func NewSubscriber(gatewayURL, token string, handler Handler, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		url:     gatewayURL,
		token:   token,
		handler: handler,
		logger:  logger,
	}
}

// Start connects to the gateway and processes events until the context is
// cancelled. It automatically reconnects on transient errors.
func (s *Subscriber) Start(ctx context.Context) error {
	dispatch := newDispatcher(ctx, s.handler, s.logger)
	defer dispatch.close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := s.subscribe(ctx, dispatch); err != nil {
				s.logger.Error("gateway connection error, reconnecting", "error", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(reconnectDelay):
					// backoff before reconnecting
				}
			}
		}
	}
}

func (s *Subscriber) buildURL() (string, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return "", fmt.Errorf("parse gateway url: %w", err)
	}
	q := u.Query()
	q.Set("token", s.token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *Subscriber) subscribe(ctx context.Context, dispatch *dispatcher) error {
	wsURL, err := s.buildURL()
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	defer conn.Close()

	s.logger.Info("connected to gateway")

	var eventsReceived, eventsDropped int64
	lastStatsLog := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		event, err := parseEvent(message)
		if err != nil {
			eventsDropped++
			s.logger.Error("failed to parse event", "error", err)
			continue
		}

		eventsReceived++
		dispatch.dispatch(event)

		if time.Since(lastStatsLog) >= statsLogInterval {
			s.logger.Info("gateway stats",
				"events_received", eventsReceived,
				"events_dropped", eventsDropped,
			)
			lastStatsLog = time.Now()
		}
	}
}
