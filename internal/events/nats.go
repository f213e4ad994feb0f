package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSPublisher publishes events as JSON on core NATS subjects
type NATSPublisher struct {
	conn   *nats.Conn
	logger zerolog.Logger
	now    func() time.Time
}

// ConnectNATS dials url and returns a publisher
func ConnectNATS(url string, logger zerolog.Logger) (*NATSPublisher, error) {
	if url == "" {
		return nil, errors.New("no NATS url configured")
	}

	logger = logger.With().Str("component", "events").Logger()
	conn, err := nats.Connect(url,
		nats.Name("lecture-notes"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("Disconnected from NATS")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("Reconnected to NATS")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	logger.Info().Str("url", url).Msg("Connected to NATS")
	return &NATSPublisher{conn: conn, logger: logger, now: time.Now}, nil
}

// Publish marshals ev and publishes it on ev.Subject
func (p *NATSPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.Subject == "" {
		return errors.New("event subject is empty")
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = p.now().UTC()
	}
	data, err := Encode(ev)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(ev.Subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Subject, err)
	}
	return nil
}

// Healthy reports whether the connection is up
func (p *NATSPublisher) Healthy() bool {
	return p != nil && p.conn != nil && p.conn.Status() == nats.CONNECTED
}

// Close drains pending messages and closes the connection
func (p *NATSPublisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.logger.Info().Msg("Closing NATS connection")
	_ = p.conn.Drain()
	p.conn.Close()
}

// Encode renders the wire form of ev
func Encode(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}
