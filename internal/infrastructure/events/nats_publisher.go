package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"vaultswap.backend/internal/domain/entities"
	"vaultswap.backend/pkg/logger"
)

const defaultSubjectPrefix = "vaultswap.swap"

// Conn is the part of *nats.Conn the publisher uses
type Conn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes swap lifecycle events as JSON on
// <prefix>.<phase> subjects
type NATSPublisher struct {
	conn   Conn
	prefix string
}

// Connect dials NATS and returns a publisher plus the connection to drain on shutdown
func Connect(url, prefix string) (*NATSPublisher, *nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("vaultswap-backend"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn(context.Background(), "nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info(context.Background(), "nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect nats: %w", err)
	}
	return NewNATSPublisher(conn, prefix), conn, nil
}

func NewNATSPublisher(conn Conn, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}
	return &NATSPublisher{conn: conn, prefix: prefix}
}

// Subject returns the subject an event of the given phase goes to
func (p *NATSPublisher) Subject(phase entities.SwapPhase) string {
	return p.prefix + "." + string(phase)
}

func (p *NATSPublisher) Publish(ctx context.Context, event entities.SwapEvent) error {
	if p == nil || p.conn == nil {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode swap event: %w", err)
	}
	if err := p.conn.Publish(p.Subject(event.Phase), data); err != nil {
		return fmt.Errorf("publish %s: %w", event.Phase, err)
	}
	logger.Debug(ctx, "swap event published",
		zap.String("phase", string(event.Phase)),
		zap.String("intent_id", event.IntentID.String()),
	)
	return nil
}
