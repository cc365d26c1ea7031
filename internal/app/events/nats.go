package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"fintech/internal/app/logger"
)

// Publisher interface implementation
var _ Publisher = (*NATS)(nil)

type NATS struct {
	conn *nats.Conn
}

func (p *NATS) LoggerComponent() string {
	return "Events.NATS"
}

// NewNATS connects to the server at url
func NewNATS(url string) (*NATS, error) {
	p := &NATS{}
	l := logger.Global().Component(p)

	nc, err := nats.Connect(url,
		nats.Name("fintech"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			l.Warn().Err(err).Msg("Disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			l.Info().Str("url", c.ConnectedUrl()).Msg("Reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	p.conn = nc

	l.Info().Str("url", nc.ConnectedUrl()).Msg("Connected")

	return p, nil
}

func (p *NATS) PublishTransfer(ctx context.Context, e TransferCompleted) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("json encode: %w", err)
	}

	if err := p.conn.Publish(SubjectTransferCompleted, b); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}

	l := logger.Get(ctx, p)
	l.Debug().
		Str("transaction_id", e.TransactionID).
		Msg("Transfer published")

	return nil
}

// Close flushes pending messages and closes the connection
func (p *NATS) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}
