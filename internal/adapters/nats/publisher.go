package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/supportyourlocal/mapdir/internal/core/domain"
)

// Subjects and stream for directory events.
const (
	StreamName             = "DIRECTORY_EVENTS"
	SubjectClickedPrefix   = "directory.business.clicked."
	SubjectChangedPrefix   = "directory.business.changed."
	SubjectClickedWildcard = SubjectClickedPrefix + "*"
	SubjectChangedWildcard = SubjectChangedPrefix + "*"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// Connect opens a NATS connection that keeps reconnecting in the background.
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}

// NewPublisher connects to NATS and ensures the directory stream exists.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if err := ensureStream(js); err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, js: js}, nil
}

func ensureStream(js nats.JetStreamContext) error {
	cfg := &nats.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{"directory.business.>"},
		Retention: nats.InterestPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(cfg); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(cfg); err != nil {
			return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}
	return nil
}

// PublishBusinessClicked announces a recorded click.
func (p *Publisher) PublishBusinessClicked(ctx context.Context, event *domain.BusinessClicked) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectClickedPrefix+event.BusinessID, data, nats.Context(ctx))
	return err
}

// PublishBusinessChanged tells API instances a record was edited elsewhere.
func (p *Publisher) PublishBusinessChanged(ctx context.Context, businessID string) error {
	_, err := p.js.Publish(SubjectChangedPrefix+businessID, []byte(businessID), nats.Context(ctx))
	return err
}

// Conn exposes the underlying connection for plain subscriptions.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}
