package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/supportyourlocal/mapdir/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
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
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeBusinessChanged delivers the id of every business changed after
// the subscription starts. Every API instance gets every message so that each
// can drop its own cache entries.
func (s *Subscriber) SubscribeBusinessChanged(ctx context.Context, handler func(ctx context.Context, businessID string) error) error {
	sub, err := s.js.Subscribe(SubjectChangedWildcard, func(msg *nats.Msg) {
		id := strings.TrimPrefix(msg.Subject, SubjectChangedPrefix)
		if id == "" {
			id = string(msg.Data)
		}
		if err := handler(ctx, id); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.DeliverNew(),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// SubscribeClicks relays click events on a plain subscription until the
// returned func is called. Malformed payloads are dropped.
func (s *Subscriber) SubscribeClicks(handler func(ev *domain.BusinessClicked)) (func(), error) {
	sub, err := s.conn.Subscribe(SubjectClickedWildcard, func(msg *nats.Msg) {
		var ev domain.BusinessClicked
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return
		}
		handler(&ev)
	})
	if err != nil {
		return nil, err
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

// Connected reports whether the connection is up.
func (s *Subscriber) Connected() bool {
	return s.conn.IsConnected()
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
