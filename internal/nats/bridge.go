package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/leadproton/server/internal/events"
	"github.com/leadproton/server/pkg/logger"
)

const (
	// StreamName is the name of the change history stream.
	StreamName = "LEADPROTON_CHANGES"

	// SubjectPrefix is the prefix for all change subjects.
	SubjectPrefix = "leadproton.changes"
)

// ChangeSubject returns the subject a change on topic is published to.
func ChangeSubject(topic string) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, topic)
}

// Bridge forwards local bus changes to NATS and republishes changes from
// other processes on the local bus.
type Bridge struct {
	client *Client
	bus    *events.Bus
	source string
	logger *logger.Logger

	mu       sync.Mutex
	durable  bool
	sub      *nats.Subscription
	unsubBus func()
}

// NewBridge creates a bridge; client may be nil in tests that drive
// Forward and Receive directly.
func NewBridge(client *Client, bus *events.Bus, log *logger.Logger) *Bridge {
	return &Bridge{
		client: client,
		bus:    bus,
		source: uuid.NewString(),
		logger: logger.OrGlobal(log).Named("nats-bridge"),
	}
}

// Source returns the id this process stamps on outgoing changes.
func (b *Bridge) Source() string {
	return b.source
}

// EnsureStream creates the change history stream if the server has
// JetStream enabled. Without it the bridge still relays over core NATS.
func (b *Bridge) EnsureStream(ctx context.Context) error {
	js := b.client.JetStream()

	if _, err := js.Stream(ctx, StreamName); err == nil {
		b.setDurable(true)
		return nil
	}

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Workspace change notifications",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	b.setDurable(true)
	return nil
}

func (b *Bridge) setDurable(v bool) {
	b.mu.Lock()
	b.durable = v
	b.mu.Unlock()
}

// Start subscribes to remote changes and begins forwarding local ones.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.EnsureStream(ctx); err != nil {
		b.logger.Warn("JetStream unavailable, relaying over core NATS", zap.Error(err))
	}

	sub, err := b.client.Conn().Subscribe(SubjectPrefix+".>", func(msg *nats.Msg) {
		b.Receive(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	b.mu.Lock()
	b.sub = sub
	b.unsubBus = b.bus.Subscribe("", func(c events.Change) {
		if err := b.Forward(context.Background(), c); err != nil {
			b.logger.Warn("failed to forward change",
				zap.String("topic", c.Topic),
				zap.Error(err),
			)
		}
	})
	b.mu.Unlock()

	b.logger.Info("change bridge started", zap.String("source", b.source))
	return nil
}

// Stop detaches the bridge from the bus and NATS.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.unsubBus != nil {
		b.unsubBus()
		b.unsubBus = nil
	}
	if b.sub != nil {
		if err := b.sub.Unsubscribe(); err != nil {
			b.logger.Debug("unsubscribe failed", zap.Error(err))
		}
		b.sub = nil
	}
}

// Forward publishes a local change. Remote changes are never re-forwarded.
func (b *Bridge) Forward(ctx context.Context, c events.Change) error {
	if c.Origin == events.OriginRemote {
		return nil
	}
	c.Source = b.source

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal change: %w", err)
	}

	b.mu.Lock()
	durable := b.durable
	b.mu.Unlock()

	subject := ChangeSubject(c.Topic)
	if durable {
		if _, err := b.client.JetStream().Publish(ctx, subject, data); err != nil {
			return fmt.Errorf("failed to publish change: %w", err)
		}
		return nil
	}
	return b.client.Conn().Publish(subject, data)
}

// Receive decodes a change from another process and republishes it locally.
// Echoes of this process's own changes are dropped.
func (b *Bridge) Receive(data []byte) {
	var c events.Change
	if err := json.Unmarshal(data, &c); err != nil {
		b.logger.Warn("dropping malformed change", zap.Error(err))
		return
	}
	if c.Source == b.source || strings.TrimSpace(c.Topic) == "" {
		return
	}
	c.Origin = events.OriginRemote
	b.bus.Publish(c)
}
