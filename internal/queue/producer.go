// Package queue publishes appended lead activities to a RabbitMQ exchange
// for downstream consumers.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/leadproton/server/internal/activity"
	"github.com/leadproton/server/internal/events"
	"github.com/leadproton/server/internal/store"
	"github.com/leadproton/server/pkg/logger"
)

// RoutingKeyPrefix is prepended to the activity type, e.g.
// "activity.email_sent".
const RoutingKeyPrefix = "activity."

const (
	publishTimeout = 5 * time.Second
	// backlogSize bounds the activities waiting for the broker.
	backlogSize = 256
)

// ActivityMessage is the body of a published activity.
type ActivityMessage struct {
	LeadID   string          `json:"leadId"`
	Activity json.RawMessage `json:"activity"`
	Origin   string          `json:"origin"`
}

// channel is the part of *amqp.Channel used by the producer.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Producer forwards activity appends from the change bus to an exchange.
type Producer struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
	logger   *logger.Logger

	unsub   func()
	backlog chan events.Change
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewProducer dials url and declares a durable topic exchange.
func NewProducer(url, exchange string, log *logger.Logger) (*Producer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	p := newProducer(ch, exchange, log)
	p.conn = conn
	return p, nil
}

func newProducer(ch channel, exchange string, log *logger.Logger) *Producer {
	return &Producer{
		ch:       ch,
		exchange: exchange,
		logger:   logger.OrGlobal(log).Named("queue"),
	}
}

// Attach subscribes the producer to activity changes on bus. Only appends
// made in this process are published so that bridged processes do not
// publish the same activity twice. Publishing happens on a worker goroutine;
// when the backlog is full new activities are dropped.
func (p *Producer) Attach(bus *events.Bus) {
	p.backlog = make(chan events.Change, backlogSize)
	p.stop = make(chan struct{})
	p.wg.Add(1)
	go p.run()

	p.unsub = bus.Subscribe(store.KeyActivityLogs, func(c events.Change) {
		if c.Kind != activity.KindAppend || c.Origin != events.OriginLocal {
			return
		}
		select {
		case p.backlog <- c:
		default:
			p.logger.Warn("activity backlog full, dropping activity", zap.String("lead_id", c.LeadID))
		}
	})
}

func (p *Producer) run() {
	defer p.wg.Done()
	for {
		select {
		case c := <-p.backlog:
			p.publishQueued(c)
		case <-p.stop:
			for {
				select {
				case c := <-p.backlog:
					p.publishQueued(c)
				default:
					return
				}
			}
		}
	}
}

func (p *Producer) publishQueued(c events.Change) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.Publish(ctx, c); err != nil {
		p.logger.Warn("failed to publish activity",
			zap.String("lead_id", c.LeadID),
			zap.Error(err),
		)
	}
}

// Publish sends one activity change.
func (p *Producer) Publish(ctx context.Context, c events.Change) error {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(c.Payload, &head); err != nil {
		return fmt.Errorf("failed to decode activity: %w", err)
	}

	body, err := json.Marshal(ActivityMessage{
		LeadID:   c.LeadID,
		Activity: c.Payload,
		Origin:   c.Source,
	})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	err = p.ch.PublishWithContext(ctx,
		p.exchange,
		RoutingKey(head.Type),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to RabbitMQ: %w", err)
	}
	return nil
}

// RoutingKey maps an activity type such as "Email Sent" to
// "activity.email_sent".
func RoutingKey(activityType string) string {
	key := make([]rune, 0, len(activityType))
	for _, r := range activityType {
		switch {
		case r == ' ':
			key = append(key, '_')
		case r >= 'A' && r <= 'Z':
			key = append(key, r+('a'-'A'))
		default:
			key = append(key, r)
		}
	}
	return RoutingKeyPrefix + string(key)
}

// Close detaches from the bus, flushes the backlog and closes the channel
// and connection.
func (p *Producer) Close() error {
	if p.unsub != nil {
		p.unsub()
		close(p.stop)
		p.wg.Wait()
		p.unsub = nil
	}
	if err := p.ch.Close(); err != nil {
		p.logger.Warn("failed to close channel", zap.Error(err))
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
