package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"confetti-quiz/internal/domain"
	"github.com/rabbitmq/amqp091-go"
)

const (
	DefaultExchange = "quiz.progress"

	RoutingProgress  = "quiz.progress"
	RoutingCompleted = "quiz.completed"
)

// Publisher announces quiz progress. It satisfies feedback.Sink.
type Publisher interface {
	Publish(ctx context.Context, event domain.ProgressEvent) error
	Close() error
}

type EventPublisher struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	enabled  bool
}

func NewEventPublisher(rabbitURI, exchange string) (*EventPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if rabbitURI == "" {
		log.Println("Warning: RabbitMQ URI is empty, progress publishing is disabled")
		return &EventPublisher{exchange: exchange, enabled: false}, nil
	}

	conn, err := amqp091.Dial(rabbitURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	log.Printf("progress publisher initialized with exchange: %s", exchange)
	return &EventPublisher{conn: conn, channel: channel, exchange: exchange, enabled: true}, nil
}

// RoutingKey picks the topic for an event.
func RoutingKey(event domain.ProgressEvent) string {
	if event.Result.Finished {
		return RoutingCompleted
	}
	return RoutingProgress
}

// NewMessage builds the AMQP publishing for an event.
func NewMessage(event domain.ProgressEvent) (amqp091.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp091.Publishing{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	ts := event.OccurredAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    event.ID,
		Timestamp:    ts,
		Body:         body,
		Headers: amqp091.Table{
			"slug":     event.Slug,
			"finished": event.Result.Finished,
		},
	}, nil
}

func (p *EventPublisher) Publish(ctx context.Context, event domain.ProgressEvent) error {
	if !p.enabled {
		return nil
	}
	msg, err := NewMessage(event)
	if err != nil {
		return err
	}
	if err := p.channel.PublishWithContext(ctx, p.exchange, RoutingKey(event), false, false, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (p *EventPublisher) Close() error {
	if !p.enabled {
		return nil
	}
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			log.Printf("Error closing RabbitMQ channel: %v", err)
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("error closing RabbitMQ connection: %w", err)
		}
	}
	return nil
}

type MockPublisher struct {
	mu     sync.Mutex
	Events []domain.ProgressEvent
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{Events: make([]domain.ProgressEvent, 0)}
}

func (m *MockPublisher) Publish(_ context.Context, event domain.ProgressEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return nil
}

// Published returns a copy of the recorded events.
func (m *MockPublisher) Published() []domain.ProgressEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ProgressEvent(nil), m.Events...)
}

func (m *MockPublisher) Close() error {
	return nil
}
