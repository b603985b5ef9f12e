package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип события.
type MessageType string

// Типы событий.
const (
	MessageTypeJobCreated    MessageType = "job.created"
	MessageTypeJobUpdated    MessageType = "job.updated"
	MessageTypeJobDeleted    MessageType = "job.deleted"
	MessageTypeJobFailed     MessageType = "job.failed"
	MessageTypeApplyFinished MessageType = "apply.finished"
)

// Publisher публикует события провижининга в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип события.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// JobEventPayload — payload события об одном job'е.
type JobEventPayload struct {
	ApplyRunID uuid.UUID `json:"apply_run_id"`
	ProjectID  string    `json:"project_id"`
	JobKey     string    `json:"job_key,omitempty"`
	JobName    string    `json:"job_name"`
	JobID      string    `json:"job_id,omitempty"`
	Action     string    `json:"action"`
	Error      string    `json:"error,omitempty"`
}

// ApplyFinishedPayload — payload события о завершении apply.
type ApplyFinishedPayload struct {
	ApplyRunID uuid.UUID `json:"apply_run_id"`
	ProjectID  string    `json:"project_id"`
	Created    int       `json:"created"`
	Updated    int       `json:"updated"`
	Deleted    int       `json:"deleted"`
	Failed     int       `json:"failed"`
	DurationMs int64     `json:"duration_ms"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // событие переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published event",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishJobEvent публикует событие об одном job'е.
// Routing key — суффикс типа (created/updated/deleted/failed).
func (p *Publisher) PublishJobEvent(ctx context.Context, msgType MessageType, payload JobEventPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	var key RoutingKey
	switch msgType {
	case MessageTypeJobCreated:
		key = RoutingKeyCreated
	case MessageTypeJobUpdated:
		key = RoutingKeyUpdated
	case MessageTypeJobDeleted:
		key = RoutingKeyDeleted
	case MessageTypeJobFailed:
		key = RoutingKeyFailed
	default:
		return fmt.Errorf("not a job event type: %s", msgType)
	}

	return p.Publish(ctx, ExchangeJobs, key, msg)
}

// PublishApplyFinished публикует событие о завершении apply.
func (p *Publisher) PublishApplyFinished(ctx context.Context, payload ApplyFinishedPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeApplyFinished,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeApplies, RoutingKeyFinished, msg)
}
