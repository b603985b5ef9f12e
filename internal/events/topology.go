package events

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	// ExchangeJobs — события провижининга отдельных job'ов.
	ExchangeJobs Exchange = "provisor.jobs"

	// ExchangeApplies — события целых запусков apply.
	ExchangeApplies Exchange = "provisor.applies"
)

// Queues — имена очередей.
const (
	QueueJobsProvisioned Queue = "jobs.provisioned"
	QueueAppliesFinished Queue = "applies.finished"
)

// Routing keys.
const (
	RoutingKeyCreated  RoutingKey = "created"
	RoutingKeyUpdated  RoutingKey = "updated"
	RoutingKeyDeleted  RoutingKey = "deleted"
	RoutingKeyFailed   RoutingKey = "failed"
	RoutingKeyFinished RoutingKey = "finished"
)

// SetupTopology объявляет обменники, очереди и привязки.
//
// Вызывается при каждом подключении: declare идемпотентен,
// поэтому первый запуск создаёт топологию, остальные — no-op.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeJobs, "topic"},
		{ExchangeApplies, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	queues := []Queue{
		QueueJobsProvisioned,
		QueueAppliesFinished,
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q), // name
			true,      // durable
			false,     // delete when unused
			false,     // exclusive
			false,     // no-wait
			nil,       // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey string
		exchange   Exchange
	}{
		// jobs.provisioned получает все события job'ов.
		{QueueJobsProvisioned, "#", ExchangeJobs},
		{QueueAppliesFinished, string(RoutingKeyFinished), ExchangeApplies},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),    // queue name
			b.routingKey,       // routing key
			string(b.exchange), // exchange
			false,              // no-wait
			nil,                // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}
