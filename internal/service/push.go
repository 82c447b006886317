package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/fitfusion/admin-console/internal/queue"
)

// Publisher hands notification pushes to the delivery pipeline.
type Publisher interface {
	PublishPush(ctx context.Context, ev queue.PushNotificationEvent) error
}

// NopPublisher drops every event; used when push delivery is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishPush(context.Context, queue.PushNotificationEvent) error { return nil }

// AMQPPublisher publishes persistent JSON messages to a durable queue.  A
// connection is dialed per publish: pushes are rare and this keeps the
// console free of broker state between them.
type AMQPPublisher struct {
	URL   string
	Queue string
}

func NewAMQPPublisher(url, queueName string) *AMQPPublisher {
	if queueName == "" {
		queueName = queue.PushQueueName
	}
	return &AMQPPublisher{URL: url, Queue: queueName}
}

func (p *AMQPPublisher) PublishPush(ctx context.Context, ev queue.PushNotificationEvent) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		return errors.Wrap(err, "rabbitmq dial")
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return errors.Wrap(err, "rabbitmq channel")
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
		return errors.Wrap(err, "rabbitmq queue declare")
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal push")
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    ev.NotificationID,
		Body:         body,
	}
	// default exchange, routing key = queue name
	if err := ch.PublishWithContext(ctx, "", p.Queue, false, false, pub); err != nil {
		return errors.Wrap(err, "rabbitmq publish")
	}
	return nil
}
