package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const NotificationsQueue = "storefront.notifications"

// Notification is the wire contract consumed by the storefront toast feed.
type Notification struct {
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// RabbitSink publishes notifications to RabbitMQ for the storefront UI.
// Publish failures are logged and dropped: a lost toast must never fail
// the operation that produced it.
type RabbitSink struct {
	ch     *amqp.Channel
	logger *log.Logger
}

func NewRabbitSink(conn *amqp.Connection, logger *log.Logger) (*RabbitSink, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	// Declare the queue so publish never fails due to missing infra
	_, err = ch.QueueDeclare(NotificationsQueue, true, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare %s: %w", NotificationsQueue, err)
	}

	return &RabbitSink{ch: ch, logger: logger}, nil
}

func (s *RabbitSink) Close() error {
	return s.ch.Close()
}

func (s *RabbitSink) Notify(ctx context.Context, kind Kind, message string) {
	n := Notification{
		Kind:      kind,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}

	body, err := json.Marshal(n)
	if err != nil {
		s.logger.Printf("marshal notification: %v", err)
		return
	}

	err = s.ch.PublishWithContext(ctx, "", NotificationsQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    n.Timestamp,
		Body:         body,
	})
	if err != nil {
		s.logger.Printf("publish notification: %v", err)
	}
}

// MustDialRabbit connects to RabbitMQ or exits. Mirrors how the rest of
// the deployment treats broker connectivity as a startup requirement.
func MustDialRabbit(url string) *amqp.Connection {
	conn, err := amqp.Dial(url)
	if err != nil {
		log.Fatalf("failed to connect to RabbitMQ: %v", err)
	}
	return conn
}
