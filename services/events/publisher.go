// Package events publishes domain events for downstream consumers such as
// analytics or fulfilment workers.
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// PurchaseCompletedQueue receives one message per newly granted entitlement.
const PurchaseCompletedQueue = "purchase.completed"

// PurchaseCompleted is published after the entitlement row is written.
type PurchaseCompleted struct {
	PurchaseID    uint      `json:"purchase_id"`
	UserID        uint      `json:"user_id"`
	CourseID      uint      `json:"course_id"`
	CourseTitle   string    `json:"course_title"`
	Email         string    `json:"email"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	GuestCheckout bool      `json:"guest_checkout"`
	SessionID     string    `json:"session_id"`
	CompletedAt   time.Time `json:"completed_at"`
}

// Publisher delivers domain events. Callers treat errors as non-fatal.
type Publisher interface {
	PublishPurchaseCompleted(ctx context.Context, event PurchaseCompleted) error
}

// RabbitPublisher dials the broker per message. Purchase volume is low and
// this keeps the API independent of broker restarts.
type RabbitPublisher struct {
	url string
}

func NewRabbitPublisher(url string) *RabbitPublisher {
	return &RabbitPublisher{url: url}
}

func (p *RabbitPublisher) PublishPurchaseCompleted(ctx context.Context, event PurchaseCompleted) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.publish(ctx, PurchaseCompletedQueue, body)
}

func (p *RabbitPublisher) publish(ctx context.Context, queue string, body []byte) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.Printf("[EVENTS] rabbitmq dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("[EVENTS] rabbitmq channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		log.Printf("[EVENTS] queue declare %s failed: %v", queue, err)
		return err
	}

	err = ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		log.Printf("[EVENTS] publish to %s failed: %v", queue, err)
		return err
	}
	return nil
}

// NoopPublisher is used when RABBITMQ_URL is not set.
type NoopPublisher struct{}

func (NoopPublisher) PublishPurchaseCompleted(context.Context, PurchaseCompleted) error {
	return nil
}
