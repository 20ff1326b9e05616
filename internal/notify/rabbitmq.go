package notify

import (
	"context"       // Cancellation
	"encoding/json" // Payload encoding
	"errors"        // Error values
	"net/url"       // URL validation
	"strings"       // URL cleanup
	"sync"          // Channel guard
	"time"          // Dial timeout

	"labour_connect/internal/domain" // Domain events

	"github.com/rabbitmq/amqp091-go" // RabbitMQ client
	"github.com/sirupsen/logrus"     // Structured logging
)

// RabbitPublisher publishes events to a durable topic exchange, using the
// event type as routing key
type RabbitPublisher struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewRabbitPublisher dials the broker and declares the exchange
func NewRabbitPublisher(amqpURL, exchange string) (*RabbitPublisher, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}
	// Bounded dial timeout so startup does not hang
	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	p := &RabbitPublisher{conn: conn, channel: ch, exchange: exchange}
	if err := p.declare(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func (p *RabbitPublisher) declare() error {
	return p.channel.ExchangeDeclare(
		p.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // autoDelete
		false,      // internal
		false,      // noWait
		nil,        // args
	)
}

// Notify publishes the event, reopening the channel once on failure
func (p *RabbitPublisher) Notify(ctx context.Context, event domain.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    event.ID.String(),
		Timestamp:    event.OccurredAt,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, p.exchange, string(event.Type), false, false, msg)
	if err == nil {
		return nil
	}
	logrus.WithFields(logrus.Fields{
		"exchange":    p.exchange,
		"routing_key": event.Type,
		"error":       err.Error(),
	}).Warn("publish failed; reopening channel")

	ch, chErr := p.conn.Channel()
	if chErr != nil {
		return chErr
	}
	p.channel = ch
	if err := p.declare(); err != nil {
		return err
	}
	return p.channel.PublishWithContext(ctx, p.exchange, string(event.Type), false, false, msg)
}

// Close closes the channel and connection
func (p *RabbitPublisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
