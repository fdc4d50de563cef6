package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type RabbitPublisher struct {
	mu        sync.Mutex
	conn      *amqp.Connection
	ch        amqpChannel
	queueName string
	logger    *zap.Logger
}

var _ Publisher = (*RabbitPublisher)(nil)

func NewRabbitPublisher(url, queueName string, logger *zap.Logger) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	logger.Info("rabbitmq publisher ready", zap.String("queue", queueName))
	return &RabbitPublisher{conn: conn, ch: ch, queueName: queueName, logger: logger}, nil
}

func (p *RabbitPublisher) PublishOrderPlaced(ctx context.Context, event OrderPlaced) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order placed: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx,
		"",          // exchange
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Type:         EventTypeOrderPlaced,
			MessageId:    event.OrderID,
			Timestamp:    event.PlacedAt,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish order placed: %w", err)
	}

	p.logger.Debug("order placed published", zap.String("order_id", event.OrderID), zap.String("queue", p.queueName))
	return nil
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
