// Package service holds the run's outward-facing side effects: dataset
// event publishing and job metrics.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/thumbset/youtube-thumbnail-collector-go/internal/config"
	"github.com/thumbset/youtube-thumbnail-collector-go/internal/models"
	"github.com/thumbset/youtube-thumbnail-collector-go/pkg/logger"
)

// EventPublisher announces completed runs and rotated batches on a
// RabbitMQ topic exchange so downstream dataset consumers can react.
type EventPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	config  *config.EventsConfig
	mu      sync.RWMutex
}

// NewEventPublisher connects, declares the exchange/queue pair and
// enables publisher confirms.
func NewEventPublisher(cfg *config.EventsConfig) (*EventPublisher, error) {
	p := &EventPublisher{
		config: cfg,
	}

	if err := p.connect(); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *EventPublisher) connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	connURL := fmt.Sprintf("amqp://%s:%s@%s:%d/",
		p.config.User, p.config.Password, p.config.Host, p.config.Port)

	conn, err := amqp.Dial(connURL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	// Enable publisher confirms
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	// Declare exchange
	if err := ch.ExchangeDeclare(
		p.config.Exchange, // name
		"topic",           // type
		true,              // durable
		false,             // auto-deleted
		false,             // internal
		false,             // no-wait
		nil,               // arguments
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	// Declare queue
	_, err = ch.QueueDeclare(
		p.config.Queue, // name
		true,           // durable
		false,          // delete when unused
		false,          // exclusive
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	// Bind with a wildcard so both run and batch events land in it.
	if err := ch.QueueBind(
		p.config.Queue,           // queue name
		p.config.RoutingKey+".#", // routing key
		p.config.Exchange,        // exchange
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	p.conn = conn
	p.channel = ch

	logger.Log.Info("Connected to RabbitMQ",
		zap.String("exchange", p.config.Exchange),
		zap.String("queue", p.config.Queue),
	)

	return nil
}

// PublishRunCompleted announces a finished run with its report.
func (p *EventPublisher) PublishRunCompleted(ctx context.Context, report *models.RunReport) error {
	event := &models.RunEvent{
		ID:         uuid.New(),
		EventType:  models.EventTypeRunCompleted,
		RunID:      report.RunID,
		Report:     report,
		OccurredAt: time.Now().UTC(),
	}
	return p.publish(ctx, p.config.RoutingKey+".completed", event)
}

// PublishBatchRotated announces a freshly archived batch.
func (p *EventPublisher) PublishBatchRotated(ctx context.Context, batch *models.Batch, report *models.RunReport) error {
	event := &models.RunEvent{
		ID:         uuid.New(),
		EventType:  models.EventTypeBatchRotated,
		RunID:      report.RunID,
		Report:     report,
		Batch:      batch,
		OccurredAt: time.Now().UTC(),
	}
	return p.publish(ctx, p.config.RoutingKey+".rotated", event)
}

func (p *EventPublisher) publish(ctx context.Context, routingKey string, event *models.RunEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.channel == nil {
		return fmt.Errorf("channel is not initialized")
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// Publish with confirmation
	confirms := p.channel.NotifyPublish(make(chan amqp.Confirmation, 1))

	err = p.channel.PublishWithContext(
		ctx,
		p.config.Exchange, // exchange
		routingKey,        // routing key
		false,             // mandatory
		false,             // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			MessageId:    event.ID.String(),
			Type:         event.EventType,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	// Wait for confirmation with timeout
	select {
	case confirm := <-confirms:
		if !confirm.Ack {
			return fmt.Errorf("message was not acknowledged by broker")
		}
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for publish confirmation")
	case <-ctx.Done():
		return ctx.Err()
	}

	logger.Log.Debug("Published dataset event",
		zap.String("eventId", event.ID.String()),
		zap.String("eventType", event.EventType),
		zap.String("routingKey", routingKey),
	)

	return nil
}

// Close tears down the channel and connection.
func (p *EventPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing publisher: %v", errs)
	}

	logger.Log.Info("RabbitMQ publisher closed")
	return nil
}

// IsHealthy reports whether the connection is still usable.
func (p *EventPublisher) IsHealthy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.conn != nil && !p.conn.IsClosed() && p.channel != nil
}
