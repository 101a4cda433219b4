// Package queue moves renewal reminders through a durable AMQP queue so
// delivery hiccups never back up into the scheduler. When AMQP is not
// configured the Inline dispatcher delivers in-process instead.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lucafranzi/contabile/internal/domain"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Client is an AMQP-backed reminder dispatcher.
type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
	logger       *zap.Logger
}

// NewClient dials the broker and declares a durable direct exchange and
// queue bound by the queue name.
func NewClient(url, exchangeName, queueName string, logger *zap.Logger) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	err = c.channel.QueueBind(
		c.queueName,
		c.queueName, // routing key, same as queue name for direct exchange
		c.exchangeName,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// Dispatch publishes a reminder as a persistent message.
func (c *Client) Dispatch(ctx context.Context, msg domain.ReminderMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal reminder: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName,
		c.queueName,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish reminder: %w", err)
	}

	c.logger.Info("reminder queued",
		zap.String("fee_id", msg.FeeID),
		zap.String("due_date", msg.DueDate),
		zap.String("exchange", c.exchangeName),
	)
	return nil
}

// Depth returns the current ready-message count, best effort.
func (c *Client) Depth() int {
	q, err := c.channel.QueueDeclarePassive(c.queueName, true, false, false, false, nil)
	if err != nil {
		return 0
	}
	return q.Messages
}

// Consume delivers queued reminders to handler with manual acks. Failed
// messages are requeued once and then dropped.
func (c *Client) Consume(ctx context.Context, handler func(context.Context, domain.ReminderMessage) error) error {
	deliveries, err := c.channel.Consume(
		c.queueName,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			var msg domain.ReminderMessage
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				c.logger.Warn("discarding malformed reminder", zap.Error(err))
				d.Nack(false, false)
				continue
			}
			if err := handler(ctx, msg); err != nil {
				c.logger.Warn("reminder delivery failed",
					zap.String("fee_id", msg.FeeID),
					zap.Bool("redelivered", d.Redelivered),
					zap.Error(err),
				)
				d.Nack(false, !d.Redelivered)
				continue
			}
			d.Ack(false)
		}
	}
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
