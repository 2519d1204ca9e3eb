// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"github.com/streadway/amqp"

	"github.com/redinnova/innovanet/internal/auth"
)

// publisher is the part of *amqp.Channel the notifier uses.
type publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPNotifier publishes recovery codes as persistent JSON messages to a
// durable queue read by the mail sender.
type AMQPNotifier struct {
	mu     sync.Mutex
	ch     publisher
	queue  string
	logger *slog.Logger
	close  func() error
}

var _ auth.RecoveryNotifier = (*AMQPNotifier)(nil)

// NewAMQPNotifier publishes on ch to queue through the default exchange.
func NewAMQPNotifier(ch publisher, queue string, logger *slog.Logger) *AMQPNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &AMQPNotifier{ch: ch, queue: queue, logger: logger, close: func() error { return nil }}
}

// DialAMQP connects to url, retrying for up to maxWait, declares queue as
// durable and returns a notifier publishing to it.
func DialAMQP(ctx context.Context, url, queue string, maxWait time.Duration, logger *slog.Logger) (*AMQPNotifier, error) {
	var conn *amqp.Connection
	backoff := retry.WithMaxDuration(maxWait, retry.WithCappedDuration(5*time.Second, retry.NewExponential(250*time.Millisecond)))
	err := retry.Do(ctx, backoff, func(context.Context) error {
		var dialErr error
		conn, dialErr = amqp.Dial(url)
		if dialErr != nil {
			return retry.RetryableError(dialErr)
		}
		return nil
	})
	if err != nil {
		return nil, oops.Code("NOTIFY_CONNECT_FAILED").With("queue", queue).Wrap(err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, oops.Code("NOTIFY_CONNECT_FAILED").With("operation", "open channel").Wrap(err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, oops.Code("NOTIFY_CONNECT_FAILED").
			With("operation", "declare queue").
			With("queue", queue).
			Wrap(err)
	}

	n := NewAMQPNotifier(ch, queue, logger)
	n.close = func() error {
		chErr := ch.Close()
		if err := conn.Close(); err != nil {
			return err
		}
		return chErr
	}
	return n, nil
}

// NotifyRecoveryCode publishes msg.
func (n *AMQPNotifier) NotifyRecoveryCode(ctx context.Context, msg auth.RecoveryMessage) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("NOTIFY_PUBLISH_FAILED").Wrap(err)
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return oops.Code("NOTIFY_PUBLISH_FAILED").With("operation", "encode message").Wrap(err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	err = n.ch.Publish("", n.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return oops.Code("NOTIFY_PUBLISH_FAILED").
			With("queue", n.queue).
			With("account_id", msg.AccountID).
			Wrap(err)
	}
	n.logger.DebugContext(ctx, "recovery code queued", "account_id", msg.AccountID, "queue", n.queue)
	return nil
}

// Close releases the channel and connection opened by DialAMQP.
func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.close(); err != nil {
		return oops.Code("NOTIFY_CLOSE_FAILED").Wrap(err)
	}
	return nil
}
