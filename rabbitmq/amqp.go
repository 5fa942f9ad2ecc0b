package rabbitmq

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/ziflex/lecho/v3"
)

const (
	heartbeat   = 10 * time.Second
	dialTimeout = 3 * time.Second
)

// AMQPClient is the subset of an AMQP connection the publisher needs.
type AMQPClient interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Close() error
}

// reconnectingClient keeps one connection and one publish channel open and
// redials in the background when the broker drops the connection.
type reconnectingClient struct {
	uri    string
	logger *lecho.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	// ready is closed while conn and channel are usable
	ready chan struct{}
}

type AMQPOption = func(client *reconnectingClient)

func WithAmqpLogger(logger *lecho.Logger) AMQPOption {
	return func(client *reconnectingClient) {
		client.logger = logger
	}
}

// DialAMQP connects to the broker at uri. The first dial is not retried so a
// bad RABBITMQ_URI fails the startup.
func DialAMQP(uri string, options ...AMQPOption) (AMQPClient, error) {
	client := &reconnectingClient{
		uri:    uri,
		logger: lecho.New(os.Stdout, lecho.WithLevel(log.INFO), lecho.WithTimestamp()),
		ready:  make(chan struct{}),
	}
	for _, opt := range options {
		opt(client)
	}
	closed, err := client.dial()
	if err != nil {
		return nil, err
	}
	go client.watch(closed)
	return client, nil
}

func reconnectBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = time.Minute
	return b
}

// dial opens a connection and a publish channel and marks the client ready.
// The returned channel receives the reason the connection closed.
func (c *reconnectingClient) dial() (chan *amqp.Error, error) {
	conn, err := amqp.DialConfig(c.uri, amqp.Config{
		Heartbeat: heartbeat,
		Dial:      amqp.DefaultDial(dialTimeout),
	})
	if err != nil {
		return nil, err
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	c.mu.Lock()
	c.conn, c.channel = conn, channel
	close(c.ready)
	c.mu.Unlock()
	return closed, nil
}

func (c *reconnectingClient) watch(closed chan *amqp.Error) {
	for {
		reason, ok := <-closed
		if !ok || reason == nil {
			// Close was called
			return
		}
		c.logger.Errorf("amqp connection lost: %v", reason)

		c.mu.Lock()
		c.ready = make(chan struct{})
		c.mu.Unlock()

		err := backoff.Retry(func() error {
			var err error
			closed, err = c.dial()
			if err != nil {
				c.logger.Warnf("amqp reconnect failed: %v", err)
			}
			return err
		}, reconnectBackoff())
		if err != nil {
			c.logger.Errorf("amqp giving up reconnecting: %v", err)
			return
		}
		c.logger.Info("amqp connection restored")
	}
}

// current waits until the client is connected or ctx is done.
func (c *reconnectingClient) current(ctx context.Context) (*amqp.Connection, *amqp.Channel, error) {
	c.mu.Lock()
	ready := c.ready
	c.mu.Unlock()

	select {
	case <-ready:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn, c.channel, nil
}

func (c *reconnectingClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

func (c *reconnectingClient) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	conn, _, err := c.current(context.Background())
	if err != nil {
		return err
	}
	// declarations only happen at startup, a short lived channel is enough
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	return ch.ExchangeDeclare(name, kind, durable, autoDelete, internal, noWait, args)
}

// PublishWithContext waits for a running reconnect before publishing.
func (c *reconnectingClient) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	_, channel, err := c.current(ctx)
	if err != nil {
		return err
	}
	return channel.PublishWithContext(ctx, exchange, key, mandatory, immediate, msg)
}
