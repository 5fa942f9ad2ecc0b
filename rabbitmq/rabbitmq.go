package rabbitmq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"github.com/lawoffice/billinghub/db/models"
	"github.com/lawoffice/billinghub/lib/interval"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/ziflex/lecho/v3"
)

// bufPool reuses encoding buffers between publications.
var bufPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

const (
	contentTypeJSON = "application/json"

	RoutingKeyInvoiceSubmitted = "invoice.submitted"
)

type Client interface {
	PublishInvoiceSubmitted(ctx context.Context, invoice *models.Invoice, entryIDs []int64) error
	// Close will close the connection to rabbitmq
	Close() error
}

// InvoiceSubmittedEvent is the body of an invoice.submitted message.
type InvoiceSubmittedEvent struct {
	EventID       string  `json:"event_id"`
	InvoiceID     int64   `json:"invoice_id"`
	InvoiceNumber string  `json:"invoice_number"`
	ClientID      int64   `json:"client_id"`
	MatterID      int64   `json:"matter_id"`
	TotalHours    float64 `json:"total_hours"`
	TotalAmount   int64   `json:"total_amount"`
	EntryIDs      []int64 `json:"entry_ids"`
	SubmittedAt   string  `json:"submitted_at"`
}

type DefaultClient struct {
	amqpClient AMQPClient
	logger     *lecho.Logger

	invoiceExchange string
	newEventID      func() string
}

type ClientOption = func(client *DefaultClient)

func WithInvoiceExchange(exchange string) ClientOption {
	return func(client *DefaultClient) {
		if exchange != "" {
			client.invoiceExchange = exchange
		}
	}
}

func WithLogger(logger *lecho.Logger) ClientOption {
	return func(client *DefaultClient) {
		client.logger = logger
	}
}

// WithEventIDFunc replaces the uuid generator used for event ids.
func WithEventIDFunc(fn func() string) ClientOption {
	return func(client *DefaultClient) {
		client.newEventID = fn
	}
}

// NewClient declares the invoice exchange and returns a publisher on top of
// the given AMQP connection.
func NewClient(amqpClient AMQPClient, options ...ClientOption) (*DefaultClient, error) {
	client := &DefaultClient{
		amqpClient: amqpClient,
		logger: lecho.New(
			os.Stdout,
			lecho.WithLevel(log.DEBUG),
			lecho.WithTimestamp(),
		),
		invoiceExchange: "billinghub_invoice",
		newEventID:      uuid.NewString,
	}
	for _, opt := range options {
		opt(client)
	}

	// durable topic exchange, consumers bind their own queues by routing key
	err := amqpClient.ExchangeDeclare(client.invoiceExchange, "topic", true, false, false, false, nil)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (client *DefaultClient) Close() error { return client.amqpClient.Close() }

func (client *DefaultClient) PublishInvoiceSubmitted(ctx context.Context, invoice *models.Invoice, entryIDs []int64) error {
	event := InvoiceSubmittedEvent{
		EventID:       client.newEventID(),
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		ClientID:      invoice.ClientID,
		MatterID:      invoice.MatterID,
		TotalHours:    invoice.TotalHours,
		TotalAmount:   invoice.TotalAmount,
		EntryIDs:      entryIDs,
		SubmittedAt:   interval.Format(invoice.DateSubmitted.Time),
	}
	if event.EntryIDs == nil {
		event.EntryIDs = []int64{}
	}

	payload := bufPool.Get().(*bytes.Buffer)
	defer func() {
		payload.Reset()
		bufPool.Put(payload)
	}()
	if err := json.NewEncoder(payload).Encode(event); err != nil {
		return fmt.Errorf("failed to encode invoice event: %w", err)
	}

	err := client.amqpClient.PublishWithContext(ctx,
		client.invoiceExchange,
		RoutingKeyInvoiceSubmitted,
		false,
		false,
		amqp.Publishing{
			ContentType: contentTypeJSON,
			MessageId:   event.EventID,
			Timestamp:   time.Now(),
			Body:        payload.Bytes(),
		},
	)
	if err != nil {
		captureErr(client.logger, err)
		return err
	}

	client.logger.Debugf("Successfully published invoice %s to rabbitmq with event id %s", invoice.InvoiceNumber, event.EventID)
	return nil
}

func captureErr(logger *lecho.Logger, err error) {
	logger.Error(err)
	sentry.CaptureException(err)
}
