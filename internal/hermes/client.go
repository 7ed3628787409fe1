package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/MikeSquared-Agency/claudex/internal/progress"
)

// DefaultSubjectPrefix roots every subject when none is configured.
const DefaultSubjectPrefix = "claudex"

// conn is the part of *nats.Conn the client uses.
type conn interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
	Flush() error
	Close()
}

// Client publishes document progress and receives index requests under a
// subject prefix.
type Client struct {
	conn   conn
	prefix string
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token, prefix string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name("claudex"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return newClient(nc, prefix, logger), nil
}

func newClient(c conn, prefix string, logger *slog.Logger) *Client {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Client{conn: c, prefix: prefix, logger: logger}
}

// ProgressSubject is where progress for documentID is published.
func (c *Client) ProgressSubject(documentID string) string {
	return progressSubject(c.prefix, documentID)
}

// IndexRequestSubject is where index requests are received.
func (c *Client) IndexRequestSubject() string {
	return indexRequestSubject(c.prefix)
}

// PublishProgress sends one progress event for documentID.
func (c *Client) PublishProgress(documentID string, e progress.Event) error {
	return c.publish(c.ProgressSubject(documentID), ProgressMessage{DocumentID: documentID, Event: e})
}

// ProgressReporter publishes every event of one document. Publish failures
// are logged and otherwise ignored so a broker outage never fails indexing.
func (c *Client) ProgressReporter(documentID string) progress.Reporter {
	return progress.ReporterFunc(func(e progress.Event) {
		if err := c.PublishProgress(documentID, e); err != nil {
			c.logger.Warn("publish progress failed", "document_id", documentID, "stage", e.Stage, "error", err)
		}
	})
}

// RequestIndex asks whichever server listens on the prefix to index
// documentID. It returns once the broker has the request.
func (c *Client) RequestIndex(documentID string) error {
	if err := c.publish(c.IndexRequestSubject(), IndexRequest{DocumentID: documentID}); err != nil {
		return err
	}
	if err := c.conn.Flush(); err != nil {
		return fmt.Errorf("flush index request: %w", err)
	}
	return nil
}

// OnIndexRequested invokes fn with the document ID of every valid index
// request. Malformed payloads are logged and dropped.
func (c *Client) OnIndexRequested(fn func(documentID string)) error {
	return c.subscribe(c.IndexRequestSubject(), func(msg *nats.Msg) {
		req, err := DecodeIndexRequest(msg.Data)
		if err != nil {
			c.logger.Warn("dropping index request", "subject", msg.Subject, "error", err)
			return
		}
		fn(req.DocumentID)
	})
}

func (c *Client) publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := c.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func (c *Client) subscribe(subject string, handler nats.MsgHandler) error {
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	if sub != nil {
		c.subs = append(c.subs, sub)
	}
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

// Close drops subscriptions and closes the connection.
func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}
