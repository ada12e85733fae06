package amqp

import (
	"context"

	"bilancio/internal/audit"
)

// Sink adapts the client to audit.Sink so the proposal engine can hand
// entries straight to the queue.
type Sink struct {
	client *Client
}

func NewSink(client *Client) *Sink {
	return &Sink{client: client}
}

func (s *Sink) Append(ctx context.Context, e audit.Entry) error {
	return s.client.PublishAudit(ctx, NewAuditMessage(e))
}
