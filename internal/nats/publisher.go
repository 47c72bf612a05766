package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/capitalize-ai/travel-concierge/internal/model"
)

// SubjectPrefix is the prefix for all transcript subjects.
const SubjectPrefix = "concierge"

// MessageSubject returns the subject for a stored message.
func MessageSubject(sessionID string, role model.Role) string {
	return fmt.Sprintf("%s.%s.msg.%s", SubjectPrefix, sessionID, role)
}

// SessionFilter matches every transcript subject of one session.
func SessionFilter(sessionID string) string {
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, sessionID)
}

// Publisher sends transcript events. Events are fire-and-forget; nothing is
// retained server side.
type Publisher struct {
	client *Client
}

// NewPublisher creates a transcript publisher.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// PublishTranscript publishes one stored message.
func (p *Publisher) PublishTranscript(ctx context.Context, event *model.TranscriptEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := MessageSubject(event.SessionID, event.Message.Role)
	if err := p.client.Conn().Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// SubscribeTranscripts delivers transcript events of sessionID, or of every
// session when sessionID is "*". Undecodable payloads are skipped.
func (c *Client) SubscribeTranscripts(sessionID string, fn func(*model.TranscriptEvent)) (*nats.Subscription, error) {
	sub, err := c.conn.Subscribe(SessionFilter(sessionID), func(msg *nats.Msg) {
		var event model.TranscriptEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			c.logger.Warn("dropping malformed transcript event", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		fn(&event)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	return sub, nil
}
