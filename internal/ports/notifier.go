package ports

import (
	"context"
	"time"
)

// MessageID identifies a sent notification.
type MessageID string

// Reply is an inbound user reply, correlated (or not) to a pending
// confirmation (spec §6).
type Reply struct {
	CorrelationID string // empty if uncorrelated
	Text          string
	ReceivedAt    time.Time
}

// NotifierPort delivers formatted messages and receives user replies
// correlated to pending confirmations (spec §4.2/§6). MarkdownLike
// formatting is allowed but non-essential; implementations MAY deduplicate
// identical messages sent within a 2-second window.
type NotifierPort interface {
	Send(ctx context.Context, text string, correlationID string) (MessageID, error)
	Replies() <-chan Reply
}
