package ingest

import (
	"context"
	"time"
)

// RawEvent is the transport-neutral shape of one inbound chat message.
// The WhatsApp adapter converts library events into this before they
// enter the pipeline.
type RawEvent struct {
	Body                    string
	ExternalMessageID       string
	ExternalGroupID         string
	GroupDisplayName        string
	IsGroup                 bool
	FromSelf                bool
	QuotedExternalMessageID string
	Timestamp               time.Time
}

// Sender posts confirmation texts back to a group channel.
type Sender interface {
	SendText(ctx context.Context, externalGroupID, text string) error
}
