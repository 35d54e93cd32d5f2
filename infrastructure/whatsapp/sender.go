package whatsapp

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"
)

const (
	sendAttempts   = 3
	sendBackoffMax = 10 * time.Second
)

// SendText posts a plain text message to a group chat. Transient send
// failures retry with exponential backoff; a send that still fails after
// the last attempt surfaces the final error.
func (c *Client) SendText(ctx context.Context, externalGroupID, text string) error {
	jid, err := types.ParseJID(externalGroupID)
	if err != nil {
		return fmt.Errorf("whatsapp: invalid group jid %q: %w", externalGroupID, err)
	}
	msg := &waE2E.Message{Conversation: proto.String(text)}

	backoff := time.Second
	var lastErr error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		if _, lastErr = c.wa.SendMessage(ctx, jid, msg); lastErr == nil {
			return nil
		}
		logrus.Warnf("[WA] Send to %s failed (attempt %d/%d): %v", externalGroupID, attempt, sendAttempts, lastErr)
		if attempt == sendAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > sendBackoffMax {
			backoff = sendBackoffMax
		}
	}
	return fmt.Errorf("whatsapp: send to %s: %w", externalGroupID, lastErr)
}
