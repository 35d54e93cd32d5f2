package whatsapp

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/tkamdem/livrazone/ingest"
)

func (c *Client) handleMessage(evt *events.Message) {
	c.mu.RLock()
	fn := c.onEvent
	c.mu.RUnlock()
	if fn == nil {
		return
	}

	msg := unwrapMessage(evt.Message)
	body := extractText(msg)
	if strings.TrimSpace(body) == "" {
		return
	}

	raw := ingest.RawEvent{
		Body:                    body,
		ExternalMessageID:       evt.Info.ID,
		ExternalGroupID:         evt.Info.Chat.String(),
		IsGroup:                 evt.Info.IsGroup,
		FromSelf:                evt.Info.IsFromMe,
		QuotedExternalMessageID: extractQuotedID(msg),
		Timestamp:               evt.Info.Timestamp,
	}
	if raw.IsGroup {
		raw.GroupDisplayName = c.groupName(evt)
	}
	fn(raw)
}

// unwrapMessage peels ephemeral and view-once wrappers so the text and
// quote context underneath stay visible.
func unwrapMessage(m *waE2E.Message) *waE2E.Message {
	for i := 0; i < 3; i++ {
		switch {
		case m.GetEphemeralMessage() != nil:
			m = m.GetEphemeralMessage().GetMessage()
		case m.GetViewOnceMessage() != nil:
			m = m.GetViewOnceMessage().GetMessage()
		case m.GetViewOnceMessageV2() != nil:
			m = m.GetViewOnceMessageV2().GetMessage()
		default:
			return m
		}
	}
	return m
}

func extractText(m *waE2E.Message) string {
	if m == nil {
		return ""
	}
	if t := m.GetConversation(); t != "" {
		return t
	}
	if ext := m.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	// Captions on media announcements still carry parseable bodies.
	if img := m.GetImageMessage(); img != nil {
		return img.GetCaption()
	}
	return ""
}

// extractQuotedID returns the stanza id of the message this one replies
// to, empty when it is not a reply.
func extractQuotedID(m *waE2E.Message) string {
	if m == nil {
		return ""
	}
	if ext := m.GetExtendedTextMessage(); ext != nil {
		return ext.GetContextInfo().GetStanzaID()
	}
	if img := m.GetImageMessage(); img != nil {
		return img.GetContextInfo().GetStanzaID()
	}
	return ""
}

// groupName resolves the chat's display name, cached per group so the
// lookup happens once per session.
func (c *Client) groupName(evt *events.Message) string {
	key := evt.Info.Chat.String()
	if v, ok := c.groupNames.Load(key); ok {
		return v.(string)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	info, err := c.wa.GetGroupInfo(ctx, evt.Info.Chat)
	if err != nil {
		logrus.Debugf("[WA] Group info lookup failed for %s: %v", key, err)
		return ""
	}
	c.groupNames.Store(key, info.Name)
	return info.Name
}
