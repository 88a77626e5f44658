package engine

import (
	"context"
	"fmt"

	"github.com/lazypower/rollcall/internal/store"
)

// InboundMessage is one message observed by the bot.
type InboundMessage struct {
	MemberID       int64
	ConversationID int64
	DisplayName    string
	IsGroup        bool
	IsBotSender    bool
}

// Ingest records activity for messages sent by people in group chats and
// ignores everything else.
func (e *Engine) Ingest(ctx context.Context, msg InboundMessage) error {
	if !msg.IsGroup || msg.IsBotSender {
		return nil
	}
	return e.Record(ctx, msg.MemberID, msg.ConversationID, msg.DisplayName)
}

// Record marks the member active today. Failed writes are not retried; the
// member gets credit again with their next message.
func (e *Engine) Record(ctx context.Context, memberID, chatID int64, displayName string) error {
	rec := store.ActivityRecord{
		MemberID:       memberID,
		ConversationID: chatID,
		DisplayName:    displayName,
		LastActive:     Today(e.now()),
	}

	err := e.call(ctx, func(ctx context.Context) error {
		return e.Store.UpsertActivity(ctx, rec)
	})
	if err != nil {
		messagesRecorded.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: record member %d in chat %d: %w", ErrStoreUnavailable, memberID, chatID, err)
	}
	messagesRecorded.WithLabelValues("ok").Inc()
	return nil
}
