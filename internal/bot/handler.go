// Package bot turns Telegram updates into engine activity and answers the
// few commands rollcall understands.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lazypower/rollcall/internal/engine"
	"github.com/lazypower/rollcall/internal/telegram"
)

// Recorder is the part of the engine the handler feeds.
type Recorder interface {
	Ingest(ctx context.Context, msg engine.InboundMessage) error
	Thresholds() engine.Thresholds
}

// Sender posts replies to chats.
type Sender interface {
	SendConversationMessage(ctx context.Context, chatID int64, text, parseMode string) error
}

// Handler implements telegram.Handler.
type Handler struct {
	rec    Recorder
	sender Sender
	logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(rec Recorder, sender Sender, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{rec: rec, sender: sender, logger: logger.With("component", "bot")}
}

// HandleUpdate records activity for the update's message and replies to
// /start. Service messages (joins, leaves, pins) are not activity. Errors
// are logged; a failed write is not retried.
func (h *Handler) HandleUpdate(ctx context.Context, u telegram.Update) {
	m := u.Message
	if m == nil || m.From == nil || m.IsService() {
		return
	}

	if m.Command() == "start" {
		if err := h.start(ctx, m); err != nil {
			h.logger.Warn("reply to /start", "chat", m.Chat.ID, "err", err)
		}
	}

	err := h.rec.Ingest(ctx, Inbound(m))
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, context.Canceled) {
			level = slog.LevelDebug
		}
		h.logger.Log(ctx, level, "record activity", "chat", m.Chat.ID, "member", m.From.ID, "err", err)
	}
}

// Inbound maps a Telegram message to the engine's ingestion contract.
func Inbound(m *telegram.Message) engine.InboundMessage {
	return engine.InboundMessage{
		MemberID:       m.From.ID,
		ConversationID: m.Chat.ID,
		DisplayName:    m.From.DisplayName(),
		IsGroup:        m.Chat.IsGroup(),
		IsBotSender:    m.From.IsBot,
	}
}

func (h *Handler) start(ctx context.Context, m *telegram.Message) error {
	if m.Chat.IsGroup() {
		return h.sender.SendConversationMessage(ctx, m.Chat.ID, ActiveText(h.rec.Thresholds()), engine.ParseModeHTML)
	}
	return h.sender.SendConversationMessage(ctx, m.Chat.ID, PrivateText, "")
}

// PrivateText answers /start outside a group.
const PrivateText = "Add me to a group as admin!"

// ActiveText announces the policy in a group.
func ActiveText(th engine.Thresholds) string {
	return fmt.Sprintf("<b>Rollcall is active</b>\nMembers are warned after %d days without a message and removed after %d.",
		th.WarnAfter, th.RemoveAfter)
}
