package telegram

import (
	"context"
	"fmt"
)

// SendDirectMessage messages a user in their private chat with the bot.
// This fails with 403 if the user never started the bot or blocked it.
func (c *Client) SendDirectMessage(ctx context.Context, memberID int64, text string) error {
	return c.SendMessage(ctx, memberID, text, "")
}

// SendConversationMessage posts to a group chat.
func (c *Client) SendConversationMessage(ctx context.Context, chatID int64, text, parseMode string) error {
	return c.SendMessage(ctx, chatID, text, parseMode)
}

// RemoveMember kicks a user out of a chat. Unless the client was built with
// Ban, the ban is lifted right away so the user may rejoin later.
func (c *Client) RemoveMember(ctx context.Context, chatID, memberID int64) error {
	if err := c.BanChatMember(ctx, chatID, memberID); err != nil {
		return err
	}
	if c.ban {
		return nil
	}
	// The member is already out of the chat at this point; a failed unban
	// only means they stay banned.
	if err := c.UnbanChatMember(ctx, chatID, memberID); err != nil {
		c.logger.Warn("unban after removal failed", "chat", chatID, "member", memberID, "err", err)
	}
	return nil
}

// ResolveDisplayName returns the member's @username or full name.
func (c *Client) ResolveDisplayName(ctx context.Context, chatID, memberID int64) (string, error) {
	m, err := c.GetChatMember(ctx, chatID, memberID)
	if err != nil {
		return "", err
	}
	name := m.User.DisplayName()
	if name == "" {
		return "", fmt.Errorf("telegram getChatMember: user %d has no name", memberID)
	}
	return name, nil
}
