// Package telegram is a small Bot API client covering what rollcall needs:
// long polling for updates, sending messages, and removing chat members.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultAPIURL = "https://api.telegram.org"

// Options configures a Client.
type Options struct {
	APIURL      string
	RateLimit   float64 // outbound requests per second, 0 for unlimited
	PollTimeout int     // seconds; the HTTP timeout leaves room for it
	Ban         bool    // keep removed members banned instead of letting them rejoin
	Logger      *slog.Logger
}

// Client talks to the Telegram Bot API.
type Client struct {
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
	ban     bool
	logger  *slog.Logger
}

// NewClient creates a Bot API client for the given token.
func NewClient(token string, opts Options) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("telegram: bot token is required")
	}
	api := strings.TrimRight(opts.APIURL, "/")
	if api == "" {
		api = defaultAPIURL
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		http:    &http.Client{Timeout: time.Duration(opts.PollTimeout)*time.Second + 30*time.Second},
		baseURL: api + "/bot" + token,
		limiter: rate.NewLimiter(limit, 1),
		ban:     opts.Ban,
		logger:  logger.With("component", "telegram"),
	}, nil
}

// call invokes a Bot API method with a JSON body and decodes the result
// into out (which may be nil).
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("telegram %s: encode: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// Don't leak the token embedded in the URL.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("telegram %s: read response: %w", method, err)
	}

	var r apiResponse
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("telegram %s: status %d: decode response: %w", method, resp.StatusCode, err)
	}
	if !r.OK {
		apiErr := &APIError{Method: method, Code: r.ErrorCode, Description: r.Description}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode
		}
		if r.Parameters != nil {
			apiErr.RetryAfter = r.Parameters.RetryAfter
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(r.Result, out); err != nil {
		return fmt.Errorf("telegram %s: decode result: %w", method, err)
	}
	return nil
}

// send is call behind the outbound rate limiter.
func (c *Client) send(ctx context.Context, method string, params any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram %s: rate limit: %w", method, err)
	}
	return c.call(ctx, method, params, out)
}

// GetMe returns the bot's own user.
func (c *Client) GetMe(ctx context.Context) (User, error) {
	var u User
	err := c.send(ctx, "getMe", struct{}{}, &u)
	return u, err
}

// DeleteWebhook switches the bot to getUpdates delivery.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.send(ctx, "deleteWebhook", map[string]any{"drop_pending_updates": false}, nil)
}

// GetUpdates long-polls for message updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout int) ([]Update, error) {
	var updates []Update
	err := c.call(ctx, "getUpdates", map[string]any{
		"offset":          offset,
		"timeout":         timeout,
		"allowed_updates": []string{"message"},
	}, &updates)
	return updates, err
}

// SendMessage posts text to a chat. parseMode may be empty.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text, parseMode string) error {
	params := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if parseMode != "" {
		params["parse_mode"] = parseMode
	}
	return c.send(ctx, "sendMessage", params, nil)
}

// GetChatMember looks up a member of a chat.
func (c *Client) GetChatMember(ctx context.Context, chatID, userID int64) (ChatMember, error) {
	var m ChatMember
	err := c.send(ctx, "getChatMember", map[string]any{
		"chat_id": chatID,
		"user_id": userID,
	}, &m)
	return m, err
}

// BanChatMember removes a user from a chat and bans them.
func (c *Client) BanChatMember(ctx context.Context, chatID, userID int64) error {
	return c.send(ctx, "banChatMember", map[string]any{
		"chat_id": chatID,
		"user_id": userID,
	}, nil)
}

// UnbanChatMember lifts a ban so the user can rejoin via link.
func (c *Client) UnbanChatMember(ctx context.Context, chatID, userID int64) error {
	return c.send(ctx, "unbanChatMember", map[string]any{
		"chat_id":        chatID,
		"user_id":        userID,
		"only_if_banned": true,
	}, nil)
}
