package telegram

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Handler receives updates from a Poller, one at a time, in order.
type Handler interface {
	HandleUpdate(ctx context.Context, u Update)
}

// Poller long-polls getUpdates and feeds a Handler.
type Poller struct {
	client  *Client
	handler Handler
	timeout int
	logger  *slog.Logger

	minBackoff time.Duration
	maxBackoff time.Duration
}

// NewPoller creates a Poller. timeout is the long-poll wait in seconds.
func NewPoller(client *Client, handler Handler, timeout int, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		client:     client,
		handler:    handler,
		timeout:    timeout,
		logger:     logger.With("component", "poller"),
		minBackoff: time.Second,
		maxBackoff: time.Minute,
	}
}

// Run polls until ctx is done. Errors are logged and retried with backoff.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.client.DeleteWebhook(ctx); err != nil {
		p.logger.Warn("delete webhook", "err", err)
	}

	var offset int64
	backoff := p.minBackoff
	for {
		if ctx.Err() != nil {
			return nil
		}

		updates, err := p.client.GetUpdates(ctx, offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			wait := backoff
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
				wait = time.Duration(apiErr.RetryAfter) * time.Second
			}
			p.logger.Warn("get updates", "err", err, "retry_in", wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil
			}
			backoff = min(backoff*2, p.maxBackoff)
			continue
		}
		backoff = p.minBackoff

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			p.handler.HandleUpdate(ctx, u)
		}
	}
}
