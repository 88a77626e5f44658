package engine

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lazypower/rollcall/internal/config"
)

// Sweep evaluates and enforces every tracked chat. Chats run concurrently;
// a chat whose snapshot fails is reported in its Result and does not stop
// the others. Only a failure to list chats fails the sweep.
func (e *Engine) Sweep(ctx context.Context, today time.Time) ([]Result, error) {
	start := time.Now()
	defer func() { sweepDuration.Observe(time.Since(start).Seconds()) }()

	chats, err := e.listConversations(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(chats))
	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, chat := range chats {
		i, chat := i, chat // per-iteration copies (go.mod targets go1.21 loop semantics)
		g.Go(func() error {
			results[i] = e.sweepConversation(ctx, chat, today)
			return nil
		})
	}
	_ = g.Wait() // workers report failures through results

	return results, nil
}

// Plan evaluates every tracked chat without acting on it.
func (e *Engine) Plan(ctx context.Context, today time.Time) ([]Plan, error) {
	chats, err := e.listConversations(ctx)
	if err != nil {
		return nil, err
	}
	plans := make([]Plan, 0, len(chats))
	for _, chat := range chats {
		p, err := e.Evaluate(ctx, chat, today)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, nil
}

func (e *Engine) listConversations(ctx context.Context) ([]int64, error) {
	var chats []int64
	err := e.call(ctx, func(ctx context.Context) error {
		var err error
		chats, err = e.Store.ListConversations(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list chats: %w", ErrStoreUnavailable, err)
	}
	return chats, nil
}

func (e *Engine) sweepConversation(ctx context.Context, chatID int64, today time.Time) Result {
	plan, err := e.Evaluate(ctx, chatID, today)
	if err != nil {
		chatsSwept.WithLabelValues("error").Inc()
		e.Logger.Error("sweep chat", "chat", chatID, "err", err)
		return Result{ConversationID: chatID, Err: err}
	}
	chatsSwept.WithLabelValues("ok").Inc()
	if plan.Empty() {
		return Result{ConversationID: chatID}
	}
	return e.Execute(ctx, plan)
}

// NextRun returns the first time of day at, in UTC, strictly after now.
func NextRun(now time.Time, at config.ClockTime) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour, at.Minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// StartSweepTimer runs a sweep once per day at the configured time until
// ctx is done or Stop is called.
func (e *Engine) StartSweepTimer(ctx context.Context) {
	e.loops.Add(1)
	go func() {
		defer e.loops.Done()
		for {
			next := NextRun(e.now(), e.sweepAt)
			e.Logger.Info("next sweep scheduled", "at", next)
			timer := time.NewTimer(next.Sub(e.now()))

			select {
			case <-timer.C:
				e.RunSweep(ctx)
			case <-e.stopCh:
				timer.Stop()
				return
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}
	}()
}

// RunSweep sweeps for today and logs the totals.
func (e *Engine) RunSweep(ctx context.Context) []Result {
	today := Today(e.now())
	results, err := e.Sweep(ctx, today)
	if err != nil {
		e.Logger.Error("sweep failed", "err", err)
		return nil
	}

	var warned, removed, failed int
	for _, r := range results {
		warned += len(r.Warned)
		removed += len(r.Removed)
		failed += len(r.Failed())
	}
	e.Logger.Info("sweep complete",
		"date", today.Format(time.DateOnly), "chats", len(results),
		"warned", warned, "removed", removed, "failed", failed)
	return results
}
