package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lazypower/rollcall/internal/config"
	"github.com/lazypower/rollcall/internal/store"
)

// MemberStore is the persisted (member, chat) activity state.
// *store.DB and *dynamostore.Store implement it.
type MemberStore interface {
	UpsertActivity(ctx context.Context, rec store.ActivityRecord) error
	MarkWarned(ctx context.Context, memberID, chatID int64, lastActive time.Time) (bool, error)
	Remove(ctx context.Context, memberID, chatID int64) (bool, error)
	ListConversations(ctx context.Context) ([]int64, error)
	ListMembers(ctx context.Context, chatID int64) ([]store.ActivityRecord, error)
}

// Messenger is the chat platform the engine acts on.
type Messenger interface {
	SendDirectMessage(ctx context.Context, memberID int64, text string) error
	SendConversationMessage(ctx context.Context, chatID int64, text, parseMode string) error
	RemoveMember(ctx context.Context, chatID, memberID int64) error
	ResolveDisplayName(ctx context.Context, chatID, memberID int64) (string, error)
}

// ParseModeHTML marks chat messages whose text is HTML formatted.
const ParseModeHTML = "HTML"

// Thresholds are the inactivity limits in whole days.
type Thresholds struct {
	WarnAfter   int
	RemoveAfter int
}

// Engine records member activity and runs the daily inactivity sweep.
type Engine struct {
	Store     MemberStore
	Messenger Messenger
	Logger    *slog.Logger

	thresholds  Thresholds
	timeout     time.Duration
	concurrency int
	sweepAt     config.ClockTime
	now         func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	loops    sync.WaitGroup
}

// New creates a new Engine. msg may be nil for an engine that only records
// activity and builds plans.
func New(st MemberStore, msg Messenger, cfg config.ModerationConfig, logger *slog.Logger) (*Engine, error) {
	at, err := config.ParseClock(cfg.SweepAt)
	if err != nil {
		return nil, err
	}
	if cfg.WarnAfterDays < 1 || cfg.RemoveAfterDays <= cfg.WarnAfterDays {
		return nil, fmt.Errorf("invalid thresholds: warn after %d, remove after %d", cfg.WarnAfterDays, cfg.RemoveAfterDays)
	}
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Engine{
		Store:     st,
		Messenger: msg,
		Logger:    logger.With("component", "engine"),
		thresholds: Thresholds{
			WarnAfter:   cfg.WarnAfterDays,
			RemoveAfter: cfg.RemoveAfterDays,
		},
		timeout:     timeout,
		concurrency: concurrency,
		sweepAt:     at,
		now:         time.Now,
		stopCh:      make(chan struct{}),
	}, nil
}

// Thresholds returns the configured inactivity limits.
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// Today returns the current UTC calendar date.
func Today(now time.Time) time.Time {
	return store.Day(now)
}

// DaysInactive returns the whole days between lastActive and today.
func DaysInactive(today, lastActive time.Time) int {
	return int(store.Day(today).Sub(store.Day(lastActive)) / (24 * time.Hour))
}

// call runs fn under the per-action timeout.
func (e *Engine) call(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return fn(ctx)
}

// Stop shuts down the engine's background goroutines and waits for them
// to return. A sweep in progress finishes first.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.loops.Wait()
}
