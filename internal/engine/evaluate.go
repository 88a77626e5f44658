package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/lazypower/rollcall/internal/store"
)

// Plan is the action list for one chat on one day. A member appears in at
// most one of ToWarn and ToRemove.
type Plan struct {
	ConversationID int64
	Today          time.Time
	ToWarn         []store.ActivityRecord
	ToRemove       []store.ActivityRecord
}

// Empty reports whether the plan has no actions.
func (p Plan) Empty() bool {
	return len(p.ToWarn) == 0 && len(p.ToRemove) == 0
}

// Classify partitions a chat's records. Removal is checked first and does
// not look at Warned, so a member warned yesterday is removed today.
func Classify(chatID int64, recs []store.ActivityRecord, today time.Time, th Thresholds) Plan {
	plan := Plan{ConversationID: chatID, Today: store.Day(today)}
	for _, rec := range recs {
		days := DaysInactive(today, rec.LastActive)
		switch {
		case days >= th.RemoveAfter:
			plan.ToRemove = append(plan.ToRemove, rec)
		case days >= th.WarnAfter && !rec.Warned:
			plan.ToWarn = append(plan.ToWarn, rec)
		}
	}
	return plan
}

// Status names what the next sweep does with rec: "remove", "warn",
// "warned" (already warned, waiting out the last day) or "active".
func (th Thresholds) Status(rec store.ActivityRecord, today time.Time) string {
	days := DaysInactive(today, rec.LastActive)
	switch {
	case days >= th.RemoveAfter:
		return "remove"
	case days >= th.WarnAfter && rec.Warned:
		return "warned"
	case days >= th.WarnAfter:
		return "warn"
	}
	return "active"
}

// Evaluate snapshots the chat's records and classifies them. Activity
// recorded after the snapshot is picked up by the next sweep.
func (e *Engine) Evaluate(ctx context.Context, chatID int64, today time.Time) (Plan, error) {
	var recs []store.ActivityRecord
	err := e.call(ctx, func(ctx context.Context) error {
		var err error
		recs, err = e.Store.ListMembers(ctx, chatID)
		return err
	})
	if err != nil {
		return Plan{ConversationID: chatID}, fmt.Errorf("%w: snapshot chat %d: %w", ErrStoreUnavailable, chatID, err)
	}
	return Classify(chatID, recs, today, e.thresholds), nil
}
