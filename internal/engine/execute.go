package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/lazypower/rollcall/internal/store"
)

// Action is what the sweep did to a member.
type Action string

const (
	ActionWarn   Action = "warn"
	ActionRemove Action = "remove"
)

// ActionOutcome is the result of one warn or remove.
type ActionOutcome struct {
	MemberID int64
	Action   Action
	Name     string

	// Done is true when the member-facing step succeeded: the warning was
	// delivered, or the member was removed from the chat.
	Done bool

	// Stale is true when the store record changed after the snapshot, so
	// it was not updated.
	Stale bool

	// Err joins every failed step.
	Err error
}

// Result summarizes a sweep of one chat.
type Result struct {
	ConversationID int64
	Warned         []string
	Removed        []string
	Outcomes       []ActionOutcome

	// Err is set when the chat could not be evaluated at all.
	Err error

	// BroadcastErr joins failures to post the summary messages.
	BroadcastErr error
}

// Failed returns the outcomes that had at least one failed step.
func (r Result) Failed() []ActionOutcome {
	var out []ActionOutcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Execute carries out a plan. Each member is handled independently: a
// failure is recorded in that member's outcome and processing continues.
// Summaries go to plan.ConversationID only.
func (e *Engine) Execute(ctx context.Context, plan Plan) Result {
	res := Result{ConversationID: plan.ConversationID}
	log := e.Logger.With("chat", plan.ConversationID)

	for _, rec := range plan.ToWarn {
		out := e.warn(ctx, rec)
		res.Outcomes = append(res.Outcomes, out)
		e.report(log, out)
		// A stale member posted after the snapshot; they are not inactive.
		if out.Done && !out.Stale {
			res.Warned = append(res.Warned, out.Name)
		}
	}

	for _, rec := range plan.ToRemove {
		out := e.remove(ctx, rec)
		res.Outcomes = append(res.Outcomes, out)
		e.report(log, out)
		if out.Done {
			res.Removed = append(res.Removed, out.Name)
		}
	}

	var errs []error
	if len(res.Warned) > 0 {
		if err := e.broadcast(ctx, plan.ConversationID, "warn", WarnSummary(e.thresholds, res.Warned)); err != nil {
			errs = append(errs, err)
		}
	}
	if len(res.Removed) > 0 {
		if err := e.broadcast(ctx, plan.ConversationID, "remove", RemoveSummary(e.thresholds, res.Removed)); err != nil {
			errs = append(errs, err)
		}
	}
	res.BroadcastErr = errors.Join(errs...)
	if res.BroadcastErr != nil {
		log.Warn("summary not delivered", "err", res.BroadcastErr)
	}

	return res
}

// warn messages the member and marks the record. Both steps run even if
// the other fails.
func (e *Engine) warn(ctx context.Context, rec store.ActivityRecord) ActionOutcome {
	out := ActionOutcome{MemberID: rec.MemberID, Action: ActionWarn}
	var errs []error

	dmErr := e.call(ctx, func(ctx context.Context) error {
		return e.Messenger.SendDirectMessage(ctx, rec.MemberID, WarningText(e.thresholds))
	})
	if dmErr != nil {
		errs = append(errs, fmt.Errorf("%w: direct message: %w", ErrDeliveryFailed, dmErr))
	}

	var hit bool
	storeErr := e.call(ctx, func(ctx context.Context) error {
		var err error
		hit, err = e.Store.MarkWarned(ctx, rec.MemberID, rec.ConversationID, rec.LastActive)
		return err
	})
	switch {
	case storeErr != nil:
		errs = append(errs, fmt.Errorf("%w: mark warned: %w", ErrStoreUnavailable, storeErr))
	case !hit:
		out.Stale = true
	}

	if dmErr == nil {
		out.Done = true
		out.Name = e.displayName(ctx, rec)
	}
	out.Err = errors.Join(errs...)
	return out
}

// remove takes the member out of the chat and, only if that worked, drops
// the record.
func (e *Engine) remove(ctx context.Context, rec store.ActivityRecord) ActionOutcome {
	out := ActionOutcome{MemberID: rec.MemberID, Action: ActionRemove}

	err := e.call(ctx, func(ctx context.Context) error {
		return e.Messenger.RemoveMember(ctx, rec.ConversationID, rec.MemberID)
	})
	if err != nil {
		out.Err = fmt.Errorf("%w: %w", ErrRemovalFailed, err)
		return out
	}
	out.Done = true
	out.Name = e.displayName(ctx, rec)

	var hit bool
	err = e.call(ctx, func(ctx context.Context) error {
		var err error
		hit, err = e.Store.Remove(ctx, rec.MemberID, rec.ConversationID)
		return err
	})
	switch {
	case err != nil:
		out.Err = fmt.Errorf("%w: delete record: %w", ErrStoreUnavailable, err)
	case !hit:
		out.Stale = true
	}
	return out
}

// displayName asks the platform, then falls back to the stored name and
// finally the raw id.
func (e *Engine) displayName(ctx context.Context, rec store.ActivityRecord) string {
	var name string
	err := e.call(ctx, func(ctx context.Context) error {
		var err error
		name, err = e.Messenger.ResolveDisplayName(ctx, rec.ConversationID, rec.MemberID)
		return err
	})
	if err == nil && name != "" {
		return name
	}
	if err != nil {
		e.Logger.Debug("using fallback name",
			"chat", rec.ConversationID, "member", rec.MemberID,
			"err", fmt.Errorf("%w: %w", ErrNameResolution, err))
	}
	if rec.DisplayName != "" {
		return rec.DisplayName
	}
	return strconv.FormatInt(rec.MemberID, 10)
}

func (e *Engine) broadcast(ctx context.Context, chatID int64, kind, text string) error {
	err := e.call(ctx, func(ctx context.Context) error {
		return e.Messenger.SendConversationMessage(ctx, chatID, text, ParseModeHTML)
	})
	if err != nil {
		summariesSent.WithLabelValues(kind, "error").Inc()
		return fmt.Errorf("%w: %s summary: %w", ErrDeliveryFailed, kind, err)
	}
	summariesSent.WithLabelValues(kind, "ok").Inc()
	return nil
}

func (e *Engine) report(log *slog.Logger, out ActionOutcome) {
	status := "ok"
	switch {
	case !out.Done:
		status = "failed"
	case out.Err != nil:
		status = "partial"
	}
	actionsTaken.WithLabelValues(string(out.Action), status).Inc()

	if out.Err != nil {
		log.Warn("action failed", "action", out.Action, "member", out.MemberID, "done", out.Done, "err", out.Err)
		return
	}
	log.Info("action taken", "action", out.Action, "member", out.MemberID, "name", out.Name, "stale", out.Stale)
}
