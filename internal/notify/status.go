package notify

import (
	"context"
	"fmt"
	"time"

	"pantrywatch/internal/types"
	"pantrywatch/internal/window"
)

// Status is the notification center snapshot: a one-line situation summary,
// the next expected delivery time (when it lands inside the allowed hours),
// the cached attention lists, and today's delivery budget.
type Status struct {
	Situation    string               `json:"situation"`
	SeenToday    bool                 `json:"seenToday"`
	NextNotifyAt *time.Time           `json:"nextNotifyAt,omitempty"`
	CanSnooze    bool                 `json:"canSnooze"`
	Expired      []string             `json:"expired"`
	Low          []string             `json:"low"`
	Forgotten    []string             `json:"forgotten"`
	ListsDate    string               `json:"listsDate"`
	TodayCount   int                  `json:"todayCount"`
	DailyLimit   int                  `json:"dailyLimit"`
	Presets      []types.SnoozePreset `json:"-"`
}

// Status summarizes the engine's current delivery situation. Precedence:
// quiet hours, then seen, then an active snooze (which overrides the daily
// limit), then the limit, then the normal auto-retry cadence.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	now := e.clock.Now()
	today := window.DayKey(now, e.loc)

	seen, err := e.state.Seen(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("Status: %w", err)
	}
	snooze, err := e.state.Snooze(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("Status: %w", err)
	}
	notifyState, err := e.state.Notify(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("Status: %w", err)
	}
	count, err := e.state.DailyCount(ctx, today)
	if err != nil {
		return Status{}, fmt.Errorf("Status: %w", err)
	}
	limit, err := e.state.MaxPerDay(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("Status: %w", err)
	}
	lists, err := e.state.Attention(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("Status: %w", err)
	}

	st := Status{
		SeenToday:  seen.LastSeenDate == today,
		Expired:    lists.Expired,
		Low:        lists.Low,
		Forgotten:  lists.Forgotten,
		ListsDate:  lists.Date,
		TodayCount: count,
		DailyLimit: limit,
	}

	snoozedToday := snooze.IsSnoozed && snooze.SnoozeDate == today
	atLimit := count >= limit

	switch {
	case !window.WithinAt(now, e.loc):
		st.Situation = "Quiet hours (9pm - 7am)"
	case st.SeenToday:
		st.Situation = "Seen"
	case snoozedToday:
		switch {
		case snooze.RetryCount == -1:
			st.Situation = "Snoozed"
		default:
			retry := snooze.RetryCount
			if retry > types.MaxSnoozeRetries {
				retry = types.MaxSnoozeRetries
			}
			st.Situation = fmt.Sprintf("Snoozed (retry: %d/%d)", retry, types.MaxSnoozeRetries)
		}
		st.CanSnooze = true
		st.NextNotifyAt = displayableNext(snooze.NextAt, e.loc)
	case atLimit:
		st.Situation = "Max notification limit reached"
		st.CanSnooze = true
	default:
		st.Situation = fmt.Sprintf("2 hrs Auto Retry (%d/%d)", count, limit)
		st.CanSnooze = true
		if !notifyState.LastNotifyTime.IsZero() {
			st.NextNotifyAt = displayableNext(notifyState.LastNotifyTime.Add(AutoResendInterval), e.loc)
		}
	}
	return st, nil
}

// displayableNext returns the next delivery time only when it lands inside
// the allowed hours; a due time in quiet hours displays as none.
func displayableNext(at time.Time, loc *time.Location) *time.Time {
	if at.IsZero() || !window.WithinAt(at, loc) {
		return nil
	}
	local := at.In(loc)
	return &local
}
