package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pantrywatch/internal/scan"
	"pantrywatch/internal/store"
	"pantrywatch/internal/types"
	"pantrywatch/internal/window"
)

// Notifier delivers a rendered payload to the user. The bool result reports
// whether the notification was actually shown; a false with nil error means
// delivery was declined downstream (for example revoked permission) and no
// bookkeeping state may advance.
type Notifier interface {
	Send(ctx context.Context, p Payload) (bool, error)
}

// AlarmScheduler is the engine's view of the alarm registry. Scheduling the
// same (type, path) pair replaces any pending alarm for that pair.
type AlarmScheduler interface {
	Schedule(typ AlarmType, path Path, at time.Time)
	CancelResendAndSnooze()
}

// Engine is the notification decision engine. One engine instance owns all
// delivery state; RunCheck serializes cycles under an internal lock so that
// overlapping alarm fires cannot interleave their bookkeeping.
type Engine struct {
	mu sync.Mutex

	items    types.ItemStore
	identity types.Identity
	presence types.Presence
	state    *store.RunState
	scanner  *scan.Scanner
	notifier Notifier
	alarms   AlarmScheduler
	clock    types.Clock
	loc      *time.Location
	logger   types.Logger
}

// NewEngine wires the engine.
func NewEngine(
	items types.ItemStore,
	identity types.Identity,
	presence types.Presence,
	state *store.RunState,
	scanner *scan.Scanner,
	notifier Notifier,
	alarms AlarmScheduler,
	clock types.Clock,
	loc *time.Location,
	logger types.Logger,
) *Engine {
	return &Engine{
		items:    items,
		identity: identity,
		presence: presence,
		state:    state,
		scanner:  scanner,
		notifier: notifier,
		alarms:   alarms,
		clock:    clock,
		loc:      loc,
		logger:   logger,
	}
}

// RunCheck executes one full check cycle for the given trigger: gate guards,
// fresh item fetch, attention scan, then the delivery decision. A guard that
// blocks the cycle either reschedules a short retry or stops silently; both
// outcomes return nil.
func (e *Engine) RunCheck(ctx context.Context, r Reason) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	today := window.DayKey(now, e.loc)
	log := e.logger.With("trigger", r.Kind, "type", string(r.Type))

	snooze, err := e.state.Snooze(ctx)
	if err != nil {
		return fmt.Errorf("RunCheck: %w", err)
	}
	// Day rollover auto-expires any snooze episode.
	if snooze.IsSnoozed && snooze.SnoozeDate != today {
		if err := e.state.ClearSnoozeFlag(ctx); err != nil {
			return fmt.Errorf("RunCheck: %w", err)
		}
		snooze.IsSnoozed = false
		log.Info("new day, snooze flag cleared")
	}

	fromSnooze := r.fromSnooze()

	if !r.force() {
		if !fromSnooze && snooze.IsSnoozed {
			if !snooze.NextAt.IsZero() && !now.Before(snooze.NextAt) {
				// The snooze window already elapsed; this auto run catches
				// up and delivers as the snooze alarm would have.
				fromSnooze = true
				log.Info("auto run after snooze end, promoted to snooze delivery")
			} else {
				log.Info("snooze guard active, skipping auto check", "nextAt", snooze.NextAt)
				return nil
			}
		}

		if fromSnooze {
			if !window.WithinAt(now, e.loc) {
				e.alarms.Schedule(r.retryType(), PathRetry, now.Add(GuardRetryInterval))
				log.Info("snooze delivery outside allowed hours, retry scheduled")
				return nil
			}
		} else {
			if !window.WithinAt(now, e.loc) || !e.presence.Interactive() {
				e.alarms.Schedule(r.retryType(), PathAuto, now.Add(GuardRetryInterval))
				log.Info("auto check blocked by hours or inactive user, retry scheduled")
				return nil
			}
			if !r.watchdogAuto() {
				count, err := e.state.DailyCount(ctx, today)
				if err != nil {
					return fmt.Errorf("RunCheck: %w", err)
				}
				limit, err := e.state.MaxPerDay(ctx)
				if err != nil {
					return fmt.Errorf("RunCheck: %w", err)
				}
				if count >= limit {
					log.Info("daily notification limit reached", "count", count, "limit", limit)
					return nil
				}
			}
		}
	}

	userID, err := e.identity.CurrentUserID(ctx)
	if err != nil {
		return fmt.Errorf("RunCheck: %w", err)
	}
	if userID == "" {
		path := PathAuto
		if fromSnooze {
			path = PathRetry
		}
		e.alarms.Schedule(r.retryType(), path, now.Add(ColdStartRetryInterval))
		log.Warn("identity not ready, quick retry scheduled")
		return nil
	}

	items, err := e.items.GetItems(ctx, userID)
	if err != nil {
		return fmt.Errorf("RunCheck: %w", err)
	}
	res, err := e.scanner.Scan(ctx, items, !r.uiOnly())
	if err != nil {
		return fmt.Errorf("RunCheck: %w", err)
	}
	return e.deliver(ctx, r, fromSnooze, res, now, today, log)
}

// deliver applies the delivery decision and post-delivery bookkeeping for a
// cycle that passed the gate.
func (e *Engine) deliver(ctx context.Context, r Reason, fromSnooze bool, res scan.Result, now time.Time, today string, log types.Logger) error {
	// Lists are always persisted for the UI, even when nothing is shown.
	err := e.state.SetAttention(ctx, types.AttentionLists{
		Expired:   res.Expired,
		Low:       res.LowConsumption,
		Forgotten: res.Forgotten,
		Date:      today,
	})
	if err != nil {
		return fmt.Errorf("deliver: %w", err)
	}

	if r.uiOnly() {
		log.Info("display-only refresh, lists updated without delivery")
		return nil
	}
	if res.Empty() {
		return nil
	}

	seen, err := e.state.Seen(ctx)
	if err != nil {
		return fmt.Errorf("deliver: %w", err)
	}
	if !fromSnooze && seen.LastSeenDate == today {
		log.Info("already seen today, skipping")
		return nil
	}

	snooze, err := e.state.Snooze(ctx)
	if err != nil {
		return fmt.Errorf("deliver: %w", err)
	}
	if !fromSnooze && !r.watchdogAuto() && snooze.IsSnoozed {
		log.Info("snooze owns delivery rights, skipping auto delivery")
		return nil
	}

	notifyState, err := e.state.Notify(ctx)
	if err != nil {
		return fmt.Errorf("deliver: %w", err)
	}
	count, err := e.state.DailyCount(ctx, today)
	if err != nil {
		return fmt.Errorf("deliver: %w", err)
	}
	limit, err := e.state.MaxPerDay(ctx)
	if err != nil {
		return fmt.Errorf("deliver: %w", err)
	}

	if !fromSnooze && !r.watchdogAuto() && notifyState.LastNotifyDate == today {
		if count >= limit {
			log.Info("daily notification limit reached", "count", count, "limit", limit)
			return nil
		}
		if elapsed := now.Sub(notifyState.LastNotifyTime); elapsed < AutoResendInterval {
			log.Info("auto cooldown active, skipping", "elapsed", elapsed)
			return nil
		}
	}

	payload := buildPayload(res, fromSnooze && !r.watchdogAuto(), snooze.RetryCount)
	shown, err := e.notifier.Send(ctx, payload)
	if err != nil {
		log.Error("notification delivery failed", "error", err)
		shown = false
	}

	if shown {
		if fromSnooze && !r.watchdogAuto() {
			delivered := 0
			if snooze.RetryCount >= 0 {
				delivered = snooze.RetryCount + 1
				if delivered > types.MaxSnoozeRetries {
					delivered = types.MaxSnoozeRetries
				}
			}
			var nextAt time.Time
			if delivered < types.MaxSnoozeRetries {
				nextAt = now.Add(SnoozeRetryInterval)
			}
			err := e.state.SetSnooze(ctx, types.SnoozeState{
				IsSnoozed:  true,
				SnoozeDate: today,
				NextAt:     nextAt,
				RetryCount: delivered,
			})
			if err != nil {
				return fmt.Errorf("deliver: %w", err)
			}
			if !nextAt.IsZero() {
				e.alarms.Schedule(AlarmGroup, PathRetry, nextAt)
			}
			log.Info("snooze notification sent", "retryCount", delivered)
		} else {
			if err := e.state.SetNotify(ctx, types.NotifyState{LastNotifyDate: today, LastNotifyTime: now}); err != nil {
				return fmt.Errorf("deliver: %w", err)
			}
			newCount, err := e.state.IncrementDailyCount(ctx, today)
			if err != nil {
				return fmt.Errorf("deliver: %w", err)
			}
			// A fresh auto/watchdog delivery supersedes any in-flight
			// snooze episode.
			err = e.state.SetSnooze(ctx, types.SnoozeState{RetryCount: -1})
			if err != nil {
				return fmt.Errorf("deliver: %w", err)
			}
			log.Info("auto notification sent", "todayCount", newCount)
		}
	}

	// Forward re-reminders per present category. These arm even when the
	// render was declined so the next attempt still happens.
	if !fromSnooze {
		if len(res.Expired) > 0 {
			if err := e.armAutoResend(ctx, AlarmExpired, now); err != nil {
				return fmt.Errorf("deliver: %w", err)
			}
		}
		if len(res.LowConsumption) > 0 {
			if err := e.armAutoResend(ctx, AlarmLow, now); err != nil {
				return fmt.Errorf("deliver: %w", err)
			}
		}
		if len(res.Forgotten) > 0 {
			if err := e.armAutoResend(ctx, AlarmForgotten, now); err != nil {
				return fmt.Errorf("deliver: %w", err)
			}
		}
	}
	return nil
}

// armAutoResend schedules the per-category forward reminder and advertises
// its due time so the watchdog can detect a missed fire.
func (e *Engine) armAutoResend(ctx context.Context, typ AlarmType, now time.Time) error {
	when := now.Add(AutoResendInterval)
	e.alarms.Schedule(typ, PathAuto, when)
	return e.state.SetSnoozeNextAt(ctx, when)
}

// MarkSeen acknowledges the current notification: all pending resend and
// snooze-retry alarms are cancelled, today is stamped as seen, and the group
// retry counter resets.
func (e *Engine) MarkSeen(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.alarms.CancelResendAndSnooze()

	today := window.DayKey(e.clock.Now(), e.loc)
	if err := e.state.SetSeen(ctx, types.SeenState{LastSeenDate: today}); err != nil {
		return fmt.Errorf("MarkSeen: %w", err)
	}
	if err := e.state.SetTypeRetries(ctx, string(AlarmGroup), 0); err != nil {
		return fmt.Errorf("MarkSeen: %w", err)
	}
	e.logger.Info("notification marked seen", "date", today)
	return nil
}

// Snooze starts a user-chosen snooze episode ending after d. The resulting
// delivery time must land inside the allowed hours; otherwise the request is
// rejected and no state changes.
func (e *Engine) Snooze(ctx context.Context, d time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if d <= 0 {
		return types.NewAppError(types.ErrCodeValidationSnoozeDuration, "Duration must be > 0", nil)
	}
	now := e.clock.Now()
	trigger := now.Add(d)
	if !window.WithinAt(trigger, e.loc) {
		return types.NewAppError(types.ErrCodeValidationSnoozeWindow,
			"Snooze must end between 7:00 AM and 9:00 PM.", nil)
	}

	e.alarms.CancelResendAndSnooze()

	for _, typ := range []AlarmType{AlarmExpired, AlarmLow, AlarmForgotten} {
		if err := e.state.SetTypeRetries(ctx, string(typ), 0); err != nil {
			return fmt.Errorf("Snooze: %w", err)
		}
	}

	err := e.state.SetSnooze(ctx, types.SnoozeState{
		IsSnoozed:  true,
		SnoozeDate: window.DayKey(now, e.loc),
		NextAt:     trigger,
		RetryCount: -1,
	})
	if err != nil {
		return fmt.Errorf("Snooze: %w", err)
	}

	e.alarms.Schedule(AlarmGroup, PathRetry, trigger)
	e.logger.Info("snooze set", "until", trigger)
	return nil
}

// RunWatchdog checks for a missed delivery and forces a recovery cycle when
// one is detected. A recovery is warranted when the advertised next delivery
// time has passed without a matching delivery, the user has not acknowledged
// today, and the engine is not in a hard stop (snooze retries exhausted AND
// daily cap hit together).
func (e *Engine) RunWatchdog(ctx context.Context) error {
	now := e.clock.Now()
	today := window.DayKey(now, e.loc)

	seen, err := e.state.Seen(ctx)
	if err != nil {
		return fmt.Errorf("RunWatchdog: %w", err)
	}
	snooze, err := e.state.Snooze(ctx)
	if err != nil {
		return fmt.Errorf("RunWatchdog: %w", err)
	}
	notifyState, err := e.state.Notify(ctx)
	if err != nil {
		return fmt.Errorf("RunWatchdog: %w", err)
	}
	count, err := e.state.DailyCount(ctx, today)
	if err != nil {
		return fmt.Errorf("RunWatchdog: %w", err)
	}
	limit, err := e.state.MaxPerDay(ctx)
	if err != nil {
		return fmt.Errorf("RunWatchdog: %w", err)
	}

	seenToday := seen.LastSeenDate == today
	overdue := !snooze.NextAt.IsZero() && !now.Before(snooze.NextAt)
	nothingFiredSince := notifyState.LastNotifyTime.Before(snooze.NextAt) || notifyState.LastNotifyDate != today
	atLastSnooze := snooze.RetryCount >= types.MaxSnoozeRetries
	hitDailyCap := count >= limit
	bothHardStop := atLastSnooze && hitDailyCap

	e.logger.Info("watchdog check",
		"seenToday", seenToday,
		"overdue", overdue,
		"nothingFiredSince", nothingFiredSince,
		"atLastSnooze", atLastSnooze,
		"hitDailyCap", hitDailyCap,
		"isSnoozed", snooze.IsSnoozed,
	)

	if !seenToday && overdue && nothingFiredSince && !bothHardStop {
		return e.RunCheck(ctx, WatchdogReason(snooze.IsSnoozed))
	}
	return nil
}
