// Package notify holds the notification decision engine: the gate that
// decides whether a check cycle may deliver, the grouped-notification
// rendering, the post-delivery bookkeeping, and the watchdog recovery
// decision. All persisted counters live in the run state; the engine is the
// only writer of the snooze and delivery namespaces.
package notify

import "time"

// Timing constants for the layered retry model.
const (
	// AutoResendInterval is the forward re-reminder horizon after a fresh
	// auto delivery, and the minimum cooldown between two auto deliveries
	// on the same day.
	AutoResendInterval = 2 * time.Hour

	// SnoozeRetryInterval spaces the automatic redeliveries inside a snooze
	// episode.
	SnoozeRetryInterval = 10 * time.Minute

	// GuardRetryInterval is the short reschedule applied when a check is
	// blocked by quiet hours or an inactive user.
	GuardRetryInterval = 5 * time.Minute

	// ColdStartRetryInterval is the quick reschedule applied when the
	// identity provider has not resolved a user yet.
	ColdStartRetryInterval = time.Minute
)

// AlarmType identifies the originating concern of a scheduled check. Types
// and paths together form the deterministic alarm identity: scheduling the
// same (type, path) pair replaces the previous alarm.
type AlarmType string

const (
	AlarmExpired   AlarmType = "expired"
	AlarmLow       AlarmType = "low_consumption"
	AlarmForgotten AlarmType = "forgotten"
	AlarmGroup     AlarmType = "group"
	AlarmDailyKick AlarmType = "daily_kick"
	AlarmWatchdog  AlarmType = "watchdog"
)

// Path distinguishes the auto-resend alarm family from the snooze-retry
// family. Each (type, path) pair is an independent alarm slot.
type Path int

const (
	PathAuto Path = iota
	PathRetry
)

// String returns the persisted identity suffix for the path.
func (p Path) String() string {
	if p == PathRetry {
		return "retry"
	}
	return "auto"
}

// Kind discriminates the check trigger.
type Kind int

const (
	// KindAuto is a scheduled or startup-driven check on the auto path.
	KindAuto Kind = iota

	// KindSnooze is a snooze-retry delivery attempt.
	KindSnooze

	// KindForcedRefresh bypasses every gate guard; used by the UI to
	// recompute attention lists on demand.
	KindForcedRefresh

	// KindWatchdogForced is a recovery delivery triggered by the watchdog
	// after detecting a missed alarm. It passes through the normal guards
	// but skips the daily-count cap when recovering a non-snoozed miss.
	KindWatchdogForced
)

// String returns the log name of the trigger kind.
func (k Kind) String() string {
	switch k {
	case KindAuto:
		return "auto"
	case KindSnooze:
		return "snooze"
	case KindForcedRefresh:
		return "forced_refresh"
	case KindWatchdogForced:
		return "watchdog_forced"
	default:
		return "unknown"
	}
}

// Reason is the tagged trigger descriptor for one check cycle.
type Reason struct {
	Kind Kind

	// Type is the originating alarm type; empty for API-triggered checks.
	Type AlarmType

	// UIOnly applies to KindForcedRefresh: compute and persist the lists
	// without rendering or advancing any delivery state.
	UIOnly bool

	// SnoozeActive applies to KindWatchdogForced: whether a snooze episode
	// was active when the watchdog fired, which routes the recovery down
	// the snooze path instead of the auto path.
	SnoozeActive bool
}

// AutoReason builds an auto-path check trigger.
func AutoReason(t AlarmType) Reason { return Reason{Kind: KindAuto, Type: t} }

// SnoozeReason builds a snooze-retry check trigger.
func SnoozeReason(t AlarmType) Reason { return Reason{Kind: KindSnooze, Type: t} }

// RefreshReason builds a forced refresh trigger.
func RefreshReason(uiOnly bool) Reason { return Reason{Kind: KindForcedRefresh, UIOnly: uiOnly} }

// WatchdogReason builds a watchdog recovery trigger.
func WatchdogReason(snoozeActive bool) Reason {
	return Reason{Kind: KindWatchdogForced, Type: AlarmWatchdog, SnoozeActive: snoozeActive}
}

// fromSnooze reports whether this trigger starts on the snooze path.
func (r Reason) fromSnooze() bool {
	return r.Kind == KindSnooze || (r.Kind == KindWatchdogForced && r.SnoozeActive)
}

// force reports whether the gate guards are bypassed entirely.
func (r Reason) force() bool {
	return r.Kind == KindForcedRefresh
}

// watchdogAuto reports whether this is a watchdog recovery on the auto path,
// which is exempt from the daily-count cap and the snooze delivery guard.
func (r Reason) watchdogAuto() bool {
	return r.Kind == KindWatchdogForced && !r.SnoozeActive
}

// uiOnly reports whether rendering and bookkeeping are suppressed.
func (r Reason) uiOnly() bool {
	return r.Kind == KindForcedRefresh && r.UIOnly
}

// retryType is the alarm type used when this check has to reschedule itself.
func (r Reason) retryType() AlarmType {
	if r.Type != "" {
		return r.Type
	}
	return AlarmExpired
}
