package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"pantrywatch/internal/types"
)

// Namespace and key names. These are bit-exact with the persisted contract:
// test fixtures and any state written by earlier versions depend on them.
const (
	nsSeen      = "seen_notifications"
	nsSnooze    = "active_snooze"
	nsNotify    = "notify_state"
	nsCount     = "notification_count"
	nsAttention = "attention_items"
	nsRetries   = "snooze_retries"
	nsUserPrefs = "UserPrefs"
	nsLowDays   = "consecutive_days"
	nsCheckDate = "last_check_date"
	nsForgotten = "forgotten_notification_dates"
	nsPresetUse = "snooze_frequencies"

	keyLastSeenDate     = "last_seen_date"
	keyIsSnoozed        = "is_snoozed"
	keySnoozeDate       = "snooze_date"
	keySnoozeNextAt     = "snooze_next_at"
	keySnoozeRetryCount = "snooze_retry_count"
	keyLastNotifyDate   = "last_notify_date"
	keyLastNotifyTime   = "last_notify_time"
	keyExpired          = "expired"
	keyLow              = "low"
	keyForgotten        = "forgotten"
	keyAttentionDate    = "attention_items_date"
	keyMaxPerDay        = "maxNotificationsPerDay"
	keySavedSnoozes     = "saved_snoozes"
)

// RunState exposes each persisted namespace as a typed load/save pair over a
// raw KV backend. Values are created lazily with their documented defaults;
// a missing namespace is indistinguishable from one holding defaults.
type RunState struct {
	kv KV
}

// NewRunState wraps the given KV backend.
func NewRunState(kv KV) *RunState {
	return &RunState{kv: kv}
}

// --- seen_notifications ---

// Seen loads the seen-acknowledgement state.
func (r *RunState) Seen(ctx context.Context) (types.SeenState, error) {
	v, _, err := r.kv.Get(ctx, nsSeen, keyLastSeenDate)
	if err != nil {
		return types.SeenState{}, err
	}
	return types.SeenState{LastSeenDate: v}, nil
}

// SetSeen persists the seen-acknowledgement state.
func (r *RunState) SetSeen(ctx context.Context, s types.SeenState) error {
	return r.kv.Set(ctx, nsSeen, map[string]string{keyLastSeenDate: s.LastSeenDate})
}

// --- active_snooze ---

// Snooze loads the snooze episode state. Defaults: not snoozed, zero NextAt,
// RetryCount -1 ("not yet delivered under this episode").
func (r *RunState) Snooze(ctx context.Context) (types.SnoozeState, error) {
	s := types.SnoozeState{RetryCount: -1}

	if v, ok, err := r.kv.Get(ctx, nsSnooze, keyIsSnoozed); err != nil {
		return s, err
	} else if ok {
		s.IsSnoozed = v == "true"
	}
	if v, ok, err := r.kv.Get(ctx, nsSnooze, keySnoozeDate); err != nil {
		return s, err
	} else if ok {
		s.SnoozeDate = v
	}
	if v, ok, err := r.kv.Get(ctx, nsSnooze, keySnoozeNextAt); err != nil {
		return s, err
	} else if ok {
		s.NextAt = parseMillis(v)
	}
	if v, ok, err := r.kv.Get(ctx, nsSnooze, keySnoozeRetryCount); err != nil {
		return s, err
	} else if ok {
		s.RetryCount = clampRetry(parseInt(v, -1))
	}
	return s, nil
}

// SetSnooze persists the full snooze episode state.
func (r *RunState) SetSnooze(ctx context.Context, s types.SnoozeState) error {
	return r.kv.Set(ctx, nsSnooze, map[string]string{
		keyIsSnoozed:        strconv.FormatBool(s.IsSnoozed),
		keySnoozeDate:       s.SnoozeDate,
		keySnoozeNextAt:     formatMillis(s.NextAt),
		keySnoozeRetryCount: strconv.Itoa(clampRetry(s.RetryCount)),
	})
}

// SetSnoozeNextAt overwrites only the next-delivery timestamp. Arming a
// forward auto-resend advertises its due time here so the watchdog can tell
// when the expected delivery is overdue.
func (r *RunState) SetSnoozeNextAt(ctx context.Context, at time.Time) error {
	return r.kv.Set(ctx, nsSnooze, map[string]string{keySnoozeNextAt: formatMillis(at)})
}

// ClearSnoozeFlag drops only the is_snoozed flag, preserving the rest of the
// episode. Used by the daily rollover, which must keep nextAt visible to the
// watchdog.
func (r *RunState) ClearSnoozeFlag(ctx context.Context) error {
	return r.kv.Set(ctx, nsSnooze, map[string]string{keyIsSnoozed: "false"})
}

// --- notify_state ---

// Notify loads the last-delivery stamp.
func (r *RunState) Notify(ctx context.Context) (types.NotifyState, error) {
	s := types.NotifyState{}
	if v, ok, err := r.kv.Get(ctx, nsNotify, keyLastNotifyDate); err != nil {
		return s, err
	} else if ok {
		s.LastNotifyDate = v
	}
	if v, ok, err := r.kv.Get(ctx, nsNotify, keyLastNotifyTime); err != nil {
		return s, err
	} else if ok {
		s.LastNotifyTime = parseMillis(v)
	}
	return s, nil
}

// SetNotify persists the last-delivery stamp.
func (r *RunState) SetNotify(ctx context.Context, s types.NotifyState) error {
	return r.kv.Set(ctx, nsNotify, map[string]string{
		keyLastNotifyDate: s.LastNotifyDate,
		keyLastNotifyTime: formatMillis(s.LastNotifyTime),
	})
}

// --- notification_count ---

// DailyCount returns the delivered-notification count for the given day key.
func (r *RunState) DailyCount(ctx context.Context, day string) (int, error) {
	v, ok, err := r.kv.Get(ctx, nsCount, day)
	if err != nil || !ok {
		return 0, err
	}
	return parseInt(v, 0), nil
}

// IncrementDailyCount bumps the count for day and returns the new value.
// Counts are keyed per calendar day and never decremented.
func (r *RunState) IncrementDailyCount(ctx context.Context, day string) (int, error) {
	n, err := r.DailyCount(ctx, day)
	if err != nil {
		return 0, err
	}
	n++
	if err := r.kv.Set(ctx, nsCount, map[string]string{day: strconv.Itoa(n)}); err != nil {
		return 0, err
	}
	return n, nil
}

// --- attention_items ---

// Attention loads the cached scanner output for UI display.
func (r *RunState) Attention(ctx context.Context) (types.AttentionLists, error) {
	lists := types.AttentionLists{}
	if v, ok, err := r.kv.Get(ctx, nsAttention, keyExpired); err != nil {
		return lists, err
	} else if ok {
		lists.Expired = splitCSV(v)
	}
	if v, ok, err := r.kv.Get(ctx, nsAttention, keyLow); err != nil {
		return lists, err
	} else if ok {
		lists.Low = splitCSV(v)
	}
	if v, ok, err := r.kv.Get(ctx, nsAttention, keyForgotten); err != nil {
		return lists, err
	} else if ok {
		lists.Forgotten = splitCSV(v)
	}
	if v, ok, err := r.kv.Get(ctx, nsAttention, keyAttentionDate); err != nil {
		return lists, err
	} else if ok {
		lists.Date = v
	}
	return lists, nil
}

// SetAttention persists the scanner output. When the stored date differs from
// lists.Date the stale lists are removed first, mirroring the daily rollover.
func (r *RunState) SetAttention(ctx context.Context, lists types.AttentionLists) error {
	prevDate, _, err := r.kv.Get(ctx, nsAttention, keyAttentionDate)
	if err != nil {
		return err
	}
	if prevDate != lists.Date {
		if err := r.kv.Delete(ctx, nsAttention, keyExpired, keyLow, keyForgotten); err != nil {
			return err
		}
	}
	return r.kv.Set(ctx, nsAttention, map[string]string{
		keyExpired:       strings.Join(lists.Expired, ","),
		keyLow:           strings.Join(lists.Low, ","),
		keyForgotten:     strings.Join(lists.Forgotten, ","),
		keyAttentionDate: lists.Date,
	})
}

// --- snooze_retries ---

// TypeRetries returns the per-type snooze retry counter.
func (r *RunState) TypeRetries(ctx context.Context, typ string) (int, error) {
	v, ok, err := r.kv.Get(ctx, nsRetries, typ)
	if err != nil || !ok {
		return 0, err
	}
	return parseInt(v, 0), nil
}

// SetTypeRetries sets the per-type snooze retry counter.
func (r *RunState) SetTypeRetries(ctx context.Context, typ string, n int) error {
	return r.kv.Set(ctx, nsRetries, map[string]string{typ: strconv.Itoa(n)})
}

// --- UserPrefs ---

// MaxPerDay returns the user's daily notification limit, defaulting when the
// preference was never written.
func (r *RunState) MaxPerDay(ctx context.Context) (int, error) {
	v, ok, err := r.kv.Get(ctx, nsUserPrefs, keyMaxPerDay)
	if err != nil {
		return 0, err
	}
	if !ok {
		return types.DefaultMaxNotificationsPerDay, nil
	}
	return parseInt(v, types.DefaultMaxNotificationsPerDay), nil
}

// SetMaxPerDay stores the user's daily notification limit.
func (r *RunState) SetMaxPerDay(ctx context.Context, n int) error {
	return r.kv.Set(ctx, nsUserPrefs, map[string]string{keyMaxPerDay: strconv.Itoa(n)})
}

// --- per-item scanner counters ---

// LowStreak returns the consecutive-low-day counter for an item.
func (r *RunState) LowStreak(ctx context.Context, itemID string) (int, error) {
	v, ok, err := r.kv.Get(ctx, nsLowDays, "low_"+itemID)
	if err != nil || !ok {
		return 0, err
	}
	return parseInt(v, 0), nil
}

// SetLowStreak stores the consecutive-low-day counter for an item.
func (r *RunState) SetLowStreak(ctx context.Context, itemID string, n int) error {
	return r.kv.Set(ctx, nsLowDays, map[string]string{"low_" + itemID: strconv.Itoa(n)})
}

// LastCheckDay returns the day key of the item's last low-consumption check.
func (r *RunState) LastCheckDay(ctx context.Context, itemID string) (string, error) {
	v, _, err := r.kv.Get(ctx, nsCheckDate, "last_check_"+itemID)
	return v, err
}

// SetLastCheckDay stamps the item's low-consumption check day.
func (r *RunState) SetLastCheckDay(ctx context.Context, itemID, day string) error {
	return r.kv.Set(ctx, nsCheckDate, map[string]string{"last_check_" + itemID: day})
}

// ForgottenNotifiedDay returns the local-midnight stamp of the item's last
// forgotten-reminder day. A legacy raw-timestamp entry under the bare item id
// is migrated to the _day key on first read, rounded to midnight in loc.
func (r *RunState) ForgottenNotifiedDay(ctx context.Context, itemID string, loc *time.Location) (time.Time, error) {
	v, ok, err := r.kv.Get(ctx, nsForgotten, itemID+"_day")
	if err != nil {
		return time.Time{}, err
	}
	if ok {
		return parseMillis(v), nil
	}

	legacy, ok, err := r.kv.Get(ctx, nsForgotten, itemID)
	if err != nil || !ok {
		return time.Time{}, err
	}
	at := parseMillis(legacy)
	if at.IsZero() {
		return time.Time{}, nil
	}
	lt := at.In(loc)
	day := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
	if err := r.kv.Set(ctx, nsForgotten, map[string]string{itemID + "_day": formatMillis(day)}); err != nil {
		return time.Time{}, err
	}
	return day, nil
}

// SetForgottenNotifiedDay stamps the item's forgotten-reminder day.
func (r *RunState) SetForgottenNotifiedDay(ctx context.Context, itemID string, day time.Time) error {
	return r.kv.Set(ctx, nsForgotten, map[string]string{itemID + "_day": formatMillis(day)})
}

// --- snooze presets ---

// Presets returns the saved snooze presets, seeding the defaults when the
// preference is missing or empty.
func (r *RunState) Presets(ctx context.Context) ([]types.SnoozePreset, error) {
	v, ok, err := r.kv.Get(ctx, nsUserPrefs, keySavedSnoozes)
	if err != nil {
		return nil, err
	}
	if !ok || v == "" {
		defaults := types.DefaultSnoozePresets()
		if err := r.SetPresets(ctx, defaults); err != nil {
			return nil, err
		}
		return defaults, nil
	}
	var presets []types.SnoozePreset
	if err := json.Unmarshal([]byte(v), &presets); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "corrupt saved snoozes", err)
	}
	return presets, nil
}

// SetPresets stores the full preset list.
func (r *RunState) SetPresets(ctx context.Context, presets []types.SnoozePreset) error {
	raw, err := json.Marshal(presets)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode presets", err)
	}
	return r.kv.Set(ctx, nsUserPrefs, map[string]string{keySavedSnoozes: string(raw)})
}

// PresetUseCount returns how often the preset value has been chosen.
func (r *RunState) PresetUseCount(ctx context.Context, value string) (int, error) {
	v, ok, err := r.kv.Get(ctx, nsPresetUse, value)
	if err != nil || !ok {
		return 0, err
	}
	return parseInt(v, 0), nil
}

// BumpPresetUse increments the preset's selection frequency.
func (r *RunState) BumpPresetUse(ctx context.Context, value string) error {
	n, err := r.PresetUseCount(ctx, value)
	if err != nil {
		return err
	}
	return r.kv.Set(ctx, nsPresetUse, map[string]string{value: strconv.Itoa(n + 1)})
}

// --- helpers ---

func clampRetry(n int) int {
	if n < -1 {
		return -1
	}
	if n > types.MaxSnoozeRetries {
		return types.MaxSnoozeRetries
	}
	return n
}

func parseInt(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// parseMillis decodes a unix-millisecond string; zero or invalid input yields
// the zero time.
func parseMillis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// formatMillis encodes a time as unix milliseconds; the zero time encodes as
// "0" so that "no pending alarm" round-trips.
func formatMillis(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return fmt.Sprintf("%d", t.UnixMilli())
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
