// Package sched provides the in-process alarm layer: a registry of pending
// timers keyed by (type, path), the recurring watchdog, and the daily morning
// kick. Alarm identity is deterministic, so re-scheduling a pair replaces the
// pending timer instead of stacking a duplicate.
package sched

import (
	"sync"
	"time"

	"pantrywatch/internal/notify"
	"pantrywatch/internal/types"
)

type alarmKey struct {
	typ  notify.AlarmType
	path notify.Path
}

// Registry owns the pending one-shot alarms. Each (type, path) slot holds at
// most one timer; firing removes the slot before invoking the callback.
type Registry struct {
	mu     sync.Mutex
	timers map[alarmKey]*time.Timer
	fire   func(typ notify.AlarmType, path notify.Path)
	logger types.Logger
}

// NewRegistry creates a Registry that invokes fire when an alarm goes off.
func NewRegistry(fire func(typ notify.AlarmType, path notify.Path), logger types.Logger) *Registry {
	return &Registry{
		timers: make(map[alarmKey]*time.Timer),
		fire:   fire,
		logger: logger,
	}
}

// Schedule arms the (typ, path) alarm for at, replacing any pending timer in
// that slot. A due time in the past fires immediately.
func (r *Registry) Schedule(typ notify.AlarmType, path notify.Path, at time.Time) {
	k := alarmKey{typ: typ, path: path}

	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.timers[k]; ok {
		t.Stop()
	}
	d := time.Until(at)
	if d < 0 {
		d = 0
	}
	r.timers[k] = time.AfterFunc(d, func() {
		r.mu.Lock()
		delete(r.timers, k)
		r.mu.Unlock()
		r.fire(typ, path)
	})
	r.logger.Info("alarm scheduled", "type", string(typ), "path", path.String(), "at", at)
}

// Cancel stops the (typ, path) alarm if pending.
func (r *Registry) Cancel(typ notify.AlarmType, path notify.Path) {
	k := alarmKey{typ: typ, path: path}

	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.timers[k]; ok {
		t.Stop()
		delete(r.timers, k)
		r.logger.Info("alarm cancelled", "type", string(typ), "path", path.String())
	}
}

// CancelResendAndSnooze clears every per-category alarm on both paths plus
// the group snooze retry. The watchdog and morning kick are untouched.
func (r *Registry) CancelResendAndSnooze() {
	for _, typ := range []notify.AlarmType{notify.AlarmExpired, notify.AlarmLow, notify.AlarmForgotten} {
		r.Cancel(typ, notify.PathAuto)
		r.Cancel(typ, notify.PathRetry)
	}
	r.Cancel(notify.AlarmGroup, notify.PathRetry)
}

// Pending reports whether the (typ, path) slot currently holds a timer.
func (r *Registry) Pending(typ notify.AlarmType, path notify.Path) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.timers[alarmKey{typ: typ, path: path}]
	return ok
}

// Stop cancels every pending alarm.
func (r *Registry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, t := range r.timers {
		t.Stop()
		delete(r.timers, k)
	}
}
