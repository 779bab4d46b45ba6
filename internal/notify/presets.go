package notify

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"pantrywatch/internal/types"
)

// ListPresets returns the saved snooze presets ranked by selection frequency,
// most used first. Defaults are seeded on first use; ties keep their saved
// order.
func (e *Engine) ListPresets(ctx context.Context) ([]types.SnoozePreset, error) {
	presets, err := e.state.Presets(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListPresets: %w", err)
	}

	freq := make(map[string]int, len(presets))
	for _, p := range presets {
		n, err := e.state.PresetUseCount(ctx, p.Value)
		if err != nil {
			return nil, fmt.Errorf("ListPresets: %w", err)
		}
		freq[p.Value] = n
	}
	sort.SliceStable(presets, func(i, j int) bool {
		return freq[presets[i].Value] > freq[presets[j].Value]
	})
	return presets, nil
}

// AddPreset saves a new named snooze choice. A preset with the same label
// (case-insensitive) or the same value already existing is rejected; the
// caller should select the existing one instead.
func (e *Engine) AddPreset(ctx context.Context, label, value string) error {
	if label == "" || value == "" {
		return types.NewAppError(types.ErrCodeValidationMissingField, "preset label and value are required", nil)
	}
	presets, err := e.state.Presets(ctx)
	if err != nil {
		return fmt.Errorf("AddPreset: %w", err)
	}
	for _, p := range presets {
		if strings.EqualFold(p.Label, label) || p.Value == value {
			return types.NewAppError(types.ErrCodeValidationPresetExists,
				fmt.Sprintf("snooze preset %q already exists", p.Label), nil)
		}
	}
	presets = append(presets, types.SnoozePreset{Label: label, Value: value})
	if err := e.state.SetPresets(ctx, presets); err != nil {
		return fmt.Errorf("AddPreset: %w", err)
	}
	return nil
}

// SnoozeValue resolves a preset value and starts the snooze episode. A value
// containing a colon is an absolute wall-clock time today ("20:30"); anything
// else is a duration in milliseconds. Selection frequency is recorded before
// validation so the ranking reflects intent, not outcome.
func (e *Engine) SnoozeValue(ctx context.Context, value string) error {
	if err := e.state.BumpPresetUse(ctx, value); err != nil {
		return fmt.Errorf("SnoozeValue: %w", err)
	}

	var d time.Duration
	if strings.Contains(value, ":") {
		target, err := e.todayAt(value)
		if err != nil {
			return err
		}
		d = target.Sub(e.clock.Now())
		// A wall-clock time already passed falls back to a short snooze.
		if d <= 0 {
			d = 5 * time.Minute
		}
	} else {
		ms, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return types.NewAppError(types.ErrCodeValidationSnoozeDuration,
				fmt.Sprintf("invalid snooze value %q", value), err)
		}
		d = time.Duration(ms) * time.Millisecond
	}
	return e.Snooze(ctx, d)
}

// todayAt parses "HH:mm" as that wall-clock time today in the engine's
// location.
func (e *Engine) todayAt(value string) (time.Time, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return time.Time{}, types.NewAppError(types.ErrCodeValidationSnoozeDuration,
			fmt.Sprintf("invalid snooze time %q", value), err)
	}
	now := e.clock.Now().In(e.loc)
	return time.Date(now.Year(), now.Month(), now.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, e.loc), nil
}
