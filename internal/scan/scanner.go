// Package scan implements the attention scanner: the three per-item rules
// that decide which grocery items deserve a reminder today. Expiry is a pure
// date comparison; low consumption is a debounced three-day trend check;
// forgotten is a 15-day cadence on the item's last-used date.
package scan

import (
	"context"
	"time"

	"pantrywatch/internal/types"
	"pantrywatch/internal/window"
)

const (
	// lowSkipHorizonDays exempts items whose stock lasts comfortably long:
	// any batch more than this many days from expiry suppresses the low
	// consumption rule entirely.
	lowSkipHorizonDays = 90

	// lowStreakTrigger is the consecutive-day streak at which the low
	// consumption rule fires. The day after firing the streak wraps back to
	// zero without firing again.
	lowStreakTrigger = 2

	// forgottenCadenceDays is the reminder cadence on an untouched item's
	// last-used date.
	forgottenCadenceDays = 15
)

// CounterStore is the per-item persisted counter state the scanner needs.
type CounterStore interface {
	LowStreak(ctx context.Context, itemID string) (int, error)
	SetLowStreak(ctx context.Context, itemID string, n int) error
	LastCheckDay(ctx context.Context, itemID string) (string, error)
	SetLastCheckDay(ctx context.Context, itemID, day string) error
	ForgottenNotifiedDay(ctx context.Context, itemID string, loc *time.Location) (time.Time, error)
	SetForgottenNotifiedDay(ctx context.Context, itemID string, day time.Time) error
}

// Result is the scanner output: item names per attention category, in input
// order, each name at most once per category.
type Result struct {
	Expired        []string
	LowConsumption []string
	Forgotten      []string
}

// Empty reports whether no category matched anything.
func (r Result) Empty() bool {
	return len(r.Expired) == 0 && len(r.LowConsumption) == 0 && len(r.Forgotten) == 0
}

// Scanner evaluates the attention rules over an item snapshot.
type Scanner struct {
	counters CounterStore
	clock    types.Clock
	loc      *time.Location
	logger   types.Logger
}

// New creates a Scanner.
func New(counters CounterStore, clock types.Clock, loc *time.Location, logger types.Logger) *Scanner {
	return &Scanner{counters: counters, clock: clock, loc: loc, logger: logger}
}

// Scan runs all three rules over the snapshot. recordThrottle controls
// whether the forgotten rule stamps its per-item delivered-today marker;
// display-only refreshes pass false so they never consume a reminder slot.
func (s *Scanner) Scan(ctx context.Context, items []types.GroceryItem, recordThrottle bool) (Result, error) {
	now := s.clock.Now()
	var res Result

	for i := range items {
		item := &items[i]

		if s.isExpired(item, now) {
			res.Expired = append(res.Expired, item.Name)
		}

		low, err := s.isLowConsumption(ctx, item, now)
		if err != nil {
			return Result{}, err
		}
		if low {
			res.LowConsumption = append(res.LowConsumption, item.Name)
		}

		forgotten, err := s.isForgotten(ctx, item, now, recordThrottle)
		if err != nil {
			return Result{}, err
		}
		if forgotten {
			res.Forgotten = append(res.Forgotten, item.Name)
		}
	}
	return res, nil
}

// isExpired reports whether any in-stock batch has expired. A batch expiring
// today already counts: the comparison is at local-midnight granularity.
func (s *Scanner) isExpired(item *types.GroceryItem, now time.Time) bool {
	today := window.Midnight(now, s.loc)
	for _, b := range item.Batches {
		if b.Quantity <= 0 {
			continue
		}
		expiry, err := window.ParseDay(b.ExpiryDate, s.loc)
		if err != nil {
			continue
		}
		if !expiry.After(today) {
			return true
		}
	}
	return false
}

// isLowConsumption applies the debounced consumption-trend rule. The streak
// counter advances at most once per calendar day; it fires exactly when the
// streak reaches lowStreakTrigger, and on the following day the counter wraps
// to zero without firing.
func (s *Scanner) isLowConsumption(ctx context.Context, item *types.GroceryItem, now time.Time) (bool, error) {
	// Plenty of runway left on any batch means consumption pace is moot.
	for _, b := range item.Batches {
		expiry, err := window.ParseDay(b.ExpiryDate, s.loc)
		if err != nil {
			continue
		}
		if int(expiry.Sub(now)/(24*time.Hour)) > lowSkipHorizonDays {
			return false, nil
		}
	}

	today := window.DayKey(now, s.loc)
	lastCheck, err := s.counters.LastCheckDay(ctx, item.ID)
	if err != nil {
		return false, err
	}
	streak, err := s.counters.LowStreak(ctx, item.ID)
	if err != nil {
		return false, err
	}

	if lastCheck != today {
		if err := s.counters.SetLastCheckDay(ctx, item.ID, today); err != nil {
			return false, err
		}
		if item.ACR < item.ECR {
			streak++
		} else {
			streak = 0
		}
		if streak > lowStreakTrigger {
			streak = 0
		}
		if err := s.counters.SetLowStreak(ctx, item.ID, streak); err != nil {
			return false, err
		}
	}

	return streak == lowStreakTrigger, nil
}

// isForgotten applies the cadence rule: an in-stock, unexpired item untouched
// for an exact multiple of forgottenCadenceDays (at least one full cadence)
// is flagged. The per-item delivered-today stamp only throttles the stamp
// itself; the item still appears in the list whenever the cadence matches, so
// the UI cache stays truthful on repeated checks within the same day.
func (s *Scanner) isForgotten(ctx context.Context, item *types.GroceryItem, now time.Time, recordThrottle bool) (bool, error) {
	if item.TotalQuantity() <= 0 {
		return false, nil
	}
	if !hasUnexpiredBatch(item, window.Midnight(now, s.loc)) {
		return false, nil
	}
	if item.LastUsed == nil {
		return false, nil
	}

	daysUnused := window.DaysBetween(*item.LastUsed, now, s.loc)
	if daysUnused < forgottenCadenceDays || daysUnused%forgottenCadenceDays != 0 {
		return false, nil
	}

	today := window.Midnight(now, s.loc)
	notifiedDay, err := s.counters.ForgottenNotifiedDay(ctx, item.ID, s.loc)
	if err != nil {
		return false, err
	}
	if recordThrottle && !notifiedDay.Equal(today) {
		if err := s.counters.SetForgottenNotifiedDay(ctx, item.ID, today); err != nil {
			return false, err
		}
	}
	return true, nil
}

// hasUnexpiredBatch reports whether any in-stock batch is still usable. An
// empty or unparseable expiry date counts as unexpired: items without dated
// batches can still be forgotten.
func hasUnexpiredBatch(item *types.GroceryItem, todayMidnight time.Time) bool {
	for _, b := range item.Batches {
		if b.Quantity <= 0 {
			continue
		}
		expiry, err := time.ParseInLocation(types.DateLayout, b.ExpiryDate, todayMidnight.Location())
		if err != nil {
			return true
		}
		if expiry.After(todayMidnight) {
			return true
		}
	}
	return false
}
