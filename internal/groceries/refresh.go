// Package groceries maintains the per-item consumption metrics: the daily
// refresh that advances totalDays, recomputes the actual consumption rate
// (ACR) and the expected consumption rate (ECR), and then kicks a check cycle
// so the scanner sees fresh numbers.
package groceries

import (
	"context"
	"fmt"
	"time"

	"pantrywatch/internal/notify"
	"pantrywatch/internal/types"
	"pantrywatch/internal/window"
)

// RefreshInterval is the cadence of the metrics refresh.
const RefreshInterval = 24 * time.Hour

// CheckTrigger kicks a check cycle after a refresh pass.
type CheckTrigger interface {
	RunCheck(ctx context.Context, r notify.Reason) error
}

// Refresher runs the daily metrics pass over every item.
type Refresher struct {
	items    types.ItemStore
	identity types.Identity
	checks   CheckTrigger
	clock    types.Clock
	loc      *time.Location
	logger   types.Logger
}

// NewRefresher wires the refresher.
func NewRefresher(items types.ItemStore, identity types.Identity, checks CheckTrigger, clock types.Clock, loc *time.Location, logger types.Logger) *Refresher {
	return &Refresher{
		items:    items,
		identity: identity,
		checks:   checks,
		clock:    clock,
		loc:      loc,
		logger:   logger,
	}
}

// Run executes one refresh pass: update every item's metrics, then trigger an
// auto check. A single item failing to update is logged and skipped; the rest
// of the pass continues.
func (r *Refresher) Run(ctx context.Context) error {
	userID, err := r.identity.CurrentUserID(ctx)
	if err != nil {
		return fmt.Errorf("Run: %w", err)
	}
	if userID == "" {
		return types.NewAppError(types.ErrCodeAuthNotReady, "no user resolved for metrics refresh", nil)
	}

	items, err := r.items.GetItems(ctx, userID)
	if err != nil {
		return fmt.Errorf("Run: %w", err)
	}

	now := r.clock.Now()
	for i := range items {
		item := &items[i]
		updates := r.metricUpdates(item, now)
		if len(updates) == 0 {
			continue
		}
		if err := r.items.UpdateItem(ctx, userID, item.ID, updates); err != nil {
			r.logger.Error("failed to update item metrics", "itemId", item.ID, "error", err)
		}
	}

	if err := r.checks.RunCheck(ctx, notify.AutoReason("")); err != nil {
		r.logger.Error("post-refresh check failed", "error", err)
	}
	return nil
}

// Loop runs a pass immediately and then repeats on the refresh interval until
// ctx is cancelled.
func (r *Refresher) Loop(ctx context.Context) error {
	ticker := time.NewTicker(RefreshInterval)
	defer ticker.Stop()

	for {
		if err := r.Run(ctx); err != nil {
			r.logger.Error("metrics refresh failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// metricUpdates computes the document fields to merge for one item. Keys use
// the stored JSON names.
func (r *Refresher) metricUpdates(item *types.GroceryItem, now time.Time) map[string]any {
	updates := make(map[string]any)

	totalConsumed := item.TotalConsumed
	totalDays := item.TotalDays
	if totalDays == 0 {
		totalDays = 1
	}
	lastUpdated := item.LastUpdated

	if totalConsumed > 0 {
		if lastUpdated == nil {
			// First pass after consumption started.
			totalDays = 1
			updates["totalDays"] = totalDays
			updates["lastUpdated"] = now
		} else if daysPassed := window.DaysBetween(*lastUpdated, now, r.loc); daysPassed > 0 {
			totalDays += daysPassed
			updates["totalDays"] = totalDays
			updates["lastUpdated"] = now
		}
	} else if totalDays != 1 || lastUpdated != nil {
		// No consumption yet: keep the day counter parked at 1.
		totalDays = 1
		updates["totalDays"] = totalDays
		updates["lastUpdated"] = nil
	}

	if totalConsumed > 0 && totalDays > 0 {
		updates["ACR"] = float64(totalConsumed) / float64(totalDays)
	} else {
		updates["ACR"] = 0.0
	}

	ecr, baseRate := usageRates(item.Batches, now, r.loc)
	updates["ECR"] = ecr
	updates["baseRate"] = baseRate
	return updates
}

// usageRates derives the expected consumption rate from the in-stock,
// unexpired batches. Each batch contributes qty per day-left (floored at one
// day); the base rate spreads the total unexpired stock over the farthest
// expiry. ECR is the steeper of the two.
func usageRates(batches []types.Batch, now time.Time, loc *time.Location) (ecr, baseRate float64) {
	var maxRate float64
	totalUnexpired := 0
	lastDaysLeft := -1

	today := window.Midnight(now, loc)
	for _, b := range batches {
		if b.Quantity <= 0 {
			continue
		}
		expiry, err := window.ParseDay(b.ExpiryDate, loc)
		if err != nil {
			continue
		}
		daysLeft := window.DaysBetween(today, expiry, loc)
		if daysLeft < 0 {
			continue
		}
		totalUnexpired += b.Quantity
		if daysLeft > lastDaysLeft {
			lastDaysLeft = daysLeft
		}
		divisor := daysLeft
		if divisor < 1 {
			divisor = 1
		}
		if rate := float64(b.Quantity) / float64(divisor); rate > maxRate {
			maxRate = rate
		}
	}

	if lastDaysLeft > 0 {
		baseRate = float64(totalUnexpired) / float64(lastDaysLeft)
	}
	if maxRate > baseRate {
		return maxRate, baseRate
	}
	return baseRate, baseRate
}
