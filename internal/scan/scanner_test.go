package scan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pantrywatch/internal/store"
	"pantrywatch/internal/types"
)

type fixedClock struct {
	t time.Time
}

func (c *fixedClock) Now() time.Time { return c.t }

type nopLogger struct{}

func (nopLogger) Info(string, ...any)      {}
func (nopLogger) Error(string, ...any)     {}
func (nopLogger) Warn(string, ...any)      {}
func (nopLogger) With(...any) types.Logger { return nopLogger{} }

func newTestScanner(t *testing.T, now time.Time) (*Scanner, *fixedClock) {
	t.Helper()
	clock := &fixedClock{t: now}
	rs := store.NewRunState(store.NewMemKV())
	return New(rs, clock, time.UTC, nopLogger{}), clock
}

func itemWithBatch(id, name, expiry string, qty int) types.GroceryItem {
	return types.GroceryItem{
		ID:      id,
		Name:    name,
		Batches: []types.Batch{{ExpiryDate: expiry, Quantity: qty}},
	}
}

func TestExpiredIncludesToday(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	s, _ := newTestScanner(t, now)

	items := []types.GroceryItem{
		itemWithBatch("a", "Milk", "2026-09-01", 2),   // expires today: expired
		itemWithBatch("b", "Eggs", "2026-08-30", 1),   // past
		itemWithBatch("c", "Rice", "2026-09-02", 1),   // tomorrow: fine
		itemWithBatch("d", "Juice", "2026-08-01", 0),  // depleted batch ignored
		itemWithBatch("e", "Jam", "not-a-date", 3),    // unparseable ignored
	}
	res, err := s.Scan(context.Background(), items, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Milk", "Eggs"}, res.Expired)
}

func TestExpiredListsItemOnce(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	s, _ := newTestScanner(t, now)

	item := types.GroceryItem{
		ID:   "a",
		Name: "Milk",
		Batches: []types.Batch{
			{ExpiryDate: "2026-08-28", Quantity: 1},
			{ExpiryDate: "2026-08-29", Quantity: 1},
		},
	}
	res, err := s.Scan(context.Background(), []types.GroceryItem{item}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Milk"}, res.Expired)
}

func TestLowConsumptionDebounce(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	s, clock := newTestScanner(t, now)
	ctx := context.Background()

	item := itemWithBatch("a", "Yogurt", "2026-09-20", 4)
	item.ACR = 0.5
	item.ECR = 2.0
	items := []types.GroceryItem{item}

	// Day 1: streak 0 -> 1, no flag.
	res, err := s.Scan(ctx, items, true)
	require.NoError(t, err)
	assert.Empty(t, res.LowConsumption)

	// Same day again: counter untouched, still no flag.
	res, err = s.Scan(ctx, items, true)
	require.NoError(t, err)
	assert.Empty(t, res.LowConsumption)

	// Day 2: streak 1 -> 2, flags.
	clock.t = clock.t.AddDate(0, 0, 1)
	res, err = s.Scan(ctx, items, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Yogurt"}, res.LowConsumption)

	// Day 2 repeat: stored streak still 2, flags again without advancing.
	res, err = s.Scan(ctx, items, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Yogurt"}, res.LowConsumption)

	// Day 3: streak wraps to 0 silently, no flag.
	clock.t = clock.t.AddDate(0, 0, 1)
	res, err = s.Scan(ctx, items, true)
	require.NoError(t, err)
	assert.Empty(t, res.LowConsumption)

	// Day 4: cycle restarts at 1.
	clock.t = clock.t.AddDate(0, 0, 1)
	res, err = s.Scan(ctx, items, true)
	require.NoError(t, err)
	assert.Empty(t, res.LowConsumption)
}

func TestLowConsumptionStreakResetsOnHealthyDay(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	s, clock := newTestScanner(t, now)
	ctx := context.Background()

	item := itemWithBatch("a", "Yogurt", "2026-09-20", 4)
	item.ACR = 0.5
	item.ECR = 2.0

	_, err := s.Scan(ctx, []types.GroceryItem{item}, true)
	require.NoError(t, err)

	// Day 2 the consumption catches up; streak resets instead of reaching 2.
	clock.t = clock.t.AddDate(0, 0, 1)
	item.ACR = 3.0
	res, err := s.Scan(ctx, []types.GroceryItem{item}, true)
	require.NoError(t, err)
	assert.Empty(t, res.LowConsumption)

	// Day 3 lagging again starts over at 1, no flag.
	clock.t = clock.t.AddDate(0, 0, 1)
	item.ACR = 0.5
	res, err = s.Scan(ctx, []types.GroceryItem{item}, true)
	require.NoError(t, err)
	assert.Empty(t, res.LowConsumption)
}

func TestLowConsumptionSkipsLongHorizonStock(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	s, clock := newTestScanner(t, now)
	ctx := context.Background()

	item := types.GroceryItem{
		ID:   "a",
		Name: "Honey",
		Batches: []types.Batch{
			{ExpiryDate: "2026-09-10", Quantity: 1},
			{ExpiryDate: "2027-06-01", Quantity: 2}, // far out: whole rule skipped
		},
		ACR: 0.1,
		ECR: 5.0,
	}

	for i := 0; i < 4; i++ {
		res, err := s.Scan(ctx, []types.GroceryItem{item}, true)
		require.NoError(t, err)
		assert.Empty(t, res.LowConsumption, "day %d", i)
		clock.t = clock.t.AddDate(0, 0, 1)
	}
}

func TestForgottenCadence(t *testing.T) {
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	lastUsed := base

	cases := []struct {
		days int
		want bool
	}{
		{14, false},
		{15, true},
		{16, false},
		{29, false},
		{30, true},
		{45, true},
	}
	for _, tc := range cases {
		now := base.AddDate(0, 0, tc.days)
		s, _ := newTestScanner(t, now)

		item := itemWithBatch("a", "Oats", "2027-01-01", 3)
		item.LastUsed = &lastUsed

		res, err := s.Scan(context.Background(), []types.GroceryItem{item}, true)
		require.NoError(t, err)
		if tc.want {
			assert.Equal(t, []string{"Oats"}, res.Forgotten, "days=%d", tc.days)
		} else {
			assert.Empty(t, res.Forgotten, "days=%d", tc.days)
		}
	}
}

func TestForgottenRequiresStockAndUnexpiredBatch(t *testing.T) {
	now := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	lastUsed := now.AddDate(0, 0, -15)
	s, _ := newTestScanner(t, now)

	outOfStock := itemWithBatch("a", "Flour", "2027-01-01", 0)
	outOfStock.LastUsed = &lastUsed

	allExpired := itemWithBatch("b", "Bread", "2026-08-20", 2)
	allExpired.LastUsed = &lastUsed

	neverUsed := itemWithBatch("c", "Salt", "2027-01-01", 1)

	undated := itemWithBatch("d", "Sugar", "", 1)
	undated.LastUsed = &lastUsed

	res, err := s.Scan(context.Background(), []types.GroceryItem{outOfStock, allExpired, neverUsed, undated}, true)
	require.NoError(t, err)
	// Only the undated item qualifies: no expiry information counts as unexpired.
	assert.Equal(t, []string{"Sugar"}, res.Forgotten)
}

func TestForgottenThrottleStampsOncePerDay(t *testing.T) {
	now := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	clock := &fixedClock{t: now}
	kv := store.NewMemKV()
	rs := store.NewRunState(kv)
	s := New(rs, clock, time.UTC, nopLogger{})
	ctx := context.Background()

	lastUsed := now.AddDate(0, 0, -15)
	item := itemWithBatch("a", "Oats", "2027-01-01", 3)
	item.LastUsed = &lastUsed

	// Display-only pass records nothing.
	res, err := s.Scan(ctx, []types.GroceryItem{item}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Oats"}, res.Forgotten)

	stamp, err := rs.ForgottenNotifiedDay(ctx, "a", time.UTC)
	require.NoError(t, err)
	assert.True(t, stamp.IsZero())

	// Delivery pass stamps today.
	res, err = s.Scan(ctx, []types.GroceryItem{item}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Oats"}, res.Forgotten)

	stamp, err = rs.ForgottenNotifiedDay(ctx, "a", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), stamp.In(time.UTC))

	// A repeat delivery pass the same day still lists the item.
	res, err = s.Scan(ctx, []types.GroceryItem{item}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Oats"}, res.Forgotten)
}
