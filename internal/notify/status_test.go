package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pantrywatch/internal/types"
)

func TestStatusQuietHours(t *testing.T) {
	h := newHarness(t, time.Date(2026, 9, 1, 22, 0, 0, 0, time.UTC))
	ctx := context.Background()

	st, err := h.engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Quiet hours (9pm - 7am)", st.Situation)
	assert.False(t, st.CanSnooze)
}

func TestStatusSeenWinsOverSnooze(t *testing.T) {
	h := newHarness(t, noon)
	ctx := context.Background()

	require.NoError(t, h.state.SetSeen(ctx, types.SeenState{LastSeenDate: "2026-09-01"}))
	require.NoError(t, h.state.SetSnooze(ctx, types.SnoozeState{
		IsSnoozed: true, SnoozeDate: "2026-09-01", NextAt: noon.Add(time.Hour), RetryCount: -1,
	}))

	st, err := h.engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Seen", st.Situation)
	assert.True(t, st.SeenToday)
}

func TestStatusSnoozedBeforeFirstReminder(t *testing.T) {
	h := newHarness(t, noon)
	ctx := context.Background()

	require.NoError(t, h.state.SetSnooze(ctx, types.SnoozeState{
		IsSnoozed: true, SnoozeDate: "2026-09-01", NextAt: noon.Add(30 * time.Minute), RetryCount: -1,
	}))

	st, err := h.engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Snoozed", st.Situation)
	require.NotNil(t, st.NextNotifyAt)
	assert.Equal(t, noon.Add(30*time.Minute), st.NextNotifyAt.UTC())
}

func TestStatusSnoozedShowsRetryProgress(t *testing.T) {
	h := newHarness(t, noon)
	ctx := context.Background()

	require.NoError(t, h.state.SetSnooze(ctx, types.SnoozeState{
		IsSnoozed: true, SnoozeDate: "2026-09-01", NextAt: noon.Add(10 * time.Minute), RetryCount: 1,
	}))

	st, err := h.engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Snoozed (retry: 1/2)", st.Situation)
}

func TestStatusSnoozeOverridesLimit(t *testing.T) {
	h := newHarness(t, noon)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := h.state.IncrementDailyCount(ctx, "2026-09-01")
		require.NoError(t, err)
	}
	require.NoError(t, h.state.SetSnooze(ctx, types.SnoozeState{
		IsSnoozed: true, SnoozeDate: "2026-09-01", NextAt: noon.Add(time.Hour), RetryCount: 0,
	}))

	st, err := h.engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Snoozed (retry: 0/2)", st.Situation)
}

func TestStatusLimitReached(t *testing.T) {
	h := newHarness(t, noon)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := h.state.IncrementDailyCount(ctx, "2026-09-01")
		require.NoError(t, err)
	}

	st, err := h.engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Max notification limit reached", st.Situation)
	assert.Equal(t, 3, st.TodayCount)
	assert.Nil(t, st.NextNotifyAt)
}

func TestStatusAutoRetryCadence(t *testing.T) {
	h := newHarness(t, noon)
	ctx := context.Background()

	_, err := h.state.IncrementDailyCount(ctx, "2026-09-01")
	require.NoError(t, err)
	require.NoError(t, h.state.SetNotify(ctx, types.NotifyState{
		LastNotifyDate: "2026-09-01", LastNotifyTime: noon.Add(-time.Hour),
	}))

	st, err := h.engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2 hrs Auto Retry (1/3)", st.Situation)
	require.NotNil(t, st.NextNotifyAt)
	assert.Equal(t, noon.Add(time.Hour), st.NextNotifyAt.UTC())
}

func TestStatusSuppressesNextTimeInQuietHours(t *testing.T) {
	// Last delivery 20:30; the 2h resend lands at 22:30, in quiet hours.
	at := time.Date(2026, 9, 1, 20, 50, 0, 0, time.UTC)
	h := newHarness(t, at)
	ctx := context.Background()

	require.NoError(t, h.state.SetNotify(ctx, types.NotifyState{
		LastNotifyDate: "2026-09-01", LastNotifyTime: at.Add(-20 * time.Minute),
	}))

	st, err := h.engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2 hrs Auto Retry (0/3)", st.Situation)
	assert.Nil(t, st.NextNotifyAt)
}

func TestStatusCarriesAttentionLists(t *testing.T) {
	h := newHarness(t, noon)
	ctx := context.Background()

	require.NoError(t, h.state.SetAttention(ctx, types.AttentionLists{
		Expired: []string{"Milk"}, Low: []string{"Rice"}, Date: "2026-09-01",
	}))

	st, err := h.engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Milk"}, st.Expired)
	assert.Equal(t, []string{"Rice"}, st.Low)
	assert.Equal(t, "2026-09-01", st.ListsDate)
}

func TestStatusYesterdaySnoozeDoesNotCount(t *testing.T) {
	h := newHarness(t, noon)
	ctx := context.Background()

	require.NoError(t, h.state.SetSnooze(ctx, types.SnoozeState{
		IsSnoozed: true, SnoozeDate: "2026-08-31", NextAt: noon.Add(-13 * time.Hour), RetryCount: 1,
	}))

	st, err := h.engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2 hrs Auto Retry (0/3)", st.Situation)
}
