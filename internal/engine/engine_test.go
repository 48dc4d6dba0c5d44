package engine

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadence-dev/cadence/internal/model"
	"github.com/cadence-dev/cadence/internal/service"
	"github.com/cadence-dev/cadence/internal/storage"
)

func newTestEngine(t *testing.T) (*ReconciliationEngine, service.Storage) {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))

	config := DefaultConfig()
	config.Retry.MaxAttempts = 10
	eng := NewWithConfig(store, config)
	// Pin the clock so fixture dates in 2024 never look stale.
	eng.now = func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }
	return eng, store
}

func activePattern(id, merchant string, amount float64, next time.Time) *model.RecurrencePattern {
	return &model.RecurrencePattern{
		ID:                     id,
		MerchantName:           merchant,
		Frequency:              model.FrequencyMonthly,
		Status:                 model.StatusActive,
		DetectionMethod:        model.DetectionUserDefined,
		CategoryType:           model.CategoryTypeExpense,
		Amount:                 amount,
		AmountTolerancePercent: model.DefaultTolerancePercent,
		ConfidenceScore:        0.8,
		OccurrenceCount:        5,
		LastOccurrence:         next.AddDate(0, -1, 0),
		NextExpectedDate:       next,
		IsActive:               true,
	}
}

func engineTxn(id, merchant string, amount float64, date time.Time) model.Transaction {
	return model.Transaction{
		ID:           id,
		Name:         merchant,
		MerchantName: merchant,
		AccountID:    "acct-1",
		Amount:       amount,
		Date:         date,
		Processed:    true,
	}
}

func TestReconcileMatchesAndRecords(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t)

	next := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreatePattern(ctx, activePattern("pat-1", "Netflix", 15.99, next)))

	result, err := eng.Reconcile(ctx, []model.Transaction{
		engineTxn("t1", "Netflix", 15.99, next),
		engineTxn("t2", "Corner Bakery", 4.50, next),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Matched)
	assert.Equal(t, 1, result.Unmatched)
	assert.Empty(t, result.Ambiguous)

	pattern, err := store.GetPattern(ctx, "pat-1")
	require.NoError(t, err)
	assert.Equal(t, 6, pattern.OccurrenceCount)
	assert.True(t, pattern.LastOccurrence.Equal(next))
	assert.True(t, pattern.NextExpectedDate.Equal(next.AddDate(0, 1, 0)))

	txn, err := store.GetTransactionByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "pat-1", txn.PatternID)

	unmatched, err := store.GetTransactionByID(ctx, "t2")
	require.NoError(t, err)
	assert.Empty(t, unmatched.PatternID, "unmatched transactions stay unlinked")
}

func TestReconcileAmbiguousLeftUnlinked(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t)

	next := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	// Two patterns that only fuzzy-match "Prime": neither merchant is an
	// exact (case-insensitive) equal, both contain the transaction name.
	a := activePattern("pat-a", "Prime Video", 100.00, next)
	b := activePattern("pat-b", "Prime Music", 100.00, next)
	require.NoError(t, store.CreatePattern(ctx, a))
	require.NoError(t, store.CreatePattern(ctx, b))

	result, err := eng.Reconcile(ctx, []model.Transaction{
		engineTxn("t1", "Prime", 100.00, next),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Matched)
	require.Len(t, result.Ambiguous, 1)
	assert.Len(t, result.Ambiguous[0].Candidates, 2)

	txn, err := store.GetTransactionByID(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, txn.PatternID)

	for _, id := range []string{"pat-a", "pat-b"} {
		p, err := store.GetPattern(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 5, p.OccurrenceCount, "ambiguous match must not record an occurrence")
	}
}

func TestReconcileAutoPromotesPending(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t)

	next := time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC)
	pending := activePattern("pat-1", "Spotify", 9.99, next)
	pending.Status = model.StatusPendingConfirmation
	pending.DetectionMethod = model.DetectionAmountAndMerchant
	pending.OccurrenceCount = 3
	require.NoError(t, store.CreatePattern(ctx, pending))

	ids := []string{"t1", "t2", "t3"}
	for i, id := range ids {
		date := next.AddDate(0, i, 0)
		result, err := eng.Reconcile(ctx, []model.Transaction{
			engineTxn(id, "Spotify", 9.99, date),
		})
		require.NoError(t, err)
		require.Equal(t, 1, result.Matched)

		p, err := store.GetPattern(ctx, "pat-1")
		require.NoError(t, err)
		if i < 2 {
			assert.Equal(t, model.StatusPendingConfirmation, p.Status, "match %d", i+1)
			assert.Equal(t, i+1, p.PendingStreak)
		} else {
			assert.Equal(t, model.StatusActive, p.Status, "third consistent match promotes")
		}
	}

	events, err := store.GetPatternEvents(ctx, "pat-1")
	require.NoError(t, err)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, model.StatusPendingConfirmation, last.FromStatus)
	assert.Equal(t, model.StatusActive, last.ToStatus)
}

func TestAnalyzeCreatesAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t)

	base := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	txns := []model.Transaction{
		engineTxn("t1", "Netflix", 15.99, base),
		engineTxn("t2", "Netflix", 15.99, base.AddDate(0, 1, 0)),
		engineTxn("t3", "Netflix", 15.99, base.AddDate(0, 2, 0)),
	}
	require.NoError(t, store.SaveTransactions(ctx, txns))

	created, err := eng.Analyze(ctx)
	require.NoError(t, err)
	require.Len(t, created, 1)

	pattern := created[0]
	assert.Equal(t, model.FrequencyMonthly, pattern.Frequency)
	assert.InDelta(t, 15.99, pattern.Amount, 0.001)
	assert.Equal(t, 3, pattern.OccurrenceCount)
	assert.Equal(t, model.StatusPendingConfirmation, pattern.Status)
	assert.True(t, pattern.NextExpectedDate.Equal(time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC)))

	linked, err := store.GetTransactionsForPattern(ctx, pattern.ID)
	require.NoError(t, err)
	assert.Len(t, linked, 3, "founding transactions are linked")

	again, err := eng.Analyze(ctx)
	require.NoError(t, err)
	assert.Empty(t, again, "re-running without new data creates nothing")
}

func TestAnalyzeDuplicateGuard(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t)

	// An existing pending pattern for the same merchant and amount band
	// suppresses re-detection even while the transactions are unlinked.
	existing := activePattern("pat-1", "Netflix", 15.99, time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC))
	existing.Status = model.StatusPendingConfirmation
	require.NoError(t, store.CreatePattern(ctx, existing))

	base := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{
		engineTxn("t1", "NETFLIX.COM", 15.99, base),
		engineTxn("t2", "NETFLIX.COM", 15.99, base.AddDate(0, 1, 0)),
		engineTxn("t3", "NETFLIX.COM", 15.99, base.AddDate(0, 2, 0)),
	}))

	created, err := eng.Analyze(ctx)
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestCheckStaleFlagsPotentiallyEnded(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t)

	today := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	eng.now = func() time.Time { return today }

	// Monthly pattern last expected three months ago: more than two full
	// cycles have passed without an occurrence.
	stale := activePattern("pat-stale", "Old Gym", 45.00, today.AddDate(0, -3, 0))
	// Expected last month: within two cycles, stays active.
	current := activePattern("pat-current", "Netflix", 15.99, today.AddDate(0, -1, 0))
	require.NoError(t, store.CreatePattern(ctx, stale))
	require.NoError(t, store.CreatePattern(ctx, current))

	flagged, err := eng.CheckStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, flagged)

	p, err := store.GetPattern(ctx, "pat-stale")
	require.NoError(t, err)
	assert.Equal(t, model.StatusEnded, p.Status)
	assert.Contains(t, p.Notes, "potentially ended")

	p, err = store.GetPattern(ctx, "pat-current")
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, p.Status)
}

func TestReconcileCancelledBetweenGroups(t *testing.T) {
	eng, store := newTestEngine(t)

	next := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreatePattern(context.Background(), activePattern("pat-1", "Netflix", 15.99, next)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.Reconcile(ctx, []model.Transaction{
		engineTxn("t1", "Netflix", 15.99, next),
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentOccurrenceRecording(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t)

	next := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	pattern := activePattern("pat-1", "Netflix", 15.99, next)
	pattern.OccurrenceCount = 10
	require.NoError(t, store.CreatePattern(ctx, pattern))

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			errs[n] = eng.MarkAsPaid(ctx, "pat-1", next.AddDate(0, 0, n))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}

	got, err := store.GetPattern(ctx, "pat-1")
	require.NoError(t, err)
	assert.Equal(t, 10+workers, got.OccurrenceCount, "no lost updates")
}

func TestMerchantGrouping(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	groups := groupByMerchant([]model.Transaction{
		engineTxn("t1", "NETFLIX.COM", 15.99, base),
		engineTxn("t2", "netflix com", 15.99, base),
		engineTxn("t3", "Spotify", 9.99, base),
	})
	require.Len(t, groups, 2)
	assert.Len(t, groups["netflix com"], 2)
	assert.Len(t, groups["spotify"], 1)
}

func TestAppendNote(t *testing.T) {
	assert.Equal(t, "first", appendNote("", "first"))
	joined := appendNote("first", "second")
	assert.True(t, strings.HasPrefix(joined, "first"))
	assert.Contains(t, joined, "second")
}
