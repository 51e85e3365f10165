package staging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginasoft/BotGastos/pkg/api"
)

// fakeLedger records appended rows and can be told to fail.
type fakeLedger struct {
	mu         sync.Mutex
	summaries  []api.ExpenseRecord
	details    [][]api.LineItem
	summaryErr error
	detailsErr error
}

func (f *fakeLedger) AppendSummary(_ context.Context, record api.ExpenseRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.summaryErr != nil {
		return f.summaryErr
	}
	f.summaries = append(f.summaries, record)
	return nil
}

func (f *fakeLedger) AppendDetails(_ context.Context, items []api.LineItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.detailsErr != nil {
		return f.detailsErr
	}
	f.details = append(f.details, items)
	return nil
}

func pending(id string, amount string, items ...string) api.PendingTransaction {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	p := api.PendingTransaction{
		Record: api.ExpenseRecord{
			ID:        id,
			Timestamp: ts,
			UserName:  "Gina",
			Channel:   api.ChannelText,
			Category:  "Otro",
			Currency:  "ARS",
		},
		StagedAt: ts,
	}
	if amount != "" {
		p.Record.Amount = decimal.NewNullDecimal(decimal.RequireFromString(amount))
	}
	for _, name := range items {
		p.Items = append(p.Items, api.LineItem{Timestamp: ts, UserName: "Gina", Product: name, Price: decimal.NewFromInt(10)})
	}
	return p
}

func TestStore_StageRequiresAmount(t *testing.T) {
	s := NewStore(nil)

	err := s.Stage(1, pending("a", ""))

	assert.ErrorIs(t, err, api.ErrNoAmount)
	assert.Equal(t, 0, s.Len())
	_, ok := s.Pending(1)
	assert.False(t, ok)
}

func TestStore_StageReplaces(t *testing.T) {
	s := NewStore(nil)

	require.NoError(t, s.Stage(1, pending("first", "100")))
	require.NoError(t, s.Stage(1, pending("second", "200")))

	p, ok := s.Pending(1)
	require.True(t, ok)
	assert.Equal(t, "second", p.Record.ID)
	assert.Equal(t, 1, s.Len())
}

func TestStore_PendingReturnsCopy(t *testing.T) {
	s := NewStore(nil)
	require.NoError(t, s.Stage(1, pending("a", "100", "Leche")))

	p, _ := s.Pending(1)
	p.Items[0].Product = "changed"

	again, _ := s.Pending(1)
	assert.Equal(t, "Leche", again.Items[0].Product)
}

func TestStore_UsersAreIndependent(t *testing.T) {
	s := NewStore(nil)
	require.NoError(t, s.Stage(1, pending("a", "100")))
	require.NoError(t, s.Stage(2, pending("b", "200")))

	assert.True(t, s.Discard(1))

	_, ok := s.Pending(2)
	assert.True(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestStore_CommitWorksOnCopy(t *testing.T) {
	s := NewStore(nil)
	require.NoError(t, s.Stage(1, pending("a", "100", "Leche")))

	committed, err := s.Commit(1, func(p *api.PendingTransaction) error {
		p.SummaryAppended = true
		p.Items[0].Product = "changed"

		// Readers never see a commit in progress.
		during, ok := s.Pending(1)
		require.True(t, ok)
		assert.False(t, during.SummaryAppended)
		assert.Equal(t, "Leche", during.Items[0].Product)
		return errors.New("ledger down")
	})
	assert.True(t, committed)
	require.Error(t, err)

	after, ok := s.Pending(1)
	require.True(t, ok)
	assert.True(t, after.SummaryAppended)
	assert.Equal(t, "changed", after.Items[0].Product)
}

func TestStore_PendingDuringCommit(t *testing.T) {
	s := NewStore(nil)
	require.NoError(t, s.Stage(1, pending("a", "100", "Leche")))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				_, _ = s.Pending(1)
			}
		}
	}()

	for range 200 {
		_, _ = s.Commit(1, func(p *api.PendingTransaction) error {
			p.SummaryAppended = !p.SummaryAppended
			return errors.New("retry later")
		})
	}
	close(stop)
	wg.Wait()

	_, ok := s.Pending(1)
	assert.True(t, ok)
}

func TestController_ConfirmWritesSummaryAndDetails(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil)
	ledger := &fakeLedger{}
	c := NewController(s, ledger, nil)

	require.NoError(t, s.Stage(7, pending("rec-1", "200", "Leche", "Pan")))

	outcome, err := c.Resolve(ctx, 7, Confirm)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, outcome)

	require.Len(t, ledger.summaries, 1)
	assert.Equal(t, "rec-1", ledger.summaries[0].ID)
	require.Len(t, ledger.details, 1)
	assert.Len(t, ledger.details[0], 2)
	assert.Equal(t, 0, s.Len())
}

func TestController_ConfirmWithoutItemsSkipsDetails(t *testing.T) {
	s := NewStore(nil)
	ledger := &fakeLedger{}
	c := NewController(s, ledger, nil)

	require.NoError(t, s.Stage(7, pending("rec-1", "15.30")))

	outcome, err := c.Resolve(context.Background(), 7, Confirm)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, outcome)
	assert.Len(t, ledger.summaries, 1)
	assert.Empty(t, ledger.details)
}

func TestController_ConfirmIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil)
	ledger := &fakeLedger{}
	c := NewController(s, ledger, nil)

	require.NoError(t, s.Stage(7, pending("rec-1", "100", "Leche")))

	outcome, err := c.Resolve(ctx, 7, Confirm)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, outcome)

	outcome, err = c.Resolve(ctx, 7, Confirm)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoPending, outcome)

	assert.Len(t, ledger.summaries, 1)
	assert.Len(t, ledger.details, 1)
}

func TestController_RestageCommitsOnlyLatest(t *testing.T) {
	s := NewStore(nil)
	ledger := &fakeLedger{}
	c := NewController(s, ledger, nil)

	require.NoError(t, s.Stage(7, pending("first", "100")))
	require.NoError(t, s.Stage(7, pending("second", "200")))

	_, err := c.Resolve(context.Background(), 7, Confirm)
	require.NoError(t, err)

	require.Len(t, ledger.summaries, 1)
	assert.Equal(t, "second", ledger.summaries[0].ID)
}

func TestController_Cancel(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil)
	ledger := &fakeLedger{}
	c := NewController(s, ledger, nil)

	require.NoError(t, s.Stage(7, pending("rec-1", "100", "Leche")))

	outcome, err := c.Resolve(ctx, 7, Cancel)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, outcome)

	outcome, err = c.Resolve(ctx, 7, Cancel)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoPending, outcome)

	assert.Empty(t, ledger.summaries)
	assert.Empty(t, ledger.details)
	assert.Equal(t, 0, s.Len())
}

func TestController_LedgerFailureKeepsPending(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil)
	boom := errors.New("quota exceeded")
	ledger := &fakeLedger{summaryErr: boom}
	c := NewController(s, ledger, nil)

	require.NoError(t, s.Stage(7, pending("rec-1", "100")))

	outcome, err := c.Resolve(ctx, 7, Confirm)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, OutcomeFailed, outcome)

	p, ok := s.Pending(7)
	require.True(t, ok)
	assert.Equal(t, "rec-1", p.Record.ID)

	ledger.summaryErr = nil
	outcome, err = c.Resolve(ctx, 7, Confirm)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, outcome)
	assert.Len(t, ledger.summaries, 1)
}

func TestController_DetailFailureDoesNotDuplicateSummary(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil)
	boom := errors.New("network down")
	ledger := &fakeLedger{detailsErr: boom}
	c := NewController(s, ledger, nil)

	require.NoError(t, s.Stage(7, pending("rec-1", "200", "Leche", "Pan")))

	_, err := c.Resolve(ctx, 7, Confirm)
	require.ErrorIs(t, err, boom)
	assert.Len(t, ledger.summaries, 1)
	assert.Equal(t, 1, s.Len())

	ledger.detailsErr = nil
	outcome, err := c.Resolve(ctx, 7, Confirm)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, outcome)
	assert.Len(t, ledger.summaries, 1)
	assert.Len(t, ledger.details, 1)
}

func TestController_RestageAfterFailureStartsOver(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil)
	ledger := &fakeLedger{detailsErr: errors.New("network down")}
	c := NewController(s, ledger, nil)

	require.NoError(t, s.Stage(7, pending("first", "200", "Leche")))
	_, err := c.Resolve(ctx, 7, Confirm)
	require.Error(t, err)

	require.NoError(t, s.Stage(7, pending("second", "300", "Pan")))
	ledger.detailsErr = nil

	_, err = c.Resolve(ctx, 7, Confirm)
	require.NoError(t, err)
	require.Len(t, ledger.summaries, 2)
	assert.Equal(t, "second", ledger.summaries[1].ID)
}

func TestController_UnknownDecision(t *testing.T) {
	c := NewController(NewStore(nil), &fakeLedger{}, nil)

	_, err := c.Resolve(context.Background(), 1, Decision(42))
	assert.ErrorIs(t, err, ErrUnknownDecision)
}

func TestController_ConcurrentStageAndConfirm(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil)
	ledger := &fakeLedger{}
	c := NewController(s, ledger, nil)

	var wg sync.WaitGroup
	for user := api.UserID(1); user <= 20; user++ {
		wg.Add(1)
		go func(user api.UserID) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_ = s.Stage(user, pending("x", "10", "Leche"))
				_, _ = c.Resolve(ctx, user, Confirm)
			}
		}(user)
	}
	wg.Wait()

	assert.Equal(t, 0, s.Len())
	assert.Len(t, ledger.summaries, 200)
	assert.Len(t, ledger.details, 200)
}

func TestParseDecision(t *testing.T) {
	tests := []struct {
		in   string
		want Decision
	}{
		{"confirmar", Confirm},
		{" Confirmar ", Confirm},
		{"sí", Confirm},
		{"cancelar", Cancel},
		{"NO", Cancel},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseDecision(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := ParseDecision("quizás")
	assert.ErrorIs(t, err, ErrUnknownDecision)
}
