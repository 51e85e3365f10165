package json

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginasoft/BotGastos/pkg/api"
)

func record(id string) api.ExpenseRecord {
	return api.ExpenseRecord{
		ID:        id,
		Timestamp: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		UserName:  "Gina",
		Channel:   api.ChannelText,
		Amount:    decimal.NewNullDecimal(decimal.NewFromInt(200)),
		Category:  "Otro",
		Currency:  "ARS",
	}
}

func TestLedger_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gastos.json")
	ctx := context.Background()

	l, err := New(Config{FilePath: path}, nil)
	require.NoError(t, err)
	require.NoError(t, l.AppendSummary(ctx, record("rec-1")))
	require.NoError(t, l.AppendDetails(ctx, []api.LineItem{
		{RecordID: "rec-1", UserName: "Gina", Product: "Leche", Price: decimal.NewFromInt(120)},
		{RecordID: "rec-1", UserName: "Gina", Product: "Pan", Price: decimal.NewFromInt(80)},
	}))

	reopened, err := New(Config{FilePath: path}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.ExpenseCount())
	require.NoError(t, reopened.AppendSummary(ctx, record("rec-2")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Expenses, 2)
	assert.Equal(t, "rec-2", doc.Expenses[1].ID)
	require.Len(t, doc.Items, 2)
	assert.Equal(t, "Pan", doc.Items[1].Product)
	assert.True(t, doc.Expenses[0].Amount.Decimal.Equal(decimal.NewFromInt(200)))
}

func TestLedger_SummaryIsIdempotent(t *testing.T) {
	l, err := New(Config{FilePath: filepath.Join(t.TempDir(), "gastos.json")}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, l.AppendSummary(ctx, record("rec-1")))
	require.NoError(t, l.AppendSummary(ctx, record("rec-1")))
	assert.Equal(t, 1, l.ExpenseCount())
}

func TestLedger_WriteFailureKeepsState(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "gone")
	require.NoError(t, os.Mkdir(dir, 0o750))
	l, err := New(Config{FilePath: filepath.Join(dir, "gastos.json")}, nil)
	require.NoError(t, err)
	require.NoError(t, os.Remove(dir))

	assert.Error(t, l.AppendSummary(context.Background(), record("rec-1")))
	assert.Equal(t, 0, l.ExpenseCount())
}

func TestNew_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gastos.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := New(Config{FilePath: path}, nil)
	assert.Error(t, err)
}
