package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginasoft/BotGastos/pkg/api"
	"github.com/ginasoft/BotGastos/pkg/classifier"
	"github.com/ginasoft/BotGastos/pkg/ledger/memory"
	"github.com/ginasoft/BotGastos/pkg/rules"
	"github.com/ginasoft/BotGastos/pkg/staging"
)

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *memory.Ledger) {
	t.Helper()
	set, err := rules.Default()
	require.NoError(t, err)

	ledger := memory.New(nil)
	e := New(classifier.New(set), staging.NewStore(nil), ledger, nil,
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { return "rec-1" }),
	)
	return e, ledger
}

func textInput(text string) api.RawInput {
	return api.RawInput{Text: text, Channel: api.ChannelText, User: 42, UserName: "Gina"}
}

func TestSubmit_Examples(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		category string
		currency string
		payment  string
		amount   string
		items    []string
	}{
		{
			name:     "supermarket total",
			text:     "Compré en el supermercado, total 2500.50",
			category: "Supermercado",
			currency: "ARS",
			payment:  "No especificado",
			amount:   "2500.50",
		},
		{
			name:     "debit card in dollars",
			text:     "Pagué con débito 15.30 usd en farmacia",
			category: "Salud",
			currency: "USD",
			payment:  "Tarjeta débito",
			amount:   "15.30",
		},
		{
			name:     "receipt lines",
			text:     "Leche 120\nPan 80\nTotal 200",
			category: "Otro",
			currency: "ARS",
			payment:  "No especificado",
			amount:   "200",
			items:    []string{"Leche", "Pan"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e, _ := newTestEngine(t)

			reply, err := e.Submit(context.Background(), textInput(tc.text))
			require.NoError(t, err)
			assert.Equal(t, KindPrompt, reply.Kind)
			require.Len(t, reply.Actions, 2)
			assert.Equal(t, staging.ConfirmData, reply.Actions[0].Data)
			assert.Equal(t, staging.CancelData, reply.Actions[1].Data)

			pending, ok := e.Pending(42)
			require.True(t, ok)
			r := pending.Record
			assert.Equal(t, tc.category, r.Category)
			assert.Equal(t, tc.currency, r.Currency)
			assert.Equal(t, tc.payment, r.PaymentMethod)
			assert.True(t, r.Amount.Decimal.Equal(decimal.RequireFromString(tc.amount)), "amount %s", r.Amount.Decimal)
			assert.Equal(t, "rec-1", r.ID)
			assert.Equal(t, fixedNow, r.Timestamp)

			require.Len(t, pending.Items, len(tc.items))
			for i, name := range tc.items {
				assert.Equal(t, name, pending.Items[i].Product)
			}
		})
	}
}

func TestSubmit_ReceiptPrices(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Submit(context.Background(), textInput("Leche 120\nPan 80\nTotal 200"))
	require.NoError(t, err)

	pending, ok := e.Pending(42)
	require.True(t, ok)
	require.Len(t, pending.Items, 2)
	assert.True(t, pending.Items[0].Price.Equal(decimal.NewFromInt(120)))
	assert.True(t, pending.Items[1].Price.Equal(decimal.NewFromInt(80)))
	assert.Equal(t, "Gina", pending.Items[0].UserName)
}

func TestSubmit_RejectsWithoutAmount(t *testing.T) {
	e, ledger := newTestEngine(t)

	reply, err := e.Submit(context.Background(), textInput("Hola como estas"))
	require.NoError(t, err)
	assert.Equal(t, KindRejected, reply.Kind)
	assert.Equal(t, RejectedText, reply.Text)
	assert.Nil(t, reply.Pending)

	_, ok := e.Pending(42)
	assert.False(t, ok)
	assert.Equal(t, 0, e.Staged())
	assert.Empty(t, ledger.Summaries())
}

func TestSubmit_RejectionKeepsEarlierPending(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Submit(ctx, textInput("uber 850"))
	require.NoError(t, err)
	_, err = e.Submit(ctx, textInput("hola"))
	require.NoError(t, err)

	pending, ok := e.Pending(42)
	require.True(t, ok)
	assert.True(t, pending.Record.Amount.Decimal.Equal(decimal.NewFromInt(850)))
}

func TestSubmit_Channels(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	in := textInput("netflix 4500 suscripción")
	in.Channel = api.ChannelAudio
	reply, err := e.Submit(ctx, in)
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "📝 Tipo: Audio")
	assert.Contains(t, reply.Text, "🔁 Recurrente: Sí")

	in.Channel = ""
	reply, err = e.Submit(ctx, in)
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "📝 Tipo: Texto")

	in.Channel = "fax"
	_, err = e.Submit(ctx, in)
	assert.ErrorIs(t, err, ErrUnsupportedChannel)
}

func TestSubmit_KeepsInputTimestamp(t *testing.T) {
	e, _ := newTestEngine(t)

	in := textInput("uber 850")
	in.Timestamp = time.Date(2023, 12, 31, 23, 59, 0, 0, time.UTC)
	_, err := e.Submit(context.Background(), in)
	require.NoError(t, err)

	pending, _ := e.Pending(42)
	assert.Equal(t, in.Timestamp, pending.Record.Timestamp)
}

func TestPromptText(t *testing.T) {
	e, _ := newTestEngine(t)

	reply, err := e.Submit(context.Background(), textInput("Compré en el supermercado, total 2500.50"))
	require.NoError(t, err)

	want := "¿Confirmás el siguiente gasto?\n\n" +
		"🗓 Fecha: 2024-03-01 10:00:00\n" +
		"👤 Usuario: Gina\n" +
		"📝 Tipo: Texto\n" +
		"💸 Monto: $2500.50\n" +
		"📂 Categoría: Supermercado\n" +
		"💱 Moneda: ARS\n" +
		"💳 Medio de pago: No especificado\n" +
		"🔁 Recurrente: No"
	assert.Equal(t, want, reply.Text)
}

func TestResolve_ConfirmWritesRows(t *testing.T) {
	e, ledger := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Submit(ctx, textInput("Leche 120\nPan 80\nTotal 200"))
	require.NoError(t, err)

	reply, err := e.Resolve(ctx, 42, staging.Confirm)
	require.NoError(t, err)
	assert.Equal(t, KindCommitted, reply.Kind)
	assert.Equal(t, CommittedText, reply.Text)

	summaries := ledger.Summaries()
	require.Len(t, summaries, 1)
	assert.Equal(t, []string{
		"2024-03-01 10:00:00", "Gina", "Texto", "$200.00", "Otro", "ARS", "No especificado", "No",
		"leche 120\npan 80\ntotal 200",
	}, summaries[0].Row())

	details := ledger.Details()
	require.Len(t, details, 2)
	assert.Equal(t, []string{"2024-03-01 10:00:00", "Gina", "Leche", "", "", "120"}, details[0].Row())

	reply, err = e.Resolve(ctx, 42, staging.Confirm)
	require.NoError(t, err)
	assert.Equal(t, KindNothing, reply.Kind)
	assert.Len(t, ledger.Summaries(), 1)
}

func TestResolve_Cancel(t *testing.T) {
	e, ledger := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Submit(ctx, textInput("uber 850"))
	require.NoError(t, err)

	reply, err := e.Resolve(ctx, 42, staging.Cancel)
	require.NoError(t, err)
	assert.Equal(t, KindCancelled, reply.Kind)
	assert.Equal(t, CancelledText, reply.Text)
	assert.Empty(t, ledger.Summaries())

	reply, err = e.Resolve(ctx, 42, staging.Cancel)
	require.NoError(t, err)
	assert.Equal(t, KindCancelled, reply.Kind)
	assert.Equal(t, CancelledText, reply.Text)
	assert.Empty(t, ledger.Summaries())
}

func TestResolve_CancelWithNothingPending(t *testing.T) {
	e, ledger := newTestEngine(t)

	reply, err := e.Resolve(context.Background(), 42, staging.Cancel)
	require.NoError(t, err)
	assert.Equal(t, KindCancelled, reply.Kind)
	assert.Equal(t, CancelledText, reply.Text)
	assert.Equal(t, 0, e.Staged())
	assert.Empty(t, ledger.Summaries())
}

func TestResolve_LedgerFailure(t *testing.T) {
	e, ledger := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Submit(ctx, textInput("uber 850"))
	require.NoError(t, err)

	boom := errors.New("sheets unavailable")
	ledger.SetErr(boom)

	reply, err := e.Resolve(ctx, 42, staging.Confirm)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, KindFailed, reply.Kind)
	require.NotNil(t, reply.Pending)
	assert.Equal(t, "rec-1", reply.Pending.Record.ID)
	assert.Equal(t, 1, e.Staged())

	ledger.SetErr(nil)
	reply, err = e.Resolve(ctx, 42, staging.Confirm)
	require.NoError(t, err)
	assert.Equal(t, KindCommitted, reply.Kind)
	assert.Len(t, ledger.Summaries(), 1)
}

func TestHandle_RoutesDecisions(t *testing.T) {
	e, ledger := newTestEngine(t)
	ctx := context.Background()

	reply, err := e.Handle(ctx, textInput("uber 850"))
	require.NoError(t, err)
	assert.Equal(t, KindPrompt, reply.Kind)

	reply, err = e.Handle(ctx, textInput("Confirmar"))
	require.NoError(t, err)
	assert.Equal(t, KindCommitted, reply.Kind)
	assert.Len(t, ledger.Summaries(), 1)

	reply, err = e.Handle(ctx, textInput("confirmar"))
	require.NoError(t, err)
	assert.Equal(t, KindNothing, reply.Kind)
	assert.Equal(t, NothingPendingText, reply.Text)

	reply, err = e.Handle(ctx, textInput("cancelar"))
	require.NoError(t, err)
	assert.Equal(t, KindCancelled, reply.Kind)
}

func TestKind_MarshalText(t *testing.T) {
	b, err := KindPrompt.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "prompt", string(b))
	assert.Equal(t, "kind(99)", Kind(99).String())

	var k Kind
	require.NoError(t, k.UnmarshalText([]byte("failed")))
	assert.Equal(t, KindFailed, k)
	assert.Error(t, k.UnmarshalText([]byte("maybe")))
}
