package engine

import (
	"fmt"
	"strings"

	"github.com/ginasoft/BotGastos/pkg/api"
	"github.com/ginasoft/BotGastos/pkg/staging"
)

// Messages sent back to the user.
const (
	RejectedText       = "⚠️ No se detectó un monto válido. Por favor indicá el valor numérico del gasto."
	CommittedText      = "✅ Gasto registrado correctamente."
	CancelledText      = "❌ Registro cancelado."
	NothingPendingText = "No tenés ningún gasto pendiente de confirmación."
	FailedText         = "⚠️ No se pudo registrar el gasto. Volvé a confirmar en unos minutos."
)

// Kind classifies a Reply.
type Kind int

// Reply kinds.
const (
	KindNothing Kind = iota
	KindPrompt
	KindRejected
	KindCommitted
	KindCancelled
	KindFailed
)

var kindNames = map[Kind]string{
	KindNothing:   "nothing",
	KindPrompt:    "prompt",
	KindRejected:  "rejected",
	KindCommitted: "committed",
	KindCancelled: "cancelled",
	KindFailed:    "failed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText renders the kind by name in JSON.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	for kind, name := range kindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown reply kind %q", b)
}

// Action is a button offered alongside a reply.
type Action struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// Reply is what a transport shows the user.
type Reply struct {
	Kind    Kind     `json:"kind"`
	Text    string   `json:"text"`
	Actions []Action `json:"actions,omitempty"`
	// Pending is set on prompts and failures.
	Pending *api.PendingTransaction `json:"pending,omitempty"`
}

func decisionActions() []Action {
	return []Action{
		{Label: "✅ Confirmar", Data: staging.ConfirmData},
		{Label: "❌ Cancelar", Data: staging.CancelData},
	}
}

func rejected() Reply {
	return Reply{Kind: KindRejected, Text: RejectedText}
}

func prompt(p api.PendingTransaction) Reply {
	return Reply{
		Kind:    KindPrompt,
		Text:    PromptText(p.Record),
		Actions: decisionActions(),
		Pending: &p,
	}
}

func failed(p api.PendingTransaction) Reply {
	r := Reply{Kind: KindFailed, Text: FailedText, Actions: decisionActions()}
	if p.Record.ID != "" {
		r.Pending = &p
	}
	return r
}

// PromptText renders the confirmation question for a staged record.
func PromptText(r api.ExpenseRecord) string {
	var b strings.Builder
	b.WriteString("¿Confirmás el siguiente gasto?\n\n")
	fmt.Fprintf(&b, "🗓 Fecha: %s\n", r.Timestamp.Format(api.TimestampLayout))
	fmt.Fprintf(&b, "👤 Usuario: %s\n", r.UserName)
	fmt.Fprintf(&b, "📝 Tipo: %s\n", r.Channel.Label())
	fmt.Fprintf(&b, "💸 Monto: %s\n", r.FormattedAmount())
	fmt.Fprintf(&b, "📂 Categoría: %s\n", r.Category)
	fmt.Fprintf(&b, "💱 Moneda: %s\n", r.Currency)
	fmt.Fprintf(&b, "💳 Medio de pago: %s\n", r.PaymentMethod)
	fmt.Fprintf(&b, "🔁 Recurrente: %s", r.RecurringFlag())
	return b.String()
}
