// Package classifier turns free text into category, currency, payment method,
// recurrence and amount using the keyword tables in package rules.
package classifier

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginasoft/BotGastos/pkg/extract"
	"github.com/ginasoft/BotGastos/pkg/rules"
)

// Classification is the result of interpreting a piece of text.
type Classification struct {
	Category      string `json:"category"`
	PaymentMethod string `json:"payment_method"`
	Recurring     bool   `json:"recurring"`
	// Comment is the full normalized text.
	Comment  string `json:"comment"`
	Currency string `json:"currency"`
	// Amount is invalid when no number could be found.
	Amount decimal.NullDecimal `json:"amount"`
}

// Classifier evaluates a shared, read-only rule set.
type Classifier struct {
	rules *rules.Set
}

// New creates a classifier over the given rule set.
func New(set *rules.Set) *Classifier {
	return &Classifier{rules: set}
}

// Classify interprets text. It never fails; a missing amount is reported through
// Amount.Valid so callers can reject the input without error handling.
func (c *Classifier) Classify(text string) Classification {
	normalized := strings.ToLower(text)

	return Classification{
		Category:      c.rules.Category(normalized),
		PaymentMethod: c.rules.PaymentMethod(normalized),
		Recurring:     c.rules.Recurring(normalized),
		Comment:       normalized,
		Currency:      c.rules.Currency(normalized),
		Amount:        extract.ExtractTotal(normalized),
	}
}
