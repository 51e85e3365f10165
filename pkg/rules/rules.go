// Package rules holds the ordered keyword tables used to classify expenses.
//
// A Set is built once at startup and shared read-only by every classification.
// Each table is an ordered list of entries; the first entry with a keyword contained
// in the text wins and the table default applies when nothing matches.
package rules

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ginasoft/BotGastos/pkg/api"
)

//go:embed rules.json
var defaultRules []byte

var defaultSet = sync.OnceValues(func() (*Set, error) {
	return Parse(defaultRules)
})

// Entry maps a set of trigger keywords to a label.
type Entry struct {
	Label    string   `json:"label"`
	Keywords []string `json:"keywords"`
}

// Matches reports whether any keyword is a substring of text.
// text is expected to be lowercase already.
func (e Entry) Matches(text string) bool {
	for _, kw := range e.Keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Table is an ordered list of entries with a fallback label.
type Table struct {
	Default string  `json:"default"`
	Entries []Entry `json:"entries"`
}

// First returns the label of the first matching entry, or the default.
func (t Table) First(text string) string {
	for _, e := range t.Entries {
		if e.Matches(text) {
			return e.Label
		}
	}
	return t.Default
}

func (t Table) validate(name string) error {
	if t.Default == "" {
		return fmt.Errorf("%w: %s: default label is empty", api.ErrInvalidConfig, name)
	}
	for i, e := range t.Entries {
		if e.Label == "" {
			return fmt.Errorf("%w: %s[%d]: empty label", api.ErrInvalidConfig, name, i)
		}
		if len(e.Keywords) == 0 {
			return fmt.Errorf("%w: %s[%d] %q: no keywords", api.ErrInvalidConfig, name, i, e.Label)
		}
		for _, kw := range e.Keywords {
			if strings.TrimSpace(kw) == "" {
				return fmt.Errorf("%w: %s[%d] %q: empty keyword", api.ErrInvalidConfig, name, i, e.Label)
			}
		}
	}
	return nil
}

func (t Table) clone() Table {
	out := Table{Default: t.Default, Entries: make([]Entry, len(t.Entries))}
	for i, e := range t.Entries {
		out.Entries[i] = Entry{Label: e.Label, Keywords: append([]string(nil), e.Keywords...)}
	}
	return out
}

// file is the on-disk shape of a rule set.
type file struct {
	Categories     Table    `json:"categories"`
	Currencies     Table    `json:"currencies"`
	PaymentMethods Table    `json:"payment_methods"`
	Recurrence     []string `json:"recurrence"`
}

// Set is the immutable classification rule set.
type Set struct {
	categories     Table
	currencies     Table
	paymentMethods Table
	recurrence     []string
}

// Default returns the built-in rule set.
func Default() (*Set, error) {
	return defaultSet()
}

// Load reads a rule set from a JSON file. An empty path returns the built-in set.
func Load(path string) (*Set, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	set, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", path, err)
	}
	return set, nil
}

// Parse builds a Set from its JSON representation. Keywords are lowercased.
func Parse(data []byte) (*Set, error) {
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding rules: %w", err)
	}

	for _, t := range []*Table{&f.Categories, &f.Currencies, &f.PaymentMethods} {
		for i := range t.Entries {
			for j, kw := range t.Entries[i].Keywords {
				t.Entries[i].Keywords[j] = strings.ToLower(kw)
			}
		}
	}
	for i, p := range f.Recurrence {
		f.Recurrence[i] = strings.ToLower(p)
	}

	if err := f.Categories.validate("categories"); err != nil {
		return nil, err
	}
	if err := f.Currencies.validate("currencies"); err != nil {
		return nil, err
	}
	if err := f.PaymentMethods.validate("payment_methods"); err != nil {
		return nil, err
	}
	for i, p := range f.Recurrence {
		if strings.TrimSpace(p) == "" {
			return nil, fmt.Errorf("%w: recurrence[%d]: empty phrase", api.ErrInvalidConfig, i)
		}
	}

	return &Set{
		categories:     f.Categories,
		currencies:     f.Currencies,
		paymentMethods: f.PaymentMethods,
		recurrence:     f.Recurrence,
	}, nil
}

// Category returns the category label for lowercase text.
func (s *Set) Category(text string) string { return s.categories.First(text) }

// Currency returns the currency code for lowercase text.
func (s *Set) Currency(text string) string { return s.currencies.First(text) }

// PaymentMethod returns the payment method label for lowercase text.
func (s *Set) PaymentMethod(text string) string { return s.paymentMethods.First(text) }

// Recurring reports whether lowercase text contains a recurrence phrase.
func (s *Set) Recurring(text string) bool {
	for _, p := range s.recurrence {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// Categories returns a copy of the category table.
func (s *Set) Categories() Table { return s.categories.clone() }

// Currencies returns a copy of the currency table.
func (s *Set) Currencies() Table { return s.currencies.clone() }

// PaymentMethods returns a copy of the payment method table.
func (s *Set) PaymentMethods() Table { return s.paymentMethods.clone() }
