// Package extract finds monetary amounts and receipt line items in free text.
package extract

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// totalPattern matches "total" followed by the number it labels.
	totalPattern = regexp.MustCompile(`(?i)total[^\d]*(\d+(?:[.,]\d{1,2})?)`)
	// amountPattern matches a standalone number once commas are normalized to dots.
	amountPattern = regexp.MustCompile(`\b\d{1,8}(?:\.\d{1,2})?\b`)
)

// ExtractTotal returns the amount labelled "total" in text. When the label appears
// more than once the last occurrence wins, since receipts print subtotals first.
// Without a labelled total it falls back to ExtractAmount.
func ExtractTotal(text string) decimal.NullDecimal {
	matches := totalPattern.FindAllStringSubmatch(text, -1)
	if len(matches) > 0 {
		if amount, ok := parseNumber(matches[len(matches)-1][1]); ok {
			return decimal.NewNullDecimal(amount)
		}
	}
	return ExtractAmount(text)
}

// ExtractAmount returns the first standalone number in text with up to eight integer
// digits and up to two decimals. Commas are treated as decimal separators.
func ExtractAmount(text string) decimal.NullDecimal {
	match := amountPattern.FindString(strings.ReplaceAll(text, ",", "."))
	if match == "" {
		return decimal.NullDecimal{}
	}
	amount, ok := parseNumber(match)
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(amount)
}

// parseNumber parses a matched token, accepting a comma as decimal separator.
func parseNumber(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
