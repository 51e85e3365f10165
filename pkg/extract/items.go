package extract

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ginasoft/BotGastos/pkg/api"
)

// itemPattern matches "<name> <price>" where the name is letters and spaces only.
var itemPattern = regexp.MustCompile(`^([\p{L}\s]+?)\s*(\d+(?:[.,]\d{1,2})?)$`)

// totalLabels name lines that carry the receipt total instead of a product.
var totalLabels = map[string]struct{}{
	"total":         {},
	"subtotal":      {},
	"sub total":     {},
	"total a pagar": {},
	"importe total": {},
}

// ExtractItems returns one LineItem per line of text shaped like "Leche 120".
// Lines that do not match are skipped; the result may be empty.
func ExtractItems(text string, timestamp time.Time, userName string) []api.LineItem {
	var items []api.LineItem
	for _, line := range strings.Split(text, "\n") {
		m := itemPattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}

		name := strings.TrimSpace(m[1])
		if _, isTotal := totalLabels[strings.ToLower(strings.Join(strings.Fields(name), " "))]; isTotal {
			continue
		}

		price, ok := parseNumber(m[2])
		if !ok {
			continue
		}

		items = append(items, api.LineItem{
			Timestamp: timestamp,
			UserName:  userName,
			Product:   capitalize(name),
			Price:     price,
		})
	}
	return items
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return cases.Upper(language.Spanish).String(string(r)) + cases.Lower(language.Spanish).String(s[size:])
}
