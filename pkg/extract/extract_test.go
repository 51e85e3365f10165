package extract

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestExtractTotal(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantValid bool
		want      string
	}{
		{
			name:      "total with decimals",
			text:      "compré en el supermercado, total 2500.50",
			wantValid: true,
			want:      "2500.5",
		},
		{
			name:      "total with comma separator",
			text:      "TOTAL: $ 1234,5",
			wantValid: true,
			want:      "1234.5",
		},
		{
			name:      "last total wins",
			text:      "subtotal 100.00\ndescuento 10.00\ntotal 90.00",
			wantValid: true,
			want:      "90",
		},
		{
			name:      "total without decimals",
			text:      "Leche 120\nPan 80\nTotal 200",
			wantValid: true,
			want:      "200",
		},
		{
			name:      "no total falls back to first number",
			text:      "pagué con débito 15.30 usd en farmacia",
			wantValid: true,
			want:      "15.3",
		},
		{
			name:      "fallback picks the first of many numbers",
			text:      "3 cafés a 1500 cada uno",
			wantValid: true,
			want:      "3",
		},
		{
			name:      "no numbers",
			text:      "Hola como estas",
			wantValid: false,
		},
		{
			name:      "total label without number and no other digits",
			text:      "el total fue caro",
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractTotal(tc.text)
			if got.Valid != tc.wantValid {
				t.Fatalf("valid: got %v, want %v", got.Valid, tc.wantValid)
			}
			if !tc.wantValid {
				return
			}
			if want := decimal.RequireFromString(tc.want); !got.Decimal.Equal(want) {
				t.Errorf("amount: got %s, want %s", got.Decimal, want)
			}
		})
	}
}

func TestExtractAmount(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantValid bool
		want      string
	}{
		{"integer", "uber 850", true, "850"},
		{"comma decimal", "café 1250,75", true, "1250.75"},
		{"nine digits is not an amount", "ref 123456789", false, ""},
		{"eight digits", "ref 12345678", true, "12345678"},
		{"three decimals keep the integer part", "nafta 10.505 litros", true, "10"},
		{"empty", "", false, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractAmount(tc.text)
			if got.Valid != tc.wantValid {
				t.Fatalf("valid: got %v, want %v", got.Valid, tc.wantValid)
			}
			if tc.wantValid && !got.Decimal.Equal(decimal.RequireFromString(tc.want)) {
				t.Errorf("amount: got %s, want %s", got.Decimal, tc.want)
			}
		})
	}
}

func TestExtractItems(t *testing.T) {
	ts := time.Date(2024, 1, 15, 14, 30, 45, 0, time.UTC)

	type item struct {
		product string
		price   string
	}

	tests := []struct {
		name string
		text string
		want []item
	}{
		{
			name: "receipt with total line",
			text: "Leche 120\nPan 80\nTotal 200",
			want: []item{{"Leche", "120"}, {"Pan", "80"}},
		},
		{
			name: "capitalization and comma prices",
			text: "  PAN INTEGRAL 350,50  \r\nqueso  1200",
			want: []item{{"Pan integral", "350.5"}, {"Queso", "1200"}},
		},
		{
			name: "accented names",
			text: "ÑOQUIS 900\nazúcar 450.25",
			want: []item{{"Ñoquis", "900"}, {"Azúcar", "450.25"}},
		},
		{
			name: "headers digits and subtotals are skipped",
			text: "SUPERMERCADO DIA\nCUIT 30-12345678-9\n2x coca 300\nSubtotal 300\nTotal a pagar 300",
			want: nil,
		},
		{
			name: "single line sentence is not an item",
			text: "compré en el supermercado, total 2500.50",
			want: nil,
		},
		{
			name: "sentence ending in a number is an item",
			text: "uber al centro 850",
			want: []item{{"Uber al centro", "850"}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractItems(tc.text, ts, "Gina")
			if len(got) != len(tc.want) {
				t.Fatalf("items: got %d (%v), want %d", len(got), got, len(tc.want))
			}
			for i, w := range tc.want {
				if got[i].Product != w.product {
					t.Errorf("item %d product: got %q, want %q", i, got[i].Product, w.product)
				}
				if !got[i].Price.Equal(decimal.RequireFromString(w.price)) {
					t.Errorf("item %d price: got %s, want %s", i, got[i].Price, w.price)
				}
				if got[i].UserName != "Gina" {
					t.Errorf("item %d user: got %q, want %q", i, got[i].UserName, "Gina")
				}
				if !got[i].Timestamp.Equal(ts) {
					t.Errorf("item %d timestamp: got %v, want %v", i, got[i].Timestamp, ts)
				}
			}
		})
	}
}
