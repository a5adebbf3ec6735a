package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)

	// PaymentTolerance is the rounding slack allowed when comparing paid sums to totals.
	PaymentTolerance = decimal.RequireFromString("0.01")
)

// Storage scales of the NUMERIC columns holding each kind of figure.
const (
	moneyScale = 2
	qtyScale   = 3
	rateScale  = 2
)

// fitsScale reports whether d carries no more than places decimal digits.
func fitsScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Truncate(places))
}

// round2 rounds half-to-even at two decimal places.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}

// PricedLine is the monetary view of any document line.
type PricedLine struct {
	Qty         decimal.Decimal
	UnitPrice   decimal.Decimal
	DiscountPct decimal.Decimal
	TaxRate     decimal.Decimal
}

// LineAmounts holds the rounded per-line figures stored alongside each line.
type LineAmounts struct {
	Base  decimal.Decimal
	Tax   decimal.Decimal
	Total decimal.Decimal
}

// Totals are the document-level figures derived from all lines.
type Totals struct {
	Base  decimal.Decimal `json:"totals_base"`
	Tax   decimal.Decimal `json:"totals_tax"`
	Total decimal.Decimal `json:"total"`
}

// LineBase returns round2(qty * unit_price * (1 - discount/100)).
// A non-positive quantity yields a zero base.
func LineBase(l PricedLine) decimal.Decimal {
	if !l.Qty.IsPositive() {
		return decimal.Zero
	}
	factor := decimal.NewFromInt(1).Sub(l.DiscountPct.Div(hundred))
	return round2(l.Qty.Mul(l.UnitPrice).Mul(factor))
}

// ComputeLine returns the rounded base, tax and total for a single line.
// Line tax is informational; document tax is computed per rate bucket by ComputeTotals.
func ComputeLine(l PricedLine) LineAmounts {
	base := LineBase(l)
	tax := round2(base.Mul(l.TaxRate).Div(hundred))
	return LineAmounts{Base: base, Tax: tax, Total: base.Add(tax)}
}

// ComputeTotals buckets line bases by tax rate and rounds tax once per bucket.
func ComputeTotals(lines []PricedLine) Totals {
	buckets := make(map[string]decimal.Decimal)
	rates := make(map[string]decimal.Decimal)
	for _, l := range lines {
		// Key on the normalized string so 21 and 21.00 share a bucket.
		key := l.TaxRate.StringFixed(2)
		buckets[key] = buckets[key].Add(LineBase(l))
		rates[key] = l.TaxRate
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	base, tax := decimal.Zero, decimal.Zero
	for _, k := range keys {
		b := buckets[k]
		base = base.Add(b)
		tax = tax.Add(round2(b.Mul(rates[k]).Div(hundred)))
	}
	return Totals{Base: base, Tax: tax, Total: round2(base.Add(tax))}
}

// DerivePaymentStatus maps a paid sum against a document total.
func DerivePaymentStatus(total, paid decimal.Decimal) PaymentStatus {
	switch {
	case !total.IsPositive():
		return PaymentUnpaid
	case !paid.IsPositive():
		return PaymentUnpaid
	case paid.Add(PaymentTolerance).LessThan(total):
		return PaymentPartial
	default:
		return PaymentPaid
	}
}

// exceedsTotal reports whether paid overshoots total by more than the tolerance.
func exceedsTotal(total, paid decimal.Decimal) bool {
	return paid.Sub(total).GreaterThan(PaymentTolerance)
}
