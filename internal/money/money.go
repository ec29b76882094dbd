// Package money holds decimal helpers shared by the ledger and analytics.
package money

import (
	"fmt"
	"sort"
	"strings"

	"github.com/divan/num2words"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Round rounds an amount to cents
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// RateScale is the number of decimals kept on exchange rates
const RateScale = 6

// RoundRate rounds an exchange rate to the stored precision
func RoundRate(d decimal.Decimal) decimal.Decimal {
	return d.Round(RateScale)
}

// Convert turns an amount in a foreign currency into base currency cents
func Convert(amount, rate decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(rate))
}

// Min returns the smaller of a and b
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Sum adds up amounts
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Shares returns each part's percentage of the total, rounded to two
// decimals with the largest remainder method so that the result sums to
// exactly 100. All shares are zero when the total is zero.
func Shares(parts []decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(parts))
	total := Sum(parts...)
	if !total.IsPositive() {
		for i := range out {
			out[i] = decimal.Zero
		}
		return out
	}
	const scale = 10000 // hundredths of a percent
	type rem struct {
		idx  int
		frac decimal.Decimal
	}
	units := make([]int64, len(parts))
	rems := make([]rem, len(parts))
	var used int64
	for i, p := range parts {
		q := p.Mul(decimal.NewFromInt(scale)).Div(total)
		fl := q.Floor()
		units[i] = fl.IntPart()
		used += units[i]
		rems[i] = rem{idx: i, frac: q.Sub(fl)}
	}
	sort.SliceStable(rems, func(a, b int) bool { return rems[a].frac.GreaterThan(rems[b].frac) })
	for i := int64(0); i < scale-used && int(i) < len(rems); i++ {
		units[rems[i].idx]++
	}
	for i, u := range units {
		out[i] = decimal.New(u, -2)
	}
	return out
}

// Words spells an amount for receipts, e.g. "one thousand two hundred fifty and 50/100 KES"
func Words(amount decimal.Decimal, currency string) string {
	amount = Round(amount.Abs())
	whole := amount.IntPart()
	cents := amount.Sub(decimal.NewFromInt(whole)).Mul(hundred).IntPart()
	return fmt.Sprintf("%s and %02d/100 %s", num2words.Convert(int(whole)), cents, strings.ToUpper(currency))
}
