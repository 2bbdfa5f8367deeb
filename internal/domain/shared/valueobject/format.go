package valueobject

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatCurrency renders amount with Indian digit grouping (last three digits,
// then pairs): 12345678.5 becomes "₹1,23,45,678.50". The amount is rounded to
// decimals places before grouping. Nil or non-numeric input renders as zero.
func FormatCurrency(amount any, symbol string, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	places := int32(decimals)

	d, ok := parseDecimal(amount)
	if !ok {
		return symbol + decimal.Zero.StringFixed(places)
	}

	rounded := d.Round(places)
	text := rounded.Abs().StringFixed(places)
	intPart, fracPart, hasFrac := strings.Cut(text, ".")

	var b strings.Builder
	if rounded.IsNegative() {
		b.WriteByte('-')
	}
	b.WriteString(symbol)
	b.WriteString(groupIndian(intPart))
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(fracPart)
	}
	return b.String()
}

// FormatINR formats amount as rupees with two decimal places
func FormatINR(amount any) string {
	return FormatCurrency(amount, DefaultSymbol, int(MoneyPlaces))
}

func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]

	groups := make([]string, 0, len(head)/2+2)
	for len(head) > 2 {
		groups = append(groups, head[len(head)-2:])
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append(groups, head)
	}
	for i, j := 0, len(groups)-1; i < j; i, j = i+1, j-1 {
		groups[i], groups[j] = groups[j], groups[i]
	}
	return strings.Join(append(groups, tail), ",")
}
