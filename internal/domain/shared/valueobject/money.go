package valueobject

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency represents a currency code (ISO 4217)
type Currency string

// INR is the only currency the till trades in
const INR Currency = "INR"

// DefaultSymbol is printed in front of formatted amounts
const DefaultSymbol = "₹"

// MoneyPlaces is the number of decimal places money is stored and compared at
const MoneyPlaces int32 = 2

// Tolerance is the largest difference two money amounts may have and still be
// treated as equal (one paisa)
var Tolerance = decimal.New(1, -MoneyPlaces)

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds d to paise, half away from zero
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// WithinTolerance reports whether a and b differ by no more than one paisa
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}

// ToDecimal converts any numeric-looking value to a decimal. It never fails:
// nil, malformed strings, NaN and infinities all yield zero.
func ToDecimal(v any) decimal.Decimal {
	d, _ := parseDecimal(v)
	return d
}

// ParseDecimal is ToDecimal that also reports whether v held a number
func ParseDecimal(v any) (decimal.Decimal, bool) {
	return parseDecimal(v)
}

// parseDecimal reports ok=false when v could not be read as a number
func parseDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return n, true
	case *decimal.Decimal:
		if n == nil {
			return decimal.Zero, false
		}
		return *n, true
	case decimal.NullDecimal:
		return n.Decimal, n.Valid
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case uint:
		return fromUint(uint64(n)), true
	case uint32:
		return fromUint(uint64(n)), true
	case uint64:
		return fromUint(n), true
	case float32:
		return fromFloat(float64(n))
	case float64:
		return fromFloat(n)
	case json.Number:
		return fromString(n.String())
	case string:
		return fromString(n)
	case []byte:
		return fromString(string(n))
	case fmt.Stringer:
		return fromString(n.String())
	default:
		return decimal.Zero, false
	}
}

func fromUint(u uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(u), 0)
}

func fromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

var amountReplacer = strings.NewReplacer(DefaultSymbol, "", "Rs.", "", "Rs", "", "INR", "", ",", "", " ", "")

func fromString(s string) (decimal.Decimal, bool) {
	s = amountReplacer.Replace(strings.TrimSpace(s))
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
