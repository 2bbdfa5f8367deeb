package valueobject

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	onesWords = [...]string{
		"", "One", "Two", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine",
		"Ten", "Eleven", "Twelve", "Thirteen", "Fourteen", "Fifteen", "Sixteen",
		"Seventeen", "Eighteen", "Nineteen",
	}
	tensWords = [...]string{
		"", "", "Twenty", "Thirty", "Forty", "Fifty", "Sixty", "Seventy", "Eighty", "Ninety",
	}
)

type indianScale struct {
	value *big.Int
	name  string
}

// indianScales is ordered largest first. Each step above a thousand is a
// factor of one hundred.
var indianScales = []indianScale{
	{pow10(17), "Shankh"},
	{pow10(15), "Padma"},
	{pow10(13), "Neel"},
	{pow10(11), "Kharab"},
	{pow10(9), "Arab"},
	{pow10(7), "Crore"},
	{pow10(5), "Lakh"},
	{pow10(3), "Thousand"},
	{pow10(2), "Hundred"},
}

func pow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

// NumberToWords spells amount in Indian English as printed on an invoice:
//
//	1234567.50 -> "Twelve Lakh Thirty Four Thousand Five Hundred Sixty Seven Rupees and Fifty Paise Only"
//
// The amount is rounded to paise first. Zero or unreadable input yields
// "Zero Rupees Only".
func NumberToWords(amount any) string {
	d := RoundMoney(ToDecimal(amount))
	negative := d.IsNegative()
	d = d.Abs()

	rupees := d.Truncate(0)
	paise := d.Sub(rupees).Shift(MoneyPlaces).IntPart()

	var parts []string
	if negative && (rupees.IsPositive() || paise > 0) {
		parts = append(parts, "Minus")
	}
	if rupees.IsPositive() {
		parts = append(parts, integerWords(rupees.BigInt())...)
		if rupees.Equal(decimal.NewFromInt(1)) {
			parts = append(parts, "Rupee")
		} else {
			parts = append(parts, "Rupees")
		}
	}
	if paise > 0 {
		if rupees.IsPositive() {
			parts = append(parts, "and")
		}
		parts = append(parts, belowHundred(int(paise))...)
		parts = append(parts, "Paise")
	}
	if len(parts) == 0 {
		return "Zero Rupees Only"
	}
	return strings.Join(append(parts, "Only"), " ")
}

func integerWords(n *big.Int) []string {
	var words []string
	rest := new(big.Int).Set(n)
	for _, s := range indianScales {
		if rest.Cmp(s.value) < 0 {
			continue
		}
		q, r := new(big.Int).QuoRem(rest, s.value, new(big.Int))
		words = append(words, integerWords(q)...)
		words = append(words, s.name)
		rest = r
	}
	if rest.Sign() > 0 {
		words = append(words, belowHundred(int(rest.Int64()))...)
	}
	return words
}

func belowHundred(n int) []string {
	if n < 20 {
		if n == 0 {
			return nil
		}
		return []string{onesWords[n]}
	}
	words := []string{tensWords[n/10]}
	if n%10 != 0 {
		words = append(words, onesWords[n%10])
	}
	return words
}
