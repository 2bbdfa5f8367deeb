package valueobject

import "github.com/shopspring/decimal"

// CalculateGST splits amount into its taxable value and GST at rate percent.
//
// When inclusive is true amount already contains the tax: taxable is rounded
// to paise and tax is the remainder, so taxable+tax == amount exactly. When
// inclusive is false the tax is added on top. A zero or negative amount or
// rate yields no tax.
func CalculateGST(amount, rate any, inclusive bool) (taxable, tax, total decimal.Decimal) {
	amt := RoundMoney(ToDecimal(amount))
	r := ToDecimal(rate)

	if !amt.IsPositive() {
		return decimal.Zero, decimal.Zero, decimal.Zero
	}
	if !r.IsPositive() {
		return amt, decimal.Zero, amt
	}

	if inclusive {
		divisor := decimal.NewFromInt(1).Add(r.Div(hundred))
		taxable = RoundMoney(amt.Div(divisor))
		return taxable, amt.Sub(taxable), amt
	}

	tax = RoundMoney(amt.Mul(r).Div(hundred))
	return amt, tax, amt.Add(tax)
}

// SplitGST divides intra-state tax into its central and state halves.
// The halves always sum to the rounded tax; an odd paisa goes to CGST.
func SplitGST(tax decimal.Decimal) (cgst, sgst decimal.Decimal) {
	t := RoundMoney(tax)
	sgst = t.Div(decimal.NewFromInt(2)).Truncate(MoneyPlaces)
	return t.Sub(sgst), sgst
}

// CalculateDiscount applies discount to amount, either as a percentage or as
// an absolute rupee value. Percentages are clamped to [0,100] and absolute
// discounts to [0,amount], so net is never negative.
func CalculateDiscount(amount, discount any, isPercentage bool) (discountAmount, net decimal.Decimal) {
	amt := RoundMoney(ToDecimal(amount))
	if !amt.IsPositive() {
		return decimal.Zero, decimal.Zero
	}

	disc := ToDecimal(discount)
	if disc.IsNegative() {
		disc = decimal.Zero
	}

	if isPercentage {
		if disc.GreaterThan(hundred) {
			disc = hundred
		}
		discountAmount = RoundMoney(amt.Mul(disc).Div(hundred))
	} else {
		discountAmount = RoundMoney(decimal.Min(disc, amt))
	}
	return discountAmount, amt.Sub(discountAmount)
}
