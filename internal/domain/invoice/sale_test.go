package invoice

import (
	"testing"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineItem_Totals(t *testing.T) {
	li := LineItem{UnitPrice: d("120"), Quantity: d("2.5"), DiscountPct: d("10")}
	assert.Equal(t, "270", li.ComputedTotal().String())
	assert.Equal(t, "270", li.LineTotal().String())

	stored := d("275.50")
	li.StoredTotal = &stored
	assert.Equal(t, "275.5", li.LineTotal().String(), "stored total wins")

	assert.Equal(t, "Item 7", LineItem{ProductID: 7}.DisplayName())
	assert.Equal(t, "Soap", LineItem{ProductID: 7, Name: "Soap"}.DisplayName())
}

func TestBuildSale(t *testing.T) {
	scenarioItems := []LineItem{
		{ProductID: 1, Name: "Rice 10kg", UnitPrice: d("1500"), Quantity: d("1"), TaxAmount: d("70.00")},
		{ProductID: 2, Name: "Dal 5kg", UnitPrice: d("650"), Quantity: d("1"), TaxAmount: d("33.26")},
	}

	t.Run("split scenario", func(t *testing.T) {
		h, err := BuildSale(SaleDraft{
			CustomerID:    int64Ptr(9),
			Items:         scenarioItems,
			Discount:      d("85"),
			PaymentMethod: PaymentMethodSplit,
			CashAmount:    d("1000"),
		})
		require.NoError(t, err)
		assert.Equal(t, "2150.00", h.Subtotal.StringFixed(2))
		assert.Equal(t, "51.63", h.TaxCGST.StringFixed(2))
		assert.Equal(t, "51.63", h.TaxSGST.StringFixed(2))
		assert.Equal(t, "2168.26", h.GrandTotal.StringFixed(2))
		assert.Equal(t, "1168.26", h.OutstandingAmount.StringFixed(2))
		assert.Equal(t, PaymentStatusPartiallyPaid, h.PaymentStatus)
		assert.False(t, h.CreatedAt.IsZero())
		require.NoError(t, h.Validate())
	})

	t.Run("cash sale is paid", func(t *testing.T) {
		h, err := BuildSale(SaleDraft{Items: scenarioItems, PaymentMethod: PaymentMethodCash})
		require.NoError(t, err)
		assert.Equal(t, PaymentStatusPaid, h.PaymentStatus)
		assert.True(t, h.OutstandingAmount.IsZero())
		assert.True(t, h.CashAmount.Equal(h.GrandTotal))
		assert.Nil(t, SaleCreditEntry(h))
	})

	t.Run("credit sale is unpaid", func(t *testing.T) {
		h, err := BuildSale(SaleDraft{CustomerID: int64Ptr(3), Items: scenarioItems, PaymentMethod: PaymentMethodCredit})
		require.NoError(t, err)
		assert.Equal(t, PaymentStatusUnpaid, h.PaymentStatus)
		assert.True(t, h.OutstandingAmount.Equal(h.GrandTotal))
		assert.Nil(t, InitialPayment(h))

		entry := SaleCreditEntry(h)
		require.NotNil(t, entry)
		assert.Equal(t, LedgerEntrySaleCredit, entry.EntryType)
		assert.True(t, entry.Debit.Equal(h.GrandTotal))
	})

	t.Run("split paying everything in cash is paid", func(t *testing.T) {
		h, err := BuildSale(SaleDraft{Items: scenarioItems, PaymentMethod: PaymentMethodSplit, CashAmount: d("5000")})
		require.NoError(t, err)
		assert.Equal(t, PaymentStatusPaid, h.PaymentStatus)
		assert.True(t, h.CashAmount.Equal(h.GrandTotal))

		p := InitialPayment(h)
		require.NotNil(t, p)
		assert.Equal(t, PaymentMethodCash, p.Method)
	})

	t.Run("exclusive tax from rate", func(t *testing.T) {
		h, err := BuildSale(SaleDraft{
			Items:         []LineItem{{ProductID: 1, UnitPrice: d("100"), Quantity: d("3"), TaxRate: d("18")}},
			PaymentMethod: PaymentMethodUPI,
		})
		require.NoError(t, err)
		assert.Equal(t, "300.00", h.Subtotal.StringFixed(2))
		assert.Equal(t, "27.00", h.TaxCGST.StringFixed(2))
		assert.Equal(t, "354.00", h.GrandTotal.StringFixed(2))
	})

	t.Run("inclusive tax from rate", func(t *testing.T) {
		h, err := BuildSale(SaleDraft{
			Items:         []LineItem{{ProductID: 1, UnitPrice: d("118"), Quantity: d("1"), TaxRate: d("18")}},
			TaxInclusive:  true,
			PaymentMethod: PaymentMethodCash,
		})
		require.NoError(t, err)
		assert.Equal(t, "100.00", h.Subtotal.StringFixed(2))
		assert.Equal(t, "118.00", h.GrandTotal.StringFixed(2))
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name  string
			draft SaleDraft
		}{
			{"no items", SaleDraft{PaymentMethod: PaymentMethodCash}},
			{"bad method", SaleDraft{Items: scenarioItems, PaymentMethod: "BARTER"}},
			{"zero qty", SaleDraft{Items: []LineItem{{UnitPrice: d("1"), Quantity: decimal.Zero}}, PaymentMethod: PaymentMethodCash}},
			{"negative price", SaleDraft{Items: []LineItem{{UnitPrice: d("-1"), Quantity: d("1")}}, PaymentMethod: PaymentMethodCash}},
			{"walk-in credit", SaleDraft{Items: scenarioItems, PaymentMethod: PaymentMethodCredit}},
			{"negative cash", SaleDraft{Items: scenarioItems, PaymentMethod: PaymentMethodSplit, CashAmount: d("-1")}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := BuildSale(tt.draft)
				require.Error(t, err)
				assert.True(t, shared.IsKind(err, shared.KindValidation))
			})
		}
	})
}

func TestItemsTotals(t *testing.T) {
	stored := d("99.99")
	items := []LineItem{
		{UnitPrice: d("50"), Quantity: d("2"), TaxRate: d("5")},
		{UnitPrice: d("10"), Quantity: d("1"), StoredTotal: &stored, TaxAmount: d("4.76")},
	}
	assert.Equal(t, "199.99", ItemsSubtotal(items).StringFixed(2))
	assert.Equal(t, "9.76", ItemsTax(items).StringFixed(2))
}
