package persistence

import (
	"strings"

	"gorm.io/gorm/clause"
)

const defaultInvoiceSort = "created_at"

// invoiceSortColumns are the columns a customer's invoice list may be ordered by
var invoiceSortColumns = map[string]bool{
	"id":                 true,
	"created_at":         true,
	"invoice_number":     true,
	"grand_total":        true,
	"outstanding_amount": true,
	"payment_status":     true,
}

// invoiceOrder builds the ORDER BY for an invoice listing. Unknown columns
// fall back to created_at and anything but "asc" sorts descending. The id
// tiebreak keeps pages stable.
func invoiceOrder(sortBy, sortOrder string) clause.OrderBy {
	column := strings.TrimSpace(sortBy)
	if !invoiceSortColumns[column] {
		column = defaultInvoiceSort
	}
	desc := !strings.EqualFold(strings.TrimSpace(sortOrder), "asc")

	order := clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: column}, Desc: desc},
	}}
	if column != "id" {
		order.Columns = append(order.Columns, clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: desc})
	}
	return order
}
