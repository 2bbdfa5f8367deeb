package handler

import (
	"context"

	appinvoice "github.com/erp/invoicing/internal/application/invoice"
	"github.com/erp/invoicing/internal/domain/invoice"
	"github.com/gin-gonic/gin"
)

// StatementReader reads a customer's running account and invoices
type StatementReader interface {
	CustomerStatement(ctx context.Context, customerID int64) (*appinvoice.CustomerStatement, error)
	CustomerInvoices(ctx context.Context, customerID int64, filter invoice.ListFilter) ([]invoice.TransactionHeader, error)
}

// ListInvoicesQuery orders and limits a customer's invoice list
type ListInvoicesQuery struct {
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=500"`
	SortBy    string `form:"sort_by" binding:"omitempty,oneof=created_at invoice_number grand_total outstanding_amount payment_status"`
	SortOrder string `form:"sort_order" binding:"omitempty,oneof=asc desc"`
}

// CustomerHandler handles customer account endpoints
type CustomerHandler struct {
	BaseHandler
	ledger StatementReader
}

// NewCustomerHandler creates a new CustomerHandler
func NewCustomerHandler(ledger StatementReader) *CustomerHandler {
	return &CustomerHandler{ledger: ledger}
}

// GetLedger godoc
// @ID           getCustomerLedger
// @Summary      Get customer ledger
// @Description  Credit sales and collections for a customer, oldest first, with the running balance
// @Tags         customers
// @Produce      json
// @Param        id path int true "Customer ID"
// @Success      200 {object} dto.Response{data=CustomerLedgerResponse}
// @Failure      400 {object} dto.Response
// @Router       /customers/{id}/ledger [get]
func (h *CustomerHandler) GetLedger(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	statement, err := h.ledger.CustomerStatement(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toCustomerLedgerResponse(statement))
}

// ListInvoices godoc
// @ID           listCustomerInvoices
// @Summary      List customer invoices
// @Tags         customers
// @Produce      json
// @Param        id         path  int    true  "Customer ID"
// @Param        limit      query int    false "Page size (max 500)"
// @Param        sort_by    query string false "created_at, invoice_number, grand_total, outstanding_amount or payment_status"
// @Param        sort_order query string false "asc or desc"
// @Success      200 {object} dto.Response{data=[]InvoiceResponse}
// @Failure      404 {object} dto.Response
// @Router       /customers/{id}/invoices [get]
func (h *CustomerHandler) ListInvoices(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var q ListInvoicesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	headers, err := h.ledger.CustomerInvoices(c.Request.Context(), id, invoice.ListFilter{
		Limit:     q.Limit,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	out := make([]InvoiceResponse, 0, len(headers))
	for i := range headers {
		out = append(out, toInvoiceResponse(&headers[i]))
	}
	h.Success(c, out)
}
