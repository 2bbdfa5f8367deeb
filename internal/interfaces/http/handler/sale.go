package handler

import (
	"context"

	appinvoice "github.com/erp/invoicing/internal/application/invoice"
	"github.com/gin-gonic/gin"
)

// SaleRecorder commits a completed basket as an invoice
type SaleRecorder interface {
	RecordSale(ctx context.Context, req appinvoice.RecordSaleRequest) (*appinvoice.RecordSaleResult, error)
}

// SaleHandler handles sale recording
type SaleHandler struct {
	BaseHandler
	sales SaleRecorder
}

// NewSaleHandler creates a new SaleHandler
func NewSaleHandler(sales SaleRecorder) *SaleHandler {
	return &SaleHandler{sales: sales}
}

// RecordSale godoc
// @Summary      Record a sale
// @Description  Commit a completed basket as an invoice and render its first document.
// @Description  A render failure does not undo the sale; render_error explains it.
// @Tags         sales
// @Accept       json
// @Produce      json
// @Param        request body  RecordSaleRequest true "Sale"
// @Success      201  {object} dto.Response{data=SaleResponse}
// @Failure      400  {object} dto.Response
// @Failure      409  {object} dto.Response
// @Failure      503  {object} dto.Response
// @Router       /sales [post]
func (h *SaleHandler) RecordSale(c *gin.Context) {
	var req RecordSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.sales.RecordSale(c.Request.Context(), req.toService())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toSaleResponse(result))
}
