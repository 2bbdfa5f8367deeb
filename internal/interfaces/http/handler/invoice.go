package handler

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	appinvoice "github.com/erp/invoicing/internal/application/invoice"
	"github.com/erp/invoicing/internal/domain/invoice"
	"github.com/erp/invoicing/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// IdempotencyHeader carries a client-chosen key that makes a payment
// submission safe to retry
const IdempotencyHeader = "Idempotency-Key"

// PaymentCollector records and lists collections against credit invoices
type PaymentCollector interface {
	CollectPayment(ctx context.Context, req appinvoice.CollectPaymentRequest) (*invoice.PaymentEvent, error)
	ListPayments(ctx context.Context, transactionID int64) ([]invoice.PaymentEvent, error)
}

// InvoiceDocuments builds invoice views and makes sure their documents exist
type InvoiceDocuments interface {
	GetInvoiceView(ctx context.Context, id int64) (*invoice.InvoiceView, error)
	EnsureArtifact(ctx context.Context, id int64) (*appinvoice.ArtifactResult, error)
	OpenArtifact(ctx context.Context, id int64, mode appinvoice.OpenMode) (*appinvoice.ArtifactResult, error)
}

// InvoiceRegenerator rebuilds an invoice document from stored data
type InvoiceRegenerator interface {
	Regenerate(ctx context.Context, id int64) (*appinvoice.RegenerationResult, error)
}

// ArtifactFiles reads finished documents
type ArtifactFiles interface {
	Open(ctx context.Context, path string) (io.ReadSeekCloser, error)
}

// InvoiceHandler handles invoice views, documents and collections
type InvoiceHandler struct {
	BaseHandler
	payments    PaymentCollector
	documents   InvoiceDocuments
	regenerator InvoiceRegenerator
	files       ArtifactFiles
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(
	payments PaymentCollector,
	documents InvoiceDocuments,
	regenerator InvoiceRegenerator,
	files ArtifactFiles,
) *InvoiceHandler {
	return &InvoiceHandler{
		payments:    payments,
		documents:   documents,
		regenerator: regenerator,
		files:       files,
	}
}

// OpenArtifactRequest asks the terminal to show or print a document
type OpenArtifactRequest struct {
	Mode string `json:"mode" binding:"required,oneof=view print"`
}

// GetInvoice godoc
// @Summary      Get invoice
// @Description  Display-ready invoice with resolved items, GST summary and payment state
// @Tags         invoices
// @Produce      json
// @Param        id path  int true "Invoice ID"
// @Success      200 {object} dto.Response{data=InvoiceViewResponse}
// @Failure      404 {object} dto.Response
// @Router       /invoices/{id} [get]
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	view, err := h.documents.GetInvoiceView(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toInvoiceViewResponse(view))
}

// ListPayments godoc
// @Summary      List payments
// @Tags         invoices
// @Produce      json
// @Param        id path  int true "Invoice ID"
// @Success      200 {object} dto.Response{data=[]PaymentResponse}
// @Router       /invoices/{id}/payments [get]
func (h *InvoiceHandler) ListPayments(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	events, err := h.payments.ListPayments(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toPaymentResponses(events))
}

// CollectPayment godoc
// @Summary      Collect payment
// @Description  Record money received against a credit or split invoice.
// @Description  Send Idempotency-Key to make retries safe.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id  path  int    true "Invoice ID"
// @Param        Idempotency-Key header  string   false "Retry key"
// @Param        request  body  CollectPaymentRequest true "Payment"
// @Success      201  {object} dto.Response{data=PaymentResponse}
// @Failure      400  {object} dto.Response
// @Failure      409  {object} dto.Response
// @Router       /invoices/{id}/payments [post]
func (h *InvoiceHandler) CollectPayment(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req CollectPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if key := strings.TrimSpace(c.GetHeader(IdempotencyHeader)); key != "" {
		req.IdempotencyKey = key
	}

	event, err := h.payments.CollectPayment(c.Request.Context(), req.toService(id))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toPaymentResponse(event))
}

// EnsureArtifact godoc
// @Summary      Ensure invoice document
// @Description  Return the document path, rebuilding the document if it is missing
// @Tags         invoices
// @Produce      json
// @Param        id path  int true "Invoice ID"
// @Success      200 {object} dto.Response{data=ArtifactResponse}
// @Failure      422 {object} dto.Response
// @Router       /invoices/{id}/artifact [post]
func (h *InvoiceHandler) EnsureArtifact(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	result, err := h.documents.EnsureArtifact(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toArtifactResponse(result.Path, downloadURL(c, id), result.Regenerated, result.Quality, ""))
}

// DownloadArtifact godoc
// @Summary      Download invoice document
// @Tags         invoices
// @Produce      application/pdf
// @Produce      text/html
// @Param        id path int true "Invoice ID"
// @Success      200
// @Failure      404 {object} dto.Response
// @Router       /invoices/{id}/artifact [get]
func (h *InvoiceHandler) DownloadArtifact(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	result, err := h.documents.EnsureArtifact(ctx, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	f, err := h.files.Open(ctx, result.Path)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	defer f.Close()

	name := filepath.Base(result.Path)
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", name))
	c.Header("Content-Type", contentTypeFor(name))
	http.ServeContent(c.Writer, c.Request, name, modTime(f), f)
}

// OpenArtifact godoc
// @Summary      Open invoice document on the terminal
// @Description  Hand the document to the configured viewer or printer
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id  path  int   true "Invoice ID"
// @Param        request body  OpenArtifactRequest true "Mode"
// @Success      200  {object} dto.Response{data=ArtifactResponse}
// @Router       /invoices/{id}/open [post]
func (h *InvoiceHandler) OpenArtifact(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req OpenArtifactRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.documents.OpenArtifact(c.Request.Context(), id, appinvoice.OpenMode(req.Mode))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toArtifactResponse(result.Path, downloadURL(c, id), result.Regenerated, result.Quality, ""))
}

// Regenerate godoc
// @Summary      Regenerate invoice document
// @Description  Rebuild the document from stored data and replace the recorded path
// @Tags         invoices
// @Produce      json
// @Param        id path  int true "Invoice ID"
// @Success      200 {object} dto.Response{data=ArtifactResponse}
// @Failure      404 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /invoices/{id}/regenerate [post]
func (h *InvoiceHandler) Regenerate(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	result, err := h.regenerator.Regenerate(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !result.Success {
		h.Error(c, http.StatusUnprocessableEntity, dto.ErrCodeIrrecoverable, "Invoice document could not be rebuilt")
		return
	}

	h.Success(c, toArtifactResponse(result.Path, downloadURL(c, id), true, result.Quality, result.Layout))
}

func downloadURL(c *gin.Context, id int64) string {
	path := strings.TrimSuffix(c.FullPath(), "/artifact")
	path = strings.TrimSuffix(path, "/regenerate")
	path = strings.TrimSuffix(path, "/open")
	return strings.Replace(path, ":id", fmt.Sprint(id), 1) + "/artifact"
}

func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".html", ".htm":
		return "text/html; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// modTime returns the file's modification time when the reader exposes one
func modTime(r io.ReadSeeker) (t time.Time) {
	if st, ok := r.(interface{ Stat() (fs.FileInfo, error) }); ok {
		if info, err := st.Stat(); err == nil {
			t = info.ModTime()
		}
	}
	return t
}
