package printing

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/erp/invoicing/internal/domain/invoice"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const pageFooter = `<div style="font-size:8px;width:100%;text-align:center;color:#666;">` +
	`Page <span class="pageNumber"></span> of <span class="totalPages"></span></div>`

// InvoiceRendererConfig tunes document output
type InvoiceRendererConfig struct {
	PaperSize PaperSize
	// Timeout bounds a single PDF conversion; zero uses the PDF renderer default
	Timeout time.Duration
	// MaxConcurrency caps simultaneous renders. Default: 2
	MaxConcurrency int
	Logger         *zap.Logger
}

// InvoiceRenderer writes invoice documents. With a PDF renderer the output
// is a PDF; without one the HTML itself is the document.
type InvoiceRenderer struct {
	templates *TemplateEngine
	pdf       PDFRenderer
	paper     PaperSize
	timeout   time.Duration
	slots     chan struct{}
	logger    *zap.Logger
}

// NewInvoiceRenderer creates a renderer. pdf may be nil.
func NewInvoiceRenderer(templates *TemplateEngine, pdf PDFRenderer, config *InvoiceRendererConfig) *InvoiceRenderer {
	if config == nil {
		config = &InvoiceRendererConfig{}
	}
	if templates == nil {
		templates = NewTemplateEngine()
	}
	paper := config.PaperSize
	if !paper.IsValid() {
		paper = PaperSizeA4
	}
	concurrency := config.MaxConcurrency
	if concurrency <= 0 {
		concurrency = 2
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &InvoiceRenderer{
		templates: templates,
		pdf:       pdf,
		paper:     paper,
		timeout:   config.Timeout,
		slots:     make(chan struct{}, concurrency),
		logger:    logger,
	}
}

// Extension is the file extension of the documents this renderer writes
func (r *InvoiceRenderer) Extension() string {
	if r.pdf == nil {
		return ".html"
	}
	return ".pdf"
}

// Render writes the document for view to path. The file appears only once
// it is complete.
func (r *InvoiceRenderer) Render(ctx context.Context, view *invoice.InvoiceView, path string) error {
	select {
	case r.slots <- struct{}{}:
		defer func() { <-r.slots }()
	case <-ctx.Done():
		return NewRenderError(ErrCodeRenderTimeout, "waiting for a free renderer", ctx.Err())
	}

	html, err := r.templates.RenderInvoice(ctx, view, r.paper)
	if err != nil {
		return err
	}

	data := []byte(html)
	if r.pdf != nil {
		result, err := r.pdf.Render(ctx, &RenderRequest{
			HTML:       html,
			PaperSize:  r.paper,
			Margins:    DefaultMargins(r.paper),
			Title:      "Tax Invoice " + view.InvoiceNumber,
			FooterHTML: pageFooter,
			Timeout:    r.timeout,
		})
		if err != nil {
			return err
		}
		data = result.PDFData
		r.logger.Debug("invoice document rendered",
			zap.String("invoice_number", view.InvoiceNumber),
			zap.Int("pages", result.PageCount),
			zap.Duration("duration", result.RenderDuration))
	}

	return writeFileAtomic(path, data)
}

// writeFileAtomic writes to a hidden temp file next to path and renames it
// into place
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return NewRenderError(ErrCodeStorageFailed, "failed to create document directory", err)
	}

	tmp := filepath.Join(dir, "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return NewRenderError(ErrCodeStorageFailed, "failed to write document", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return NewRenderError(ErrCodeStorageFailed, "failed to move document into place", err)
	}
	return nil
}

// Close releases the PDF renderer
func (r *InvoiceRenderer) Close() error {
	if r.pdf == nil {
		return nil
	}
	return r.pdf.Close()
}
