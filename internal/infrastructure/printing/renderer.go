package printing

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"
)

// PaperSize names a supported output format
type PaperSize string

const (
	PaperSizeA4        PaperSize = "A4"
	PaperSizeA5        PaperSize = "A5"
	PaperSizeLetter    PaperSize = "LETTER"
	PaperSizeReceipt80 PaperSize = "RECEIPT_80MM"
	PaperSizeReceipt58 PaperSize = "RECEIPT_58MM"
)

// ParsePaperSize accepts the configured paper name in any case
func ParsePaperSize(s string) (PaperSize, error) {
	p := PaperSize(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case "THERMAL", "THERMAL_80":
		p = PaperSizeReceipt80
	case "THERMAL_58":
		p = PaperSizeReceipt58
	}
	if !p.IsValid() {
		return "", fmt.Errorf("unsupported paper size %q", s)
	}
	return p, nil
}

// IsValid reports whether p is a known size
func (p PaperSize) IsValid() bool {
	switch p {
	case PaperSizeA4, PaperSizeA5, PaperSizeLetter, PaperSizeReceipt80, PaperSizeReceipt58:
		return true
	}
	return false
}

// IsReceipt reports whether p is a roll of till paper
func (p PaperSize) IsReceipt() bool {
	return p == PaperSizeReceipt80 || p == PaperSizeReceipt58
}

// Dimensions returns width and height in millimeters. Receipt rolls report
// a zero height.
func (p PaperSize) Dimensions() (width, height int) {
	switch p {
	case PaperSizeA4:
		return 210, 297
	case PaperSizeA5:
		return 148, 210
	case PaperSizeLetter:
		return 216, 279
	case PaperSizeReceipt80:
		return 80, 0
	case PaperSizeReceipt58:
		return 58, 0
	}
	return 0, 0
}

// Margins in millimeters
type Margins struct {
	Top    int
	Right  int
	Bottom int
	Left   int
}

// DefaultMargins returns the page margins used for p
func DefaultMargins(p PaperSize) Margins {
	if p.IsReceipt() {
		return Margins{Top: 2, Right: 2, Bottom: 2, Left: 2}
	}
	return Margins{Top: 12, Right: 10, Bottom: 12, Left: 10}
}

// RenderRequest contains the parameters for rendering HTML to PDF
type RenderRequest struct {
	// HTML content to render
	HTML string
	// PaperSize defines the output paper dimensions
	PaperSize PaperSize
	// Landscape turns the page sideways
	Landscape bool
	// Margins in millimeters
	Margins Margins
	// Title for the PDF document metadata
	Title string
	// Footer HTML content (optional), printed on every page
	FooterHTML string
	// Timeout overrides the default rendering timeout
	Timeout time.Duration
}

// RenderResult contains the output from PDF rendering
type RenderResult struct {
	// PDFData is the raw PDF file content
	PDFData []byte
	// PageCount is the number of pages in the PDF
	PageCount int
	// RenderDuration is how long the rendering took
	RenderDuration time.Duration
}

// PDFRenderer defines the interface for rendering HTML to PDF
type PDFRenderer interface {
	// Render converts HTML content to a PDF document
	Render(ctx context.Context, req *RenderRequest) (*RenderResult, error)

	// Close releases any resources held by the renderer
	Close() error
}

// RenderError represents an error during document rendering
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// Error codes for rendering failures
const (
	ErrCodeRenderTimeout    = "RENDER_TIMEOUT"
	ErrCodeRenderFailed     = "RENDER_FAILED"
	ErrCodeInvalidHTML      = "INVALID_HTML"
	ErrCodeInvalidTemplate  = "INVALID_TEMPLATE"
	ErrCodeInvalidPaperSize = "INVALID_PAPER_SIZE"
	ErrCodeStorageFailed    = "STORAGE_FAILED"
)

// NewRenderError creates a new RenderError
func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// estimatePageCount counts page objects in a PDF. The parent /Pages node
// matches the same prefix and is subtracted.
func estimatePageCount(pdfData []byte) int {
	count := bytes.Count(pdfData, []byte("/Type /Page"))
	count -= bytes.Count(pdfData, []byte("/Type /Pages"))
	return max(count, 1)
}
