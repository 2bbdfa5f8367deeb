package printing

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	defaultChromeTimeout = 30 * time.Second

	// receipts print on one tall page; Chrome trims to the content height
	receiptPageHeightMM = 3000

	// page-number footers need room below the content
	minFooterMarginMM = 10
)

// ChromedpConfig configures the headless Chrome PDF engine
type ChromedpConfig struct {
	// Timeout bounds a single render when the request sets none
	Timeout time.Duration
	// RemoteURL is the DevTools URL of a running Chrome. Empty launches a
	// local headless browser on first render.
	RemoteURL string
	// NoSandbox is needed when Chrome runs as root inside a container
	NoSandbox bool
	// Scale defaults to 1.0
	Scale  float64
	Logger *zap.Logger
}

// ChromedpRenderer prints invoice HTML to PDF over the Chrome DevTools
// Protocol. Each render gets its own tab in a shared browser.
type ChromedpRenderer struct {
	config      ChromedpConfig
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewChromedpRenderer prepares the browser allocator. Chrome itself starts
// lazily with the first render.
func NewChromedpRenderer(config ChromedpConfig) (*ChromedpRenderer, error) {
	if config.Timeout <= 0 {
		config.Timeout = defaultChromeTimeout
	}
	if config.Scale <= 0 {
		config.Scale = 1.0
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &ChromedpRenderer{config: config, logger: logger}
	if config.RemoteURL != "" {
		r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), config.RemoteURL)
		return r, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if config.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return r, nil
}

// NewChromedpRendererFromConfig builds a renderer from the printing settings
func NewChromedpRendererFromConfig(remoteURL string, noSandbox bool, timeout time.Duration, logger *zap.Logger) (*ChromedpRenderer, error) {
	return NewChromedpRenderer(ChromedpConfig{
		Timeout:   timeout,
		RemoteURL: remoteURL,
		NoSandbox: noSandbox,
		Logger:    logger,
	})
}

// Render prints req.HTML to a PDF document
func (r *ChromedpRenderer) Render(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
	switch {
	case req == nil:
		return nil, NewRenderError(ErrCodeInvalidHTML, "render request is nil", nil)
	case strings.TrimSpace(req.HTML) == "":
		return nil, NewRenderError(ErrCodeInvalidHTML, "HTML content is empty", nil)
	case !req.PaperSize.IsValid():
		return nil, NewRenderError(ErrCodeInvalidPaperSize, "invalid paper size: "+string(req.PaperSize), nil)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.config.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tab, closeTab := chromedp.NewContext(r.allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			r.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	defer closeTab()
	// the tab must also die with the caller's deadline
	stop := context.AfterFunc(ctx, closeTab)
	defer stop()

	start := time.Now()
	document := wrapDocument(req)
	params := r.printParams(req)

	var pdf []byte
	err := chromedp.Run(tab,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, document).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := params.Do(ctx)
			pdf = data
			return err
		}),
	)
	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return nil, NewRenderError(ErrCodeRenderTimeout, fmt.Sprintf("PDF rendering timed out after %v", timeout), err)
		case errors.Is(ctx.Err(), context.Canceled):
			return nil, NewRenderError(ErrCodeRenderTimeout, "PDF rendering was cancelled", err)
		}
		r.logger.Error("Chrome failed to print invoice", zap.Error(err))
		return nil, NewRenderError(ErrCodeRenderFailed, "chromedp execution failed: "+err.Error(), err)
	}
	if len(pdf) == 0 {
		return nil, NewRenderError(ErrCodeRenderFailed, "generated PDF is empty", nil)
	}

	result := &RenderResult{
		PDFData:        pdf,
		PageCount:      estimatePageCount(pdf),
		RenderDuration: time.Since(start),
	}
	r.logger.Debug("Invoice PDF printed",
		zap.Int("bytes", len(pdf)),
		zap.Int("pages", result.PageCount),
		zap.Duration("duration", result.RenderDuration))
	return result, nil
}

// printParams maps the request onto Chrome's print settings. Chrome measures
// paper in inches.
func (r *ChromedpRenderer) printParams(req *RenderRequest) *page.PrintToPDFParams {
	width, height := req.PaperSize.Dimensions()
	if req.PaperSize.IsReceipt() {
		height = receiptPageHeightMM
	}

	p := page.PrintToPDF().
		WithPrintBackground(true).
		WithScale(r.config.Scale).
		WithLandscape(req.Landscape).
		WithPaperWidth(mmToInches(float64(width))).
		WithPaperHeight(mmToInches(float64(height))).
		WithMarginTop(mmToInches(float64(req.Margins.Top))).
		WithMarginRight(mmToInches(float64(req.Margins.Right))).
		WithMarginBottom(mmToInches(float64(req.Margins.Bottom))).
		WithMarginLeft(mmToInches(float64(req.Margins.Left)))

	// receipts carry no page numbers
	if req.FooterHTML == "" || req.PaperSize.IsReceipt() {
		return p
	}
	p = p.WithDisplayHeaderFooter(true).
		WithHeaderTemplate("<span></span>").
		WithFooterTemplate(req.FooterHTML)
	if req.Margins.Bottom < minFooterMarginMM {
		p = p.WithMarginBottom(mmToInches(minFooterMarginMM))
	}
	return p
}

// wrapDocument turns an HTML fragment into a full document. Complete
// documents pass through unchanged.
func wrapDocument(req *RenderRequest) string {
	lower := strings.ToLower(req.HTML)
	if strings.Contains(lower, "<!doctype") || strings.Contains(lower, "<html") {
		return req.HTML
	}

	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><head><meta charset="UTF-8">`)
	if req.Title != "" {
		b.WriteString("<title>" + html.EscapeString(req.Title) + "</title>")
	}
	b.WriteString("</head><body>")
	b.WriteString(req.HTML)
	b.WriteString("</body></html>")
	return b.String()
}

// Close shuts the browser down
func (r *ChromedpRenderer) Close() error {
	if r.allocCancel != nil {
		r.allocCancel()
	}
	return nil
}

func mmToInches(mm float64) float64 {
	return mm / 25.4
}

var _ PDFRenderer = (*ChromedpRenderer)(nil)
