package printing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPDFRenderer struct {
	mock.Mock
}

func (m *MockPDFRenderer) Render(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RenderResult), args.Error(1)
}

func (m *MockPDFRenderer) Close() error {
	return m.Called().Error(0)
}

func TestInvoiceRenderer_HTMLDocument(t *testing.T) {
	r := NewInvoiceRenderer(nil, nil, nil)
	path := filepath.Join(t.TempDir(), "INV-1.html")

	require.NoError(t, r.Render(context.Background(), sampleView(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "TAX INVOICE")
	assert.Equal(t, ".html", r.Extension())
	assert.NoError(t, r.Close())
}

func TestInvoiceRenderer_PDFDocument(t *testing.T) {
	pdf := new(MockPDFRenderer)
	pdf.On("Render", mock.Anything, mock.MatchedBy(func(req *RenderRequest) bool {
		return req.PaperSize == PaperSizeA5 &&
			req.Title == "Tax Invoice INV-20260314-0003" &&
			req.Timeout == 7*time.Second &&
			req.FooterHTML == pageFooter
	})).Return(&RenderResult{PDFData: []byte("%PDF-1.7"), PageCount: 1}, nil)
	pdf.On("Close").Return(nil)

	r := NewInvoiceRenderer(NewTemplateEngine(), pdf, &InvoiceRendererConfig{PaperSize: PaperSizeA5, Timeout: 7 * time.Second})
	path := filepath.Join(t.TempDir(), "docs", "INV-1.pdf")

	require.NoError(t, r.Render(context.Background(), sampleView(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(data))
	assert.Equal(t, ".pdf", r.Extension())
	require.NoError(t, r.Close())
	pdf.AssertExpectations(t)
}

func TestInvoiceRenderer_FailureLeavesNoFile(t *testing.T) {
	pdf := new(MockPDFRenderer)
	pdf.On("Render", mock.Anything, mock.Anything).Return(nil, NewRenderError(ErrCodeRenderFailed, "chrome crashed", nil))

	dir := t.TempDir()
	r := NewInvoiceRenderer(nil, pdf, nil)

	err := r.Render(context.Background(), sampleView(), filepath.Join(dir, "INV-1.pdf"))
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestInvoiceRenderer_InvalidPaperFallsBackToA4(t *testing.T) {
	r := NewInvoiceRenderer(nil, nil, &InvoiceRendererConfig{PaperSize: "B5"})
	assert.Equal(t, PaperSizeA4, r.paper)
	assert.Equal(t, 2, cap(r.slots))
}

// blockingPDF holds every render until released
type blockingPDF struct {
	active  atomic.Int32
	peak    atomic.Int32
	release chan struct{}
}

func (b *blockingPDF) Render(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
	n := b.active.Add(1)
	defer b.active.Add(-1)
	for {
		p := b.peak.Load()
		if n <= p || b.peak.CompareAndSwap(p, n) {
			break
		}
	}
	<-b.release
	return &RenderResult{PDFData: []byte("%PDF")}, nil
}

func (b *blockingPDF) Close() error { return nil }

func TestInvoiceRenderer_ConcurrencyLimit(t *testing.T) {
	pdf := &blockingPDF{release: make(chan struct{})}
	r := NewInvoiceRenderer(nil, pdf, &InvoiceRendererConfig{MaxConcurrency: 1})
	dir := t.TempDir()

	var wg sync.WaitGroup
	for i := range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Render(context.Background(), sampleView(), filepath.Join(dir, string(rune('a'+i))+".pdf"))
		}()
	}
	for range 3 {
		pdf.release <- struct{}{}
	}
	wg.Wait()

	assert.Equal(t, int32(1), pdf.peak.Load())
}

func TestInvoiceRenderer_CancelledWhileWaiting(t *testing.T) {
	pdf := &blockingPDF{release: make(chan struct{})}
	r := NewInvoiceRenderer(nil, pdf, &InvoiceRendererConfig{MaxConcurrency: 1})
	dir := t.TempDir()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Render(context.Background(), sampleView(), filepath.Join(dir, "first.pdf"))
	}()
	require.Eventually(t, func() bool { return pdf.active.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.Render(ctx, sampleView(), filepath.Join(dir, "second.pdf"))
	var renderErr *RenderError
	require.True(t, errors.As(err, &renderErr))
	assert.Equal(t, ErrCodeRenderTimeout, renderErr.Code)

	pdf.release <- struct{}{}
	<-done
}
