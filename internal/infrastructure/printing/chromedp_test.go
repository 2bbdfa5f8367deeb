package printing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChromedpRenderer_Defaults(t *testing.T) {
	r, err := NewChromedpRenderer(ChromedpConfig{})
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, defaultChromeTimeout, r.config.Timeout)
	assert.Equal(t, 1.0, r.config.Scale)
	assert.NotNil(t, r.allocCtx)
}

func TestNewChromedpRendererFromConfig(t *testing.T) {
	r, err := NewChromedpRendererFromConfig("", true, 5*time.Second, nil)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 5*time.Second, r.config.Timeout)
	assert.True(t, r.config.NoSandbox)
}

func TestPrintParams_A4(t *testing.T) {
	r := &ChromedpRenderer{config: ChromedpConfig{Scale: 1.0}}

	p := r.printParams(&RenderRequest{PaperSize: PaperSizeA4, Margins: DefaultMargins(PaperSizeA4)})

	assert.InDelta(t, mmToInches(210), p.PaperWidth, 0.01)
	assert.InDelta(t, mmToInches(297), p.PaperHeight, 0.01)
	assert.InDelta(t, mmToInches(12), p.MarginTop, 0.001)
	assert.True(t, p.PrintBackground)
	assert.False(t, p.Landscape)
	assert.False(t, p.DisplayHeaderFooter)
}

func TestPrintParams_Landscape(t *testing.T) {
	r := &ChromedpRenderer{config: ChromedpConfig{Scale: 1.0}}

	p := r.printParams(&RenderRequest{PaperSize: PaperSizeA5, Landscape: true})

	assert.True(t, p.Landscape)
	assert.InDelta(t, mmToInches(148), p.PaperWidth, 0.01)
}

func TestPrintParams_ReceiptHasNoFooter(t *testing.T) {
	r := &ChromedpRenderer{config: ChromedpConfig{Scale: 1.0}}

	p := r.printParams(&RenderRequest{
		PaperSize:  PaperSizeReceipt80,
		Margins:    DefaultMargins(PaperSizeReceipt80),
		FooterHTML: pageFooter,
	})

	assert.InDelta(t, mmToInches(80), p.PaperWidth, 0.01)
	assert.InDelta(t, mmToInches(receiptPageHeightMM), p.PaperHeight, 0.01)
	assert.False(t, p.DisplayHeaderFooter)
}

func TestPrintParams_FooterWidensBottomMargin(t *testing.T) {
	r := &ChromedpRenderer{config: ChromedpConfig{Scale: 1.0}}

	p := r.printParams(&RenderRequest{
		PaperSize:  PaperSizeA4,
		Margins:    Margins{Top: 5, Right: 5, Bottom: 5, Left: 5},
		FooterHTML: pageFooter,
	})

	assert.True(t, p.DisplayHeaderFooter)
	assert.Equal(t, pageFooter, p.FooterTemplate)
	assert.InDelta(t, mmToInches(minFooterMarginMM), p.MarginBottom, 0.001)
	assert.InDelta(t, mmToInches(5), p.MarginTop, 0.001)
}

func TestWrapDocument(t *testing.T) {
	full := "<!DOCTYPE html><html><head></head><body>test</body></html>"
	assert.Equal(t, full, wrapDocument(&RenderRequest{HTML: full}))

	wrapped := wrapDocument(&RenderRequest{HTML: "<div>Hello</div>", Title: "Tax Invoice <INV-1>"})
	assert.Contains(t, wrapped, "<!DOCTYPE html>")
	assert.Contains(t, wrapped, `<meta charset="UTF-8">`)
	assert.Contains(t, wrapped, "<title>Tax Invoice &lt;INV-1&gt;</title>")
	assert.Contains(t, wrapped, "<div>Hello</div></body></html>")
}

func TestChromedpRenderer_RejectsBadRequests(t *testing.T) {
	r := &ChromedpRenderer{}

	tests := []struct {
		name string
		req  *RenderRequest
		code string
	}{
		{"nil request", nil, ErrCodeInvalidHTML},
		{"empty html", &RenderRequest{HTML: "  ", PaperSize: PaperSizeA4}, ErrCodeInvalidHTML},
		{"bad paper", &RenderRequest{HTML: "<p>x</p>", PaperSize: "B5"}, ErrCodeInvalidPaperSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Render(t.Context(), tt.req)
			var renderErr *RenderError
			require.ErrorAs(t, err, &renderErr)
			assert.Equal(t, tt.code, renderErr.Code)
		})
	}
}

func TestMmToInches(t *testing.T) {
	assert.InDelta(t, 1.0, mmToInches(25.4), 0.001)
	assert.InDelta(t, 3.1496, mmToInches(80), 0.001)
}

func TestChromedpRenderer_CloseWithoutAllocator(t *testing.T) {
	assert.NoError(t, (&ChromedpRenderer{}).Close())
}
