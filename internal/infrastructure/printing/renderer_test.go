package printing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePaperSize(t *testing.T) {
	tests := []struct {
		in      string
		want    PaperSize
		wantErr bool
	}{
		{"A4", PaperSizeA4, false},
		{" a5 ", PaperSizeA5, false},
		{"letter", PaperSizeLetter, false},
		{"thermal", PaperSizeReceipt80, false},
		{"THERMAL_58", PaperSizeReceipt58, false},
		{"receipt_80mm", PaperSizeReceipt80, false},
		{"B5", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePaperSize(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPaperSize_Dimensions(t *testing.T) {
	w, h := PaperSizeA4.Dimensions()
	assert.Equal(t, 210, w)
	assert.Equal(t, 297, h)

	w, h = PaperSizeReceipt58.Dimensions()
	assert.Equal(t, 58, w)
	assert.Zero(t, h)
	assert.True(t, PaperSizeReceipt58.IsReceipt())
	assert.False(t, PaperSizeLetter.IsReceipt())
}

func TestDefaultMargins(t *testing.T) {
	assert.Equal(t, Margins{Top: 2, Right: 2, Bottom: 2, Left: 2}, DefaultMargins(PaperSizeReceipt80))
	assert.Equal(t, 12, DefaultMargins(PaperSizeA4).Top)
}

func TestRenderError(t *testing.T) {
	t.Run("without cause", func(t *testing.T) {
		err := NewRenderError(ErrCodeRenderFailed, "render failed", nil)
		assert.Equal(t, "render failed", err.Error())
		assert.Nil(t, err.Unwrap())
	})

	t.Run("with cause", func(t *testing.T) {
		cause := errors.New("chrome crashed")
		err := NewRenderError(ErrCodeRenderTimeout, "render timed out", cause)
		assert.Equal(t, "render timed out: chrome crashed", err.Error())
		assert.ErrorIs(t, err, cause)
	})
}

func TestEstimatePageCount(t *testing.T) {
	pdf := []byte("<< /Type /Pages /Kids [3 0 R 4 0 R] >> << /Type /Page >> << /Type /Page >>")
	assert.Equal(t, 2, estimatePageCount(pdf))
	assert.Equal(t, 1, estimatePageCount([]byte("%PDF-1.4")))
}
