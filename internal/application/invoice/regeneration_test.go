package invoice

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/erp/invoicing/internal/domain/invoice"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// failingUnitOfWork refuses every transaction
type failingUnitOfWork struct {
	mock.Mock
}

func (m *failingUnitOfWork) Run(ctx context.Context, fn func(tx invoice.TxStore) error) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *failingUnitOfWork) Serializable(ctx context.Context, fn func(tx invoice.TxStore) error) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// mockArchiver records archived paths
type mockArchiver struct {
	mock.Mock
}

func (m *mockArchiver) Archive(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}

func TestArtifactName(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 5, 7, 42_000_000, time.UTC)

	tests := []struct {
		number string
		want   string
	}{
		{"INV-20260314-0001", "INV-20260314-0001_20260314_090507_042.pdf"},
		{"inv-77", "INV-77_20260314_090507_042.pdf"},
		{"OLD-40", "INV-OLD-40_20260314_090507_042.pdf"},
		{"A/B 12", "INV-A_B_12_20260314_090507_042.pdf"},
		{"", "INV-UNNUMBERED_20260314_090507_042.pdf"},
		{"  ../  ", "INV-UNNUMBERED_20260314_090507_042.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.number, func(t *testing.T) {
			assert.Equal(t, tt.want, ArtifactName(tt.number, at))
		})
	}
}

func TestRegenerationEngine_RegenerateTwice(t *testing.T) {
	h := newHarness(t)
	sale, err := h.sales.RecordSale(context.Background(), scenarioSale("CASH", nil))
	require.NoError(t, err)

	first, err := h.engine.Regenerate(context.Background(), sale.Header.ID)
	require.NoError(t, err)
	firstView := h.renderer.last()

	second, err := h.engine.Regenerate(context.Background(), sale.Header.ID)
	require.NoError(t, err)
	secondView := h.renderer.last()

	assert.True(t, first.Success)
	assert.Equal(t, invoice.QualityResolved, first.Quality)
	assert.Equal(t, invoice.LayoutCurrent, first.Layout)
	assert.NotEqual(t, first.Path, second.Path)
	assert.NotEqual(t, sale.ArtifactPath, first.Path)

	// earlier documents are left in place
	assert.True(t, h.store.Exists(context.Background(), first.Path))
	assert.True(t, h.store.Exists(context.Background(), second.Path))

	assert.Equal(t, "2168.26", firstView.GrandTotal.StringFixed(2))
	assert.True(t, firstView.GrandTotal.Equal(secondView.GrandTotal))
	assert.True(t, firstView.TaxCGST.Equal(secondView.TaxCGST))
	assert.Len(t, secondView.Items, 2)

	var stored models.InvoiceModel
	require.NoError(t, h.db.First(&stored, sale.Header.ID).Error)
	assert.Equal(t, second.Path, stored.ArtifactPath)
}

func TestRegenerationEngine_LegacySaleIsBackfilled(t *testing.T) {
	h := newHarness(t)
	h.seedCustomer(t, 3, "Old Account")
	h.seedLegacySale(t, 55, 3,
		models.LegacySaleItemModel{ProductID: 1, Qty: dec("4"), Price: dec("25"), Total: dec("100")},
	)

	result, err := h.engine.Regenerate(context.Background(), 55)
	require.NoError(t, err)
	assert.Equal(t, invoice.LayoutLegacy, result.Layout)
	assert.Contains(t, result.Path, "INV-OLD-55_")

	var stored models.InvoiceModel
	require.NoError(t, h.db.First(&stored, 55).Error)
	assert.Equal(t, result.Path, stored.ArtifactPath)
	assert.Equal(t, "100.00", stored.GrandTotal.StringFixed(2))
}

func TestRegenerationEngine_NoItems(t *testing.T) {
	h := newHarness(t)
	sale, err := h.sales.RecordSale(context.Background(), scenarioSale("CASH", nil))
	require.NoError(t, err)
	require.NoError(t, h.db.Where("invoice_id = ?", sale.Header.ID).Delete(&models.InvoiceItemModel{}).Error)

	_, err = h.engine.Regenerate(context.Background(), sale.Header.ID)
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindIrrecoverable))

	// the original path is untouched
	var stored models.InvoiceModel
	require.NoError(t, h.db.First(&stored, sale.Header.ID).Error)
	assert.Equal(t, sale.ArtifactPath, stored.ArtifactPath)
}

func TestRegenerationEngine_UnknownInvoice(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.Regenerate(context.Background(), 12345)
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindNotFound))
}

func TestRegenerationEngine_RenderFailureWritesNothing(t *testing.T) {
	h := newHarness(t)
	sale, err := h.sales.RecordSale(context.Background(), scenarioSale("CASH", nil))
	require.NoError(t, err)

	h.renderer.fail = errors.New("out of memory")
	_, err = h.engine.Regenerate(context.Background(), sale.Header.ID)
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindStorageFailure))

	entries, err := os.ReadDir(h.dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	var stored models.InvoiceModel
	require.NoError(t, h.db.First(&stored, sale.Header.ID).Error)
	assert.Equal(t, sale.ArtifactPath, stored.ArtifactPath)
}

func TestRegenerationEngine_PersistFailureRemovesDocument(t *testing.T) {
	h := newHarness(t)
	sale, err := h.sales.RecordSale(context.Background(), scenarioSale("CASH", nil))
	require.NoError(t, err)

	uow := new(failingUnitOfWork)
	uow.On("Run", mock.Anything).Return(errors.New("disk I/O error"))
	engine := NewRegenerationEngine(
		h.engine.headers.current, h.engine.headers.legacy,
		h.engine.resolver, h.engine.assembler, h.engine.shop,
		h.renderer, h.store, uow, nil,
		WithRegenerationClock(func() time.Time { return fixedNow.Add(time.Hour) }),
	)

	_, err = engine.Regenerate(context.Background(), sale.Header.ID)
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindStorageFailure))

	entries, err := os.ReadDir(h.dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the sale-time document should remain")
	uow.AssertExpectations(t)
}

func TestRegenerationEngine_Archives(t *testing.T) {
	h := newHarness(t)
	sale, err := h.sales.RecordSale(context.Background(), scenarioSale("CASH", nil))
	require.NoError(t, err)

	archiver := new(mockArchiver)
	archiver.On("Archive", mock.Anything, mock.AnythingOfType("string")).Return(errors.New("bucket missing"))
	WithArchiver(archiver)(h.engine)

	// archive failures are logged, not returned
	result, err := h.engine.Regenerate(context.Background(), sale.Header.ID)
	require.NoError(t, err)
	archiver.AssertCalled(t, "Archive", mock.Anything, result.Path)
}

func TestRegenerationEngine_NextPathSkipsExisting(t *testing.T) {
	h := newHarness(t)
	taken := h.store.PathFor(ArtifactName("INV-1", fixedNow))
	require.NoError(t, os.WriteFile(taken, []byte("x"), 0o644))

	path := h.engine.nextPath(context.Background(), "INV-1")
	assert.NotEqual(t, taken, path)
	assert.Equal(t, h.store.PathFor(ArtifactName("INV-1", fixedNow.Add(time.Millisecond))), path)
}
