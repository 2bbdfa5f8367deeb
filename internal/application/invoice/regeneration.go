package invoice

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/erp/invoicing/internal/domain/invoice"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// maxPathAttempts bounds the search for an unused document file name
const maxPathAttempts = 1000

// RegenerationEngine rebuilds invoice documents from ledger data. It never
// reads the previous document; everything comes from the header and items.
type RegenerationEngine struct {
	headers   headerLookup
	resolver  *ItemResolver
	assembler *ViewAssembler
	shop      *ShopInfoLoader
	renderer  InvoiceRenderer
	store     ArtifactStore
	uow       invoice.UnitOfWork
	archiver  ArtifactArchiver
	metrics   *telemetry.InvoiceMetrics
	logger    *zap.Logger
	now       func() time.Time
}

// RegenerationOption configures a RegenerationEngine
type RegenerationOption func(*RegenerationEngine)

// WithArchiver copies every rendered document to long-term storage
func WithArchiver(a ArtifactArchiver) RegenerationOption {
	return func(e *RegenerationEngine) {
		e.archiver = a
	}
}

// WithRegenerationMetrics records render and regeneration metrics
func WithRegenerationMetrics(m *telemetry.InvoiceMetrics) RegenerationOption {
	return func(e *RegenerationEngine) {
		e.metrics = m
	}
}

// WithRegenerationClock replaces time.Now when naming documents
func WithRegenerationClock(now func() time.Time) RegenerationOption {
	return func(e *RegenerationEngine) {
		e.now = now
	}
}

// NewRegenerationEngine creates a new RegenerationEngine
func NewRegenerationEngine(
	headers invoice.HeaderRepository,
	legacy invoice.LegacySaleRepository,
	resolver *ItemResolver,
	assembler *ViewAssembler,
	shop *ShopInfoLoader,
	renderer InvoiceRenderer,
	store ArtifactStore,
	uow invoice.UnitOfWork,
	logger *zap.Logger,
	opts ...RegenerationOption,
) *RegenerationEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &RegenerationEngine{
		headers:   headerLookup{current: headers, legacy: legacy},
		resolver:  resolver,
		assembler: assembler,
		shop:      shop,
		renderer:  renderer,
		store:     store,
		uow:       uow,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Regenerate rebuilds the document for id and records its new path. The
// header comes from the current layout, else the legacy sales layout. No
// items in any layout is irrecoverable. A render failure writes nothing; a
// failure to record the path removes the rendered file.
func (e *RegenerationEngine) Regenerate(ctx context.Context, id int64) (*RegenerationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "regeneration", "regenerate")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceID, id)

	e.logger.Info("regenerating invoice document", zap.Int64("invoice_id", id))

	h, err := e.headers.find(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceNumber, h.InvoiceNumber,
		telemetry.SpanAttrLayout, string(h.SourceLayout),
	)

	res, err := e.resolver.ResolveItems(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		e.metrics.RecordRegeneration(ctx, string(h.SourceLayout), string(invoice.QualityEmpty), telemetry.OutcomeFailed)
		return nil, err
	}
	if res.IsEmpty() {
		err := invoice.ErrNoItems(id)
		telemetry.RecordError(span, err)
		e.metrics.RecordRegeneration(ctx, string(h.SourceLayout), string(res.Quality), telemetry.OutcomeFailed)
		e.logger.Error("invoice document cannot be rebuilt", zap.Int64("invoice_id", id), zap.Error(err))
		return nil, err
	}

	result, err := e.publish(ctx, h, res)
	if err != nil {
		telemetry.RecordError(span, err)
		e.metrics.RecordRegeneration(ctx, string(h.SourceLayout), string(res.Quality), telemetry.OutcomeFailed)
		e.logger.Error("invoice regeneration failed", zap.Int64("invoice_id", id), zap.Error(err))
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrQuality, string(res.Quality),
		telemetry.SpanAttrArtifactPath, result.Path,
	)
	e.metrics.RecordRegeneration(ctx, string(h.SourceLayout), string(res.Quality), telemetry.OutcomeSuccess)
	e.logger.Info("invoice document regenerated",
		zap.Int64("invoice_id", id),
		zap.String("path", result.Path),
		zap.String("layout", string(h.SourceLayout)),
		zap.String("quality", string(res.Quality)),
	)
	return result, nil
}

// publish renders the document for h and persists its path. Legacy headers
// are copied into the current layout under their original id first.
func (e *RegenerationEngine) publish(ctx context.Context, h *invoice.TransactionHeader, res invoice.ItemResolution) (*RegenerationResult, error) {
	shop := e.shop.Load(ctx)
	path := e.nextPath(ctx, h.InvoiceNumber)

	view := e.assembler.Assemble(h, res, shop)
	view.ArtifactPath = path

	started := time.Now()
	var renderErr error
	telemetry.WithProfilingLabels(ctx, map[string]string{
		"operation": "render_invoice",
		"layout":    string(h.SourceLayout),
	}, func(ctx context.Context) {
		renderErr = e.renderer.Render(ctx, view, path)
	})
	if renderErr != nil {
		return nil, shared.NewStorageError("Invoice document could not be rendered", renderErr)
	}
	e.metrics.RecordRender(ctx, time.Since(started))

	err := e.uow.Run(ctx, func(tx invoice.TxStore) error {
		if _, err := tx.LockHeader(ctx, h.ID); err != nil {
			if !shared.IsKind(err, shared.KindNotFound) || h.SourceLayout != invoice.LayoutLegacy {
				return err
			}
			backfill := *h
			backfill.ArtifactPath = path
			return tx.CreateHeader(ctx, &backfill)
		}
		return tx.UpdateArtifactPath(ctx, h.ID, path)
	})
	if err != nil {
		if rmErr := e.store.Remove(ctx, path); rmErr != nil {
			e.logger.Warn("failed to remove orphaned invoice document",
				zap.String("path", path), zap.Error(rmErr))
		}
		return nil, asDomainError(err, "Invoice document path could not be saved")
	}

	if e.archiver != nil {
		if err := e.archiver.Archive(ctx, path); err != nil {
			e.logger.Warn("invoice document not archived", zap.String("path", path), zap.Error(err))
		}
	}

	h.ArtifactPath = path
	return &RegenerationResult{
		Success: true,
		Path:    path,
		Layout:  h.SourceLayout,
		Quality: res.Quality,
	}, nil
}

// nextPath returns an unused path for a new document of invoiceNumber
func (e *RegenerationEngine) nextPath(ctx context.Context, invoiceNumber string) string {
	at := e.now()
	path := e.store.PathFor(ArtifactName(invoiceNumber, at))
	for i := 0; i < maxPathAttempts && e.store.Exists(ctx, path); i++ {
		at = at.Add(time.Millisecond)
		path = e.store.PathFor(ArtifactName(invoiceNumber, at))
	}
	return path
}

// ArtifactName names a document INV-<number>_<yyyymmdd_hhmmss_mmm>.pdf. The
// number is reduced to filename-safe characters and loses any INV- prefix
// of its own.
func ArtifactName(invoiceNumber string, at time.Time) string {
	n := strings.TrimSpace(invoiceNumber)
	if len(n) >= 4 && strings.EqualFold(n[:4], "INV-") {
		n = n[4:]
	}
	n = strings.Trim(unsafeFileChars.ReplaceAllString(n, "_"), "_")
	if n == "" {
		n = "UNNUMBERED"
	}
	return fmt.Sprintf("INV-%s_%s_%03d.pdf", n, at.Format("20060102_150405"), at.Nanosecond()/int(time.Millisecond))
}
