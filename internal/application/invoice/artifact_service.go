package invoice

import (
	"context"

	"github.com/erp/invoicing/internal/domain/invoice"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ArtifactService serves invoice views and the rendered documents behind them
type ArtifactService struct {
	headers   headerLookup
	resolver  *ItemResolver
	assembler *ViewAssembler
	shop      *ShopInfoLoader
	engine    *RegenerationEngine
	store     ArtifactStore
	opener    ArtifactOpener
	logger    *zap.Logger
}

// NewArtifactService creates a new ArtifactService. opener may be nil when
// the host cannot open documents; OpenArtifact then only ensures the file.
func NewArtifactService(
	headers invoice.HeaderRepository,
	legacy invoice.LegacySaleRepository,
	resolver *ItemResolver,
	assembler *ViewAssembler,
	shop *ShopInfoLoader,
	engine *RegenerationEngine,
	store ArtifactStore,
	opener ArtifactOpener,
	logger *zap.Logger,
) *ArtifactService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArtifactService{
		headers:   headerLookup{current: headers, legacy: legacy},
		resolver:  resolver,
		assembler: assembler,
		shop:      shop,
		engine:    engine,
		store:     store,
		opener:    opener,
		logger:    logger,
	}
}

// GetInvoiceView assembles the display view of an invoice. An invoice with
// no resolvable items still gets a view with an empty item list.
func (s *ArtifactService) GetInvoiceView(ctx context.Context, id int64) (*invoice.InvoiceView, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "artifact", "get_view")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceID, id)

	h, err := s.headers.find(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	res, err := s.resolver.ResolveItems(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrQuality, string(res.Quality),
		telemetry.SpanAttrItemCount, len(res.Items),
	)
	return s.assembler.Assemble(h, res, s.shop.Load(ctx)), nil
}

// EnsureArtifact returns the path of a document that exists on disk,
// regenerating it when the recorded file is missing or was never written
func (s *ArtifactService) EnsureArtifact(ctx context.Context, id int64) (*ArtifactResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "artifact", "ensure")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceID, id)

	h, err := s.headers.find(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if h.ArtifactPath != "" && s.store.Exists(ctx, h.ArtifactPath) {
		telemetry.SetAttributes(span, telemetry.SpanAttrArtifactPath, h.ArtifactPath)
		return &ArtifactResult{Path: h.ArtifactPath}, nil
	}

	if h.ArtifactPath != "" {
		s.logger.Info("invoice document missing, regenerating",
			zap.Int64("invoice_id", id), zap.String("path", h.ArtifactPath))
	}
	res, err := s.engine.Regenerate(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrArtifactPath, res.Path)
	return &ArtifactResult{Path: res.Path, Regenerated: true, Quality: res.Quality}, nil
}

// OpenArtifact ensures the document exists and hands it to the host for
// viewing or printing
func (s *ArtifactService) OpenArtifact(ctx context.Context, id int64, mode OpenMode) (*ArtifactResult, error) {
	if !mode.IsValid() {
		return nil, shared.NewValidationError("INVALID_MODE", "Open mode must be view or print")
	}
	result, err := s.EnsureArtifact(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.opener == nil {
		return result, nil
	}
	if err := s.opener.Open(ctx, result.Path, mode); err != nil {
		return nil, shared.NewStorageError("Invoice document could not be opened", err)
	}
	return result, nil
}
