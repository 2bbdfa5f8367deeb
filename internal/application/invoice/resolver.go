package invoice

import (
	"context"

	"github.com/erp/invoicing/internal/domain/invoice"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ItemResolver finds a transaction's line items across storage layouts. It
// tries each source in order, then falls back to classifying raw rows.
type ItemResolver struct {
	sources []invoice.ItemSource
	raw     invoice.RawItemSource
	logger  *zap.Logger
}

// NewItemResolver creates a resolver over sources, tried in the given order.
// raw may be nil to disable best-effort recovery.
func NewItemResolver(raw invoice.RawItemSource, logger *zap.Logger, sources ...invoice.ItemSource) *ItemResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ItemResolver{sources: sources, raw: raw, logger: logger}
}

// ResolveItems returns the items for id. A transaction with no items in any
// layout yields an EMPTY resolution, not an error. The only error is a
// storage failure while probing every source.
func (r *ItemResolver) ResolveItems(ctx context.Context, id int64) (invoice.ItemResolution, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "item_resolver", "resolve")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceID, id)

	probeFailures := 0
	var lastErr error

	for _, src := range r.sources {
		layout := src.Layout()
		session := src.Open(ctx)

		found, err := session.Exists(ctx, id)
		if err != nil {
			probeFailures++
			lastErr = err
			r.logger.Debug("item source probe failed",
				zap.Int64("invoice_id", id),
				zap.String("layout", string(layout)),
				zap.Error(err))
			continue
		}
		if !found {
			continue
		}

		items, err := session.Items(ctx, id)
		if err != nil {
			r.logger.Debug("item source read failed",
				zap.Int64("invoice_id", id),
				zap.String("layout", string(layout)),
				zap.Error(err))
			continue
		}
		if len(items) > 0 {
			telemetry.SetAttributes(span,
				telemetry.SpanAttrLayout, string(layout),
				telemetry.SpanAttrQuality, string(invoice.QualityResolved),
				telemetry.SpanAttrItemCount, len(items),
			)
			return invoice.ItemResolution{Items: items, Quality: invoice.QualityResolved, Layout: layout}, nil
		}
	}

	if len(r.sources) > 0 && probeFailures == len(r.sources) {
		err := shared.NewStorageError("Invoice items could not be read", lastErr)
		telemetry.RecordError(span, err)
		return invoice.ItemResolution{}, err
	}

	if items := r.bestEffort(ctx, id); len(items) > 0 {
		r.logger.Warn("invoice items recovered from unclassified rows",
			zap.Int64("invoice_id", id),
			zap.Int("item_count", len(items)))
		telemetry.SetAttributes(span,
			telemetry.SpanAttrLayout, string(invoice.LayoutBestEffort),
			telemetry.SpanAttrQuality, string(invoice.QualityBestEffort),
			telemetry.SpanAttrItemCount, len(items),
		)
		return invoice.ItemResolution{Items: items, Quality: invoice.QualityBestEffort, Layout: invoice.LayoutBestEffort}, nil
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrQuality, string(invoice.QualityEmpty))
	return invoice.ItemResolution{Quality: invoice.QualityEmpty}, nil
}

func (r *ItemResolver) bestEffort(ctx context.Context, id int64) []invoice.LineItem {
	if r.raw == nil {
		return nil
	}
	rows, err := r.raw.DumpRows(ctx, id)
	if err != nil {
		r.logger.Debug("raw item dump failed", zap.Int64("invoice_id", id), zap.Error(err))
		return nil
	}
	return classifyRows(rows)
}
