package telemetry

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
)

// InvoiceMetrics records sales, collections and document regenerations.
// A nil *InvoiceMetrics records nothing.
type InvoiceMetrics struct {
	salesTotal       *Counter
	saleAmount       *Histogram
	collectionsTotal *Counter
	collectedAmount  *Histogram
	regenerations    *Counter
	renderDuration   *Histogram
}

// NewInvoiceMetrics creates the invoicing instruments on meter
func NewInvoiceMetrics(meter metric.Meter) (*InvoiceMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &InvoiceMetrics{}
	var err error

	if m.salesTotal, err = NewCounter(meter,
		"pos_sales_recorded_total", "Total number of sales recorded", "{sales}"); err != nil {
		return nil, err
	}
	if m.saleAmount, err = NewHistogram(meter, HistogramOpts{
		Name: "pos_sale_amount", Description: "Grand total of recorded sales", Unit: "INR", Boundaries: AmountBuckets,
	}); err != nil {
		return nil, err
	}
	if m.collectionsTotal, err = NewCounter(meter,
		"pos_credit_collections_total", "Total number of credit collection attempts", "{payments}"); err != nil {
		return nil, err
	}
	if m.collectedAmount, err = NewHistogram(meter, HistogramOpts{
		Name: "pos_collected_amount", Description: "Amount collected against outstanding credit", Unit: "INR", Boundaries: AmountBuckets,
	}); err != nil {
		return nil, err
	}
	if m.regenerations, err = NewCounter(meter,
		"pos_invoice_regenerations_total", "Total number of invoice documents rebuilt from ledger data", "{documents}"); err != nil {
		return nil, err
	}
	if m.renderDuration, err = NewHistogram(meter, HistogramOpts{
		Name: "pos_invoice_render_duration", Description: "Time spent rendering an invoice document", Unit: "s", Boundaries: RenderDurationBuckets,
	}); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordSale counts a recorded sale and its grand total
func (m *InvoiceMetrics) RecordSale(ctx context.Context, method string, total decimal.Decimal) {
	if m == nil {
		return
	}
	m.salesTotal.Inc(ctx, AttrPaymentMethod.String(method))
	m.saleAmount.Record(ctx, total.InexactFloat64(), AttrPaymentMethod.String(method))
}

// RecordCollection counts a collection attempt; amount is recorded only for
// successful ones
func (m *InvoiceMetrics) RecordCollection(ctx context.Context, method, outcome string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.collectionsTotal.Inc(ctx, AttrPaymentMethod.String(method), AttrOutcome.String(outcome))
	if outcome == OutcomeSuccess {
		m.collectedAmount.Record(ctx, amount.InexactFloat64(), AttrPaymentMethod.String(method))
	}
}

// RecordRegeneration counts a rebuild attempt by source layout and outcome
func (m *InvoiceMetrics) RecordRegeneration(ctx context.Context, layout, quality, outcome string) {
	if m == nil {
		return
	}
	m.regenerations.Inc(ctx, AttrLayout.String(layout), AttrQuality.String(quality), AttrOutcome.String(outcome))
}

// RecordRender records how long one document took to render
func (m *InvoiceMetrics) RecordRender(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.renderDuration.RecordDuration(ctx, d)
}

// Outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// ErrMeterNil is returned when instruments are requested without a meter
var ErrMeterNil = &MetricsError{Op: "NewInvoiceMetrics", Err: "meter cannot be nil"}

// MetricsError describes a metrics setup failure
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
