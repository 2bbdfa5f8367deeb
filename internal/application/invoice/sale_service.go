package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/invoicing/internal/domain/invoice"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"github.com/erp/invoicing/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxNumberAttempts bounds the search for a free daily invoice number
const maxNumberAttempts = 10000

// SaleService records completed sales
type SaleService struct {
	uow     invoice.UnitOfWork
	shop    *ShopInfoLoader
	engine  *RegenerationEngine
	metrics *telemetry.InvoiceMetrics
	logger  *zap.Logger
}

// NewSaleService creates a new SaleService. engine may be nil, in which
// case no document is rendered at sale time.
func NewSaleService(
	uow invoice.UnitOfWork,
	shop *ShopInfoLoader,
	engine *RegenerationEngine,
	metrics *telemetry.InvoiceMetrics,
	logger *zap.Logger,
) *SaleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SaleService{
		uow:     uow,
		shop:    shop,
		engine:  engine,
		metrics: metrics,
		logger:  logger,
	}
}

// RecordSale persists the header, items, the payment collected at the
// counter and any credit extended, all in one transaction, then renders the
// first document. A render failure does not undo the sale.
func (s *SaleService) RecordSale(ctx context.Context, req RecordSaleRequest) (*RecordSaleResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sale", "record")
	defer span.End()

	req.normalize()
	if err := validateRequest(&req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	shop := s.shop.Load(ctx)
	items := toLineItems(req.Items, shop.DefaultTaxRate, req.TaxInclusive)

	h, err := invoice.BuildSale(invoice.SaleDraft{
		InvoiceNumber:   req.InvoiceNumber,
		CustomerID:      req.CustomerID,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		Items:           items,
		Discount:        req.Discount,
		DiscountPercent: req.DiscountPercent,
		TaxInclusive:    req.TaxInclusive,
		PaymentMethod:   invoice.PaymentMethod(req.PaymentMethod),
		CashAmount:      req.CashAmount,
		Notes:           req.Notes,
		CreatedAt:       req.CreatedAt,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	err = s.uow.Run(ctx, func(tx invoice.TxStore) error {
		if h.CustomerID != nil {
			ok, err := tx.CustomerExists(ctx, *h.CustomerID)
			if err != nil {
				return err
			}
			if !ok {
				return invoice.ErrCustomerNotFound(*h.CustomerID)
			}
		}
		if err := assignInvoiceNumber(ctx, tx, h); err != nil {
			return err
		}
		if err := h.Validate(); err != nil {
			return err
		}

		if err := tx.CreateHeader(ctx, h); err != nil {
			return err
		}
		if err := tx.CreateItems(ctx, h.ID, items); err != nil {
			return err
		}
		if p := invoice.InitialPayment(h); p != nil {
			if err := tx.AppendPayment(ctx, p); err != nil {
				return err
			}
		}
		if entry := invoice.SaleCreditEntry(h); entry != nil {
			if err := tx.AppendLedgerEntry(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		err = asDomainError(err, "Sale could not be recorded")
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, h.ID,
		telemetry.SpanAttrInvoiceNumber, h.InvoiceNumber,
		telemetry.SpanAttrPaymentMethod, string(h.PaymentMethod),
		telemetry.SpanAttrPaymentStatus, string(h.PaymentStatus),
		telemetry.SpanAttrItemCount, len(items),
	)
	s.metrics.RecordSale(ctx, string(h.PaymentMethod), h.GrandTotal)
	s.logger.Info("sale recorded",
		zap.Int64("invoice_id", h.ID),
		zap.String("invoice_number", h.InvoiceNumber),
		zap.String("grand_total", h.GrandTotal.StringFixed(2)),
		zap.String("method", string(h.PaymentMethod)),
		zap.String("status", string(h.PaymentStatus)),
	)

	result := &RecordSaleResult{Header: h, Items: items}
	if s.engine == nil {
		return result, nil
	}
	doc, err := s.engine.publish(ctx, h, invoice.ItemResolution{
		Items:   items,
		Quality: invoice.QualityResolved,
		Layout:  invoice.LayoutCurrent,
	})
	if err != nil {
		s.logger.Warn("invoice document not rendered at sale time",
			zap.Int64("invoice_id", h.ID), zap.Error(err))
		result.RenderError = err.Error()
		return result, nil
	}
	result.ArtifactPath = doc.Path
	return result, nil
}

// toLineItems maps request lines to domain items, filling in the default
// GST rate and each line's tax so it is stored with the item
func toLineItems(reqs []SaleItemRequest, defaultRate decimal.Decimal, inclusive bool) []invoice.LineItem {
	items := make([]invoice.LineItem, 0, len(reqs))
	for _, r := range reqs {
		rate := defaultRate
		if r.TaxRate != nil {
			rate = *r.TaxRate
		}
		li := invoice.LineItem{
			ProductID:   r.ProductID,
			Name:        r.Name,
			HSNCode:     r.HSNCode,
			UnitPrice:   r.UnitPrice,
			Quantity:    r.Quantity,
			DiscountPct: r.DiscountPct,
			TaxRate:     rate,
			StoredTotal: r.LineTotal,
			BatchNo:     r.BatchNo,
			ExpiryDate:  r.ExpiryDate,
		}
		_, li.TaxAmount, _ = valueobject.CalculateGST(li.LineTotal(), rate, inclusive)
		items = append(items, li)
	}
	return items
}

// assignInvoiceNumber gives h the next free INV-YYYYMMDD-NNNN number for its
// day, or checks that a caller-supplied number is unused
func assignInvoiceNumber(ctx context.Context, tx invoice.TxStore, h *invoice.TransactionHeader) error {
	if h.InvoiceNumber != "" {
		taken, err := tx.InvoiceNumberTaken(ctx, h.InvoiceNumber)
		if err != nil {
			return err
		}
		if taken {
			return shared.NewConflictError("DUPLICATE_INVOICE_NUMBER",
				fmt.Sprintf("Invoice number %s is already in use", h.InvoiceNumber))
		}
		return nil
	}

	issued, err := tx.CountIssuedOn(ctx, h.CreatedAt)
	if err != nil {
		return err
	}
	for seq := issued + 1; seq <= issued+maxNumberAttempts; seq++ {
		number := formatInvoiceNumber(h.CreatedAt, seq)
		taken, err := tx.InvoiceNumberTaken(ctx, number)
		if err != nil {
			return err
		}
		if !taken {
			h.InvoiceNumber = number
			return nil
		}
	}
	return shared.NewConflictError("INVOICE_NUMBER_EXHAUSTED", "No free invoice number for "+h.CreatedAt.Format("2006-01-02"))
}

func formatInvoiceNumber(day time.Time, seq int64) string {
	return fmt.Sprintf("INV-%s-%04d", day.Format("20060102"), seq)
}
