package invoice

import (
	"context"
	"time"

	"github.com/erp/invoicing/internal/domain/invoice"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// LedgerService collects payments against credit invoices and reads the
// payment and customer ledgers
type LedgerService struct {
	uow         invoice.UnitOfWork
	payments    invoice.PaymentRepository
	headers     headerLookup
	idempotency shared.IdempotencyStore
	idemConfig  shared.IdempotencyConfig
	metrics     *telemetry.InvoiceMetrics
	logger      *zap.Logger
	now         func() time.Time
}

// LedgerOption configures a LedgerService
type LedgerOption func(*LedgerService)

// WithIdempotency remembers submission keys in store for cfg.TTL
func WithIdempotency(store shared.IdempotencyStore, cfg shared.IdempotencyConfig) LedgerOption {
	return func(s *LedgerService) {
		s.idempotency = store
		s.idemConfig = cfg
	}
}

// WithLedgerMetrics records collection metrics
func WithLedgerMetrics(m *telemetry.InvoiceMetrics) LedgerOption {
	return func(s *LedgerService) {
		s.metrics = m
	}
}

// WithLedgerClock replaces time.Now
func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(s *LedgerService) {
		s.now = now
	}
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	uow invoice.UnitOfWork,
	payments invoice.PaymentRepository,
	headers invoice.HeaderRepository,
	legacy invoice.LegacySaleRepository,
	logger *zap.Logger,
	opts ...LedgerOption,
) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &LedgerService{
		uow:        uow,
		payments:   payments,
		headers:    headerLookup{current: headers, legacy: legacy},
		idemConfig: shared.DefaultIdempotencyConfig(),
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CollectPayment applies a payment to a credit invoice in one serializable
// transaction: the header row is locked, its status and outstanding amount
// move forward, and a payment event plus a customer ledger entry are
// appended. Two collections racing for the same balance cannot both succeed.
func (s *LedgerService) CollectPayment(ctx context.Context, req CollectPaymentRequest) (*invoice.PaymentEvent, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "collect_payment")
	defer span.End()

	req.normalize()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, req.TransactionID,
		telemetry.SpanAttrAmount, req.Amount.String(),
		telemetry.SpanAttrPaymentMethod, req.Method,
	)

	method := invoice.PaymentMethod(req.Method)
	paidAt, err := s.checkRequest(&req, method)
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordCollection(ctx, req.Method, telemetry.OutcomeFailed, req.Amount)
		return nil, err
	}

	claimed, err := s.claimKey(ctx, req.IdempotencyKey)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var event *invoice.PaymentEvent
	var settled *invoice.TransactionHeader

	err = s.uow.Serializable(ctx, func(tx invoice.TxStore) error {
		h, err := lockOrBackfill(ctx, tx, req.TransactionID)
		if err != nil {
			return err
		}

		applied, err := h.ApplyPayment(req.Amount)
		if err != nil {
			return err
		}
		if err := tx.UpdateSettlement(ctx, h); err != nil {
			return err
		}

		e := &invoice.PaymentEvent{
			TransactionID: h.ID,
			Amount:        applied,
			Method:        method,
			Reference:     req.Reference,
			DepositorName: req.DepositorName,
			Note:          req.Note,
			PaidAt:        paidAt,
			BalanceAfter:  h.OutstandingAmount,
		}
		if err := tx.AppendPayment(ctx, e); err != nil {
			return err
		}

		if !h.IsWalkIn() {
			if err := tx.AppendLedgerEntry(ctx, &invoice.LedgerEntry{
				CustomerID:    *h.CustomerID,
				TransactionID: h.ID,
				EntryType:     invoice.LedgerEntryCreditPayment,
				Credit:        applied,
				Description:   "Payment received for " + h.InvoiceNumber,
				CreatedAt:     paidAt,
			}); err != nil {
				return err
			}
		}

		event, settled = e, h
		return nil
	})
	if err != nil {
		if claimed {
			s.releaseKey(ctx, req.IdempotencyKey)
		}
		err = asDomainError(err, "Payment could not be recorded")
		telemetry.RecordError(span, err)
		s.metrics.RecordCollection(ctx, req.Method, telemetry.OutcomeFailed, req.Amount)
		if shared.IsKind(err, shared.KindStorageFailure) {
			s.logger.Error("payment collection failed",
				zap.Int64("invoice_id", req.TransactionID),
				zap.Error(err))
		}
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrPaymentStatus, string(settled.PaymentStatus))
	telemetry.AddEvent(span, "payment_collected",
		"payment_id", event.ID,
		"balance_after", event.BalanceAfter.String(),
	)
	s.metrics.RecordCollection(ctx, req.Method, telemetry.OutcomeSuccess, event.Amount)
	s.logger.Info("payment collected",
		zap.Int64("invoice_id", settled.ID),
		zap.String("invoice_number", settled.InvoiceNumber),
		zap.String("amount", event.Amount.StringFixed(2)),
		zap.String("method", string(method)),
		zap.String("status", string(settled.PaymentStatus)),
		zap.String("outstanding", settled.OutstandingAmount.StringFixed(2)),
	)
	return event, nil
}

// checkRequest validates everything that does not need the ledger and
// returns the payment date
func (s *LedgerService) checkRequest(req *CollectPaymentRequest, method invoice.PaymentMethod) (time.Time, error) {
	if err := validateRequest(req); err != nil {
		return time.Time{}, err
	}
	if !req.Amount.IsPositive() {
		return time.Time{}, invoice.ErrInvalidAmount()
	}
	if method.RequiresReference() && req.Reference == "" {
		return time.Time{}, invoice.ErrReferenceRequired(method)
	}

	now := s.now()
	paidAt := req.Date
	if paidAt.IsZero() {
		paidAt = now
	}
	if paidAt.Year() < 2000 {
		return time.Time{}, invoice.ErrInvalidDate("date is not set")
	}
	if startOfDay(paidAt.In(now.Location())).After(startOfDay(now)) {
		return time.Time{}, invoice.ErrInvalidDate("date is in the future")
	}
	return paidAt, nil
}

// lockOrBackfill locks the current-layout header, first copying a legacy
// sale into the current layout (keeping its id) when only that exists
func lockOrBackfill(ctx context.Context, tx invoice.TxStore, id int64) (*invoice.TransactionHeader, error) {
	h, err := tx.LockHeader(ctx, id)
	if err == nil || !shared.IsKind(err, shared.KindNotFound) {
		return h, err
	}

	legacy, err := tx.FindLegacyHeader(ctx, id)
	if err != nil {
		if shared.IsKind(err, shared.KindNotFound) {
			return nil, invoice.ErrInvoiceNotFound(id)
		}
		return nil, err
	}
	legacy.ID = id
	if err := tx.CreateHeader(ctx, legacy); err != nil {
		return nil, err
	}
	return tx.LockHeader(ctx, id)
}

func (s *LedgerService) claimKey(ctx context.Context, key string) (bool, error) {
	if key == "" || s.idempotency == nil || !s.idemConfig.Enabled {
		return false, nil
	}
	fresh, err := s.idempotency.MarkProcessed(ctx, "payment:"+key, s.idemConfig.TTL)
	if err != nil {
		// an unreachable key store must not block collections
		s.logger.Warn("idempotency store unavailable", zap.Error(err))
		return false, nil
	}
	if !fresh {
		return false, shared.ErrDuplicateSubmission
	}
	return true, nil
}

func (s *LedgerService) releaseKey(ctx context.Context, key string) {
	if err := s.idempotency.Release(ctx, "payment:"+key); err != nil {
		s.logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(err))
	}
}

// ListPayments returns an invoice's payment history, oldest first
func (s *LedgerService) ListPayments(ctx context.Context, transactionID int64) ([]invoice.PaymentEvent, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "list_payments")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceID, transactionID)

	if _, err := s.headers.find(ctx, transactionID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	events, err := s.payments.ListPayments(ctx, transactionID)
	if err != nil {
		err = shared.NewStorageError("Payment history could not be loaded", err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	return events, nil
}

// CustomerStatement returns a customer's ledger entries with running balance
func (s *LedgerService) CustomerStatement(ctx context.Context, customerID int64) (*CustomerStatement, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "customer_statement")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrCustomerID, customerID)

	exists, err := s.payments.CustomerExists(ctx, customerID)
	if err != nil {
		err = shared.NewStorageError("Customer ledger could not be loaded", err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !exists {
		err := invoice.ErrCustomerNotFound(customerID)
		telemetry.RecordError(span, err)
		return nil, err
	}

	entries, err := s.payments.ListLedgerEntries(ctx, customerID)
	if err != nil {
		err = shared.NewStorageError("Customer ledger could not be loaded", err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	balance, err := s.payments.CustomerBalance(ctx, customerID)
	if err != nil {
		err = shared.NewStorageError("Customer ledger could not be loaded", err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	return &CustomerStatement{CustomerID: customerID, Entries: entries, Balance: balance}, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// CustomerInvoices lists a customer's invoices, newest first unless filter
// orders them otherwise
func (s *LedgerService) CustomerInvoices(ctx context.Context, customerID int64, filter invoice.ListFilter) ([]invoice.TransactionHeader, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "customer_invoices")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrCustomerID, customerID)

	exists, err := s.payments.CustomerExists(ctx, customerID)
	if err != nil {
		err = shared.NewStorageError("Customer invoices could not be loaded", err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !exists {
		err := invoice.ErrCustomerNotFound(customerID)
		telemetry.RecordError(span, err)
		return nil, err
	}

	headers, err := s.headers.current.ListByCustomer(ctx, customerID, filter)
	if err != nil {
		err = shared.NewStorageError("Customer invoices could not be loaded", err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	return headers, nil
}
