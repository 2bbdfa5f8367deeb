package invoice

import (
	"context"
	"errors"

	"github.com/erp/invoicing/internal/domain/invoice"
	"github.com/erp/invoicing/internal/domain/shared"
)

// headerLookup finds a header in the current layout, then the legacy one
type headerLookup struct {
	current invoice.HeaderRepository
	legacy  invoice.LegacySaleRepository
}

func (l headerLookup) find(ctx context.Context, id int64) (*invoice.TransactionHeader, error) {
	h, err := l.current.FindByID(ctx, id)
	if err == nil {
		return h, nil
	}
	if !shared.IsKind(err, shared.KindNotFound) {
		return nil, shared.NewStorageError("Invoice could not be loaded", err)
	}
	if l.legacy == nil {
		return nil, invoice.ErrInvoiceNotFound(id)
	}

	h, err = l.legacy.FindByID(ctx, id)
	if err == nil {
		return h, nil
	}
	if shared.IsKind(err, shared.KindNotFound) {
		return nil, invoice.ErrInvoiceNotFound(id)
	}
	return nil, shared.NewStorageError("Invoice could not be loaded", err)
}

// asDomainError passes domain errors through and wraps anything else as a
// storage failure with message
func asDomainError(err error, message string) error {
	if err == nil {
		return nil
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	return shared.NewStorageError(message, err)
}
