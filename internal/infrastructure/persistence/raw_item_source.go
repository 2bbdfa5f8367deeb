package persistence

import (
	"context"

	"github.com/erp/invoicing/internal/domain/invoice"
	"github.com/erp/invoicing/internal/infrastructure/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	defaultRawTables = []string{"invoice_items", "sale_items"}
	rawParentKeys    = []string{"invoice_id", "sale_id", "sales_id", "transaction_id", "bill_id", "order_id"}
	legacyRawKeys    = map[string]bool{"sale_id": true, "sales_id": true, "bill_id": true}
)

// GormRawItemSource dumps item-like rows from every known item table without
// interpreting their columns. It is the last resort when neither layout's
// mapping yields items.
type GormRawItemSource struct {
	db     *gorm.DB
	tables []string
	logger *zap.Logger
}

// NewGormRawItemSource creates a raw source over the given tables, or the
// known item tables when none are given
func NewGormRawItemSource(db *gorm.DB, l *zap.Logger, tables ...string) *GormRawItemSource {
	if len(tables) == 0 {
		tables = defaultRawTables
	}
	return &GormRawItemSource{db: db, tables: tables, logger: logger.OrNop(l)}
}

// DumpRows implements invoice.RawItemSource. A table that cannot be read is
// skipped; only an unreachable database fails the dump.
func (s *GormRawItemSource) DumpRows(ctx context.Context, id int64) ([]invoice.RawRow, error) {
	var out []invoice.RawRow
	var lastErr error
	read := 0

	saleID, saleKnown, err := s.legacyParent(ctx, id)
	if err != nil {
		return nil, err
	}

	for _, table := range s.tables {
		cols, err := loadColumns(ctx, s.db, table)
		if err != nil {
			s.logger.Debug("raw dump skipped table", zap.String("table", table), zap.Error(err))
			lastErr = err
			continue
		}
		key := cols.pick(rawParentKeys...)
		if key == "" {
			continue
		}
		parent := id
		if legacyRawKeys[key] {
			if !saleKnown {
				continue
			}
			parent = saleID
		}
		rows, err := selectRows(ctx, s.db, cols, table, key, parent)
		if err != nil {
			s.logger.Debug("raw dump skipped table", zap.String("table", table), zap.Error(err))
			lastErr = err
			continue
		}
		read++
		for _, r := range rows {
			out = append(out, invoice.RawRow(r))
		}
	}

	if read == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

// legacyParent maps id to the legacy sale whose rows belong to it. Ids of
// current-layout invoices only reach a sale through the invoice number.
func (s *GormRawItemSource) legacyParent(ctx context.Context, id int64) (int64, bool, error) {
	invoiceCols, err := loadColumns(ctx, s.db, "invoices")
	if err != nil {
		s.logger.Debug("invoice column lookup failed", zap.Error(err))
		return id, true, nil
	}
	current, err := currentLayoutOwns(ctx, s.db, invoiceCols, id)
	if err != nil {
		return 0, false, err
	}
	if !current {
		return id, true, nil
	}
	salesCols, err := loadColumns(ctx, s.db, "sales")
	if err != nil {
		s.logger.Debug("sales column lookup failed", zap.Error(err))
		return 0, false, nil
	}
	return crossReferenceSale(ctx, s.db, salesCols, invoiceCols, id)
}
