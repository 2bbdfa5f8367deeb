package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// columnSet is the lower-cased column names of one table
type columnSet map[string]bool

// loadColumns introspects table. A missing table yields an empty set.
func loadColumns(ctx context.Context, db *gorm.DB, table string) (columnSet, error) {
	m := db.WithContext(ctx).Migrator()
	if !m.HasTable(table) {
		return columnSet{}, nil
	}
	types, err := m.ColumnTypes(table)
	if err != nil {
		return columnSet{}, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	cols := make(columnSet, len(types))
	for _, ct := range types {
		cols[strings.ToLower(ct.Name())] = true
	}
	return cols, nil
}

// pick returns the first alias present in the set, or ""
func (c columnSet) pick(aliases ...string) string {
	for _, a := range aliases {
		if c[a] {
			return a
		}
	}
	return ""
}

func (c columnSet) empty() bool {
	return len(c) == 0
}

// selectRows reads every row of table whose key column equals id, in
// insertion order when the table has an id column
func selectRows(ctx context.Context, db *gorm.DB, cols columnSet, table, key string, id int64) ([]map[string]any, error) {
	var rows []map[string]any
	q := db.WithContext(ctx).
		Table(table).
		Where(clause.Eq{Column: clause.Column{Name: key}, Value: id})
	if cols["id"] {
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}})
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	return rows, nil
}

// existsRow reports whether table has a row whose key column equals value
func existsRow(ctx context.Context, db *gorm.DB, table, key string, value any) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Table(table).
		Where(clause.Eq{Column: clause.Column{Name: key}, Value: value}).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to probe %s: %w", table, err)
	}
	return count > 0, nil
}

// rowDecimal reads column col of row as a decimal; ok is false when the
// column is unmapped or NULL
func rowDecimal(row map[string]any, col string) (decimal.Decimal, bool) {
	if col == "" {
		return decimal.Zero, false
	}
	v, present := row[col]
	if !present || v == nil {
		return decimal.Zero, false
	}
	return valueobject.ToDecimal(v), true
}

func rowString(row map[string]any, col string) string {
	if col == "" {
		return ""
	}
	switch v := row[col].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case []byte:
		return strings.TrimSpace(string(v))
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func rowInt64(row map[string]any, col string) (int64, bool) {
	d, ok := rowDecimal(row, col)
	if !ok {
		return 0, false
	}
	return d.IntPart(), true
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02-01-2006 15:04",
	"02/01/2006",
}

func rowTime(row map[string]any, col string) (time.Time, bool) {
	if col == "" {
		return time.Time{}, false
	}
	switch v := row[col].(type) {
	case time.Time:
		return v, true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return *v, true
	case string, []byte:
		s := rowString(row, col)
		for _, layout := range timeLayouts {
			if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
