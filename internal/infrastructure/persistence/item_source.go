package persistence

import (
	"context"
	"fmt"

	"github.com/erp/invoicing/internal/domain/invoice"
	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"github.com/erp/invoicing/internal/infrastructure/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// itemAliases lists, per logical field, the column names a layout has used
// over its releases, most preferred first
type itemAliases struct {
	parent    []string
	quantity  []string
	price     []string
	discount  []string
	total     []string
	taxRate   []string
	taxAmount []string
	hsn       []string
	product   []string
	name      []string
	batch     []string
	expiry    []string
}

var currentItemAliases = itemAliases{
	parent:    []string{"invoice_id", "transaction_id", "bill_id"},
	quantity:  []string{"quantity", "qty"},
	price:     []string{"unit_price", "price", "rate", "selling_price", "mrp"},
	discount:  []string{"discount_pct", "discount_percent", "discount_percentage", "discount"},
	total:     []string{"line_total", "total", "amount", "total_price"},
	taxRate:   []string{"tax_rate", "gst_rate", "gst_percent"},
	taxAmount: []string{"tax_amount", "gst_amount"},
	hsn:       []string{"hsn_code", "hsn"},
	product:   []string{"product_id", "item_id"},
	name:      []string{"product_name", "item_name", "name", "description"},
	batch:     []string{"batch_no", "batch_number"},
	expiry:    []string{"expiry_date", "expiry"},
}

var legacyItemAliases = itemAliases{
	parent:    []string{"sale_id", "sales_id"},
	quantity:  []string{"qty", "quantity"},
	price:     []string{"price", "sale_price", "rate", "unit_price"},
	discount:  []string{"disc_percent", "discount_pct", "discount"},
	total:     []string{"total", "line_total", "amount", "subtotal"},
	taxRate:   []string{"gst_rate", "tax_rate", "gst"},
	taxAmount: []string{"tax_amount", "gst_amount"},
	hsn:       []string{"hsn", "hsn_code"},
	product:   []string{"product_id", "item_id"},
	name:      []string{"product_name", "item_name", "name"},
	batch:     []string{"batch_no"},
	expiry:    []string{"expiry_date"},
}

// itemColumns is the alias table resolved against one table's real columns
type itemColumns struct {
	parent, quantity, price, discount, total string
	taxRate, taxAmount, hsn, product, name  string
	batch, expiry                           string
}

func (a itemAliases) resolve(cols columnSet) itemColumns {
	return itemColumns{
		parent:    cols.pick(a.parent...),
		quantity:  cols.pick(a.quantity...),
		price:     cols.pick(a.price...),
		discount:  cols.pick(a.discount...),
		total:     cols.pick(a.total...),
		taxRate:   cols.pick(a.taxRate...),
		taxAmount: cols.pick(a.taxAmount...),
		hsn:       cols.pick(a.hsn...),
		product:   cols.pick(a.product...),
		name:      cols.pick(a.name...),
		batch:     cols.pick(a.batch...),
		expiry:    cols.pick(a.expiry...),
	}
}

// usable reports whether the table has enough columns to price a line
func (c itemColumns) usable() bool {
	return c.parent != "" && c.quantity != "" && (c.price != "" || c.total != "")
}

// lineItem maps one row; ok is false when the row cannot be priced
func (c itemColumns) lineItem(row map[string]any) (invoice.LineItem, bool) {
	qty, ok := rowDecimal(row, c.quantity)
	if !ok || !qty.IsPositive() {
		return invoice.LineItem{}, false
	}
	price, hasPrice := rowDecimal(row, c.price)
	total, hasTotal := rowDecimal(row, c.total)
	if !hasPrice && !hasTotal {
		return invoice.LineItem{}, false
	}

	li := invoice.LineItem{Quantity: qty, UnitPrice: price}
	if hasTotal {
		t := valueobject.RoundMoney(total)
		li.StoredTotal = &t
		if !hasPrice {
			li.UnitPrice = valueobject.RoundMoney(total.Div(qty))
		}
	}
	if pct, ok := rowDecimal(row, c.discount); ok && !pct.IsNegative() && pct.LessThanOrEqual(valueobject.ToDecimal(100)) {
		li.DiscountPct = pct
	}
	li.TaxRate, _ = rowDecimal(row, c.taxRate)
	li.TaxAmount, _ = rowDecimal(row, c.taxAmount)
	li.ProductID, _ = rowInt64(row, c.product)
	li.HSNCode = rowString(row, c.hsn)
	li.Name = rowString(row, c.name)
	li.BatchNo = rowString(row, c.batch)
	if t, ok := rowTime(row, c.expiry); ok {
		li.ExpiryDate = &t
	}
	return li, true
}

// TableItemSource reads items from one header/item table pair
type TableItemSource struct {
	db          *gorm.DB
	layout      invoice.SourceLayout
	headerTable string
	itemTable   string
	aliases     itemAliases
	logger      *zap.Logger
}

// NewCurrentItemSource reads invoices / invoice_items
func NewCurrentItemSource(db *gorm.DB, l *zap.Logger) *TableItemSource {
	return &TableItemSource{
		db:          db,
		layout:      invoice.LayoutCurrent,
		headerTable: "invoices",
		itemTable:   "invoice_items",
		aliases:     currentItemAliases,
		logger:      logger.OrNop(l),
	}
}

// NewLegacyItemSource reads sales / sale_items. A transaction ID is matched
// to a sale either directly or through its invoice number.
func NewLegacyItemSource(db *gorm.DB, l *zap.Logger) *TableItemSource {
	return &TableItemSource{
		db:          db,
		layout:      invoice.LayoutLegacy,
		headerTable: "sales",
		itemTable:   "sale_items",
		aliases:     legacyItemAliases,
		logger:      logger.OrNop(l),
	}
}

// Layout implements invoice.ItemSource
func (s *TableItemSource) Layout() invoice.SourceLayout {
	return s.layout
}

// Open implements invoice.ItemSource. Column lookups that fail are logged
// and treated as absent columns.
func (s *TableItemSource) Open(ctx context.Context) invoice.ItemSession {
	sess := &tableItemSession{src: s}

	itemCols := s.columns(ctx, s.itemTable)
	sess.itemColSet = itemCols
	sess.cols = s.aliases.resolve(itemCols)
	sess.headerCols = s.columns(ctx, s.headerTable)

	productCols := s.columns(ctx, "products")
	if productCols["id"] {
		sess.productName = productCols.pick("name", "product_name", "title")
		sess.productHSN = productCols.pick("hsn_code", "hsn")
	}
	if s.layout == invoice.LayoutLegacy {
		sess.invoiceCols = s.columns(ctx, "invoices")
	}
	return sess
}

func (s *TableItemSource) columns(ctx context.Context, table string) columnSet {
	cols, err := loadColumns(ctx, s.db, table)
	if err != nil {
		s.logger.Debug("column lookup failed, treating table as absent",
			zap.String("table", table), zap.Error(err))
		return columnSet{}
	}
	return cols
}

type tableItemSession struct {
	src         *TableItemSource
	cols        itemColumns
	itemColSet  columnSet
	headerCols  columnSet
	invoiceCols columnSet
	productName string
	productHSN  string
}

// Exists implements invoice.ItemSession
func (s *tableItemSession) Exists(ctx context.Context, id int64) (bool, error) {
	_, ok, err := s.parentID(ctx, id)
	return ok, err
}

// parentID maps a transaction ID to this layout's header ID
func (s *tableItemSession) parentID(ctx context.Context, id int64) (int64, bool, error) {
	if !s.headerCols["id"] {
		return 0, false, nil
	}
	if s.src.layout == invoice.LayoutLegacy {
		current, err := currentLayoutOwns(ctx, s.src.db, s.invoiceCols, id)
		if err != nil {
			return 0, false, err
		}
		if current {
			return crossReferenceSale(ctx, s.src.db, s.headerCols, s.invoiceCols, id)
		}
	}
	ok, err := existsRow(ctx, s.src.db, s.src.headerTable, "id", id)
	if err != nil || ok {
		return id, ok, err
	}
	if s.src.layout != invoice.LayoutLegacy {
		return 0, false, nil
	}
	return crossReferenceSale(ctx, s.src.db, s.headerCols, s.invoiceCols, id)
}

// Items implements invoice.ItemSession
func (s *tableItemSession) Items(ctx context.Context, id int64) ([]invoice.LineItem, error) {
	if !s.cols.usable() {
		return nil, nil
	}
	parent, ok, err := s.parentID(ctx, id)
	if err != nil || !ok {
		return nil, err
	}

	rows, err := selectRows(ctx, s.src.db, s.itemColSet, s.src.itemTable, s.cols.parent, parent)
	if err != nil {
		return nil, err
	}

	items := make([]invoice.LineItem, 0, len(rows))
	for _, row := range rows {
		if li, ok := s.cols.lineItem(row); ok {
			items = append(items, li)
		}
	}
	s.fillProductDetails(ctx, items)
	return items, nil
}

// fillProductDetails names items from the products table where the item
// row itself carries no name
func (s *tableItemSession) fillProductDetails(ctx context.Context, items []invoice.LineItem) {
	if s.productName == "" {
		return
	}
	var ids []int64
	for _, it := range items {
		if it.ProductID != 0 && (it.Name == "" || it.HSNCode == "") {
			ids = append(ids, it.ProductID)
		}
	}
	if len(ids) == 0 {
		return
	}

	var rows []map[string]any
	if err := s.src.db.WithContext(ctx).Table("products").Where("id IN ?", ids).Find(&rows).Error; err != nil {
		s.src.logger.Debug("product lookup failed", zap.Error(err))
		return
	}
	byID := make(map[int64]map[string]any, len(rows))
	for _, r := range rows {
		if id, ok := rowInt64(r, "id"); ok {
			byID[id] = r
		}
	}
	for i := range items {
		r, ok := byID[items[i].ProductID]
		if !ok {
			continue
		}
		if items[i].Name == "" {
			items[i].Name = rowString(r, s.productName)
		}
		if items[i].HSNCode == "" {
			items[i].HSNCode = rowString(r, s.productHSN)
		}
	}
}

// currentLayoutOwns reports whether id names a header created in the current
// layout. Such an id says nothing about the legacy sale with the same number;
// headers backfilled from a legacy sale keep its id and are not owned.
func currentLayoutOwns(ctx context.Context, db *gorm.DB, invoiceCols columnSet, id int64) (bool, error) {
	if !invoiceCols["id"] {
		return false, nil
	}
	q := db.WithContext(ctx).Table("invoices").Where("id = ?", id)
	if invoiceCols["source_layout"] {
		q = q.Where("source_layout <> ?", string(invoice.LayoutLegacy))
	}
	var count int64
	if err := q.Limit(1).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to probe invoices: %w", err)
	}
	return count > 0, nil
}

// crossReferenceSale finds the legacy sale whose invoice number matches the
// current-layout invoice id
func crossReferenceSale(ctx context.Context, db *gorm.DB, salesCols, invoiceCols columnSet, id int64) (int64, bool, error) {
	saleNumberCol := salesCols.pick("invoice_no", "invoice_number", "bill_no")
	if saleNumberCol == "" || !invoiceCols["invoice_number"] {
		return 0, false, nil
	}

	var numbers []string
	if err := db.WithContext(ctx).Table("invoices").Where("id = ?", id).Limit(1).Pluck("invoice_number", &numbers).Error; err != nil {
		return 0, false, fmt.Errorf("failed to read invoice number: %w", err)
	}
	if len(numbers) == 0 || numbers[0] == "" {
		return 0, false, nil
	}

	var saleIDs []int64
	err := db.WithContext(ctx).Table("sales").
		Where(saleNumberCol+" = ?", numbers[0]).
		Order("id").Limit(1).
		Pluck("id", &saleIDs).Error
	if err != nil {
		return 0, false, fmt.Errorf("failed to cross-reference sale: %w", err)
	}
	if len(saleIDs) == 0 {
		return 0, false, nil
	}
	return saleIDs[0], true, nil
}
