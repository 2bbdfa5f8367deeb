package invoice

import (
	"sort"
	"strings"

	"github.com/erp/invoicing/internal/domain/invoice"
	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// maxHeuristicQuantity is the largest value read as a quantity from an
// unclassified row
var maxHeuristicQuantity = decimal.NewFromInt(1000)

var (
	rawNameColumns    = []string{"name", "product_name", "item_name", "description", "title"}
	rawProductColumns = []string{"product_id", "item_id", "product"}
	// columns whose numbers are never a quantity, price or total
	rawIgnoredFragments = []string{"tax", "gst", "disc", "hsn", "percent", "pct", "batch", "code", "date", "time", "_at", "phone", "year"}
)

type rawNumber struct {
	column string
	value  decimal.Decimal
}

// classifyRows turns rows of unknown shape into line items. Rows with no
// usable number are skipped.
func classifyRows(rows []invoice.RawRow) []invoice.LineItem {
	var items []invoice.LineItem
	for _, row := range rows {
		if item, ok := classifyRow(row); ok {
			items = append(items, item)
		}
	}
	return items
}

func classifyRow(row invoice.RawRow) (invoice.LineItem, bool) {
	item := invoice.LineItem{Name: rawString(row, rawNameColumns)}
	for _, col := range rawProductColumns {
		if d, ok := valueobject.ParseDecimal(row[col]); ok && d.IsPositive() {
			item.ProductID = d.IntPart()
			break
		}
	}

	nums := rawNumbers(row)
	if len(nums) == 0 {
		return invoice.LineItem{}, false
	}

	qty, price, total, ok := consistentTriple(nums)
	if !ok {
		qty, price, total = largestAsTotal(nums)
	}
	item.Quantity = qty
	item.UnitPrice = price
	item.StoredTotal = &total
	return item, true
}

// rawNumbers returns the row's positive numeric values in column order,
// skipping identifiers and rate-like columns
func rawNumbers(row invoice.RawRow) []rawNumber {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var out []rawNumber
	for _, col := range cols {
		if ignoredRawColumn(col) {
			continue
		}
		d, ok := valueobject.ParseDecimal(row[col])
		if !ok || !d.IsPositive() {
			continue
		}
		out = append(out, rawNumber{column: col, value: d})
	}
	return out
}

func ignoredRawColumn(col string) bool {
	c := strings.ToLower(col)
	if c == "id" || strings.HasSuffix(c, "_id") || c == "product" {
		return true
	}
	for _, frag := range rawIgnoredFragments {
		if strings.Contains(c, frag) {
			return true
		}
	}
	return false
}

func quantityLike(d decimal.Decimal) bool {
	return d.IsPositive() && d.LessThanOrEqual(maxHeuristicQuantity) && d.Equal(d.Round(3))
}

// consistentTriple looks for quantity × price ≈ total among the numbers,
// trying the smallest quantity candidates first
func consistentTriple(nums []rawNumber) (qty, price, total decimal.Decimal, ok bool) {
	order := make([]int, len(nums))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return nums[order[a]].value.LessThan(nums[order[b]].value)
	})

	for _, qi := range order {
		q := nums[qi].value
		if !quantityLike(q) {
			continue
		}
		for pi := range nums {
			if pi == qi {
				continue
			}
			p := nums[pi].value
			for ti := range nums {
				if ti == qi || ti == pi {
					continue
				}
				t := nums[ti].value
				if t.GreaterThanOrEqual(p) && valueobject.WithinTolerance(valueobject.RoundMoney(p.Mul(q)), t) {
					return q, p, t, true
				}
			}
		}
	}
	return decimal.Zero, decimal.Zero, decimal.Zero, false
}

// largestAsTotal reads the largest number as the line total and the smallest
// quantity-like one as the quantity, deriving the price
func largestAsTotal(nums []rawNumber) (qty, price, total decimal.Decimal) {
	ti := 0
	for i, n := range nums {
		if n.value.GreaterThan(nums[ti].value) {
			ti = i
		}
	}
	total = nums[ti].value

	qty = decimal.NewFromInt(1)
	found := false
	for i, n := range nums {
		if i == ti || !quantityLike(n.value) || n.value.GreaterThanOrEqual(total) {
			continue
		}
		if !found || n.value.LessThan(qty) {
			qty = n.value
			found = true
		}
	}
	price = valueobject.RoundMoney(total.Div(qty))
	return qty, price, total
}

func rawString(row invoice.RawRow, cols []string) string {
	for _, col := range cols {
		switch v := row[col].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case []byte:
			if s := strings.TrimSpace(string(v)); s != "" {
				return s
			}
		}
	}
	return ""
}
