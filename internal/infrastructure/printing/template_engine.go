package printing

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/erp/invoicing/internal/domain/invoice"
	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.html
var templateFS embed.FS

// layout file names, shared by the embedded set and an override directory
const (
	layoutPage    = "invoice_page.html"
	layoutReceipt = "invoice_receipt.html"
)

// TemplateEngine binds invoice views to html/template layouts
type TemplateEngine struct {
	funcMap     template.FuncMap
	templateDir string
	now         func() time.Time
}

// TemplateEngineOption configures the template engine
type TemplateEngineOption func(*TemplateEngine)

// WithTemplateDir makes layouts in dir take precedence over the embedded ones.
// Missing files fall back to the embedded copy.
func WithTemplateDir(dir string) TemplateEngineOption {
	return func(e *TemplateEngine) {
		e.templateDir = dir
	}
}

// WithFuncs adds or replaces template functions
func WithFuncs(funcs template.FuncMap) TemplateEngineOption {
	return func(e *TemplateEngine) {
		maps.Copy(e.funcMap, funcs)
	}
}

// WithEngineClock overrides the clock used for the "printed at" stamp
func WithEngineClock(now func() time.Time) TemplateEngineOption {
	return func(e *TemplateEngine) {
		e.now = now
	}
}

// NewTemplateEngine creates a new template engine with default configuration
func NewTemplateEngine(opts ...TemplateEngineOption) *TemplateEngine {
	e := &TemplateEngine{now: time.Now}

	e.funcMap = template.FuncMap{
		// Money
		"formatMoney":    formatMoney,
		"formatMoneyRaw": formatMoneyRaw,
		"amountInWords":  valueobject.NumberToWords,

		// Dates
		"formatDate":     formatDate,
		"formatDateTime": formatDateTime,
		"formatTime":     formatTime,

		// Numbers
		"formatDecimal":  formatDecimal,
		"formatQuantity": formatQuantity,
		"formatRate":     formatRate,

		// Strings
		"truncate": truncate,
		"upper":    strings.ToUpper,
		"lower":    strings.ToLower,
		"title":    titleCase,
		"trim":     strings.TrimSpace,
		"join":     strings.Join,

		// Arithmetic
		"add": add,
		"sub": sub,
		"mul": mul,

		// Logic
		"isZero":   isZero,
		"positive": positive,
		"default":  defaultFunc,
		"ternary":  ternary,

		// Labels
		"statusText": statusText,
		"methodText": methodText,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// invoiceDocument is the data bound to an invoice layout
type invoiceDocument struct {
	*invoice.InvoiceView
	Paper     PaperSize
	Receipt   bool
	PrintedAt time.Time
}

// RenderInvoice produces the HTML for view on the given paper
func (e *TemplateEngine) RenderInvoice(ctx context.Context, view *invoice.InvoiceView, paper PaperSize) (string, error) {
	if view == nil {
		return "", NewRenderError(ErrCodeInvalidTemplate, "invoice view is nil", nil)
	}

	name := layoutPage
	if paper.IsReceipt() {
		name = layoutReceipt
	}
	content, err := e.loadLayout(name)
	if err != nil {
		return "", err
	}

	return e.RenderString(ctx, name, content, invoiceDocument{
		InvoiceView: view,
		Paper:       paper,
		Receipt:     paper.IsReceipt(),
		PrintedAt:   e.now(),
	})
}

// loadLayout reads name from the override directory, falling back to the
// embedded templates
func (e *TemplateEngine) loadLayout(name string) (string, error) {
	if e.templateDir != "" {
		data, err := os.ReadFile(filepath.Join(e.templateDir, name))
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", NewRenderError(ErrCodeInvalidTemplate, "failed to read layout "+name, err)
		}
	}

	data, err := templateFS.ReadFile("templates/" + name)
	if err != nil {
		return "", NewRenderError(ErrCodeInvalidTemplate, "layout not found: "+name, err)
	}
	return string(data), nil
}

// RenderString renders a template string with the provided data
func (e *TemplateEngine) RenderString(ctx context.Context, name, content string, data any) (string, error) {
	if content == "" {
		return "", NewRenderError(ErrCodeInvalidTemplate, "template content is empty", nil)
	}

	tmpl, err := template.New(name).Funcs(e.funcMap).Parse(content)
	if err != nil {
		return "", NewRenderError(ErrCodeInvalidTemplate, "failed to parse template", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", NewRenderError(ErrCodeRenderFailed, "failed to execute template", err)
	}

	return buf.String(), nil
}

// GetFuncMap returns a copy of the template function map
func (e *TemplateEngine) GetFuncMap() template.FuncMap {
	funcMap := make(template.FuncMap, len(e.funcMap))
	maps.Copy(funcMap, e.funcMap)
	return funcMap
}

// =============================================================================
// Template Functions - Money Formatting
// =============================================================================

// formatMoney formats a value as currency with Indian digit grouping.
// Example: 123456.5, "₹" -> "₹1,23,456.50"
func formatMoney(v any, symbol string) string {
	return valueobject.FormatCurrency(toDecimal(v), symbol, 2)
}

// formatMoneyRaw formats a value without a symbol
// Example: 2168.26 -> "2,168.26"
func formatMoneyRaw(v any) string {
	return valueobject.FormatCurrency(toDecimal(v), "", 2)
}

// =============================================================================
// Template Functions - Date Formatting
// =============================================================================

// formatDate formats a time value the way Indian invoices print it
// Example: 2026-03-14 -> "14-03-2026"
func formatDate(v any) string {
	t := toTime(v)
	if t.IsZero() {
		return ""
	}
	return t.Format("02-01-2006")
}

// formatDateTime example: "14-03-2026 10:30 AM"
func formatDateTime(v any) string {
	t := toTime(v)
	if t.IsZero() {
		return ""
	}
	return t.Format("02-01-2006 03:04 PM")
}

func formatTime(v any) string {
	t := toTime(v)
	if t.IsZero() {
		return ""
	}
	return t.Format("03:04 PM")
}

// =============================================================================
// Template Functions - Number Formatting
// =============================================================================

// formatDecimal formats a decimal with specified precision
func formatDecimal(v any, precision int) string {
	return toDecimal(v).StringFixed(int32(precision))
}

// formatQuantity drops trailing zeros: 2.000 -> "2", 1.250 -> "1.25"
func formatQuantity(v any) string {
	d := toDecimal(v)
	if d.Equal(d.Truncate(0)) {
		return d.Truncate(0).String()
	}
	return d.Round(3).String()
}

// formatRate prints a GST rate: 18 -> "18%", 2.5 -> "2.5%"
func formatRate(v any) string {
	return toDecimal(v).Round(2).String() + "%"
}

// =============================================================================
// Template Functions - String Utilities
// =============================================================================

// truncate truncates a string to max runes with optional suffix
// Uses rune count for proper UTF-8 handling
func truncate(s string, max int, suffix ...string) string {
	suf := "..."
	if len(suffix) > 0 {
		suf = suffix[0]
	}
	runes := []rune(s)
	sufRunes := []rune(suf)
	if len(runes) <= max {
		return s
	}
	if max <= len(sufRunes) {
		return string(sufRunes[:max])
	}
	return string(runes[:max-len(sufRunes)]) + suf
}

// titleCase converts string to title case using proper Unicode handling
func titleCase(s string) string {
	return cases.Title(language.English).String(strings.ToLower(s))
}

// =============================================================================
// Template Functions - Arithmetic and Logic
// =============================================================================

func add(a, b any) decimal.Decimal {
	return toDecimal(a).Add(toDecimal(b))
}

func sub(a, b any) decimal.Decimal {
	return toDecimal(a).Sub(toDecimal(b))
}

func mul(a, b any) decimal.Decimal {
	return toDecimal(a).Mul(toDecimal(b))
}

func isZero(v any) bool {
	return toDecimal(v).IsZero()
}

func positive(v any) bool {
	return toDecimal(v).IsPositive()
}

func defaultFunc(val, def any) any {
	if val == nil {
		return def
	}
	if s, ok := val.(string); ok && strings.TrimSpace(s) == "" {
		return def
	}
	return val
}

func ternary(condition bool, trueVal, falseVal any) any {
	if condition {
		return trueVal
	}
	return falseVal
}

// =============================================================================
// Template Functions - Labels
// =============================================================================

// statusText turns a payment status into the printed label
func statusText(status any) string {
	s := fmt.Sprint(status)
	switch s {
	case string(invoice.PaymentStatusPaid):
		return "Paid"
	case string(invoice.PaymentStatusPartiallyPaid):
		return "Partially Paid"
	case string(invoice.PaymentStatusUnpaid):
		return "Unpaid"
	}
	return titleCase(strings.ReplaceAll(s, "_", " "))
}

// methodText turns a payment method into the printed label
func methodText(method any) string {
	s := fmt.Sprint(method)
	switch s {
	case string(invoice.PaymentMethodUPI):
		return "UPI"
	case string(invoice.PaymentMethodSplit):
		return "Cash + Credit"
	}
	return titleCase(strings.ReplaceAll(s, "_", " "))
}

// =============================================================================
// Helper Functions
// =============================================================================

// toDecimal converts various types to decimal.Decimal
func toDecimal(v any) decimal.Decimal {
	switch val := v.(type) {
	case decimal.Decimal:
		return val
	case *decimal.Decimal:
		if val == nil {
			return decimal.Zero
		}
		return *val
	case int:
		return decimal.NewFromInt(int64(val))
	case int32:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	case float32:
		return decimal.NewFromFloat(float64(val))
	case float64:
		return decimal.NewFromFloat(val)
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

// toTime converts various types to time.Time
func toTime(v any) time.Time {
	switch val := v.(type) {
	case time.Time:
		return val
	case *time.Time:
		if val == nil {
			return time.Time{}
		}
		return *val
	case string:
		formats := []string{
			time.RFC3339,
			"2006-01-02 15:04:05",
			"2006-01-02",
		}
		for _, f := range formats {
			if t, err := time.Parse(f, val); err == nil {
				return t
			}
		}
		return time.Time{}
	case int64:
		return time.Unix(val, 0)
	default:
		return time.Time{}
	}
}
