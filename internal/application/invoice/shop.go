package invoice

import (
	"context"
	"strings"

	"github.com/erp/invoicing/internal/domain/invoice"
	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

// ShopInfoLoader builds the shop snapshot printed on invoices from the
// shop_settings rows, falling back to configured defaults key by key
type ShopInfoLoader struct {
	settings invoice.SettingsRepository
	defaults invoice.ShopInfo
	logger   *zap.Logger
}

// NewShopInfoLoader creates a loader. settings may be nil, in which case the
// defaults are always used.
func NewShopInfoLoader(settings invoice.SettingsRepository, defaults invoice.ShopInfo, logger *zap.Logger) *ShopInfoLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaults.CurrencySymbol == "" {
		defaults.CurrencySymbol = valueobject.DefaultSymbol
	}
	return &ShopInfoLoader{settings: settings, defaults: defaults, logger: logger}
}

// Load returns a snapshot; it never fails. Callers load once per operation
// and pass the snapshot down.
func (l *ShopInfoLoader) Load(ctx context.Context) invoice.ShopInfo {
	info := l.defaults
	info.AddressLines = append([]string(nil), l.defaults.AddressLines...)
	if l.settings == nil {
		return info
	}

	rows, err := l.settings.LoadSettings(ctx)
	if err != nil {
		l.logger.Warn("shop settings unavailable, using defaults", zap.Error(err))
		return info
	}

	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(rows[k]); v != "" {
				*dst = v
				return
			}
		}
	}
	set(&info.Name, "shop_name", "name", "store_name")
	set(&info.Phone, "phone", "shop_phone", "contact")
	set(&info.Email, "email", "shop_email")
	set(&info.GSTIN, "gstin", "gst_number", "gst_no")
	set(&info.StateCode, "state_code")
	set(&info.FooterNote, "footer_note", "invoice_footer", "footer")
	set(&info.CurrencySymbol, "currency_symbol")

	if lines := addressLines(rows); len(lines) > 0 {
		info.AddressLines = lines
	}
	if v := strings.TrimSpace(rows["default_tax_rate"]); v != "" {
		if rate, ok := valueobject.ParseDecimal(v); ok && !rate.IsNegative() {
			info.DefaultTaxRate = rate
		}
	}
	return info
}

// addressLines reads either a multi-line "address" row or address_line1..3
func addressLines(rows map[string]string) []string {
	var lines []string
	if v := strings.TrimSpace(rows["address"]); v != "" {
		for _, line := range strings.Split(v, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				lines = append(lines, line)
			}
		}
		return lines
	}
	for _, k := range []string{"address_line1", "address_line2", "address_line3"} {
		if v := strings.TrimSpace(rows[k]); v != "" {
			lines = append(lines, v)
		}
	}
	return lines
}
