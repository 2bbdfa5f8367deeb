package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "pos-invoicing", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 3, cfg.Ledger.MaxSerializationRetries)
	assert.Equal(t, 24*time.Hour, cfg.Ledger.IdempotencyTTL)
	assert.Equal(t, "chromedp", cfg.Printing.Engine)
	assert.Equal(t, "invoices", cfg.Printing.ArtifactDir)
	assert.Equal(t, "₹", cfg.Shop.CurrencySymbol)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Storage.Enabled)
	assert.False(t, cfg.Telemetry.LogsEnabled)
	assert.False(t, cfg.Profiling.Enabled)
	assert.Equal(t, "http://localhost:4040", cfg.Profiling.ServerAddress)
	assert.Equal(t, "pos-invoicing", cfg.Profiling.ApplicationName)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	toml := `
[database]
driver = "sqlite"
path = "till.db"

[printing]
engine = "html"
retention_days = 90

[shop]
name = "Sharma General Store"
address = ["12 MG Road", "Pune 411001"]
gstin = "27ABCDE1234F1Z5"
default_tax_rate = 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0o600))
	t.Setenv("POS_SHOP_PHONE", "+91 98765 43210")
	t.Setenv("POS_LEDGER_MAX_SERIALIZATION_RETRIES", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "till.db", cfg.Database.Path)
	assert.Equal(t, 1, cfg.Database.MaxOpenConns, "sqlite is pinned to one connection")
	assert.Equal(t, "html", cfg.Printing.Engine)
	assert.Equal(t, 90, cfg.Printing.RetentionDays)
	assert.Equal(t, "Sharma General Store", cfg.Shop.Name)
	assert.Equal(t, []string{"12 MG Road", "Pune 411001"}, cfg.Shop.Address)
	assert.Equal(t, 5.0, cfg.Shop.DefaultTaxRate)
	assert.Equal(t, "+91 98765 43210", cfg.Shop.Phone)
	assert.Equal(t, 5, cfg.Ledger.MaxSerializationRetries)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]any
		want string
	}{
		{"unknown driver", map[string]any{"database.driver": "mysql"}, "database.driver"},
		{"unknown engine", map[string]any{"printing.engine": "word"}, "printing.engine"},
		{"storage without bucket", map[string]any{"storage.enabled": true}, "storage.bucket"},
		{"storage without keys", map[string]any{"storage.enabled": true, "storage.bucket": "b"}, "storage.access_key"},
		{"tax rate out of range", map[string]any{"shop.default_tax_rate": 120}, "shop.default_tax_rate"},
		{"production without password", map[string]any{"app.env": "production"}, "database.password"},
		{"bad sampling ratio", map[string]any{"telemetry.sampling_ratio": 2}, "sampling_ratio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			for k, val := range tt.set {
				v.Set(k, val)
			}
			_, err := fromViper(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "pos", Password: "p@ss word", DBName: "shop", SSLMode: "require"}
	assert.Equal(t, "postgres://pos:p%40ss%20word@db:5433/shop?sslmode=require", d.DSN())
}
