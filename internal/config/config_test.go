package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `port: 9090
host: 127.0.0.1
provider:
  base_url: https://provider.test
erpnext:
  base_url: https://erp.test
  api_key: k
  api_secret: s
templates_dir: templates
transform:
  mode: manual
  one_item_invoice: true
  item_group: Services
  tolerance: 0.1
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, "https://provider.test", cfg.Provider.BaseURL)
	assert.Equal(t, "https://erp.test", cfg.ERPNext.BaseURL)
	assert.Equal(t, "manual", cfg.Transform.Mode)
	assert.True(t, cfg.Transform.OneItemInvoice)
	assert.Equal(t, "Services", cfg.Transform.ItemGroup)
	assert.Equal(t, 0.1, cfg.Transform.Tolerance)
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "port: 8080\n"))
	require.NoError(t, err)

	assert.Equal(t, "auto", cfg.Transform.Mode)
	assert.Equal(t, DefaultSupplierGroup, cfg.Transform.SupplierGroup)
	assert.Equal(t, DefaultItemGroup, cfg.Transform.ItemGroup)
	assert.Equal(t, DefaultVATAccount, cfg.Transform.VATAccount)
	assert.Equal(t, DefaultCurrency, cfg.Transform.DefaultCurrency)
	assert.Equal(t, DefaultTolerance, cfg.Transform.Tolerance)
	assert.Equal(t, float64(DefaultDecimalShiftFactor), cfg.Transform.DecimalShiftFactor)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7000")
	t.Setenv("ERPNEXT_BASE_URL", "https://override.test")
	t.Setenv("TRANSFORM_MODE", "auto")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, "https://override.test", cfg.ERPNext.BaseURL)
	assert.Equal(t, "auto", cfg.Transform.Mode)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
}
