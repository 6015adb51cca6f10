package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Default fallbacks used when the settings file is missing values. Kept in
// one place so the fallback path is explicit and logged, not scattered.
const (
	DefaultSupplierGroup      = "All Supplier Groups"
	DefaultItemGroup          = "All Item Groups"
	DefaultVATAccount         = "VAT - TC"
	DefaultCurrency           = "EUR"
	DefaultTolerance          = 0.05
	DefaultDecimalShiftFactor = 10
)

// Config is the service configuration, loaded from YAML with environment
// overrides.
type Config struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	Provider ProviderConfig `yaml:"provider"`
	ERPNext  ERPNextConfig  `yaml:"erpnext"`

	// TemplatesDir holds the YAML rule templates for local extraction.
	TemplatesDir string `yaml:"templates_dir"`

	Transform Settings `yaml:"transform"`
}

// ProviderConfig points at the remote extraction service.
type ProviderConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
}

// ERPNextConfig points at the host document store.
type ERPNextConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
}

// Settings carries the pipeline options recognized by every transform stage.
type Settings struct {
	// Mode selects the extraction source: "auto" (remote provider) or
	// "manual" (local rule templates).
	Mode string `yaml:"mode"`

	// OneItemInvoice collapses all line items into one synthetic line.
	OneItemInvoice bool `yaml:"one_item_invoice"`
	// SettingsItem is the item code used for the synthetic combined line.
	SettingsItem string `yaml:"settings_item"`

	ItemGroup     string `yaml:"item_group"`
	VATAccount    string `yaml:"vat_account"`
	SupplierGroup string `yaml:"supplier_group"`

	// DefaultCurrency applies when the extraction carries no currency.
	DefaultCurrency string `yaml:"default_currency"`
	// DefaultCountry applies when the vendor address carries no country.
	DefaultCountry string `yaml:"default_country"`

	// Tolerance is the rounding tolerance in currency units for all
	// consistency checks.
	Tolerance float64 `yaml:"tolerance"`
	// DecimalShiftFactor triggers the misplaced-decimal heuristic when the
	// line total exceeds target*factor.
	DecimalShiftFactor float64 `yaml:"decimal_shift_factor"`
}

// Load reads the YAML config file and applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if host := os.Getenv("HOST"); host != "" {
		cfg.Host = host
	}
	if v := os.Getenv("PROVIDER_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("PROVIDER_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("PROVIDER_API_SECRET"); v != "" {
		cfg.Provider.APISecret = v
	}
	if v := os.Getenv("ERPNEXT_BASE_URL"); v != "" {
		cfg.ERPNext.BaseURL = v
	}
	if v := os.Getenv("ERPNEXT_API_KEY"); v != "" {
		cfg.ERPNext.APIKey = v
	}
	if v := os.Getenv("ERPNEXT_API_SECRET"); v != "" {
		cfg.ERPNext.APISecret = v
	}
	if v := os.Getenv("TEMPLATES_DIR"); v != "" {
		cfg.TemplatesDir = v
	}
	if v := os.Getenv("TRANSFORM_MODE"); v != "" {
		cfg.Transform.Mode = v
	}

	cfg.Transform = cfg.Transform.withDefaults()
	return &cfg, nil
}

// withDefaults fills missing settings with the documented fallbacks and logs
// each default taken so silent misconfiguration is visible in the audit trail.
func (s Settings) withDefaults() Settings {
	if s.Mode == "" {
		s.Mode = "auto"
	}
	if s.SupplierGroup == "" {
		s.SupplierGroup = DefaultSupplierGroup
		log.Warn().Str("setting", "supplier_group").Str("default", DefaultSupplierGroup).
			Msg("setting missing, using default")
	}
	if s.ItemGroup == "" {
		s.ItemGroup = DefaultItemGroup
		log.Warn().Str("setting", "item_group").Str("default", DefaultItemGroup).
			Msg("setting missing, using default")
	}
	if s.VATAccount == "" {
		s.VATAccount = DefaultVATAccount
		log.Warn().Str("setting", "vat_account").Str("default", DefaultVATAccount).
			Msg("setting missing, using default")
	}
	if s.DefaultCurrency == "" {
		s.DefaultCurrency = DefaultCurrency
	}
	if s.Tolerance <= 0 {
		s.Tolerance = DefaultTolerance
	}
	if s.DecimalShiftFactor <= 0 {
		s.DecimalShiftFactor = DefaultDecimalShiftFactor
	}
	return s
}

// DefaultSettings returns pipeline settings with all fallbacks applied,
// without logging. Used by tests and by retry paths that have no config file.
func DefaultSettings() Settings {
	return Settings{
		Mode:               "auto",
		SupplierGroup:      DefaultSupplierGroup,
		ItemGroup:          DefaultItemGroup,
		VATAccount:         DefaultVATAccount,
		DefaultCurrency:    DefaultCurrency,
		Tolerance:          DefaultTolerance,
		DecimalShiftFactor: DefaultDecimalShiftFactor,
	}
}
