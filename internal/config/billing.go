package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BillingConfig is the billing policy injected into the rate resolver and
// tax engine. A zero DefaultBillingRate is a misconfiguration signal for
// billable work, not a valid rate; the resolver surfaces it as such.
type BillingConfig struct {
	DefaultBillingRate  float64 `mapstructure:"defaultBillingRate"`
	DefaultCostRate     float64 `mapstructure:"defaultCostRate"`
	DefaultTaxRate      float64 `mapstructure:"defaultTaxRate"` // fraction, e.g. 0.0825
	BatchNumberTemplate string  `mapstructure:"batchNumberTemplate"`
	BatchNumberSequence bool    `mapstructure:"batchNumberSequence"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		DefaultBillingRate:  0,
		DefaultCostRate:     0,
		DefaultTaxRate:      0,
		BatchNumberTemplate: "INV-{YYYY}{MM}-{SEQ4}",
		BatchNumberSequence: true,
	}
}

// BillingConfigHolder hot-reloads billing policy from billing.yml.
type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/tempora")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TEMPORA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.defaultBillingRate", defaults.DefaultBillingRate)
	v.SetDefault("billing.defaultCostRate", defaults.DefaultCostRate)
	v.SetDefault("billing.defaultTaxRate", defaults.DefaultTaxRate)
	v.SetDefault("billing.batchNumberTemplate", defaults.BatchNumberTemplate)
	v.SetDefault("billing.batchNumberSequence", defaults.BatchNumberSequence)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-config] reload failed: %v", err)
			return
		}
		if err := validateBillingConfig(updated); err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticBillingConfigHolder wraps a fixed policy, used by tests to supply
// deterministic defaults.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func validateBillingConfig(cfg BillingConfig) error {
	if cfg.DefaultBillingRate < 0 || cfg.DefaultCostRate < 0 {
		return errors.New("billing default rates cannot be negative")
	}
	if cfg.DefaultTaxRate < 0 || cfg.DefaultTaxRate >= 1 {
		return errors.New("billing.defaultTaxRate must be a fraction in [0, 1)")
	}
	if strings.TrimSpace(cfg.BatchNumberTemplate) == "" {
		return errors.New("billing.batchNumberTemplate cannot be empty")
	}
	return nil
}
