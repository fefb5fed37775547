package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LedgerRetentionConfig controls how long feedback ledger rows live.
// Read from INTAKE_LEDGER_* variables by LedgerRetentionConfigFromEnv.
type LedgerRetentionConfig struct {
	CooldownHours  int  `mapstructure:"cooldown_hours"`  // 1-720
	RetentionDays  int  `mapstructure:"retention_days"`  // 1-365, at least the cool-down
	PruneBatchSize int  `mapstructure:"prune_batch_size"` // rows per delete, 100-10000
	PruneEnabled   bool `mapstructure:"prune_enabled"`
}

func DefaultLedgerRetentionConfig() LedgerRetentionConfig {
	return LedgerRetentionConfig{
		CooldownHours:  24,
		RetentionDays:  30,
		PruneBatchSize: 1000,
		PruneEnabled:   true,
	}
}

func (c LedgerRetentionConfig) Validate() error {
	switch {
	case c.CooldownHours < 1 || c.CooldownHours > 720:
		return fmt.Errorf("ledger cooldown_hours out of range 1-720 (got %d)", c.CooldownHours)
	case c.RetentionDays < 1 || c.RetentionDays > 365:
		return fmt.Errorf("ledger retention_days out of range 1-365 (got %d)", c.RetentionDays)
	case c.Retention() < c.Cooldown():
		return fmt.Errorf("ledger retention %v is shorter than the cool-down %v", c.Retention(), c.Cooldown())
	case c.PruneBatchSize < 100 || c.PruneBatchSize > 10000:
		return fmt.Errorf("ledger prune_batch_size out of range 100-10000 (got %d)", c.PruneBatchSize)
	}
	return nil
}

func (c LedgerRetentionConfig) String() string {
	return fmt.Sprintf("ledger retention: Cooldown: %dh, keep %dd, prune %t (batch %d)",
		c.CooldownHours, c.RetentionDays, c.PruneEnabled, c.PruneBatchSize)
}

func (c LedgerRetentionConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownHours) * time.Hour
}

func (c LedgerRetentionConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// LedgerRetentionConfigFromEnv overlays INTAKE_LEDGER_COOLDOWN_HOURS,
// INTAKE_LEDGER_RETENTION_DAYS, INTAKE_LEDGER_PRUNE_BATCH_SIZE and
// INTAKE_LEDGER_PRUNE_ENABLED on the defaults. Unparseable values are errors.
func LedgerRetentionConfigFromEnv() (LedgerRetentionConfig, error) {
	def := DefaultLedgerRetentionConfig()

	v := viper.New()
	v.SetEnvPrefix("INTAKE_LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("cooldown_hours", def.CooldownHours)
	v.SetDefault("retention_days", def.RetentionDays)
	v.SetDefault("prune_batch_size", def.PruneBatchSize)
	v.SetDefault("prune_enabled", def.PruneEnabled)

	var cfg LedgerRetentionConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return def, fmt.Errorf("failed to decode ledger retention from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return def, err
	}
	return cfg, nil
}
