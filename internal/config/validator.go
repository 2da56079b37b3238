package config

import (
	"fmt"
	"strings"

	"github.com/homewatch-io/homewatch/internal/rules"
	"github.com/homewatch-io/homewatch/internal/zone"
)

// Validate checks the configuration and fails closed: the caller must not
// install a config for which Validate returns an error.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Version == "" {
		errs = append(errs, "version is required")
	}
	if cfg.Engine.QueueDepth < 1 {
		errs = append(errs, fmt.Sprintf("engine.queue_depth %d must be positive", cfg.Engine.QueueDepth))
	}
	if cfg.Engine.AssessTimeoutMs < 1 {
		errs = append(errs, fmt.Sprintf("engine.assess_timeout_ms %d must be positive", cfg.Engine.AssessTimeoutMs))
	}
	if cfg.Engine.ChainCapacity < 2 {
		errs = append(errs, fmt.Sprintf("engine.chain_capacity %d must be at least 2", cfg.Engine.ChainCapacity))
	}
	if cfg.Admission.Capacity < 1 {
		errs = append(errs, fmt.Sprintf("admission.capacity %d must be positive", cfg.Admission.Capacity))
	}
	if cfg.Admission.RefillPerSec <= 0 {
		errs = append(errs, fmt.Sprintf("admission.refill_per_sec %v must be positive", cfg.Admission.RefillPerSec))
	}
	if err := cfg.Temporal.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("temporal: %v", err))
	}

	seen := make(map[string]struct{}, len(cfg.Zones))
	for i, z := range cfg.Zones {
		if z.Name == "" {
			errs = append(errs, fmt.Sprintf("zones[%d]: name is required", i))
			continue
		}
		if _, dup := seen[z.Name]; dup {
			errs = append(errs, fmt.Sprintf("zones[%d]: duplicate name %q", i, z.Name))
		}
		seen[z.Name] = struct{}{}
		switch z.Type {
		case zone.Entry, zone.Perimeter, zone.Interior, zone.Public:
		default:
			errs = append(errs, fmt.Sprintf("zone %s: unknown type %q", z.Name, z.Type))
		}
		if z.BaseRisk < 0 || z.BaseRisk > 1 {
			errs = append(errs, fmt.Sprintf("zone %s: base_risk %v outside [0,1]", z.Name, z.BaseRisk))
		}
	}
	for alias, target := range cfg.Aliases {
		if alias == "" || target == "" {
			errs = append(errs, "aliases: empty alias or target")
		}
	}

	if len(cfg.Rules) > 0 {
		if _, err := rules.NewEngine(cfg.Rules); err != nil {
			errs = append(errs, fmt.Sprintf("rules: %v", err))
		}
	}

	if cfg.Audit.Capacity < 1 {
		errs = append(errs, fmt.Sprintf("audit.capacity %d must be positive", cfg.Audit.Capacity))
	}
	for i, ext := range cfg.Extensions {
		if ext.Name == "" {
			errs = append(errs, fmt.Sprintf("extensions[%d]: name is required", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
