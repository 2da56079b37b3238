// Package config defines the engine's YAML configuration, its loader with
// hot-reload, and fail-closed validation.
package config

import (
	"github.com/homewatch-io/homewatch/internal/dampening"
	"github.com/homewatch-io/homewatch/internal/rules"
	"github.com/homewatch-io/homewatch/internal/zone"
)

// Config is the top-level YAML structure.
type Config struct {
	Version    string            `yaml:"version"`
	Engine     EngineConf        `yaml:"engine"`
	Admission  AdmissionConf     `yaml:"admission"`
	Temporal   dampening.Config  `yaml:"temporal"`
	Zones      []zone.Zone       `yaml:"zones"`
	Aliases    map[string]string `yaml:"aliases"`
	Rules      []rules.Def       `yaml:"rules"`
	Audit      AuditConf         `yaml:"audit"`
	Store      StoreConf         `yaml:"store"`
	Extensions []ExtensionConf   `yaml:"extensions"`
	Server     ServerConf        `yaml:"server"`
}

// EngineConf holds tunable pipeline settings.
type EngineConf struct {
	QueueDepth      int `yaml:"queue_depth"`
	AssessTimeoutMs int `yaml:"assess_timeout_ms"`
	ChainCapacity   int `yaml:"chain_capacity"`
}

// AdmissionConf configures the token bucket.
type AdmissionConf struct {
	Capacity     int     `yaml:"capacity"`
	RefillPerSec float64 `yaml:"refill_per_sec"`
}

// AuditConf bounds the audit ring buffer.
type AuditConf struct {
	Capacity int `yaml:"capacity"`
}

// StoreConf points the optional sqlite store at its file. An empty path
// disables persistence.
type StoreConf struct {
	Path string `yaml:"path"`
}

// ExtensionConf names an optional post-processor and carries its settings.
type ExtensionConf struct {
	Name     string                 `yaml:"name"`
	Enabled  bool                   `yaml:"enabled"`
	Settings map[string]interface{} `yaml:"settings"`
}

// ServerConf configures the HTTP surface.
type ServerConf struct {
	Listen string `yaml:"listen"`
}
