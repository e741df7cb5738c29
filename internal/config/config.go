// Package config loads gozmap's scan configuration using koanf/v2: YAML
// file, environment variable overrides, and defaults layering, the same
// three-layer shape the teacher's daemon config uses.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/netreach/gozmap/internal/state"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete gozmap scan configuration: everything needed
// to build a state.Config plus the supervisor-level wiring decisions
// (which probe/output module, which files) that spec.md treats as
// external collaborators rather than core data.
type Config struct {
	Source  SourceConfig  `koanf:"source"`
	Target  TargetConfig  `koanf:"target"`
	Shard   ShardConfig   `koanf:"shard"`
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`

	Senders            int           `koanf:"senders"`
	Rate               int           `koanf:"rate"`
	Bandwidth          uint64        `koanf:"bandwidth"`
	MaxTargets         uint32        `koanf:"max_targets"`
	MaxRuntime         time.Duration `koanf:"max_runtime"`
	CooldownSecs       time.Duration `koanf:"cooldown_secs"`
	NumRetries         int           `koanf:"num_retries"`
	PacketStreams      int           `koanf:"packet_streams"`
	FilterDuplicates   bool          `koanf:"filter_duplicates"`
	FilterUnsuccessful bool          `koanf:"filter_unsuccessful"`
	Dryrun             bool          `koanf:"dryrun"`
	SendIPPkts         bool          `koanf:"send_ip_pkts"`
	MaxResults         uint64        `koanf:"max_results"`
	UpdateInterval     uint64        `koanf:"update_interval"`
	RingSize           int           `koanf:"ring_size"`
	Interface          string        `koanf:"interface"`

	// SourceMAC and GatewayMAC are supplied directly rather than resolved
	// via ARP: gateway/interface MAC discovery heuristics are an external
	// collaborator this module does not implement.
	SourceMAC  string `koanf:"source_mac"`
	GatewayMAC string `koanf:"gateway_mac"`

	ProbeModule   string `koanf:"probe_module"`
	OutputModule  string `koanf:"output_module"`
	OutputFile    string `koanf:"output_file"`
	BlacklistFile string `koanf:"blacklist_file"`
	WhitelistFile string `koanf:"whitelist_file"`
}

// SourceConfig bounds the outgoing source address and port ranges.
type SourceConfig struct {
	IPFirst   string `koanf:"ip_first"`
	IPLast    string `koanf:"ip_last"`
	PortFirst uint16 `koanf:"port_first"`
	PortLast  uint16 `koanf:"port_last"`
}

// TargetConfig bounds the target address space and destination port.
type TargetConfig struct {
	IPFirst string `koanf:"ip_first"`
	IPLast  string `koanf:"ip_last"`
	Port    uint16 `koanf:"port"`
}

// ShardConfig partitions the target space across cooperating processes.
type ShardConfig struct {
	Count uint32 `koanf:"count"`
	Index uint32 `koanf:"index"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
	Path string `koanf:"path"`
}

// SourceIPRange parses Source.IPFirst/IPLast as netip.Addr.
func (c *Config) SourceIPRange() (first, last netip.Addr, err error) {
	return parseRange(c.Source.IPFirst, c.Source.IPLast)
}

// TargetIPRange parses Target.IPFirst/IPLast as netip.Addr.
func (c *Config) TargetIPRange() (first, last netip.Addr, err error) {
	return parseRange(c.Target.IPFirst, c.Target.IPLast)
}

func parseRange(firstStr, lastStr string) (first, last netip.Addr, err error) {
	first, err = netip.ParseAddr(firstStr)
	if err != nil {
		return netip.Addr{}, netip.Addr{}, fmt.Errorf("parse %q: %w", firstStr, err)
	}
	last, err = netip.ParseAddr(lastStr)
	if err != nil {
		return netip.Addr{}, netip.Addr{}, fmt.Errorf("parse %q: %w", lastStr, err)
	}
	return first, last, nil
}

// ToState builds the immutable state.Config every send/receive thread
// shares, per spec.md section 3.
func (c *Config) ToState() (*state.Config, error) {
	srcFirst, srcLast, err := c.SourceIPRange()
	if err != nil {
		return nil, fmt.Errorf("source ip range: %w", err)
	}
	return &state.Config{
		SourceIPFirst:      srcFirst,
		SourceIPLast:       srcLast,
		SourcePortFirst:    c.Source.PortFirst,
		SourcePortLast:     c.Source.PortLast,
		TargetPort:         c.Target.Port,
		ShardCount:         c.Shard.Count,
		ShardIndex:         c.Shard.Index,
		Senders:            c.Senders,
		Rate:               c.Rate,
		Bandwidth:          c.Bandwidth,
		MaxTargets:         c.MaxTargets,
		MaxRuntime:         c.MaxRuntime,
		CooldownSecs:       c.CooldownSecs,
		NumRetries:         c.NumRetries,
		PacketStreams:      c.PacketStreams,
		FilterDuplicates:   c.FilterDuplicates,
		FilterUnsuccessful: c.FilterUnsuccessful,
		Dryrun:             c.Dryrun,
		SendIPPkts:         c.SendIPPkts,
		MaxResults:         c.MaxResults,
		UpdateInterval:     c.UpdateInterval,
		Interface:          c.Interface,
		RingSize:           c.RingSize,
	}, nil
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults: a
// single sender, unbounded target space, no pacing, and the probe/output
// modules this module ships concretely (spec.md section 4.5/4.6).
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			PortFirst: 32768,
			PortLast:  61000,
		},
		Target: TargetConfig{
			IPFirst: "0.0.0.0",
			IPLast:  "255.255.255.255",
			Port:    80,
		},
		Shard: ShardConfig{
			Count: 1,
			Index: 0,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Senders:        1,
		PacketStreams:  1,
		CooldownSecs:   3 * time.Second,
		UpdateInterval: 1000,
		RingSize:       1_000_000,
		ProbeModule:    "tcp_syn",
		OutputModule:   "csv",
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for gozmap configuration.
// Variables are named GOZMAP_<section>_<key>, e.g., GOZMAP_SHARD_COUNT.
const envPrefix = "GOZMAP_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (GOZMAP_ prefix), and merges on top of DefaultConfig().
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms GOZMAP_SHARD_COUNT -> shard.count.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", ".")
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"source.ip_first":     defaults.Source.IPFirst,
		"source.ip_last":      defaults.Source.IPLast,
		"source.port_first":   defaults.Source.PortFirst,
		"source.port_last":    defaults.Source.PortLast,
		"target.ip_first":     defaults.Target.IPFirst,
		"target.ip_last":      defaults.Target.IPLast,
		"target.port":         defaults.Target.Port,
		"shard.count":         defaults.Shard.Count,
		"shard.index":         defaults.Shard.Index,
		"log.level":           defaults.Log.Level,
		"log.format":          defaults.Log.Format,
		"metrics.addr":        defaults.Metrics.Addr,
		"metrics.path":        defaults.Metrics.Path,
		"senders":             defaults.Senders,
		"rate":                defaults.Rate,
		"bandwidth":           defaults.Bandwidth,
		"max_targets":         defaults.MaxTargets,
		"max_runtime":         defaults.MaxRuntime.String(),
		"cooldown_secs":       defaults.CooldownSecs.String(),
		"num_retries":         defaults.NumRetries,
		"packet_streams":      defaults.PacketStreams,
		"filter_duplicates":   defaults.FilterDuplicates,
		"filter_unsuccessful": defaults.FilterUnsuccessful,
		"dryrun":              defaults.Dryrun,
		"send_ip_pkts":        defaults.SendIPPkts,
		"max_results":         defaults.MaxResults,
		"update_interval":     defaults.UpdateInterval,
		"ring_size":           defaults.RingSize,
		"interface":           defaults.Interface,
		"source_mac":          defaults.SourceMAC,
		"gateway_mac":         defaults.GatewayMAC,
		"probe_module":        defaults.ProbeModule,
		"output_module":       defaults.OutputModule,
		"output_file":         defaults.OutputFile,
		"blacklist_file":      defaults.BlacklistFile,
		"whitelist_file":      defaults.WhitelistFile,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

var (
	ErrInvalidSourceRange = errors.New("source.ip_first/ip_last must be valid addresses")
	ErrInvalidTargetRange = errors.New("target.ip_first/ip_last must be valid addresses")
	ErrInvalidPortRange   = errors.New("source.port_first must be <= source.port_last")
	ErrInvalidSenders     = errors.New("senders must be >= 1")
	ErrInvalidStreams     = errors.New("packet_streams must be >= 1")
	ErrInvalidShardIndex  = errors.New("shard.index must be < shard.count")
	ErrUnknownProbe       = errors.New("probe_module is unrecognized")
	ErrUnknownOutput      = errors.New("output_module is unrecognized")
)

// KnownProbeModules lists the probe module names this build ships.
var KnownProbeModules = map[string]bool{"tcp_syn": true}

// KnownOutputModules lists the output module names this build ships.
var KnownOutputModules = map[string]bool{"csv": true, "stdout": true}

// Validate checks the configuration for logical errors. Returns the first
// validation error encountered.
func Validate(cfg *Config) error {
	if _, _, err := cfg.SourceIPRange(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSourceRange, err)
	}
	if _, _, err := cfg.TargetIPRange(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTargetRange, err)
	}
	if cfg.Source.PortFirst > cfg.Source.PortLast {
		return ErrInvalidPortRange
	}
	if cfg.Senders < 1 {
		return ErrInvalidSenders
	}
	if cfg.PacketStreams < 1 {
		return ErrInvalidStreams
	}
	if cfg.Shard.Count > 0 && cfg.Shard.Index >= cfg.Shard.Count {
		return ErrInvalidShardIndex
	}
	if !KnownProbeModules[cfg.ProbeModule] {
		return fmt.Errorf("%q: %w", cfg.ProbeModule, ErrUnknownProbe)
	}
	if !KnownOutputModules[cfg.OutputModule] {
		return fmt.Errorf("%q: %w", cfg.OutputModule, ErrUnknownOutput)
	}
	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
