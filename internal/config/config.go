// Package config handles configuration loading using viper.
package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"firestige.xyz/ferry/internal/codec"
	"firestige.xyz/ferry/internal/core"
	"firestige.xyz/ferry/internal/netif"
)

// Config represents the whole configuration.
// Maps to the `ferry:` root key in YAML.
type Config struct {
	Transfer TransferConfig `mapstructure:"transfer"`
	Fault    FaultConfig    `mapstructure:"fault"`
	Network  NetworkConfig  `mapstructure:"network"`
	Store    StoreConfig    `mapstructure:"store"`
	Trace    TraceConfig    `mapstructure:"trace"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

// ─── Transfer ───

// TransferConfig addresses both endpoints.
type TransferConfig struct {
	Host            string `mapstructure:"host"`             // receiver host the sender dials
	ListenPort      int    `mapstructure:"listen_port"`      // receiver listen port
	DestinationPort int    `mapstructure:"destination_port"` // port the sender dials and stamps into units
	SourcePort      int    `mapstructure:"source_port"`      // port stamped into units as their origin
	MaxSegmentSize  int    `mapstructure:"max_segment_size"` // payload bytes per unit
	Path            string `mapstructure:"path"`             // websocket upgrade path
	MaxSessions     int    `mapstructure:"max_sessions"`     // concurrent receiver connections, 0 = unlimited
}

// URL returns the websocket URL the sender dials.
func (t TransferConfig) URL() string {
	u := url.URL{
		Scheme: "ws",
		Host:   t.Host + ":" + strconv.Itoa(t.DestinationPort),
		Path:   t.Path,
	}
	return u.String()
}

// ListenAddr returns the receiver's listen address.
func (t TransferConfig) ListenAddr() string {
	return ":" + strconv.Itoa(t.ListenPort)
}

// ─── Fault injection ───

// FaultConfig controls the simulated channel. A ratio n fires with
// probability 1/n; n <= 1 never fires.
type FaultConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	LossOneIn    int    `mapstructure:"loss_one_in"`
	CorruptOneIn int    `mapstructure:"corrupt_one_in"`
	Seed         uint64 `mapstructure:"seed"` // 0 = seeded from the clock
}

// ─── Network ───

// NetworkConfig overrides interface discovery.
type NetworkConfig struct {
	Interface    string `mapstructure:"interface"`     // restrict discovery to this interface
	HardwareAddr string `mapstructure:"hardware_addr"` // fixed address, skips discovery
	IPv4         string `mapstructure:"ipv4"`          // fixed address, skips discovery
}

// Resolver returns a static resolver when an address is pinned, otherwise
// one that inspects the host.
func (n NetworkConfig) Resolver() netif.Resolver {
	if n.HardwareAddr != "" || n.IPv4 != "" {
		return netif.Static{Name: n.Interface, HardwareAddr: n.HardwareAddr, IPv4: n.IPv4}
	}
	return netif.System{Name: n.Interface}
}

// ─── Store ───

// StoreConfig places the reassembled output.
type StoreConfig struct {
	Dir  string `mapstructure:"dir"`
	File string `mapstructure:"file"`
}

// ─── Trace ───

// TraceConfig controls the pcap trace of transmitted units.
type TraceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level      string           `mapstructure:"level"`  // trace / debug / info / warn / error
	Format     string           `mapstructure:"format"` // json / text
	Pattern    string           `mapstructure:"pattern"`
	TimeFormat string           `mapstructure:"time_format"`
	File       FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `ferry: ...`.
type configRoot struct {
	Ferry Config `mapstructure:"ferry"`
}

// Load loads configuration from path. An empty path yields defaults plus
// environment overrides (e.g. FERRY_TRANSFER_LISTEN_PORT).
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: failed to read config file: %v", core.ErrConfigInvalid, err)
		}
	}

	// The `ferry.` key prefix maps to `FERRY_` through the replacer.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %v", core.ErrConfigInvalid, err)
	}
	cfg := root.Ferry

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(err)
	}
	return cfg
}

// setDefaults sets default values. All keys use the "ferry." prefix.
// Every key is registered so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("ferry.transfer.host", "localhost")
	v.SetDefault("ferry.transfer.listen_port", 8080)
	v.SetDefault("ferry.transfer.destination_port", 8080)
	v.SetDefault("ferry.transfer.source_port", 3000)
	v.SetDefault("ferry.transfer.max_segment_size", 1500)
	v.SetDefault("ferry.transfer.path", "/ws")
	v.SetDefault("ferry.transfer.max_sessions", 16)

	v.SetDefault("ferry.fault.enabled", true)
	v.SetDefault("ferry.fault.loss_one_in", 3)
	v.SetDefault("ferry.fault.corrupt_one_in", 10)
	v.SetDefault("ferry.fault.seed", 0)

	v.SetDefault("ferry.network.interface", "")
	v.SetDefault("ferry.network.hardware_addr", "")
	v.SetDefault("ferry.network.ipv4", "")

	v.SetDefault("ferry.store.dir", "store")
	v.SetDefault("ferry.store.file", "file.txt")

	v.SetDefault("ferry.trace.enabled", false)
	v.SetDefault("ferry.trace.path", "trace.pcap")

	v.SetDefault("ferry.metrics.enabled", false)
	v.SetDefault("ferry.metrics.listen", ":9091")
	v.SetDefault("ferry.metrics.path", "/metrics")

	v.SetDefault("ferry.log.level", "info")
	v.SetDefault("ferry.log.format", "text")
	v.SetDefault("ferry.log.pattern", "%time [%level] %msg %field%n")
	v.SetDefault("ferry.log.time_format", "2006-01-02 15:04:05.000")
	v.SetDefault("ferry.log.file.enabled", false)
	v.SetDefault("ferry.log.file.path", "ferry.log")
	v.SetDefault("ferry.log.file.rotation.max_size_mb", 100)
	v.SetDefault("ferry.log.file.rotation.max_age_days", 30)
	v.SetDefault("ferry.log.file.rotation.max_backups", 5)
	v.SetDefault("ferry.log.file.rotation.compress", true)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{core.ErrConfigInvalid}, args...)...)
}

func checkPort(name string, port int) error {
	if port < 1 || port > 65535 {
		return invalid("%s %d out of range 1..65535", name, port)
	}
	return nil
}

// ValidateAndApplyDefaults validates configuration and fills runtime defaults.
// Every failure wraps core.ErrConfigInvalid.
func (cfg *Config) ValidateAndApplyDefaults() error {
	// ── Transfer ──
	t := &cfg.Transfer
	if err := checkPort("transfer.listen_port", t.ListenPort); err != nil {
		return err
	}
	if err := checkPort("transfer.destination_port", t.DestinationPort); err != nil {
		return err
	}
	if err := checkPort("transfer.source_port", t.SourcePort); err != nil {
		return err
	}
	if t.MaxSegmentSize <= 0 {
		return invalid("transfer.max_segment_size must be positive, got %d", t.MaxSegmentSize)
	}
	if t.MaxSessions < 0 {
		return invalid("transfer.max_sessions must not be negative, got %d", t.MaxSessions)
	}
	if t.Host == "" {
		t.Host = "localhost"
	}
	if !strings.HasPrefix(t.Path, "/") {
		t.Path = "/" + t.Path
	}

	// ── Fault ──
	if cfg.Fault.LossOneIn < 0 {
		return invalid("fault.loss_one_in must not be negative, got %d", cfg.Fault.LossOneIn)
	}
	if cfg.Fault.CorruptOneIn < 0 {
		return invalid("fault.corrupt_one_in must not be negative, got %d", cfg.Fault.CorruptOneIn)
	}

	// ── Network ──
	if cfg.Network.HardwareAddr != "" {
		if _, err := codec.MACToBytes(cfg.Network.HardwareAddr); err != nil {
			return invalid("network.hardware_addr: %v", err)
		}
	}
	if cfg.Network.IPv4 != "" {
		if _, err := codec.IPv4ToBytes(cfg.Network.IPv4); err != nil {
			return invalid("network.ipv4: %v", err)
		}
	}

	// ── Store ──
	if cfg.Store.Dir == "" {
		cfg.Store.Dir = "."
	}
	if cfg.Store.File == "" {
		return invalid("store.file is required")
	}

	// ── Trace ──
	if cfg.Trace.Enabled && cfg.Trace.Path == "" {
		return invalid("trace.path is required when trace.enabled=true")
	}

	// ── Metrics ──
	if cfg.Metrics.Enabled {
		if cfg.Metrics.Listen == "" {
			return invalid("metrics.listen is required when metrics.enabled=true")
		}
		if cfg.Metrics.Path == "" {
			cfg.Metrics.Path = "/metrics"
		}
	}

	// ── Log ──
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return invalid("log level %q (must be trace/debug/info/warn/error)", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return invalid("log format %q (must be json/text)", cfg.Log.Format)
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Path == "" {
		return invalid("log.file.path is required when log.file.enabled=true")
	}

	return nil
}
