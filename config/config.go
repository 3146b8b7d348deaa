// Package config loads bridgehost settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/mbocsi/nativebridge/bridge"
)

const (
	FramingScript = "script"
	FramingRaw    = "raw"

	FormatJSON = "json"
	FormatText = "text"
)

type Config struct {
	Addr        string
	BridgePath  string
	EventName   string
	Framing     string
	MaxSessions int
	LogLevel    slog.Level
	LogFormat   string
	MCP         bool
	Advertise   bool
}

type fileConfig struct {
	Addr        string `toml:"addr"`
	BridgePath  string `toml:"bridge_path"`
	EventName   string `toml:"event_name"`
	Framing     string `toml:"framing"`
	MaxSessions int    `toml:"max_sessions"`
	LogLevel    string `toml:"log_level"`
	LogFormat   string `toml:"log_format"`
	MCP         bool   `toml:"mcp"`
	Advertise   bool   `toml:"advertise"`
}

func Default() Config {
	return Config{
		Addr:        "127.0.0.1:8080",
		BridgePath:  "/bridge",
		EventName:   bridge.DefaultEventName,
		Framing:     FramingRaw,
		MaxSessions: 16,
		LogLevel:    slog.LevelInfo,
		LogFormat:   FormatJSON,
	}
}

// Load reads path and overlays the keys it defines onto Default().
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load bridge config: %w", err)
	}
	return apply(Default(), raw, meta)
}

// Parse is Load for in-memory TOML.
func Parse(data string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse bridge config: %w", err)
	}
	return apply(Default(), raw, meta)
}

func apply(cfg Config, raw fileConfig, meta toml.MetaData) (Config, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}

	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("bridge_path") {
		cfg.BridgePath = strings.TrimSpace(raw.BridgePath)
	}
	if meta.IsDefined("event_name") {
		cfg.EventName = strings.TrimSpace(raw.EventName)
	}
	if meta.IsDefined("framing") {
		cfg.Framing = strings.ToLower(strings.TrimSpace(raw.Framing))
	}
	if meta.IsDefined("max_sessions") {
		cfg.MaxSessions = raw.MaxSessions
	}
	if meta.IsDefined("log_level") {
		if err := cfg.LogLevel.UnmarshalText([]byte(strings.TrimSpace(raw.LogLevel))); err != nil {
			return Config{}, fmt.Errorf("parse log_level: %w", err)
		}
	}
	if meta.IsDefined("log_format") {
		cfg.LogFormat = strings.ToLower(strings.TrimSpace(raw.LogFormat))
	}
	if meta.IsDefined("mcp") {
		cfg.MCP = raw.MCP
	}
	if meta.IsDefined("advertise") {
		cfg.Advertise = raw.Advertise
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if _, err := c.Port(); err != nil {
		errs = append(errs, err)
	}
	if !strings.HasPrefix(c.BridgePath, "/") {
		errs = append(errs, fmt.Errorf("bridge_path %q must start with /", c.BridgePath))
	}
	if c.EventName == "" {
		errs = append(errs, errors.New("event_name is required"))
	}
	if c.Framing != FramingScript && c.Framing != FramingRaw {
		errs = append(errs, fmt.Errorf("framing %q must be %q or %q", c.Framing, FramingScript, FramingRaw))
	}
	if c.MaxSessions <= 0 {
		errs = append(errs, fmt.Errorf("max_sessions must be positive, got %d", c.MaxSessions))
	}
	if c.LogFormat != FormatJSON && c.LogFormat != FormatText {
		errs = append(errs, fmt.Errorf("log_format %q must be %q or %q", c.LogFormat, FormatJSON, FormatText))
	}
	return errors.Join(errs...)
}

// Port is the numeric port of Addr.
func (c Config) Port() (int, error) {
	_, port, err := net.SplitHostPort(c.Addr)
	if err != nil {
		return 0, fmt.Errorf("addr %q: %w", c.Addr, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return 0, fmt.Errorf("addr %q: invalid port", c.Addr)
	}
	return n, nil
}

// BridgeFraming returns the outbound framing selected by the config.
func (c Config) BridgeFraming() bridge.Framing {
	if c.Framing == FramingScript {
		return bridge.EventScript(c.EventName)
	}
	return bridge.RawEnvelope
}
