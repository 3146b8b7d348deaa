package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr = "0.0.0.0:9090"
bridge_path = "/ws"
framing = "script"
event_name = "hostbridge"
max_sessions = 2
log_level = "debug"
log_format = "text"
mcp = true
advertise = true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
	assert.Equal(t, "/ws", cfg.BridgePath)
	assert.Equal(t, FramingScript, cfg.Framing)
	assert.Equal(t, "hostbridge", cfg.EventName)
	assert.Equal(t, 2, cfg.MaxSessions)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, FormatText, cfg.LogFormat)
	assert.True(t, cfg.MCP)
	assert.True(t, cfg.Advertise)

	port, err := cfg.Port()
	require.NoError(t, err)
	assert.Equal(t, 9090, port)
}

func TestParseKeepsUndefinedDefaults(t *testing.T) {
	cfg, err := Parse(`addr = ":7000"`)
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, def.BridgePath, cfg.BridgePath)
	assert.Equal(t, def.MaxSessions, cfg.MaxSessions)
	assert.False(t, cfg.MCP)
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown key":       `port = 1`,
		"bad framing":       `framing = "binary"`,
		"zero sessions":     `max_sessions = 0`,
		"bad level":         `log_level = "loud"`,
		"bad format":        `log_format = "xml"`,
		"relative path":     `bridge_path = "bridge"`,
		"empty addr":        `addr = " "`,
		"addr without port": `addr = "localhost"`,
		"named port":        `addr = "localhost:http"`,
		"malformed toml":    `addr = `,
		"empty event name":  `event_name = ""`,
	}

	for name, data := range cases {
		_, err := Parse(data)
		assert.Error(t, err, name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestBridgeFraming(t *testing.T) {
	cfg := Default()
	assert.Equal(t, `{"topic":"t","data":{}}`, cfg.BridgeFraming()([]byte(`{"topic":"t","data":{}}`)))

	cfg.Framing = FramingScript
	cfg.EventName = "custom"
	assert.Contains(t, cfg.BridgeFraming()([]byte(`{}`)), `new CustomEvent("custom"`)
}
