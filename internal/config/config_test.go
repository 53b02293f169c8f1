package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "relays/bank", cfg.TopicPrefix)
	assert.Equal(t, 10*time.Millisecond, time.Duration(cfg.Poll))
	assert.Equal(t, 21, cfg.FaultLEDPin)
}

func TestDefaultClientID(t *testing.T) {
	id := DefaultClientID()
	assert.True(t, strings.HasPrefix(id, "relay-bank-"), id)
	assert.Len(t, id, len("relay-bank-")+8)
	assert.NotEqual(t, id, DefaultClientID(), "each call is unique")
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Broker, cfg.Broker)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay-bank.yaml")
	data := `
broker: tcp://10.0.0.2:1883
topic_prefix: garden/valves
poll: 5ms
heartbeat: 1m
fault_led_pin: -1
mdns: true
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tcp://10.0.0.2:1883", cfg.Broker)
	assert.Equal(t, "garden/valves", cfg.TopicPrefix)
	assert.Equal(t, 5*time.Millisecond, time.Duration(cfg.Poll))
	assert.Equal(t, time.Minute, time.Duration(cfg.Heartbeat))
	assert.Equal(t, -1, cfg.FaultLEDPin)
	assert.True(t, cfg.MDNS)

	// Untouched keys keep their defaults.
	assert.Equal(t, ":80", cfg.HTTP)
	assert.Equal(t, 16, cfg.InboxSize)
	assert.NotEmpty(t, cfg.ClientID)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestParseEmptyDocument(t *testing.T) {
	cfg := Default()
	require.NoError(t, Parse(nil, &cfg))
	assert.Equal(t, Default().Broker, cfg.Broker)
}

func TestParseRejectsUnknownKey(t *testing.T) {
	cfg := Default()
	err := Parse([]byte("brokr: tcp://x:1883\n"), &cfg)
	assert.Error(t, err)
}

func TestParseRejectsBadDuration(t *testing.T) {
	cfg := Default()
	err := Parse([]byte("poll: soon\n"), &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no broker", func(c *Config) { c.Broker = "" }},
		{"no prefix", func(c *Config) { c.TopicPrefix = "" }},
		{"wildcard prefix", func(c *Config) { c.TopicPrefix = "relays/#" }},
		{"no client id", func(c *Config) { c.ClientID = "" }},
		{"zero poll", func(c *Config) { c.Poll = 0 }},
		{"negative heartbeat", func(c *Config) { c.Heartbeat = Duration(-time.Second) }},
		{"empty inbox", func(c *Config) { c.InboxSize = 0 }},
		{"mdns without http", func(c *Config) { c.MDNS = true; c.HTTP = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestValidateAllowsDisabledHeartbeatAndLED(t *testing.T) {
	cfg := Default()
	cfg.Heartbeat = 0
	cfg.FaultLEDPin = -1
	cfg.HTTP = ""
	assert.NoError(t, cfg.Validate())
}

func TestMarshalWritesDurationStrings(t *testing.T) {
	cfg := Default()
	cfg.ClientID = "relay-bank-test"
	out, err := Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(out), "poll: 10ms")
	assert.Contains(t, string(out), "heartbeat: 15m0s")

	var back Config
	require.NoError(t, Parse(out, &back))
	assert.Equal(t, cfg, back)
}
