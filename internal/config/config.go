// Package config loads relay-bank daemon settings from a YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/relay-bank/internal/led"
	"github.com/sweeney/relay-bank/internal/mqtt"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Duration is a time.Duration written as a Go duration string ("10ms", "15m").
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config holds every daemon setting.
type Config struct {
	Broker      string   `yaml:"broker"`
	TopicPrefix string   `yaml:"topic_prefix"`
	ClientID    string   `yaml:"client_id"`
	Poll        Duration `yaml:"poll"`
	Heartbeat   Duration `yaml:"heartbeat"` // 0 disables
	HTTP        string   `yaml:"http"`      // empty disables
	FaultLEDPin int      `yaml:"fault_led_pin"`
	InboxSize   int      `yaml:"inbox_size"`
	MDNS        bool     `yaml:"mdns"`
	MDNSName    string   `yaml:"mdns_name"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Broker:      "tcp://192.168.1.200:1883",
		TopicPrefix: mqtt.DefaultTopicPrefix,
		ClientID:    DefaultClientID(),
		Poll:        Duration(10 * time.Millisecond),
		Heartbeat:   Duration(15 * time.Minute),
		HTTP:        ":80",
		FaultLEDPin: led.DefaultPin,
		InboxSize:   16,
		MDNSName:    "relay-bank",
	}
}

// DefaultClientID returns a fresh MQTT client ID of the form relay-bank-xxxxxxxx.
func DefaultClientID() string {
	return "relay-bank-" + uuid.New().String()[:8]
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := Parse(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML into cfg. Keys absent from data keep their value.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// Validate checks that the settings can run a daemon.
func (c Config) Validate() error {
	var errs []error
	if c.Broker == "" {
		errs = append(errs, fmt.Errorf("%w: broker is required", ErrInvalid))
	}
	if c.TopicPrefix == "" {
		errs = append(errs, fmt.Errorf("%w: topic_prefix is required", ErrInvalid))
	}
	if strings.ContainsAny(c.TopicPrefix, "#+") {
		errs = append(errs, fmt.Errorf("%w: topic_prefix %q contains a wildcard", ErrInvalid, c.TopicPrefix))
	}
	if c.ClientID == "" {
		errs = append(errs, fmt.Errorf("%w: client_id is required", ErrInvalid))
	}
	if c.Poll <= 0 {
		errs = append(errs, fmt.Errorf("%w: poll must be positive, got %v", ErrInvalid, time.Duration(c.Poll)))
	}
	if c.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("%w: heartbeat must not be negative", ErrInvalid))
	}
	if c.InboxSize < 1 {
		errs = append(errs, fmt.Errorf("%w: inbox_size must be at least 1, got %d", ErrInvalid, c.InboxSize))
	}
	if c.MDNS && c.HTTP == "" {
		errs = append(errs, fmt.Errorf("%w: mdns needs the http server enabled", ErrInvalid))
	}
	return errors.Join(errs...)
}

// Marshal renders cfg as YAML.
func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
