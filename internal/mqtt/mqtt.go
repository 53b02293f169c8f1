// Package mqtt bridges relay commands and events to an MQTT broker,
// with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/sweeney/relay-bank/internal/relay"
	"github.com/sweeney/relay-bank/internal/status"
)

// DefaultTopicPrefix is the topic prefix used when none is configured.
const DefaultTopicPrefix = "relays/bank"

// ErrQueueFull is returned when an outgoing message is dropped because the
// publish queue is full.
var ErrQueueFull = errors.New("mqtt: publish queue full")

// Topics are the MQTT topics used by one relay bank.
type Topics struct {
	Command string // binary command payloads (in)
	Events  string // relay transitions (out)
	System  string // lifecycle events (out)
}

// TopicsFor derives the topic set from a prefix.
func TopicsFor(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{
		Command: prefix + "/command",
		Events:  prefix + "/events",
		System:  prefix + "/system",
	}
}

// Client receives commands from and publishes events to the broker.
type Client interface {
	// Commands delivers raw command payloads in arrival order.
	Commands() <-chan []byte

	// Publish sends a relay transition.
	// Returns error if publishing fails (should not crash the process).
	Publish(event Event) error

	// PublishSystem sends a system lifecycle event.
	PublishSystem(event SystemEvent) error

	// IsConnected reports whether the broker connection is up.
	IsConnected() bool

	// Close flushes pending messages and disconnects.
	Close() error
}

// Event is a relay transition stamped with wall-clock time for publishing.
type Event struct {
	Timestamp  time.Time
	Transition relay.Transition
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload for a relay transition.
type Payload struct {
	Relay RelayPayload `json:"relay"`
}

// RelayPayload contains the transition details.
type RelayPayload struct {
	Timestamp  string `json:"timestamp"`
	Event      string `json:"event"`
	Channel    int    `json:"channel"`
	DurationMs uint32 `json:"duration_ms,omitempty"`
	Mask       string `json:"mask"`
}

// FormatPayload creates the JSON payload for a relay transition.
func FormatPayload(event Event) ([]byte, error) {
	tr := event.Transition
	payload := Payload{
		Relay: RelayPayload{
			Timestamp:  event.Timestamp.UTC().Format(time.RFC3339),
			Event:      string(tr.Type),
			Channel:    tr.Channel,
			DurationMs: uint32(tr.Duration),
			Mask:       status.FormatMask(tr.Mask),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// offer hands payload to the inbox without blocking. Returns false if the
// inbox is full and the payload was dropped.
func offer(inbox chan<- []byte, payload []byte) bool {
	select {
	case inbox <- payload:
		return true
	default:
		return false
	}
}
