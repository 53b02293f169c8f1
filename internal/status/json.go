package status

import (
	"encoding/json"
	"fmt"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Mask          string        `json:"mask"`
	InSync        bool          `json:"in_sync"`
	Fault         string        `json:"fault,omitempty"`
	Channels      []ChannelJSON `json:"channels"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Counts        CountsJSON    `json:"event_counts"`
	Network       *NetworkJSON  `json:"network,omitempty"`
	Config        ConfigJSON    `json:"config"`
}

// ChannelJSON is the JSON representation of one channel.
type ChannelJSON struct {
	Channel     int    `json:"channel"`
	State       string `json:"state"`
	DurationMs  uint32 `json:"duration_ms,omitempty"`
	RemainingMs uint32 `json:"remaining_ms,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of engine counters.
type CountsJSON struct {
	On            int `json:"on"`
	Rearm         int `json:"rearm"`
	Off           int `json:"off"`
	WriteFailures int `json:"write_failures"`
	Rejected      int `json:"rejected"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	TopicPrefix string `json:"topic_prefix"`
	HTTPAddr    string `json:"http_addr"`
	FaultLEDPin int    `json:"fault_led_pin"`
}

// FormatMask renders a bank mask as a fixed-width hex string.
func FormatMask(mask uint16) string {
	return fmt.Sprintf("0x%04X", mask)
}

// StateString renders a channel state.
func StateString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// BuildChannels returns the JSON view of every channel, channel 0 first.
func BuildChannels(snap Snapshot) []ChannelJSON {
	out := make([]ChannelJSON, len(snap.Channels))
	for i, ch := range snap.Channels {
		out[i] = ChannelJSON{
			Channel:     i,
			State:       StateString(ch.On),
			DurationMs:  ch.DurationMs,
			RemainingMs: ch.RemainingMs,
		}
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Mask:          FormatMask(snap.Mask),
		InSync:        snap.InSync,
		Fault:         snap.Fault,
		Channels:      BuildChannels(snap),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			On:            snap.Counts.On,
			Rearm:         snap.Counts.Rearm,
			Off:           snap.Counts.Off,
			WriteFailures: snap.Counts.WriteFailures,
			Rejected:      snap.Counts.Rejected,
		},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			TopicPrefix: snap.Config.TopicPrefix,
			HTTPAddr:    snap.Config.HTTPAddr,
			FaultLEDPin: snap.Config.FaultLEDPin,
		},
	}

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
