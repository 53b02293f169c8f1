// Package status provides a thread-safe status tracker for the relay-bank daemon.
// It is written by the run loop and read by HTTP handlers and MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/relay-bank/internal/relay"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	HeartbeatMs int64
	Broker      string
	TopicPrefix string
	HTTPAddr    string
	FaultLEDPin int
}

// ChannelView is the displayable state of one channel.
type ChannelView struct {
	On          bool
	DurationMs  uint32
	RemainingMs uint32
}

// BankView is the read side of a relay bank.
type BankView interface {
	Channels() [relay.NumChannels]relay.Channel
	Mask() uint16
	InSync() bool
	Fault() error
	Counts() relay.Counts
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Channels      [relay.NumChannels]ChannelView
	Mask          uint16
	InSync        bool
	Fault         string
	Counts        relay.Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Faulted reports whether the output is in a fault state.
func (s Snapshot) Faulted() bool {
	return s.Fault != ""
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			InSync:    true,
			Config:    cfg,
		},
	}
}

// Update copies the bank state, with remaining times evaluated at now.
// Called from runLoop after every command and tick.
func (t *Tracker) Update(b BankView, now relay.Millis) {
	var views [relay.NumChannels]ChannelView
	for i, ch := range b.Channels() {
		if !ch.On {
			continue
		}
		views[i] = ChannelView{
			On:          true,
			DurationMs:  uint32(ch.Duration),
			RemainingMs: uint32(ch.Remaining(now)),
		}
	}
	fault := ""
	if err := b.Fault(); err != nil {
		fault = err.Error()
	}

	t.mu.Lock()
	t.snap.Channels = views
	t.snap.Mask = b.Mask()
	t.snap.InSync = b.InSync()
	t.snap.Fault = fault
	t.snap.Counts = b.Counts()
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
