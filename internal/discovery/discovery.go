// Package discovery advertises the relay-bank status page over mDNS.
package discovery

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"

	"github.com/enbility/zeroconf/v3"

	"github.com/sweeney/relay-bank/internal/relay"
)

const (
	// ServiceType is the DNS-SD service advertised.
	ServiceType = "_http._tcp"
	// Domain is the mDNS domain.
	Domain = "local."
	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63
)

// ErrNoPort is returned when the HTTP address carries no usable port.
var ErrNoPort = errors.New("discovery: no port in address")

// Info describes one advertised status page.
type Info struct {
	Instance    string
	Port        int
	TopicPrefix string
}

// TXTRecords returns the static TXT key/value pairs for info.
func TXTRecords(info Info) map[string]string {
	txt := map[string]string{
		"path":     "/",
		"channels": strconv.Itoa(relay.NumChannels),
	}
	if info.TopicPrefix != "" {
		txt["topic"] = info.TopicPrefix
	}
	return txt
}

// TXTRecordsToStrings converts TXT records to "key=value" strings, sorted by key.
func TXTRecordsToStrings(records map[string]string) []string {
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+records[k])
	}
	return out
}

// InstanceName clamps name to a valid DNS-SD instance label.
func InstanceName(name string) string {
	if name == "" {
		name = "relay-bank"
	}
	if len(name) > MaxInstanceNameLen {
		name = name[:MaxInstanceNameLen]
	}
	return name
}

// PortFromAddr extracts the TCP port from a listen address such as ":80".
func PortFromAddr(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrNoPort, addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("%w: %q", ErrNoPort, addr)
	}
	return port, nil
}

// Advertiser registers the status page with zeroconf.
type Advertiser struct {
	mu     sync.Mutex
	server *zeroconf.Server
}

// Start begins advertising info. A running advertisement is replaced.
func (a *Advertiser) Start(info Info) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	server, err := zeroconf.Register(
		InstanceName(info.Instance),
		ServiceType,
		Domain,
		info.Port,
		TXTRecordsToStrings(TXTRecords(info)),
		nil, // all interfaces
	)
	if err != nil {
		return fmt.Errorf("register %s: %w", ServiceType, err)
	}
	a.server = server
	return nil
}

// Stop withdraws the advertisement. Safe to call when not started.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}
