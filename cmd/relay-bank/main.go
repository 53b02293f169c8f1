// Command relay-bank drives a 16-channel timed relay bank from MQTT commands.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/sweeney/relay-bank/internal/config"
	"github.com/sweeney/relay-bank/internal/discovery"
	"github.com/sweeney/relay-bank/internal/expander"
	"github.com/sweeney/relay-bank/internal/led"
	"github.com/sweeney/relay-bank/internal/mqtt"
	"github.com/sweeney/relay-bank/internal/relay"
	"github.com/sweeney/relay-bank/internal/status"
	"github.com/sweeney/relay-bank/internal/web"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// flagOverrides binds command-line flags that win over the config file.
type flagOverrides struct {
	configPath  string
	broker      string
	topicPrefix string
	clientID    string
	poll        time.Duration
	heartbeat   time.Duration
	httpAddr    string
	faultLEDPin int
	inboxSize   int
	mdns        bool
}

func (f *flagOverrides) register(cmd *cobra.Command) {
	def := config.Default()
	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	pf.StringVar(&f.broker, "broker", def.Broker, "MQTT broker address")
	pf.StringVar(&f.topicPrefix, "topic-prefix", def.TopicPrefix, "MQTT topic prefix")
	pf.StringVar(&f.clientID, "client-id", "", "MQTT client ID (default relay-bank-<random>)")

	fl := cmd.Flags()
	fl.DurationVar(&f.poll, "poll", time.Duration(def.Poll), "Expiry polling interval")
	fl.DurationVar(&f.heartbeat, "heartbeat", time.Duration(def.Heartbeat), "Heartbeat interval (0 to disable)")
	fl.StringVar(&f.httpAddr, "http", def.HTTP, "HTTP status address (empty to disable)")
	fl.IntVar(&f.faultLEDPin, "fault-led-pin", def.FaultLEDPin, "BCM pin for the fault LED (-1 to disable)")
	fl.IntVar(&f.inboxSize, "inbox-size", def.InboxSize, "Commands buffered between MQTT and the run loop")
	fl.BoolVar(&f.mdns, "mdns", def.MDNS, "Advertise the status page over mDNS")
}

// load reads the config file, then applies every flag the user set.
func (f *flagOverrides) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, err
	}
	changed := func(name string) bool {
		fl := cmd.Flags().Lookup(name)
		return fl != nil && fl.Changed
	}
	if changed("broker") {
		cfg.Broker = f.broker
	}
	if changed("topic-prefix") {
		cfg.TopicPrefix = f.topicPrefix
	}
	if changed("client-id") {
		cfg.ClientID = f.clientID
	}
	if changed("poll") {
		cfg.Poll = config.Duration(f.poll)
	}
	if changed("heartbeat") {
		cfg.Heartbeat = config.Duration(f.heartbeat)
	}
	if changed("http") {
		cfg.HTTP = f.httpAddr
	}
	if changed("fault-led-pin") {
		cfg.FaultLEDPin = f.faultLEDPin
	}
	if changed("inbox-size") {
		cfg.InboxSize = f.inboxSize
	}
	if changed("mdns") {
		cfg.MDNS = f.mdns
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	var flags flagOverrides
	root := &cobra.Command{
		Use:           "relay-bank",
		Short:         "Timed 16-channel relay bank driven over MQTT",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}
	flags.register(root)
	root.AddCommand(newSendCmd(&flags), newPrintConfigCmd(&flags))
	return root
}

func newPrintConfigCmd(flags *flagOverrides) *cobra.Command {
	return &cobra.Command{
		Use:   "print-config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			out, err := config.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func run(cfg config.Config) error {
	poll := time.Duration(cfg.Poll)
	heartbeat := time.Duration(cfg.Heartbeat)

	// Initialize expander. Nothing can be switched without it.
	writer, err := expander.NewRealWriter()
	if err != nil {
		return fmt.Errorf("init expander: %w", err)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			log.Printf("expander close: %v", err)
		}
	}()

	bank := relay.NewBank(writer)
	if err := bank.Reset(); err != nil {
		return fmt.Errorf("reset relays: %w", err)
	}

	indicator, err := led.Open(cfg.FaultLEDPin)
	if err != nil {
		log.Printf("fault led unavailable on pin %d: %v", cfg.FaultLEDPin, err)
		indicator = led.Nop{}
	}
	defer indicator.Close()

	// Initialize MQTT
	client, err := mqtt.NewRealClient(mqtt.Options{
		Broker:     cfg.Broker,
		ClientID:   cfg.ClientID,
		Topics:     mqtt.TopicsFor(cfg.TopicPrefix),
		InboxSize:  cfg.InboxSize,
		QueueSize:  64,
		BufferSize: 256,
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer client.Close()

	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:      poll.Milliseconds(),
		HeartbeatMs: heartbeat.Milliseconds(),
		Broker:      cfg.Broker,
		TopicPrefix: cfg.TopicPrefix,
		HTTPAddr:    cfg.HTTP,
		FaultLEDPin: cfg.FaultLEDPin,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Start HTTP status server
	if cfg.HTTP != "" {
		gin.SetMode(gin.ReleaseMode)
		srv := web.New(cfg.HTTP, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP)

		if cfg.MDNS {
			stop, err := advertise(cfg)
			if err != nil {
				log.Printf("mdns: %v", err)
			} else {
				defer stop()
			}
		}
	}

	log.Printf("started: poll=%v broker=%s topics=%s/* heartbeat=%v", poll, cfg.Broker, cfg.TopicPrefix, heartbeat)

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	clock := relay.NewSystemClock()
	return runLoop(bank, client, tracker, indicator, heartbeat, clock.Now, time.Now, ticker.C, sigCh)
}

func advertise(cfg config.Config) (func(), error) {
	port, err := discovery.PortFromAddr(cfg.HTTP)
	if err != nil {
		return nil, err
	}
	var adv discovery.Advertiser
	if err := adv.Start(discovery.Info{Instance: cfg.MDNSName, Port: port, TopicPrefix: cfg.TopicPrefix}); err != nil {
		return nil, err
	}
	log.Printf("mdns: advertising %s on port %d", discovery.ServiceType, port)
	return adv.Stop, nil
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
