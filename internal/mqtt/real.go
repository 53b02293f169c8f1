package mqtt

import (
	"fmt"
	"log"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Options configures a RealClient.
type Options struct {
	Broker     string
	ClientID   string
	Topics     Topics
	InboxSize  int // commands waiting for the run loop
	QueueSize  int // outgoing messages waiting for the publisher goroutine
	BufferSize int // outgoing messages kept while disconnected
}

// RealClient talks to an actual MQTT broker.
//
// Incoming commands are handed to a bounded inbox; the paho callback never
// blocks. Outgoing messages go through a queue drained by one publisher
// goroutine, so the caller's loop never waits on the network. Messages that
// cannot be sent while the broker is down are kept in a ring buffer and
// replayed on reconnect.
type RealClient struct {
	client      paho.Client
	topics      Topics
	commands    chan []byte
	queue       chan bufferedMsg
	reconnected chan struct{}
	done        chan struct{}
	offline     *ringBuffer // publisher goroutine only
}

// NewRealClient connects to the broker and subscribes to the command topic.
func NewRealClient(opts Options) (*RealClient, error) {
	c := &RealClient{
		topics:      opts.Topics,
		commands:    make(chan []byte, max(opts.InboxSize, 1)),
		queue:       make(chan bufferedMsg, max(opts.QueueSize, 1)),
		reconnected: make(chan struct{}, 1),
		done:        make(chan struct{}),
		offline:     newRingBuffer(opts.BufferSize),
	}

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "LWT"})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	po := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(opts.Topics.System, will, 1, true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	c.client = paho.NewClient(po)
	token := c.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	go c.run()
	return c, nil
}

// onConnect runs on every (re)connect. Subscriptions are not persisted by
// the broker for clean sessions, so they are renewed here.
func (c *RealClient) onConnect(client paho.Client) {
	token := client.Subscribe(c.topics.Command, 1, c.handleCommand)
	if !token.WaitTimeout(5 * time.Second) {
		log.Printf("mqtt: subscribe %s: timeout", c.topics.Command)
	} else if err := token.Error(); err != nil {
		log.Printf("mqtt: subscribe %s: %v", c.topics.Command, err)
	} else {
		log.Printf("mqtt: subscribed to %s", c.topics.Command)
	}

	select {
	case c.reconnected <- struct{}{}:
	default:
	}
}

func (c *RealClient) handleCommand(_ paho.Client, msg paho.Message) {
	if !offer(c.commands, msg.Payload()) {
		log.Printf("mqtt: inbox full (%d), dropping command from %s", cap(c.commands), msg.Topic())
	}
}

// run is the publisher goroutine.
func (c *RealClient) run() {
	defer close(c.done)
	for {
		select {
		case msg, ok := <-c.queue:
			if !ok {
				return
			}
			c.send(msg)
		case <-c.reconnected:
			for _, msg := range c.offline.drainAll() {
				c.send(msg)
			}
		}
	}
}

func (c *RealClient) send(msg bufferedMsg) {
	if !c.client.IsConnectionOpen() {
		c.offline.push(msg)
		return
	}
	token := c.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		log.Printf("mqtt: publish %s: timeout, buffering", msg.topic)
		c.offline.push(msg)
		return
	}
	if err := token.Error(); err != nil {
		log.Printf("mqtt: publish %s: %v, buffering", msg.topic, err)
		c.offline.push(msg)
	}
}

func (c *RealClient) enqueue(msg bufferedMsg) error {
	select {
	case c.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Commands delivers raw command payloads in arrival order.
func (c *RealClient) Commands() <-chan []byte {
	return c.commands
}

// Publish queues a relay transition, QoS 0, not retained.
func (c *RealClient) Publish(event Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return c.enqueue(bufferedMsg{topic: c.topics.Events, payload: payload})
}

// PublishSystem queues a system lifecycle event.
// QoS 1 (at-least-once) so startup and shutdown are not lost.
func (c *RealClient) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return c.enqueue(bufferedMsg{topic: c.topics.System, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the broker connection is up.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Close sends everything still queued, then disconnects.
// Publish must not be called after Close.
func (c *RealClient) Close() error {
	close(c.queue)
	select {
	case <-c.done:
	case <-time.After(10 * time.Second):
		log.Printf("mqtt: close: publisher did not drain in time")
	}
	c.client.Disconnect(1000) // 1 second timeout
	return nil
}
