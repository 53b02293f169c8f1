package main

import (
	"log"
	"os"
	"syscall"
	"time"

	"github.com/sweeney/relay-bank/internal/led"
	"github.com/sweeney/relay-bank/internal/mqtt"
	"github.com/sweeney/relay-bank/internal/relay"
	"github.com/sweeney/relay-bank/internal/status"
)

// controller owns the bank. Every method runs on the run loop goroutine.
type controller struct {
	bank      *relay.Bank
	client    mqtt.Client
	tracker   *status.Tracker
	indicator led.Indicator
	heartbeat time.Duration
	clock     func() relay.Millis
	wall      func() time.Time

	hb      *relay.Heartbeat
	faulted bool
}

func newController(bank *relay.Bank, client mqtt.Client, tracker *status.Tracker, indicator led.Indicator, heartbeat time.Duration, clock func() relay.Millis, wall func() time.Time) *controller {
	return &controller{
		bank:      bank,
		client:    client,
		tracker:   tracker,
		indicator: indicator,
		heartbeat: heartbeat,
		clock:     clock,
		wall:      wall,
		hb:        relay.NewHeartbeat(wall()),
	}
}

func runLoop(bank *relay.Bank, client mqtt.Client, tracker *status.Tracker, indicator led.Indicator, heartbeat time.Duration, clock func() relay.Millis, wall func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	c := newController(bank, client, tracker, indicator, heartbeat, clock, wall)
	c.startup()

	inbox := client.Commands()
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			c.shutdown(signalName(s))
			return nil

		case payload := <-inbox:
			c.handle(payload, c.clock())

		case <-tick:
			c.tick(inbox)
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func (c *controller) startup() {
	c.settle(c.clock())
	if err := c.client.PublishSystem(c.systemEvent("STARTUP", "")); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}
}

func (c *controller) shutdown(reason string) {
	c.settle(c.clock())
	if err := c.client.PublishSystem(c.systemEvent("SHUTDOWN", reason)); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
	}
}

// handle applies one raw command at now.
func (c *controller) handle(payload []byte, now relay.Millis) {
	events, err := c.bank.HandlePayload(payload, now)
	if err != nil {
		log.Printf("command error: %v", err)
	}
	c.publish(events)
	c.settle(now)
}

// tick applies every command already waiting in inbox, then expires
// channels, all at one clock reading.
func (c *controller) tick(inbox <-chan []byte) {
	now := c.clock()
	for drained := false; !drained; {
		select {
		case payload := <-inbox:
			c.handle(payload, now)
		default:
			drained = true
		}
	}

	events, err := c.bank.Tick(now)
	if err != nil && !c.faulted {
		log.Printf("output error: %v", err)
	}
	c.publish(events)
	c.settle(now)

	hbData := c.hb.Check(c.wall(), c.heartbeat, c.bank.Counts())
	if hbData == nil {
		return
	}
	log.Printf("heartbeat: uptime=%v on=%d rearm=%d off=%d write_failures=%d rejected=%d",
		hbData.Uptime, hbData.Counts.On, hbData.Counts.Rearm, hbData.Counts.Off,
		hbData.Counts.WriteFailures, hbData.Counts.Rejected)
	// Heartbeats carry the pi-helper network fields.
	if net := readNetworkInfo(); net != nil {
		c.tracker.SetNetwork(net)
	}
	if err := c.client.PublishSystem(c.systemEvent("HEARTBEAT", "")); err != nil {
		log.Printf("heartbeat publish error: %v", err)
	}
}

// publish logs and forwards transitions. Failures never stop the loop.
func (c *controller) publish(events []relay.Transition) {
	if len(events) == 0 {
		return
	}
	ts := c.wall()
	for _, tr := range events {
		log.Printf("event: %s ch=%d duration=%dms mask=%s", tr.Type, tr.Channel, tr.Duration, status.FormatMask(tr.Mask))
		if err := c.client.Publish(mqtt.Event{Timestamp: ts, Transition: tr}); err != nil {
			log.Printf("publish error: %v", err)
		}
	}
}

// settle refreshes the fault LED and tracker after a change to the bank.
func (c *controller) settle(now relay.Millis) {
	if f := c.bank.Fault() != nil; f != c.faulted {
		c.faulted = f
		if f {
			log.Printf("output fault: %v", c.bank.Fault())
		} else {
			log.Printf("output recovered: mask=%s", status.FormatMask(c.bank.Mask()))
		}
		if err := c.indicator.Set(f); err != nil {
			log.Printf("fault led: %v", err)
		}
	}
	c.tracker.Update(c.bank, now)
	c.tracker.SetMQTTConnected(c.client.IsConnected())
}

func (c *controller) systemEvent(event, reason string) mqtt.SystemEvent {
	snap := c.tracker.Snapshot()
	return mqtt.SystemEvent{
		Timestamp:  c.wall(),
		Event:      event,
		Reason:     reason,
		Retained:   event != "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
}
