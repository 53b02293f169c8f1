package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/relay-bank/internal/relay"
)

// SendCommand connects, publishes one encoded command to topic with QoS 1,
// and disconnects. It plays the remote sender's role for commissioning.
func SendCommand(broker, clientID, topic string, cmd relay.Command, timeout time.Duration) error {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(timeout)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	defer client.Disconnect(250)

	token = client.Publish(topic, 1, false, relay.EncodeCommand(cmd))
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}
