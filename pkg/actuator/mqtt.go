package actuator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/levenlabs/go-lflag"
	"github.com/solarflow/solarflow/pkg/log"
	"github.com/solarflow/solarflow/pkg/types"
)

const publishTimeout = 5 * time.Second

// MQTTBridge implements the Bridge interface over an MQTT broker. Each
// command is published to <prefix>/<device>/set so relays (Tasmota, Shelly,
// home automation rules) can subscribe per device.
type MQTTBridge struct {
	client mqtt.Client

	broker   string
	clientID string
	username string
	password string
	prefix   string
}

// switchPayload is the wire format published for each command.
type switchPayload struct {
	Device    string    `json:"device"`
	Action    string    `json:"action"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// configuredMQTT sets up the MQTT bridge.
// It registers flags for configuration.
func configuredMQTT() *MQTTBridge {
	broker := lflag.String("mqtt-broker", "tcp://127.0.0.1:1883", "MQTT broker address for device actuation")
	clientID := lflag.String("mqtt-client-id", "solarflow", "MQTT client ID")
	username := lflag.String("mqtt-username", "", "MQTT username")
	password := lflag.String("mqtt-password", "", "MQTT password")
	prefix := lflag.String("mqtt-topic-prefix", "solarflow/devices", "Topic prefix for switch commands")

	b := &MQTTBridge{}

	lflag.Do(func() {
		b.broker = *broker
		b.clientID = *clientID
		b.username = *username
		b.password = *password
		b.prefix = *prefix
	})

	return b
}

// Validate checks if the bridge is properly configured.
func (b *MQTTBridge) Validate() error {
	if b.broker == "" {
		return fmt.Errorf("mqtt broker cannot be empty")
	}
	return nil
}

// Init connects to the broker. The client keeps reconnecting in the
// background on connection loss; publishes during an outage fail and are
// retried implicitly by the next control cycle.
func (b *MQTTBridge) Init(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(b.broker)
	opts.SetClientID(b.clientID)
	opts.SetUsername(b.username)
	opts.SetPassword(b.password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Ctx(ctx).WarnContext(ctx, "mqtt connection lost", slog.Any("err", err))
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		log.Ctx(ctx).InfoContext(ctx, "mqtt connected", slog.String("broker", b.broker))
	})

	b.client = mqtt.NewClient(opts)
	if token := b.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to mqtt broker %s: %w", b.broker, token.Error())
	}
	return nil
}

// Switch publishes the command to <prefix>/<device>/set with QoS 1.
func (b *MQTTBridge) Switch(ctx context.Context, cmd types.SwitchCommand) error {
	payload, err := json.Marshal(switchPayload{
		Device:    cmd.Device,
		Action:    string(cmd.Action),
		Reason:    cmd.Reason,
		Timestamp: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal switch payload: %w", err)
	}

	topic := b.prefix + "/" + cmd.Device + "/set"
	token := b.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: publish to %s timed out", ErrActuationFailed, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: publish to %s: %v", ErrActuationFailed, topic, err)
	}

	log.Ctx(ctx).DebugContext(ctx, "published switch command",
		slog.String("topic", topic),
		slog.String("action", string(cmd.Action)),
	)
	return nil
}

// Close disconnects from the broker.
func (b *MQTTBridge) Close() error {
	if b.client != nil {
		b.client.Disconnect(250)
	}
	return nil
}
