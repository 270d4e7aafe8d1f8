package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/askelund/spotheat/core/logger"
	"github.com/askelund/spotheat/core/model"
)

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// MQTTApplier publishes heater states to a local broker for devices bridged
// without a vendor cloud account.
type MQTTApplier struct {
	cli    pahoClient
	prefix string
	qos    byte
	log    logger.Logger
}

// NewMQTTApplier connects to the broker and returns the applier.
func NewMQTTApplier(cfg MQTTConfig, log logger.Logger) (*MQTTApplier, error) {
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true)

	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return &MQTTApplier{cli: cli, prefix: cfg.TopicPrefix, qos: cfg.QoS, log: log}, nil
}

type modeMessage struct {
	Hour time.Time `json:"hour"`
	Mode string    `json:"mode"`
}

// Apply implements gateway.Applier. The publish is retained so a device
// reconnecting mid-hour picks up the current mode.
func (a *MQTTApplier) Apply(_ context.Context, userID string, hour time.Time, state model.State) error {
	payload, err := json.Marshal(modeMessage{Hour: hour.UTC(), Mode: state.String()})
	if err != nil {
		return fmt.Errorf("encode mode message: %w", err)
	}
	topic := fmt.Sprintf("%s/%s/mode", a.prefix, userID)
	token := a.cli.Publish(topic, a.qos, true, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish mode: %w", token.Error())
	}
	a.log.Debugf("published %s for %s on %s", state, userID, topic)
	return nil
}

// Close disconnects from the broker.
func (a *MQTTApplier) Close() {
	a.cli.Disconnect(250)
}
