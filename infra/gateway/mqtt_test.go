package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	"github.com/askelund/spotheat/core/model"
	"github.com/askelund/spotheat/infra/logger"
)

type fakeToken struct{ err error }

func (t fakeToken) Wait() bool                     { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t fakeToken) Error() error { return t.err }

type fakeMQTT struct {
	connectErr error
	publishErr error

	connected    bool
	disconnected bool
	topic        string
	qos          byte
	retained     bool
	payload      []byte
}

func (f *fakeMQTT) IsConnected() bool { return f.connected }

func (f *fakeMQTT) Connect() paho.Token {
	f.connected = f.connectErr == nil
	return fakeToken{err: f.connectErr}
}

func (f *fakeMQTT) Disconnect(uint) { f.disconnected = true }

func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	f.topic = topic
	f.qos = qos
	f.retained = retained
	f.payload, _ = payload.([]byte)
	return fakeToken{err: f.publishErr}
}

func withFakeMQTT(t *testing.T, fake *fakeMQTT) {
	t.Helper()
	orig := newMQTTClient
	newMQTTClient = func(*paho.ClientOptions) pahoClient { return fake }
	t.Cleanup(func() { newMQTTClient = orig })
}

func TestMQTTApplierPublishesRetainedMode(t *testing.T) {
	fake := &fakeMQTT{}
	withFakeMQTT(t, fake)

	a, err := NewMQTTApplier(MQTTConfig{Broker: "tcp://broker:1883", TopicPrefix: "spotheat/device", QoS: 1}, logger.NopLogger{})
	require.NoError(t, err)

	hour := time.Date(2025, 1, 10, 14, 0, 0, 0, time.UTC)
	require.NoError(t, a.Apply(context.Background(), "u42", hour, model.StateTurnOff))

	require.Equal(t, "spotheat/device/u42/mode", fake.topic)
	require.Equal(t, byte(1), fake.qos)
	require.True(t, fake.retained, "a reconnecting device must see the current mode")

	var msg modeMessage
	require.NoError(t, json.Unmarshal(fake.payload, &msg))
	require.Equal(t, "turnoff", msg.Mode)
	require.True(t, msg.Hour.Equal(hour))
}

func TestMQTTApplierConnectFailure(t *testing.T) {
	withFakeMQTT(t, &fakeMQTT{connectErr: errors.New("broker unreachable")})

	_, err := NewMQTTApplier(MQTTConfig{Broker: "tcp://broker:1883"}, logger.NopLogger{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "mqtt connect")
}

func TestMQTTApplierPublishFailure(t *testing.T) {
	fake := &fakeMQTT{publishErr: errors.New("not connected")}
	withFakeMQTT(t, fake)

	a, err := NewMQTTApplier(MQTTConfig{Broker: "tcp://broker:1883"}, logger.NopLogger{})
	require.NoError(t, err)
	require.Error(t, a.Apply(context.Background(), "u42", time.Now(), model.StateComfort))
}

func TestMQTTApplierClose(t *testing.T) {
	fake := &fakeMQTT{}
	withFakeMQTT(t, fake)

	a, err := NewMQTTApplier(MQTTConfig{Broker: "tcp://broker:1883"}, logger.NopLogger{})
	require.NoError(t, err)
	a.Close()
	require.True(t, fake.disconnected)
}
