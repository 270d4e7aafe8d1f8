package gateway

import (
	"fmt"

	"github.com/askelund/spotheat/auth"
)

// Config selects and configures the device gateway backend.
type Config struct {
	// Backend selects the applier type: "http" or "mqtt".
	Backend        string     `json:"backend"`
	BaseURL        string     `json:"base_url"`
	TimeoutSeconds int        `json:"timeout_seconds"`
	Auth           auth.Conf  `json:"auth"`
	MQTT           MQTTConfig `json:"mqtt"`
}

// MQTTConfig defines the broker connection for locally bridged devices.
type MQTTConfig struct {
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         byte   `json:"qos"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "http"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 15
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "spotheat/device"
	}
}

// Validate checks mandatory fields per backend.
func (c Config) Validate() error {
	switch c.Backend {
	case "http":
		if c.BaseURL == "" {
			return fmt.Errorf("base_url is required for the http backend")
		}
	case "mqtt":
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required for the mqtt backend")
		}
	default:
		return fmt.Errorf("unknown gateway backend %s", c.Backend)
	}
	return nil
}
