package mqtt

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/streetgrid/gridnode/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	MQTT_PAYLOAD_ONLINE  = "online"
	MQTT_PAYLOAD_OFFLINE = "offline"
	MQTT_PAYLOAD_ON      = "on"
	MQTT_PAYLOAD_OFF     = "off"
)

var ErrTimeout = errors.New("MQTT operation timed out")

func OptsFromConfig(cfg *config.Config) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port))
	opts.SetClientID(fmt.Sprintf("gridnode_%s", cfg.NodeId))
	if cfg.MQTT.Username != "" && cfg.MQTT.Password != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.WillEnabled = true
	opts.WillPayload = []byte(MQTT_PAYLOAD_OFFLINE)
	opts.WillRetained = true
	opts.WillTopic = availabilityTopic(cfg.MQTT.BaseTopic, cfg.NodeId)
	opts.WillQos = 0

	return opts
}

func CreateMQTTClient(cfg *config.Config, opts *mqtt.ClientOptions, onConnectHandler func(client mqtt.Client),
	onConnectionLostHandler func(mqtt.Client, error)) *MQTTClient {
	if onConnectHandler != nil {
		opts.OnConnect = onConnectHandler
	}
	if onConnectionLostHandler != nil {
		opts.OnConnectionLost = onConnectionLostHandler
	}
	return &MQTTClient{
		client:        mqtt.NewClient(opts),
		cfg:           cfg.MQTT,
		nodeId:        cfg.NodeId,
		commandRegexp: commandExtractor(cfg.MQTT.BaseTopic),
	}
}

// MQTTClient wraps paho with gridnode topic layout. Every topic lives under <base>/<node id>.
type MQTTClient struct {
	client        mqtt.Client
	cfg           config.MQTTConfig
	nodeId        string
	commandRegexp *regexp.Regexp
}

func (c *MQTTClient) baseTopic() string {
	return c.cfg.BaseTopic
}

func (c *MQTTClient) nodeTopic() string {
	return fmt.Sprintf("%s/%s", c.baseTopic(), c.nodeId)
}

func (c *MQTTClient) AvailabilityTopic() string {
	return availabilityTopic(c.baseTopic(), c.nodeId)
}

func (c *MQTTClient) TelemetryTopic() string {
	return fmt.Sprintf("%s/telemetry", c.nodeTopic())
}

func (c *MQTTClient) SensorStateTopic(sensorId string) string {
	return fmt.Sprintf("%s/sensor/%s/state", c.nodeTopic(), sensorId)
}

func (c *MQTTClient) BinarySensorStateTopic(sensorId string) string {
	return fmt.Sprintf("%s/binary_sensor/%s/state", c.nodeTopic(), sensorId)
}

// CommandSubscription matches the command topic of every node. Commands for other nodes
// are dropped by the dispatcher.
func (c *MQTTClient) CommandSubscription() string {
	return fmt.Sprintf("%s/+/command", c.baseTopic())
}

// ParseCommandTopic returns the node id segment of a command topic.
func (c *MQTTClient) ParseCommandTopic(topic string) (string, error) {
	matches := c.commandRegexp.FindAllStringSubmatch(topic, 1)
	if len(matches) == 0 || len(matches[0]) != 2 {
		return "", fmt.Errorf("not a command topic: %s", topic)
	}
	return matches[0][1], nil
}

func (c *MQTTClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

func (c *MQTTClient) Publish(topic string, payload any, qos byte, retain bool, continuation func(error), timeout time.Duration) {
	waitToken(c.client.Publish(topic, qos, retain, payload), "publish", continuation, timeout)
}

func (c *MQTTClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	waitToken(c.client.Subscribe(topic, qos, handler), "subscribe", continuation, timeout)
}

func (c *MQTTClient) SubscribeToCommandTopic(handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	c.Subscribe(c.CommandSubscription(), 1, handler, continuation, timeout)
}

func (c *MQTTClient) Unsubscribe(topic string, continuation func(error), timeout time.Duration) {
	waitToken(c.client.Unsubscribe(topic), "unsubscribe", continuation, timeout)
}

func (c *MQTTClient) Connect(continuation func(error), timeout time.Duration) {
	waitToken(c.client.Connect(), "connect", continuation, timeout)
}

func (c *MQTTClient) Disconnect(timeout time.Duration) {
	c.client.Disconnect(uint(timeout.Milliseconds()))
}

// waitToken calls continuation from a new goroutine once the token completes or times out.
func waitToken(token mqtt.Token, op string, continuation func(error), timeout time.Duration) {
	go func() {
		if !token.WaitTimeout(timeout) {
			continuation(fmt.Errorf("%s: %w", op, ErrTimeout))
			return
		}
		continuation(token.Error())
	}()
}

func commandExtractor(baseTopic string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf("^%s/([a-zA-Z0-9_-]+)/command$", regexp.QuoteMeta(baseTopic)))
}

func availabilityTopic(baseTopic, nodeId string) string {
	return fmt.Sprintf("%s/%s/availability", baseTopic, nodeId)
}
