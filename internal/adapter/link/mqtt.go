package link

import (
	"context"
	"fmt"
	"time"

	"github.com/streetgrid/gridnode/internal/config"
	"github.com/streetgrid/gridnode/internal/mqtt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	DEFAULT_QUEUE_SIZE        = 16
	MQTT_CONNECT_TIMEOUT      = 10 * time.Second
	MQTT_SUBSCRIBE_TIMEOUT    = 2 * time.Second
	MQTT_AVAILABILITY_TIMEOUT = 500 * time.Millisecond
)

// MQTTTransport publishes envelopes on the node telemetry topic and queues inbound command
// messages in a bounded inbox. A full inbox drops the message.
type MQTTTransport struct {
	client *mqtt.MQTTClient
	inbox  chan []byte
	logger *zap.Logger
}

var _ Transport = (*MQTTTransport)(nil)

func NewMQTTTransport(cfg *config.Config, logger *zap.Logger) *MQTTTransport {
	t := &MQTTTransport{
		logger: logger.With(zap.String("transport", "mqtt")),
	}
	queueSize := cfg.Comms.QueueSize
	if queueSize == 0 {
		queueSize = DEFAULT_QUEUE_SIZE
	}
	t.inbox = make(chan []byte, queueSize)
	t.client = mqtt.CreateMQTTClient(cfg, mqtt.OptsFromConfig(cfg), func(_ pahomqtt.Client) {
		t.logger.Info("mqtt connected")
		// clean sessions drop subscriptions on reconnect
		t.client.SubscribeToCommandTopic(t.onMessage, func(err error) {
			if err != nil {
				t.logger.Warn("mqtt resubscribe failed", zap.Error(err))
			}
		}, MQTT_SUBSCRIBE_TIMEOUT)
	}, func(_ pahomqtt.Client, err error) {
		t.logger.Warn("mqtt connection lost", zap.Error(err))
	})
	return t
}

func (t *MQTTTransport) Open(ctx context.Context) error {
	if err := await(ctx, func(cont func(error)) {
		t.client.Connect(cont, MQTT_CONNECT_TIMEOUT)
	}); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	if err := await(ctx, func(cont func(error)) {
		t.client.SubscribeToCommandTopic(t.onMessage, cont, MQTT_SUBSCRIBE_TIMEOUT)
	}); err != nil {
		return fmt.Errorf("mqtt subscribe: %w", err)
	}
	t.client.Publish(t.client.AvailabilityTopic(), mqtt.MQTT_PAYLOAD_ONLINE, 0, true, func(error) {}, MQTT_AVAILABILITY_TIMEOUT)
	return nil
}

func (t *MQTTTransport) Close() error {
	t.logger.Debug("mqtt: disconnect")
	if t.client.IsConnected() {
		t.client.Publish(t.client.AvailabilityTopic(), mqtt.MQTT_PAYLOAD_OFFLINE, 0, true, func(error) {}, MQTT_AVAILABILITY_TIMEOUT)
	}
	t.client.Disconnect(MQTT_AVAILABILITY_TIMEOUT)
	return nil
}

func (t *MQTTTransport) Send(ctx context.Context, env Envelope) error {
	if !t.client.IsConnected() {
		return ErrNotConnected
	}
	payload, err := env.Encode()
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	timeout := 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	return await(ctx, func(cont func(error)) {
		t.client.Publish(t.client.TelemetryTopic(), payload, 1, false, cont, timeout)
	})
}

func (t *MQTTTransport) Receive(_ context.Context) (*Envelope, error) {
	select {
	case data := <-t.inbox:
		env, err := DecodeEnvelope(data)
		if err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		return env, nil
	default:
		return nil, nil
	}
}

func (t *MQTTTransport) onMessage(_ pahomqtt.Client, m pahomqtt.Message) {
	if _, err := t.client.ParseCommandTopic(m.Topic()); err != nil {
		return
	}
	t.enqueue(m.Payload())
}

func (t *MQTTTransport) enqueue(payload []byte) {
	select {
	case t.inbox <- payload:
	default:
		t.logger.Warn("inbox full, dropping command", zap.Int("bytes", len(payload)))
	}
}

// await runs an MQTT call taking a continuation and waits for it or for ctx.
func await(ctx context.Context, call func(cont func(error))) error {
	done := make(chan error, 1)
	call(func(err error) {
		done <- err
	})
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
