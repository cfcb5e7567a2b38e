package actor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/streetgrid/gridnode/internal/config"
	"github.com/streetgrid/gridnode/internal/core/domain"
	"github.com/streetgrid/gridnode/internal/core/events"
	"github.com/streetgrid/gridnode/internal/mqtt"
	"github.com/streetgrid/gridnode/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// StatusActor mirrors node events to retained MQTT state topics and announces
// Home Assistant discovery configs.
type StatusActor struct {
	config         *config.Config
	behavior       actor.Behavior
	stash          *actorutil.Stash
	client         *mqtt.MQTTClient
	nodeActor      *actor.PID
	eventStream    *eventstream.EventStream
	eventStreamSub *eventstream.Subscription
	logger         *zap.Logger

	// dummy mode only
	published []RawMessage
}

type MQTTConnected struct {
}

type MQTTConnectionLost struct {
	Error error
}

type OnEventStreamMessage struct {
	message any
}

type publishResult struct {
	Error error
}

type RawMessage struct {
	Topic   string
	Message string
	Retain  bool
}

type GetPublishedRequest struct {
	domain.ActorRequestMixIn
}

type GetPublishedResponse struct {
	domain.ActorResponseMixIn
	Messages []RawMessage
}

func NewStatusActor(config *config.Config, nodeActor *actor.PID, eventStream *eventstream.EventStream, logger *zap.Logger) *StatusActor {
	act := &StatusActor{
		config:      config,
		nodeActor:   nodeActor,
		eventStream: eventStream,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_STATUS, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *StatusActor) Receive(ctx actor.Context) {
	state.behavior.Receive(ctx)
}

func (state *StatusActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("status@starting started")

		// paho callbacks run on its own goroutines
		self, root := ctx.Self(), ctx.ActorSystem().Root
		// the link transport may hold the node's own client id
		opts := mqtt.OptsFromConfig(state.config)
		opts.SetClientID(fmt.Sprintf("gridnode_%s_status", state.config.NodeId))
		state.client = mqtt.CreateMQTTClient(state.config, opts, func(_ pahomqtt.Client) {
			root.Send(self, MQTTConnected{})
		}, func(_ pahomqtt.Client, err error) {
			root.Send(self, MQTTConnectionLost{Error: err})
		})

		state.client.Connect(func(err error) {
			if err != nil {
				root.Send(self, MQTTConnectionLost{Error: err})
			} else {
				root.Send(self, MQTTConnected{})
			}
		}, 10*time.Second)
	case MQTTConnected:
		state.logger.Debug("status@starting connected")

		state.client.Publish(state.client.AvailabilityTopic(), mqtt.MQTT_PAYLOAD_ONLINE, 0, true, func(error) {}, 500*time.Millisecond)
		state.subscribe(ctx)
		state.requestSnapshot(ctx)

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case MQTTConnectionLost:
		// supervisor restarts with backoff
		state.logger.Error("status@starting connection failed", zap.Error(msg.Error))
		panic(msg.Error)
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("status@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *StatusActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		state.logger.Debug("status@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_STATUS,
			Healthy: state.client.IsConnected(),
			State:   "idle",
		})
	case OnEventStreamMessage:
		for _, ev := range events.ToSensorUpdateEvents(msg.message) {
			ctx.Send(ctx.Self(), domain.PublishSensorUpdateRequest{Event: ev, Retain: true})
		}
	case domain.GetNodeStatusResponse:
		state.onSnapshot(ctx, msg)
	case domain.PublishSensorUpdateRequest:
		state.logger.Debug("status@default PublishSensorUpdateRequest", zap.String("sensor", msg.Event.SensorId()))
		state.publishSensorValue(ctx, msg.Event, msg.Retain)
	case domain.PublishDiscoveryRequest:
		state.logger.Debug("status@default PublishDiscoveryRequest")
		if err := state.PublishHomeAssistantDiscovery(msg.Sensors); err != nil {
			state.logger.Error("status@default PublishDiscoveryRequest error", zap.Error(err))
		}
	case MQTTConnected:
		// reconnected, the broker may have fired the will
		state.client.Publish(state.client.AvailabilityTopic(), mqtt.MQTT_PAYLOAD_ONLINE, 0, true, func(error) {}, 500*time.Millisecond)
	case MQTTConnectionLost:
		// paho reconnects on its own
		state.logger.Warn("status@default connection lost", zap.Error(msg.Error))
	default:
		state.logger.Debug("status@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *StatusActor) EventPublishResultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishResult:
		if msg.Error != nil {
			state.logger.Error("status@publishing could not publish a message", zap.Error(msg.Error))
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.stop()
	default:
		state.stash.Stash(ctx, msg)
	}
}

func (state *StatusActor) subscribe(ctx actor.Context) {
	self, root := ctx.Self(), ctx.ActorSystem().Root
	state.eventStreamSub = state.eventStream.Subscribe(func(value any) {
		root.Send(self, OnEventStreamMessage{
			message: value,
		})
	})
}

// requestSnapshot asks the node for its full state so retained topics are seeded on start.
func (state *StatusActor) requestSnapshot(ctx actor.Context) {
	if state.nodeActor == nil {
		return
	}
	actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.nodeActor, domain.GetNodeStatusRequest{}, 2*time.Second), func(err error) any {
		return domain.GetNodeStatusResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	})
}

func (state *StatusActor) onSnapshot(ctx actor.Context, msg domain.GetNodeStatusResponse) {
	if msg.HasResponseError() {
		state.logger.Warn("status@default could not get node status", zap.Error(msg.GetResponseError()))
		return
	}
	if state.config.MQTT.HADiscoveryEnable {
		sensors := events.NodeSensors(events.NodeDevice(msg.Status.NodeId), msg.Status.Relays)
		ctx.Send(ctx.Self(), domain.PublishDiscoveryRequest{Sensors: sensors})
	}
	for _, ev := range events.NodeStatusToUpdateEvents(msg.Status) {
		ctx.Send(ctx.Self(), domain.PublishSensorUpdateRequest{Event: ev, Retain: true})
	}
}

func (state *StatusActor) event2MQTTMessage(event any) *RawMessage {
	switch msg := event.(type) {
	case domain.FloatSensorUpdateEvent:
		return &RawMessage{
			Topic:   state.client.SensorStateTopic(msg.Id),
			Message: fmt.Sprintf(fmt.Sprintf("%%.%df", msg.Decimals), msg.Value),
		}
	case domain.BinarySensorUpdateEvent:
		return &RawMessage{
			Topic:   state.client.BinarySensorStateTopic(msg.Id),
			Message: bool2MQTTPayload(msg.Value),
			Retain:  true,
		}
	case domain.TextSensorUpdateEvent:
		return &RawMessage{
			Topic:   state.client.SensorStateTopic(msg.Id),
			Message: msg.Value,
			Retain:  true,
		}
	case domain.BridgeStateUpdateEvent:
		stringMessage := mqtt.MQTT_PAYLOAD_OFFLINE
		if msg.Value {
			stringMessage = mqtt.MQTT_PAYLOAD_ONLINE
		}
		return &RawMessage{
			Topic:   state.client.AvailabilityTopic(),
			Message: stringMessage,
			Retain:  true,
		}
	default:
		return nil
	}
}

func (state *StatusActor) publishSensorValue(ctx actor.Context, event domain.SensorUpdateEvent, retain bool) {
	msg := state.event2MQTTMessage(event)
	if msg != nil {
		state.logger.Sugar().Debugf("status@publish: sensor publish %s => %s", msg.Topic, msg.Message)
		self, root := ctx.Self(), ctx.ActorSystem().Root
		state.client.Publish(msg.Topic, msg.Message, 1, msg.Retain || retain, func(err error) {
			root.Send(self, publishResult{Error: err})
		}, 5*time.Second)
		state.behavior.BecomeStacked(state.EventPublishResultReceive)
	}
}

func (state *StatusActor) PublishHomeAssistantDiscovery(sensors []domain.GenericSensor) error {
	for i := range sensors {
		msg := mqtt.GenericSensorToHADiscoveryMessage(state.client, sensors[i])
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		topic := state.client.HADiscoverySensorTopic(sensors[i])
		state.client.Publish(topic, payload, 0, true, func(error) {}, 1*time.Second)
	}
	return nil
}

func (state *StatusActor) stop() {
	if state.eventStreamSub != nil {
		state.eventStream.Unsubscribe(state.eventStreamSub)
		state.eventStreamSub = nil
	}
	if state.client != nil && state.client.IsConnected() {
		state.logger.Debug("status: disconnect")
		state.client.Publish(state.client.AvailabilityTopic(), mqtt.MQTT_PAYLOAD_OFFLINE, 0, true, func(error) {}, 500*time.Millisecond)
		state.client.Disconnect(500 * time.Millisecond)
	}
}

func bool2MQTTPayload(value bool) string {
	if value {
		return mqtt.MQTT_PAYLOAD_ON
	}
	return mqtt.MQTT_PAYLOAD_OFF
}

// NewTestStatusActor builds a status actor that never connects. Messages it would
// publish are kept in memory and returned by GetPublishedRequest.
func NewTestStatusActor(config *config.Config, nodeActor *actor.PID, eventStream *eventstream.EventStream, logger *zap.Logger) *StatusActor {
	act := &StatusActor{
		config:      config,
		nodeActor:   nodeActor,
		eventStream: eventStream,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_STATUS, logger),
	}
	act.behavior.Become(act.DummyReceive)
	return act
}

func (state *StatusActor) DummyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), nil, nil)
		state.subscribe(ctx)
		state.requestSnapshot(ctx)
	case *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		state.logger.Debug("status@dummy ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_STATUS,
			Healthy: true,
			State:   "idle",
		})
	case OnEventStreamMessage:
		for _, ev := range events.ToSensorUpdateEvents(msg.message) {
			state.record(ev)
		}
	case domain.GetNodeStatusResponse:
		if !msg.HasResponseError() {
			for _, ev := range events.NodeStatusToUpdateEvents(msg.Status) {
				state.record(ev)
			}
		}
	case GetPublishedRequest:
		out := make([]RawMessage, len(state.published))
		copy(out, state.published)
		actorutil.ForRequest(msg).Respond(ctx, GetPublishedResponse{Messages: out})
	}
}

func (state *StatusActor) record(ev domain.SensorUpdateEvent) {
	if rawMsg := state.event2MQTTMessage(ev); rawMsg != nil {
		state.logger.Debug("status@dummy publish", zap.String("topic", rawMsg.Topic), zap.String("value", rawMsg.Message))
		state.published = append(state.published, *rawMsg)
	}
}
