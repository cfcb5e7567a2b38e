package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/streetgrid/gridnode/internal/config"
	"github.com/streetgrid/gridnode/internal/core/domain"
	"github.com/streetgrid/gridnode/internal/core/port"
	. "github.com/streetgrid/gridnode/internal/util/actorutil"
	"github.com/streetgrid/gridnode/pkg/hal"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	DEFAULT_SEND_TIMEOUT       = 2 * time.Second
	DEFAULT_RECEIVE_TIMEOUT    = 50 * time.Millisecond
	DEFAULT_RECONNECT_INTERVAL = 5 * time.Second
	LINK_OPEN_TIMEOUT          = 15 * time.Second
	SENSOR_READ_TIMEOUT        = 2 * time.Second
	// background tasks outlive the context they hand to the link, so a late result is not dropped
	TASK_TIMEOUT_MARGIN = 100 * time.Millisecond
)

// NodeActor is the node event loop. Its mailbox serialises the sensing, heartbeat and
// command poll ticks; each message is handled to completion before the next one.
type NodeActor struct {
	behavior  actor.Behavior
	stash     *Stash
	scheduler *scheduler.TimerScheduler
	cancels   []scheduler.CancelFunc

	config      *config.Config
	node        port.NodeController
	link        port.OrchestratorLink
	sensor      hal.PowerSensor
	eventStream *eventstream.EventStream
	version     string
	linkOpen    bool
	linkOpening bool

	logger *zap.Logger
}

type senseTick struct{}

type heartbeatTick struct{}

type commandPollTick struct{}

type linkRetryTick struct{}

type linkOpened struct {
	Error error
}

type receivedCommand struct {
	command domain.Command
}

type sensorReading struct {
	watts     float32
	wattsOk   bool
	voltage   float32
	voltageOk bool
}

// NewNodeActor builds the event loop around an existing node. The node outlives actor restarts,
// so its logical state survives a crash of the loop. sensor may be nil.
func NewNodeActor(config *config.Config, node port.NodeController, link port.OrchestratorLink, sensor hal.PowerSensor,
	eventStream *eventstream.EventStream, version string, logger *zap.Logger) *NodeActor {
	act := &NodeActor{
		config:      config,
		node:        node,
		link:        link,
		sensor:      sensor,
		eventStream: eventStream,
		version:     version,
		behavior:    actor.NewBehavior(),
		stash:       &Stash{},
		logger:      ActorLogger(domain.ACTOR_ID_NODE, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *NodeActor) Receive(ctx actor.Context) {
	state.behavior.Receive(ctx)
}

func (state *NodeActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("node@starting started")
		state.node.SetObserver(state)
		state.openLink(ctx)
	case linkOpened:
		state.linkOpening = false
		if msg.Error != nil {
			// keep running on local policy, the link is retried from linkRetryTick
			state.logger.Error("node@starting could not open link", zap.Error(msg.Error))
		} else {
			state.linkOpen = true
			state.logger.Debug("node@starting link open")
			state.sendFeatureReport(ctx)
		}
		state.startTimers(ctx)

		state.behavior.Become(state.RunningReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.stop()
	case *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("node@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *NodeActor) RunningReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case senseTick:
		state.sense(ctx)
	case heartbeatTick:
		state.sendHeartbeat(ctx)
	case commandPollTick:
		if state.linkOpen {
			state.pollCommand(ctx)
		}
	case linkRetryTick:
		if !state.linkOpen && !state.linkOpening {
			state.logger.Debug("node@running retrying link open")
			state.openLink(ctx)
		}
	case linkOpened:
		state.linkOpening = false
		if msg.Error != nil {
			state.logger.Warn("node@running link still down", zap.Error(msg.Error))
			return
		}
		state.linkOpen = true
		state.logger.Info("node@running link open")
		state.sendFeatureReport(ctx)
	case domain.ActorHealthRequest:
		state.logger.Debug("node@running ActorHealthRequest")
		ForRequest(msg).Respond(ctx, domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_NODE,
			Healthy: true,
			State:   state.node.State().String(),
		})
	case domain.GetNodeStatusRequest:
		state.logger.Debug("node@running GetNodeStatusRequest")
		ForRequest(msg).Respond(ctx, domain.GetNodeStatusResponse{
			Status: state.node.Status(state.version),
		})
	case *actor.Stopping:
		state.stop()
	case *actor.Restarting:
		state.stop()
	case *actor.Started, *actor.Stopped:
	default:
		state.logger.Debug("node@running unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *NodeActor) startTimers(ctx actor.Context) {
	state.scheduler = scheduler.NewTimerScheduler(ctx)
	sense := millis(state.config.Loop.SenseIntervalMillis)
	heartbeat := millis(state.config.Loop.HeartbeatIntervalMillis)
	poll := millis(state.config.Loop.CommandPollIntervalMillis)
	retry := state.reconnectInterval()

	// sensing starts right away, heartbeat only after a full interval
	ctx.Send(ctx.Self(), senseTick{})
	state.cancels = append(state.cancels,
		state.scheduler.SendRepeatedly(sense, sense, ctx.Self(), senseTick{}),
		state.scheduler.SendRepeatedly(heartbeat, heartbeat, ctx.Self(), heartbeatTick{}),
		state.scheduler.SendRepeatedly(poll, poll, ctx.Self(), commandPollTick{}),
		state.scheduler.SendRepeatedly(retry, retry, ctx.Self(), linkRetryTick{}),
	)
	state.logger.Info("node loop running", zap.Duration("sense", sense), zap.Duration("heartbeat", heartbeat),
		zap.Duration("poll", poll))
}

func (state *NodeActor) openLink(ctx actor.Context) {
	state.linkOpening = true
	NewBackgroundTask(ctx, func() (*linkOpened, error) {
		c, cancel := context.WithTimeout(context.Background(), LINK_OPEN_TIMEOUT)
		defer cancel()
		return &linkOpened{}, state.link.Open(c)
	}).WithTimeout(withMargin(LINK_OPEN_TIMEOUT)).Recover(func(err error) linkOpened {
		return linkOpened{Error: err}
	}).PipeTo(ctx.Self())
}

func (state *NodeActor) sense(ctx actor.Context) {
	channel := state.config.Hardware.Adc.Channel
	if state.sensor == nil {
		state.applyReading(ctx, sensorReading{})
		return
	}
	NewBackgroundTask(ctx, func() (*sensorReading, error) {
		r := sensorReading{}
		watts, err := state.sensor.ReadWatts(channel)
		if err != nil {
			state.logger.Warn("node@running power read failed", zap.Uint8("channel", channel), zap.Error(err))
		} else {
			r.watts, r.wattsOk = watts, true
		}
		if vs, ok := state.sensor.(hal.VoltageSensor); ok {
			v, err := vs.ReadVoltage(channel)
			if err == nil {
				r.voltage, r.voltageOk = v, true
			} else if !errors.Is(err, hal.ErrVoltageNotSupported) {
				state.logger.Warn("node@running voltage read failed", zap.Uint8("channel", channel), zap.Error(err))
			}
		}
		return &r, nil
	}).WithTimeout(SENSOR_READ_TIMEOUT).Recover(func(err error) sensorReading {
		state.logger.Warn("node@running sensor read timed out", zap.Error(err))
		return sensorReading{}
	}).OnSuccess(func(r sensorReading) {
		state.applyReading(ctx, r)
	}).Run()
}

func (state *NodeActor) applyReading(ctx actor.Context, r sensorReading) {
	voltage := state.node.LastVoltage()
	if r.voltageOk {
		voltage = r.voltage
	}
	if r.wattsOk {
		state.node.RecordLoad(r.watts)
		state.logger.Debug("node@running power", zap.Float32("watts", r.watts))
	}
	state.eventStream.Publish(domain.MeasurementUpdateEvent{
		NodeId:  state.node.Id(),
		Voltage: voltage,
		Watts:   r.watts,
	})
	if state.node.CheckVoltage(voltage) {
		state.sendVoltageAlert(ctx, voltage)
	}
}

func (state *NodeActor) pollCommand(ctx actor.Context) {
	NewBackgroundTask(ctx, func() (*receivedCommand, error) {
		c, cancel := context.WithTimeout(context.Background(), state.receiveTimeout())
		defer cancel()
		cmd, err := state.link.Receive(c)
		return &receivedCommand{command: cmd}, err
	}).WithTimeout(withMargin(state.receiveTimeout())).OnError(func(err error) {
		state.logger.Warn("node@running receive failed", zap.Error(err))
	}).OnSuccess(func(r receivedCommand) {
		if r.command != nil {
			state.node.HandleCommand(r.command)
		}
	}).Run()
}

func (state *NodeActor) sendFeatureReport(ctx actor.Context) {
	report := state.node.FeatureReport()
	state.send(ctx, "feature report", func(c context.Context) error {
		return state.link.SendFeatureReport(c, report)
	})
}

func (state *NodeActor) sendHeartbeat(ctx actor.Context) {
	nodeId, battery := state.node.Id(), state.node.BatterySoC()
	state.send(ctx, "heartbeat", func(c context.Context) error {
		return state.link.SendHeartbeat(c, nodeId, battery)
	})
}

func (state *NodeActor) sendVoltageAlert(ctx actor.Context, voltage float32) {
	nodeId := state.node.Id()
	state.send(ctx, "voltage alert", func(c context.Context) error {
		return state.link.SendVoltageAlert(c, nodeId, voltage)
	})
}

func (state *NodeActor) send(ctx actor.Context, what string, fn func(context.Context) error) {
	timeout := state.sendTimeout()
	NewBackgroundTaskErr(ctx, func() error {
		c, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return fn(c)
	}).WithTimeout(withMargin(timeout)).OnError(func(err error) {
		state.logger.Error("node@running send failed", zap.String("message", what), zap.Error(err))
	}).Run()
}

func (state *NodeActor) sendTimeout() time.Duration {
	if state.config.Comms.SendTimeoutMillis > 0 {
		return millis(state.config.Comms.SendTimeoutMillis)
	}
	return DEFAULT_SEND_TIMEOUT
}

func (state *NodeActor) receiveTimeout() time.Duration {
	if state.config.Comms.ReceiveTimeoutMillis > 0 {
		return millis(state.config.Comms.ReceiveTimeoutMillis)
	}
	return DEFAULT_RECEIVE_TIMEOUT
}

func (state *NodeActor) reconnectInterval() time.Duration {
	if state.config.Comms.ReconnectIntervalMillis > 0 {
		return millis(state.config.Comms.ReconnectIntervalMillis)
	}
	return DEFAULT_RECONNECT_INTERVAL
}

// RelayChanged and StateChanged run inside the mailbox, called back by the node.

func (state *NodeActor) RelayChanged(index int, relay domain.Relay) {
	state.eventStream.Publish(domain.RelayStateUpdateEvent{
		NodeId: state.node.Id(),
		Index:  index,
		Relay:  relay,
	})
}

func (state *NodeActor) StateChanged(from, to domain.NodeState) {
	state.eventStream.Publish(domain.NodeStateUpdateEvent{
		NodeId: state.node.Id(),
		From:   from,
		To:     to,
	})
}

func (state *NodeActor) stop() {
	for _, cancel := range state.cancels {
		cancel()
	}
	state.cancels = nil
	if state.linkOpen {
		state.linkOpen = false
		if err := state.link.Close(); err != nil {
			state.logger.Warn("node: link close failed", zap.Error(err))
		}
	}
	state.logger.Debug("node: stopped")
}

func millis(ms uint32) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func withMargin(timeout time.Duration) time.Duration {
	return timeout + TASK_TIMEOUT_MARGIN
}

var _ port.NodeObserver = (*NodeActor)(nil)
