package actor

import (
	"fmt"
	"log"
	"time"

	adactor "github.com/streetgrid/gridnode/internal/adapter/actor"
	"github.com/streetgrid/gridnode/internal/config"
	"github.com/streetgrid/gridnode/internal/core/domain"
	"github.com/streetgrid/gridnode/internal/core/port"
	. "github.com/streetgrid/gridnode/internal/util/actorutil"
	"github.com/streetgrid/gridnode/pkg/hal"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

const HEALTH_CHECK_TIMEOUT = 500 * time.Millisecond

type StatusActorProvider func(nodeActor *actor.PID, eventStream *eventstream.EventStream) *adactor.StatusActor

// NodeDeps groups what the node actor needs. They are built once in main and
// shared by every incarnation of the node actor.
type NodeDeps struct {
	Node    port.NodeController
	Link    port.OrchestratorLink
	Sensor  hal.PowerSensor
	Version string
}

// MasterActor supervises the node loop and the optional status publisher and
// aggregates their health.
type MasterActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck  healthCheckResult
	eventStream         *eventstream.EventStream
	deps                NodeDeps
	nodeActor           *actor.PID
	statusActor         *actor.PID
	statusActorProvider StatusActorProvider
	logger              *zap.Logger
}

type healthCheckResult struct {
	healthy        map[string]bool
	nodeState      string
	expected       int
	checksReceived int
	respondTo      *actor.PID
}

// NewMasterActor builds the root actor. statusActorProvider may be nil, in which
// case no status publisher is started.
func NewMasterActor(config config.Config, deps NodeDeps, statusActorProvider StatusActorProvider, logger *zap.Logger) *MasterActor {
	act := &MasterActor{
		config:              config,
		behavior:            actor.NewBehavior(),
		stash:               &Stash{},
		logger:              ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:         &eventstream.EventStream{},
		deps:                deps,
		statusActorProvider: statusActorProvider,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		nodeActorPID, err := state.startNodeActor(ctx)
		if err != nil {
			panic(err)
		}
		state.nodeActor = nodeActorPID

		if state.statusActorProvider != nil {
			statusActorPID, err := state.startStatusActor(ctx)
			if err != nil {
				panic(err)
			}
			state.statusActor = statusActorPID
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset()
		state.currentHealthCheck.respondTo = ForRequest(msg).ReplyTo(ctx)

		state.requestHealth(ctx, state.nodeActor, domain.ACTOR_ID_NODE)
		if state.statusActor != nil {
			state.requestHealth(ctx, state.statusActor, domain.ACTOR_ID_STATUS)
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case domain.GetNodeStatusRequest:
		state.logger.Debug("master@default GetNodeStatusRequest")
		ctx.Forward(state.nodeActor)
	case *actor.Terminated:
		state.logger.Warn("master@default child terminated", zap.String("child", msg.Who.Id))
	case *actor.Stopping, *actor.Stopped, *actor.Restarting:
	default:
		state.logger.Debug("master@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MasterActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// children that did not answer count as unhealthy
		ctx.CancelReceiveTimeout()
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy),
			zap.String("state", msg.State))
		state.currentHealthCheck.checksReceived++
		state.currentHealthCheck.healthy[msg.Id] = msg.Healthy
		if msg.Id == domain.ACTOR_ID_NODE {
			state.currentHealthCheck.nodeState = msg.State
		}
		if state.currentHealthCheck.allReceived() {
			ctx.CancelReceiveTimeout()
			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterActor) requestHealth(ctx actor.Context, pid *actor.PID, id string) {
	state.currentHealthCheck.expected++
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, HEALTH_CHECK_TIMEOUT), func(err error) any {
		return domain.ActorHealthResponse{
			Id:      id,
			Healthy: false,
		}
	})
}

func (state *MasterActor) startNodeActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for node loop. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(10, 10*time.Second, decider)

	nodeProps := actor.PropsFromProducer(func() actor.Actor {
		return NewNodeActor(&state.config, state.deps.Node, state.deps.Link, state.deps.Sensor, state.eventStream,
			state.deps.Version, state.logger)
	}, actor.WithSupervisor(supervisor))
	nodeActorPID, err := ctx.SpawnNamed(nodeProps, domain.ACTOR_ID_NODE)
	if err != nil {
		return nil, err
	}

	return nodeActorPID, nil
}

func (state *MasterActor) startStatusActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	statusProps := actor.PropsFromProducer(func() actor.Actor {
		return state.statusActorProvider(state.nodeActor, state.eventStream)
	}, actor.WithSupervisor(supervisor))
	statusActorPID, err := ctx.SpawnNamed(statusProps, domain.ACTOR_ID_STATUS)
	if err != nil {
		return nil, err
	}

	return statusActorPID, nil
}

func (state *healthCheckResult) reset() {
	state.healthy = make(map[string]bool)
	state.expected = 0
	state.checksReceived = 0
	state.nodeState = ""
	state.respondTo = nil
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived >= state.expected
}

func (state *healthCheckResult) allHealthy() bool {
	if len(state.healthy) < state.expected {
		return false
	}
	for _, ok := range state.healthy {
		if !ok {
			return false
		}
	}
	return true
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
		State:   state.nodeState,
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
