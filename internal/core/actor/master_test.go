package actor

import (
	"fmt"
	"testing"
	"time"

	adactor "github.com/streetgrid/gridnode/internal/adapter/actor"
	"github.com/streetgrid/gridnode/internal/adapter/link"
	"github.com/streetgrid/gridnode/internal/core/domain"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spawnMaster(t *testing.T, as *actor.ActorSystem, rig *testRig, withStatus bool) *actor.PID {
	t.Helper()
	var provider StatusActorProvider
	if withStatus {
		provider = func(nodeActor *actor.PID, eventStream *eventstream.EventStream) *adactor.StatusActor {
			return adactor.NewTestStatusActor(&rig.cfg, nodeActor, eventStream, rig.logger)
		}
	}
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterActor(rig.cfg, rig.deps, provider, rig.logger)
	})
	pid, err := as.Root.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	require.NoError(t, err)
	return pid
}

func masterHealthy(as *actor.ActorSystem, pid *actor.PID) bool {
	res, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, 3*time.Second).Result()
	if err != nil {
		return false
	}
	resp, ok := res.(domain.ActorHealthResponse)
	return ok && resp.Healthy
}

func TestMasterActor(t *testing.T) {
	as := actor.NewActorSystem()
	defer as.Shutdown()
	rig := newTestRig(t)
	pid := spawnMaster(t, as, rig, true)
	defer as.Root.Stop(pid)

	assert.Eventually(t, func() bool {
		return masterHealthy(as, pid)
	}, 5*time.Second, 100*time.Millisecond, "healthy is true")

	// status requests are forwarded to the node loop
	status := nodeStatus(t, as, pid)
	assert.Equal(t, "node-test", status.NodeId)
	assert.Len(t, status.Relays, 3)
}

func TestMasterActorWithoutStatus(t *testing.T) {
	as := actor.NewActorSystem()
	defer as.Shutdown()
	rig := newTestRig(t)
	pid := spawnMaster(t, as, rig, false)
	defer as.Root.Stop(pid)

	assert.Eventually(t, func() bool {
		return masterHealthy(as, pid)
	}, 5*time.Second, 100*time.Millisecond)
}

func TestMasterActorPublishesRelayChanges(t *testing.T) {
	as := actor.NewActorSystem()
	defer as.Shutdown()
	rig := newTestRig(t)
	pid := spawnMaster(t, as, rig, true)
	defer as.Root.Stop(pid)

	statusPID := as.NewLocalPID(fmt.Sprintf("%s/%s", domain.ACTOR_ID_MASTER, domain.ACTOR_ID_STATUS))
	published := func() map[string]string {
		res, err := as.Root.RequestFuture(statusPID, adactor.GetPublishedRequest{}, 500*time.Millisecond).Result()
		if err != nil {
			return nil
		}
		resp, ok := res.(adactor.GetPublishedResponse)
		if !ok {
			return nil
		}
		last := map[string]string{}
		for _, m := range resp.Messages {
			last[m.Topic] = m.Message
		}
		return last
	}

	hvacTopic := "gridnode/node-test/binary_sensor/relay_hvac/state"
	stateTopic := "gridnode/node-test/sensor/node_state/state"

	// seeded from the node snapshot
	assert.Eventually(t, func() bool {
		last := published()
		return last[hvacTopic] == "on" && last[stateTopic] == "normal"
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, rig.radio.Inject(link.CommandEnvelope(domain.EnterIslandCommand{
		CommandMixIn: domain.CommandMixIn{Target: "node-test"},
	})))

	assert.Eventually(t, func() bool {
		last := published()
		return last[hvacTopic] == "off" && last[stateTopic] == "islanded" &&
			last["gridnode/node-test/binary_sensor/relay_grid/state"] == "off"
	}, 3*time.Second, 20*time.Millisecond)
}
