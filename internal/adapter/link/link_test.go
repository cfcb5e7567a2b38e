package link

import (
	"context"
	"testing"
	"time"

	"github.com/streetgrid/gridnode/internal/config"
	"github.com/streetgrid/gridnode/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T) (*OrchestratorClient, *SimRadioTransport) {
	t.Helper()
	logger := zap.Must(zap.NewDevelopment())
	radio := NewSimRadioTransport(DefaultRadioConfig(), logger)
	client := NewOrchestratorClient(radio, logger)
	client.now = func() time.Time { return time.Unix(1700000000, 0) }
	require.NoError(t, client.Open(context.Background()))
	return client, radio
}

func TestEnvelopeCommands(t *testing.T) {
	cmds := []domain.Command{
		domain.LoadShedCommand{CommandMixIn: domain.CommandMixIn{Target: "n1"}, Shed: true},
		domain.LoadShedCommand{CommandMixIn: domain.CommandMixIn{Target: "n1"}, Shed: false},
		domain.EnterIslandCommand{CommandMixIn: domain.CommandMixIn{Target: "n1"}},
		domain.EnterBlackStartCommand{CommandMixIn: domain.CommandMixIn{Target: "n2"}},
		domain.ActivateRelayByIndexCommand{CommandMixIn: domain.CommandMixIn{Target: "n1"}, RelayIndex: 3},
		domain.ActivateRelayByPriorityCommand{CommandMixIn: domain.CommandMixIn{Target: "n1"}, Priority: 7},
	}
	for _, cmd := range cmds {
		data, err := CommandEnvelope(cmd).Encode()
		require.NoError(t, err)
		env, err := DecodeEnvelope(data)
		require.NoError(t, err)
		assert.Equal(t, cmd, env.ToCommand(), cmd.CommandName())
	}
}

func TestEnvelopeWireFormat(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"load_shed":{"target_node_id":"node_1","shed_load":true}}`))
	require.NoError(t, err)
	assert.Equal(t, domain.LoadShedCommand{CommandMixIn: domain.CommandMixIn{Target: "node_1"}, Shed: true}, env.ToCommand())

	env, err = DecodeEnvelope([]byte(`{"activate_relay_by_priority":{"target_node_id":"node_1","priority":1}}`))
	require.NoError(t, err)
	assert.Equal(t, domain.ActivateRelayByPriorityCommand{CommandMixIn: domain.CommandMixIn{Target: "node_1"}, Priority: 1}, env.ToCommand())

	// unknown and telemetry payloads carry no command
	env, err = DecodeEnvelope([]byte(`{"firmware_update":{"url":"x"}}`))
	require.NoError(t, err)
	assert.Nil(t, env.ToCommand())
	env, err = DecodeEnvelope([]byte(`{"heartbeat":{"node_id":"node_2","timestamp":1,"battery_level":0.5}}`))
	require.NoError(t, err)
	assert.Nil(t, env.ToCommand())

	_, err = DecodeEnvelope([]byte(`{not json`))
	assert.Error(t, err)
}

func TestClientTelemetry(t *testing.T) {
	client, radio := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.SendHeartbeat(ctx, "node_1", 1.0))
	require.NoError(t, client.SendVoltageAlert(ctx, "node_1", 104.5))
	report := domain.NewFeatureReport("node_1", domain.MeshTypeGovernmentSanctioned, []domain.Relay{
		{Id: "grid", Name: "Grid", RelayType: domain.RelayTypeGrid, Priority: domain.PriorityCritical, IsClosed: true},
	})
	require.NoError(t, client.SendFeatureReport(ctx, report))

	sent := radio.Sent()
	require.Len(t, sent, 3)
	assert.Equal(t, &domain.Heartbeat{NodeId: "node_1", Timestamp: 1700000000, BatteryLevel: 1.0}, sent[0].Heartbeat)
	assert.Equal(t, &domain.VoltageAlert{NodeId: "node_1", Voltage: 104.5, Timestamp: 1700000000}, sent[1].VoltageAlert)
	require.NotNil(t, sent[2].FeatureReport)
	assert.Equal(t, "GovernmentSanctioned", sent[2].FeatureReport.MeshType)
	assert.Equal(t, int32(2), sent[2].FeatureReport.Relays[0].RelayType)
	assert.Len(t, radio.TxLog(), 3)
}

func TestClientReceive(t *testing.T) {
	client, radio := newTestClient(t)
	ctx := context.Background()

	cmd, err := client.Receive(ctx)
	require.NoError(t, err)
	assert.Nil(t, cmd)

	require.NoError(t, radio.Inject(Envelope{EnterIsland: &TargetPayload{TargetNodeId: "node_1"}}))
	radio.InjectRaw([]byte(`{"unknown":{}}`))
	radio.InjectRaw([]byte(`garbage`))
	require.NoError(t, radio.Inject(Envelope{LoadShed: &LoadShedPayload{TargetNodeId: "node_1", ShedLoad: true}}))

	// one message per call, in order
	cmd, err = client.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.EnterIslandCommand{CommandMixIn: domain.CommandMixIn{Target: "node_1"}}, cmd)

	cmd, err = client.Receive(ctx)
	require.NoError(t, err)
	assert.Nil(t, cmd)

	_, err = client.Receive(ctx)
	assert.Error(t, err)

	cmd, err = client.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.LoadShedCommand{CommandMixIn: domain.CommandMixIn{Target: "node_1"}, Shed: true}, cmd)
}

func TestSimRadioClosed(t *testing.T) {
	client, radio := newTestClient(t)
	require.NoError(t, client.Close())

	err := client.SendHeartbeat(context.Background(), "node_1", 1)
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = client.Receive(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Empty(t, radio.TxLog())
}

func TestMQTTTransportNotConnected(t *testing.T) {
	cfg := config.Config{
		NodeId: "node_1",
		MQTT:   config.MQTTConfig{Host: "localhost", Port: 1883, BaseTopic: "gridnode"},
		Comms:  config.CommsConfig{QueueSize: 2},
	}
	tr := NewMQTTTransport(&cfg, zap.NewNop())

	err := tr.Send(context.Background(), Envelope{Heartbeat: &domain.Heartbeat{NodeId: "node_1"}})
	assert.ErrorIs(t, err, ErrNotConnected)

	env, err := tr.Receive(context.Background())
	require.NoError(t, err)
	assert.Nil(t, env)

	// bounded inbox drops when full
	tr.enqueue([]byte(`{"enter_island":{"target_node_id":"node_1"}}`))
	tr.enqueue([]byte(`{"enter_black_start":{"target_node_id":"node_1"}}`))
	tr.enqueue([]byte(`{"load_shed":{"target_node_id":"node_1","shed_load":true}}`))

	env, err = tr.Receive(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, env.EnterIsland)
	env, err = tr.Receive(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, env.EnterBlackStart)
	env, err = tr.Receive(context.Background())
	require.NoError(t, err)
	assert.Nil(t, env)
}

func TestLogTransport(t *testing.T) {
	client := NewOrchestratorClient(NewLogTransport(zap.Must(zap.NewDevelopment())), zap.Must(zap.NewDevelopment()))
	require.NoError(t, client.Open(context.Background()))

	assert.NoError(t, client.SendHeartbeat(context.Background(), "n1", 1.0))
	cmd, err := client.Receive(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, cmd)
	assert.NoError(t, client.Close())
}
