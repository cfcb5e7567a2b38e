package events

import (
	"testing"

	. "github.com/streetgrid/gridnode/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestToSensorUpdateEvents(t *testing.T) {
	evs := ToSensorUpdateEvents(RelayStateUpdateEvent{Relay: Relay{Id: "hvac", IsClosed: true}})
	assert.Equal(t, []SensorUpdateEvent{
		BinarySensorUpdateEvent{SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: "relay_hvac"}, Value: true},
	}, evs)

	evs = ToSensorUpdateEvents(NodeStateUpdateEvent{From: NodeStateNormal, To: NodeStateIslanded})
	assert.Equal(t, []SensorUpdateEvent{
		TextSensorUpdateEvent{SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: SENSOR_ID_NODE_STATE}, Value: "islanded"},
	}, evs)

	evs = ToSensorUpdateEvents(MeasurementUpdateEvent{Voltage: 120, Watts: 300})
	assert.Len(t, evs, 2)
	assert.Equal(t, SENSOR_ID_LINE_VOLTAGE, evs[0].SensorId())
	assert.Equal(t, SENSOR_ID_LOAD_POWER, evs[1].SensorId())

	assert.Nil(t, ToSensorUpdateEvents(42))
}

func TestNodeStatusToUpdateEvents(t *testing.T) {
	evs := NodeStatusToUpdateEvents(NodeStatus{
		State:  "alert_sent",
		Relays: []Relay{{Id: "grid", IsClosed: true}, {Id: "pump"}},
	})
	assert.Len(t, evs, 3)
	assert.Equal(t, SENSOR_ID_NODE_STATE, evs[0].SensorId())
	assert.Equal(t, "relay_grid", evs[1].SensorId())
	assert.Equal(t, BinarySensorUpdateEvent{SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: "relay_pump"}}, evs[2])
}

func TestNodeSensors(t *testing.T) {
	device := NodeDevice("n1")
	sensors := NodeSensors(device, []Relay{
		{Id: "grid", Name: "Grid", RelayType: RelayTypeGrid},
		{Id: "pump", Name: "Pump", RelayType: RelayTypeLoad},
	})
	assert.Len(t, sensors, 6)
	ids := make(map[string]bool)
	unique := make(map[string]bool)
	for _, s := range sensors {
		ids[s.Id] = true
		unique[s.UniqueId] = true
		assert.Equal(t, device, s.Device)
	}
	assert.Len(t, unique, 6)
	for _, id := range []string{SENSOR_ID_BRIDGE_STATE, SENSOR_ID_NODE_STATE, SENSOR_ID_LINE_VOLTAGE,
		SENSOR_ID_LOAD_POWER, "relay_grid", "relay_pump"} {
		assert.True(t, ids[id], id)
	}
	assert.Equal(t, SENSOR_TYPE_BINARY, sensors[4].SensorType)
	assert.Equal(t, "Relay Grid", sensors[4].Name)
}
