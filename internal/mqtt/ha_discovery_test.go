package mqtt

import (
	"testing"

	"github.com/streetgrid/gridnode/internal/config"
	"github.com/streetgrid/gridnode/internal/core/domain"
	"github.com/streetgrid/gridnode/internal/core/events"

	"github.com/stretchr/testify/assert"
)

func TestHADiscoveryMessages(t *testing.T) {

	assert := assert.New(t)

	cfg := config.Config{
		NodeId: "node_7",
		MQTT: config.MQTTConfig{
			BaseTopic:        "gridnode",
			HADiscoveryTopic: "homeassistant",
		},
	}
	client := CreateMQTTClient(&cfg, OptsFromConfig(&cfg), nil, nil)

	dev := events.NodeDevice("node_7")
	sensors := events.NodeSensors(dev, []domain.Relay{
		{Id: "hvac", Name: "HVAC", RelayType: domain.RelayTypeLoad},
	})
	assert.Len(sensors, 5)

	bridge := GenericSensorToHADiscoveryMessage(client, sensors[0])
	assert.Equal("gridnode/node_7/availability", bridge.StateTopic)
	assert.Equal(MQTT_PAYLOAD_ONLINE, bridge.PayloadOn)

	state := GenericSensorToHADiscoveryMessage(client, sensors[1])
	assert.Equal("gridnode/node_7/sensor/node_state/state", state.StateTopic)
	assert.Empty(state.PayloadOn)

	relay := GenericSensorToHADiscoveryMessage(client, sensors[4])
	assert.Equal("gridnode/node_7/binary_sensor/relay_hvac/state", relay.StateTopic)
	assert.Equal(MQTT_PAYLOAD_ON, relay.PayloadOn)
	assert.Equal([]string{dev.Id}, relay.Device.Id)
	assert.Equal("homeassistant/binary_sensor/"+dev.Id+"/relay_hvac/config", client.HADiscoverySensorTopic(sensors[4]))
}
