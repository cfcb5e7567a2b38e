package util

import (
	"github.com/streetgrid/gridnode/internal/config"

	"go.uber.org/zap"
)

// LoadTestConfig returns a node with three relays on simulated hardware and a
// simulated radio, with loop intervals short enough for tests.
func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		NodeId:   "node-test",
		MeshType: "AdHoc",
		Relays: []config.RelayConfig{
			{Id: "grid", Name: "Grid tie", Type: "Grid", Priority: "Critical", Amperage: 100, IsClosed: true},
			{Id: "hvac", Name: "HVAC", Type: "Load", Priority: "Medium", Amperage: 30, IsClosed: true},
			{Id: "outlets", Name: "Outlets", Type: "Load", Priority: "Low", Amperage: 15, IsClosed: true},
		},
		Hardware: config.HardwareConfig{
			RelayDriver: config.DRIVER_SIM,
			PowerSensor: config.DRIVER_SIM,
			RelayPins: []config.RelayPinConfig{
				{RelayId: "grid", Pin: 17},
				{RelayId: "hvac", Pin: 27, ActiveLow: true},
				{RelayId: "outlets", Pin: 22},
			},
			Adc: config.AdcConfig{
				Channel:        0,
				CTRatio:        100,
				VoltageRef:     120,
				BurdenResistor: 33,
			},
		},
		Comms: config.CommsConfig{
			Transport:               config.TRANSPORT_SIM,
			SendTimeoutMillis:       500,
			ReceiveTimeoutMillis:    50,
			ReconnectIntervalMillis: 50,
			QueueSize:               16,
		},
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "gridnode",
			HADiscoveryTopic: "homeassistant",
		},
		Loop: config.LoopConfig{
			SenseIntervalMillis:       50,
			HeartbeatIntervalMillis:   300,
			CommandPollIntervalMillis: 20,
		},
		Sensing: config.SensingConfig{
			UndervoltageThreshold: 110,
		},
		Port: 8080,
	}
}
