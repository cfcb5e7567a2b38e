package events

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	. "github.com/streetgrid/gridnode/internal/core/domain"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE    = "bridge"
	SENSOR_ID_NODE_STATE      = "node_state"
	SENSOR_ID_LINE_VOLTAGE    = "line_voltage"
	SENSOR_ID_LOAD_POWER      = "load_power"
	SENSOR_ID_RELAY_PREFIX    = "relay_"
	STATE_CLASS_MEASUREMENT   = "measurement"
	DEVICE_CLASS_POWER        = "power"
	DEVICE_CLASS_VOLTAGE      = "voltage"
	DEVICE_CLASS_CONNECTIVITY = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC   = "diagnostic"
	SENSOR_TYPE_SENSOR        = "sensor"
	SENSOR_TYPE_BINARY        = "binary_sensor"
)

func NodeDevice(nodeId string) Device {
	return Device{
		Id:           fmt.Sprintf("gridnode_%s", md5HashShort(nodeId)),
		Manufacturer: "StreetGrid",
		Model:        "Gridnode",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Gridnode %s", nodeId),
	}
}

func RelaySensorId(relayId string) string {
	return SENSOR_ID_RELAY_PREFIX + relayId
}

func NodeSensors(nodeDevice Device, relays []Relay) []GenericSensor {

	var sensors []GenericSensor

	// Connection state
	sensors = append(sensors, GenericSensor{
		Device:         nodeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(nodeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	// Node state
	sensors = append(sensors, GenericSensor{
		Device:     nodeDevice,
		Id:         SENSOR_ID_NODE_STATE,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Node state",
		UniqueId:   uniqueId(nodeDevice.Id, SENSOR_ID_NODE_STATE),
		Icon:       "mdi:transmission-tower",
	})

	// Line voltage
	sensors = append(sensors, GenericSensor{
		Device:            nodeDevice,
		Id:                SENSOR_ID_LINE_VOLTAGE,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Line voltage",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_VOLTAGE,
		UnitOfMeasurement: "V",
		UniqueId:          uniqueId(nodeDevice.Id, SENSOR_ID_LINE_VOLTAGE),
	})

	// Load power
	sensors = append(sensors, GenericSensor{
		Device:            nodeDevice,
		Id:                SENSOR_ID_LOAD_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Load power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		UniqueId:          uniqueId(nodeDevice.Id, SENSOR_ID_LOAD_POWER),
	})

	for _, r := range relays {
		id := RelaySensorId(r.Id)
		sensors = append(sensors, GenericSensor{
			Device:      nodeDevice,
			Id:          id,
			SensorType:  SENSOR_TYPE_BINARY,
			Name:        fmt.Sprintf("Relay %s", r.Name),
			DeviceClass: DEVICE_CLASS_POWER,
			UniqueId:    uniqueId(nodeDevice.Id, id),
			Icon:        relayIcon(r.RelayType),
		})
	}

	return sensors
}

func relayIcon(t RelayType) string {
	switch t {
	case RelayTypeGrid:
		return "mdi:transmission-tower-export"
	case RelayTypeSource:
		return "mdi:solar-power"
	default:
		return "mdi:power-socket"
	}
}

func uniqueId(deviceId, sensorId string) string {
	return fmt.Sprintf("%s_%s", deviceId, sensorId)
}

func md5HashShort(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])[:8]
}
