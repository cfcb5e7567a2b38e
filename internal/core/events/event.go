package events

import (
	. "github.com/streetgrid/gridnode/internal/core/domain"
)

// ToSensorUpdateEvents maps a node event to the sensor updates published on the status topics.
func ToSensorUpdateEvents(event any) []SensorUpdateEvent {
	switch ev := event.(type) {
	case RelayStateUpdateEvent:
		return []SensorUpdateEvent{RelayToUpdateEvent(ev.Relay)}
	case NodeStateUpdateEvent:
		return []SensorUpdateEvent{NodeStateToUpdateEvent(ev.To)}
	case MeasurementUpdateEvent:
		return []SensorUpdateEvent{
			FloatSensorUpdateEvent{
				SensorUpdateEventMixIn: SensorUpdateEventMixIn{
					Id: SENSOR_ID_LINE_VOLTAGE,
				},
				Value:    float64(ev.Voltage),
				Decimals: 1,
			},
			FloatSensorUpdateEvent{
				SensorUpdateEventMixIn: SensorUpdateEventMixIn{
					Id: SENSOR_ID_LOAD_POWER,
				},
				Value:    float64(ev.Watts),
				Decimals: 1,
			},
		}
	default:
		return nil
	}
}

// NodeStatusToUpdateEvents returns the full state snapshot, used to seed retained topics.
func NodeStatusToUpdateEvents(status NodeStatus) []SensorUpdateEvent {
	events := []SensorUpdateEvent{
		TextSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_NODE_STATE,
			},
			Value: status.State,
		},
	}
	for _, r := range status.Relays {
		events = append(events, RelayToUpdateEvent(r))
	}
	return events
}

func RelayToUpdateEvent(r Relay) SensorUpdateEvent {
	return BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: RelaySensorId(r.Id),
		},
		Value: r.IsClosed,
	}
}

func NodeStateToUpdateEvent(s NodeState) SensorUpdateEvent {
	return TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_NODE_STATE,
		},
		Value: s.String(),
	}
}
