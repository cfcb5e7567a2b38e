package link

import (
	"encoding/json"

	"github.com/streetgrid/gridnode/internal/core/domain"
)

// Envelope is the mesh message. Exactly one payload is set; a message with no known payload is ignored.
type Envelope struct {
	Heartbeat               *domain.Heartbeat               `json:"heartbeat,omitempty"`
	FeatureReport           *domain.FeatureReport           `json:"feature_report,omitempty"`
	VoltageAlert            *domain.VoltageAlert            `json:"voltage_alert,omitempty"`
	LoadShed                *LoadShedPayload                `json:"load_shed,omitempty"`
	EnterIsland             *TargetPayload                  `json:"enter_island,omitempty"`
	EnterBlackStart         *TargetPayload                  `json:"enter_black_start,omitempty"`
	ActivateRelayByIndex    *ActivateRelayByIndexPayload    `json:"activate_relay_by_index,omitempty"`
	ActivateRelayByPriority *ActivateRelayByPriorityPayload `json:"activate_relay_by_priority,omitempty"`
}

type TargetPayload struct {
	TargetNodeId string `json:"target_node_id"`
}

type LoadShedPayload struct {
	TargetNodeId string `json:"target_node_id"`
	ShedLoad     bool   `json:"shed_load"`
}

type ActivateRelayByIndexPayload struct {
	TargetNodeId string `json:"target_node_id"`
	RelayIndex   uint32 `json:"relay_index"`
}

type ActivateRelayByPriorityPayload struct {
	TargetNodeId string `json:"target_node_id"`
	Priority     int32  `json:"priority"`
}

func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func DecodeEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// ToCommand returns the inbound command carried by the envelope, or nil for telemetry
// and unknown payloads.
func (e Envelope) ToCommand() domain.Command {
	switch {
	case e.LoadShed != nil:
		return domain.LoadShedCommand{
			CommandMixIn: domain.CommandMixIn{Target: e.LoadShed.TargetNodeId},
			Shed:         e.LoadShed.ShedLoad,
		}
	case e.EnterIsland != nil:
		return domain.EnterIslandCommand{
			CommandMixIn: domain.CommandMixIn{Target: e.EnterIsland.TargetNodeId},
		}
	case e.EnterBlackStart != nil:
		return domain.EnterBlackStartCommand{
			CommandMixIn: domain.CommandMixIn{Target: e.EnterBlackStart.TargetNodeId},
		}
	case e.ActivateRelayByIndex != nil:
		return domain.ActivateRelayByIndexCommand{
			CommandMixIn: domain.CommandMixIn{Target: e.ActivateRelayByIndex.TargetNodeId},
			RelayIndex:   e.ActivateRelayByIndex.RelayIndex,
		}
	case e.ActivateRelayByPriority != nil:
		return domain.ActivateRelayByPriorityCommand{
			CommandMixIn: domain.CommandMixIn{Target: e.ActivateRelayByPriority.TargetNodeId},
			Priority:     e.ActivateRelayByPriority.Priority,
		}
	default:
		return nil
	}
}

// CommandEnvelope wraps a command for sending, the inverse of ToCommand.
func CommandEnvelope(cmd domain.Command) Envelope {
	target := cmd.TargetNodeId()
	switch c := cmd.(type) {
	case domain.LoadShedCommand:
		return Envelope{LoadShed: &LoadShedPayload{TargetNodeId: target, ShedLoad: c.Shed}}
	case domain.EnterIslandCommand:
		return Envelope{EnterIsland: &TargetPayload{TargetNodeId: target}}
	case domain.EnterBlackStartCommand:
		return Envelope{EnterBlackStart: &TargetPayload{TargetNodeId: target}}
	case domain.ActivateRelayByIndexCommand:
		return Envelope{ActivateRelayByIndex: &ActivateRelayByIndexPayload{TargetNodeId: target, RelayIndex: c.RelayIndex}}
	case domain.ActivateRelayByPriorityCommand:
		return Envelope{ActivateRelayByPriority: &ActivateRelayByPriorityPayload{TargetNodeId: target, Priority: c.Priority}}
	default:
		return Envelope{}
	}
}
