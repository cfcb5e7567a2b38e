package domain

import (
	"fmt"
	"strings"
)

type RelayType int

const (
	RelayTypeSource RelayType = iota
	RelayTypeLoad
	RelayTypeGrid
)

var relayTypeNames = map[RelayType]string{
	RelayTypeSource: "source",
	RelayTypeLoad:   "load",
	RelayTypeGrid:   "grid",
}

func (t RelayType) String() string {
	if name, ok := relayTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("relay_type(%d)", int(t))
}

func (t RelayType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func ParseRelayType(s string) (RelayType, error) {
	for t, name := range relayTypeNames {
		if strings.EqualFold(s, name) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown relay type %q", s)
}

// Priority orders loads for shedding. Lower value means more important.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityMedium
	PriorityLow
)

var priorityNames = map[Priority]string{
	PriorityCritical: "critical",
	PriorityHigh:     "high",
	PriorityMedium:   "medium",
	PriorityLow:      "low",
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func ParsePriority(s string) (Priority, error) {
	for p, name := range priorityNames {
		if strings.EqualFold(s, name) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}

// PriorityFromCode maps the wire priority code. Anything outside 0..2 is Low.
func PriorityFromCode(code int32) Priority {
	switch code {
	case 0:
		return PriorityCritical
	case 1:
		return PriorityHigh
	case 2:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

type NodeState int

const (
	NodeStateNormal NodeState = iota
	NodeStateAlertSent
	NodeStateIslanded
	NodeStateBlackStart
)

var nodeStateNames = map[NodeState]string{
	NodeStateNormal:     "normal",
	NodeStateAlertSent:  "alert_sent",
	NodeStateIslanded:   "islanded",
	NodeStateBlackStart: "black_start",
}

func (s NodeState) String() string {
	if name, ok := nodeStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("node_state(%d)", int(s))
}

type MeshType int

const (
	MeshTypeAdHoc MeshType = iota
	MeshTypeGovernmentSanctioned
)

func (m MeshType) String() string {
	switch m {
	case MeshTypeAdHoc:
		return "AdHoc"
	case MeshTypeGovernmentSanctioned:
		return "GovernmentSanctioned"
	default:
		return fmt.Sprintf("mesh_type(%d)", int(m))
	}
}

func ParseMeshType(s string) (MeshType, error) {
	switch strings.ToLower(strings.ReplaceAll(s, "_", "")) {
	case "", "adhoc":
		return MeshTypeAdHoc, nil
	case "governmentsanctioned":
		return MeshTypeGovernmentSanctioned, nil
	default:
		return 0, fmt.Errorf("unknown mesh type %q", s)
	}
}

type Relay struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	RelayType RelayType `json:"relay_type"`
	Priority  Priority  `json:"priority"`
	Amperage  float32   `json:"amperage"`
	IsClosed  bool      `json:"is_closed"`
}
