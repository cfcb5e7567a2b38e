package domain

type Heartbeat struct {
	NodeId       string  `json:"node_id"`
	Timestamp    uint64  `json:"timestamp"`
	BatteryLevel float32 `json:"battery_level"`
}

type VoltageAlert struct {
	NodeId    string  `json:"node_id"`
	Voltage   float32 `json:"voltage"`
	Timestamp uint64  `json:"timestamp"`
}

// RelayInfo describes one relay in a feature report. Index is its inventory position,
// RelayType and Priority are the numeric codes.
type RelayInfo struct {
	Index     uint32  `json:"index"`
	Id        string  `json:"id"`
	Name      string  `json:"name"`
	RelayType int32   `json:"relay_type"`
	Priority  int32   `json:"priority"`
	Amperage  float32 `json:"amperage"`
	IsClosed  bool    `json:"is_closed"`
}

type FeatureReport struct {
	NodeId   string      `json:"node_id"`
	MeshType string      `json:"mesh_type"`
	Relays   []RelayInfo `json:"relays"`
}

func NewFeatureReport(nodeId string, meshType MeshType, relays []Relay) FeatureReport {
	infos := make([]RelayInfo, 0, len(relays))
	for i, r := range relays {
		infos = append(infos, RelayInfo{
			Index:     uint32(i),
			Id:        r.Id,
			Name:      r.Name,
			RelayType: int32(r.RelayType),
			Priority:  int32(r.Priority),
			Amperage:  r.Amperage,
			IsClosed:  r.IsClosed,
		})
	}
	return FeatureReport{
		NodeId:   nodeId,
		MeshType: meshType.String(),
		Relays:   infos,
	}
}
