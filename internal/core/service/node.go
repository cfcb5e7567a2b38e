package service

import (
	"github.com/streetgrid/gridnode/internal/core/domain"
	"github.com/streetgrid/gridnode/internal/core/port"

	"go.uber.org/zap"
)

const (
	UNDERVOLTAGE_THRESHOLD = 110.0
	INITIAL_BATTERY_SOC    = 1.0
)

type NodeConfig struct {
	Id       string
	MeshType domain.MeshType
	// volts, UNDERVOLTAGE_THRESHOLD when zero
	UndervoltageThreshold float32
	// last known voltage before the first reading
	VoltageRef float32
}

var _ port.NodeController = (*Node)(nil)

// Node is the decision engine of a grid-edge node: relay policies, state machine and command dispatch.
// It holds no locks; a single goroutine must own it.
type Node struct {
	id          string
	meshType    domain.MeshType
	state       domain.NodeState
	batterySoC  float32
	lastVoltage float32
	lastWatts   float32
	threshold   float32
	inventory   *RelayInventory
	observer    port.NodeObserver
	logger      *zap.Logger
}

func NewNode(cfg NodeConfig, inventory *RelayInventory, logger *zap.Logger) *Node {
	threshold := cfg.UndervoltageThreshold
	if threshold <= 0 {
		threshold = UNDERVOLTAGE_THRESHOLD
	}
	n := &Node{
		id:          cfg.Id,
		meshType:    cfg.MeshType,
		state:       domain.NodeStateNormal,
		batterySoC:  INITIAL_BATTERY_SOC,
		lastVoltage: cfg.VoltageRef,
		threshold:   threshold,
		inventory:   inventory,
		logger:      logger.With(zap.String("node", cfg.Id)),
	}
	inventory.setChangeHook(n.relayChanged)
	return n
}

func (n *Node) Id() string {
	return n.id
}

func (n *Node) State() domain.NodeState {
	return n.state
}

func (n *Node) MeshType() domain.MeshType {
	return n.meshType
}

func (n *Node) BatterySoC() float32 {
	return n.batterySoC
}

func (n *Node) LastVoltage() float32 {
	return n.lastVoltage
}

func (n *Node) Inventory() *RelayInventory {
	return n.inventory
}

func (n *Node) SetObserver(o port.NodeObserver) {
	n.observer = o
}

func (n *Node) FeatureReport() domain.FeatureReport {
	return domain.NewFeatureReport(n.id, n.meshType, n.inventory.Relays())
}

func (n *Node) Status(version string) domain.NodeStatus {
	return domain.NodeStatus{
		NodeId:      n.id,
		State:       n.state.String(),
		MeshType:    n.meshType.String(),
		BatterySoC:  n.batterySoC,
		LastVoltage: n.lastVoltage,
		LoadWatts:   n.lastWatts,
		Relays:      n.inventory.Relays(),
		Version:     version,
	}
}

func (n *Node) setState(to domain.NodeState) {
	from := n.state
	n.state = to
	if from != to {
		n.logger.Info("node state", zap.Stringer("from", from), zap.Stringer("to", to))
		if n.observer != nil {
			n.observer.StateChanged(from, to)
		}
	}
}

func (n *Node) relayChanged(index int, relay domain.Relay) {
	if n.observer != nil {
		n.observer.RelayChanged(index, relay)
	}
}
