package service

import (
	"github.com/streetgrid/gridnode/internal/core/domain"

	"go.uber.org/zap"
)

// ShedLoad opens every closed Load relay with priority >= threshold.
func (n *Node) ShedLoad(threshold domain.Priority) {
	ids := n.inventory.mutate(false, func(r domain.Relay) bool {
		return r.RelayType == domain.RelayTypeLoad && r.Priority >= threshold && r.IsClosed
	})
	n.logger.Info("shed load", zap.Stringer("threshold", threshold), zap.Strings("relays", ids))
}

// ShedAllLoads opens every closed Load relay.
func (n *Node) ShedAllLoads() {
	ids := n.inventory.mutate(false, func(r domain.Relay) bool {
		return r.RelayType == domain.RelayTypeLoad && r.IsClosed
	})
	n.logger.Info("shed all loads", zap.Strings("relays", ids))
}

// DisconnectGrid opens and pushes every Grid relay, whatever its current state.
func (n *Node) DisconnectGrid() {
	ids := n.inventory.mutate(false, func(r domain.Relay) bool {
		return r.RelayType == domain.RelayTypeGrid
	})
	n.logger.Info("disconnect grid", zap.Strings("relays", ids))
}

// EnterIslandMode sheds every load. Grid relays are opened only on an AdHoc mesh;
// on a GovernmentSanctioned mesh the isolation device at the transformer handles it.
func (n *Node) EnterIslandMode() {
	n.setState(domain.NodeStateIslanded)
	n.logger.Info("entering island mode", zap.Stringer("mesh", n.meshType))
	n.ShedAllLoads()
	switch n.meshType {
	case domain.MeshTypeAdHoc:
		n.DisconnectGrid()
	case domain.MeshTypeGovernmentSanctioned:
		n.logger.Info("grid relays stay connected on sanctioned mesh")
	}
}

func (n *Node) EnterBlackStartMode() {
	if n.state != domain.NodeStateIslanded {
		n.logger.Warn("black start requested outside island mode", zap.Stringer("state", n.state))
	}
	n.setState(domain.NodeStateBlackStart)
}

// ActivateRelaysByPriority closes every open relay with exactly priority p.
func (n *Node) ActivateRelaysByPriority(p domain.Priority) {
	ids := n.inventory.mutate(true, func(r domain.Relay) bool {
		return r.Priority == p && !r.IsClosed
	})
	n.logger.Info("activate relays by priority", zap.Stringer("priority", p), zap.Strings("relays", ids))
}

// ActivateRelayByIndex closes the relay at construction index i and pushes it, even if already closed.
func (n *Node) ActivateRelayByIndex(i uint32) {
	if uint64(i) >= uint64(n.inventory.Len()) {
		n.logger.Warn("relay index out of range", zap.Uint32("index", i), zap.Int("relays", n.inventory.Len()))
		return
	}
	id := n.inventory.relays[i].Id
	n.inventory.setLogical(int(i), true)
	n.inventory.SetPhysicalRelay(id, true)
}
