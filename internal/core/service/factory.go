package service

import (
	"github.com/streetgrid/gridnode/internal/config"
	"github.com/streetgrid/gridnode/pkg/hal"

	"go.uber.org/zap"
)

// NodeFromConfig builds the inventory and the node described by cfg. driver may be nil,
// in which case relay changes are only logical.
func NodeFromConfig(cfg *config.Config, driver hal.RelayControl, logger *zap.Logger) (*Node, error) {
	meshType, err := cfg.BuildMeshType()
	if err != nil {
		return nil, err
	}
	relays, err := cfg.BuildRelays()
	if err != nil {
		return nil, err
	}
	inventory, err := NewRelayInventory(relays, cfg.BuildRelayPins(), driver, logger)
	if err != nil {
		return nil, err
	}
	return NewNode(NodeConfig{
		Id:                    cfg.NodeId,
		MeshType:              meshType,
		UndervoltageThreshold: cfg.Sensing.UndervoltageThreshold,
		VoltageRef:            cfg.BuildAdcConfig().VoltageRef,
	}, inventory, logger), nil
}
