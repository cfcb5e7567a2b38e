package service

import (
	"fmt"

	"github.com/streetgrid/gridnode/internal/core/domain"

	"go.uber.org/zap"
)

// HandleCommand applies a command addressed to this node. It returns false when the
// command was dropped because it targets another node.
func (n *Node) HandleCommand(cmd domain.Command) bool {
	if cmd.TargetNodeId() != n.id {
		n.logger.Debug("command for another node dropped", zap.String("target", cmd.TargetNodeId()),
			zap.String("command", cmd.CommandName()))
		return false
	}
	n.logger.Info("command received", zap.String("command", cmd.CommandName()))

	switch c := cmd.(type) {
	case domain.LoadShedCommand:
		if c.Shed {
			n.ShedLoad(domain.PriorityMedium)
		} else {
			n.logger.Info("load restore requested, not supported")
		}
	case domain.EnterIslandCommand:
		n.EnterIslandMode()
	case domain.EnterBlackStartCommand:
		n.EnterBlackStartMode()
	case domain.ActivateRelayByIndexCommand:
		n.ActivateRelayByIndex(c.RelayIndex)
	case domain.ActivateRelayByPriorityCommand:
		n.ActivateRelaysByPriority(domain.PriorityFromCode(c.Priority))
	default:
		n.logger.Warn("unsupported command", zap.String("type", fmt.Sprintf("%T", cmd)))
	}
	return true
}
