package domain

import "fmt"

// Command is an orchestrator instruction addressed to one node.
type Command interface {
	TargetNodeId() string
	CommandName() string
}

type CommandMixIn struct {
	Target string
}

func (c CommandMixIn) TargetNodeId() string {
	return c.Target
}

// LoadShedCommand with Shed = false is a restore request. Restore is not implemented.
type LoadShedCommand struct {
	CommandMixIn
	Shed bool
}

type EnterIslandCommand struct {
	CommandMixIn
}

type EnterBlackStartCommand struct {
	CommandMixIn
}

type ActivateRelayByIndexCommand struct {
	CommandMixIn
	RelayIndex uint32
}

// ActivateRelayByPriorityCommand carries the raw wire code, see PriorityFromCode.
type ActivateRelayByPriorityCommand struct {
	CommandMixIn
	Priority int32
}

func (c LoadShedCommand) CommandName() string {
	return fmt.Sprintf("load_shed(shed=%t)", c.Shed)
}

func (c EnterIslandCommand) CommandName() string {
	return "enter_island"
}

func (c EnterBlackStartCommand) CommandName() string {
	return "enter_black_start"
}

func (c ActivateRelayByIndexCommand) CommandName() string {
	return fmt.Sprintf("activate_relay_by_index(%d)", c.RelayIndex)
}

func (c ActivateRelayByPriorityCommand) CommandName() string {
	return fmt.Sprintf("activate_relay_by_priority(%d)", c.Priority)
}

// ensure interface compliance
var (
	_ Command = (*LoadShedCommand)(nil)
	_ Command = (*EnterIslandCommand)(nil)
	_ Command = (*EnterBlackStartCommand)(nil)
	_ Command = (*ActivateRelayByIndexCommand)(nil)
	_ Command = (*ActivateRelayByPriorityCommand)(nil)
)
