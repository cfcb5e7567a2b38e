package port

import "github.com/streetgrid/gridnode/internal/core/domain"

// NodeObserver is notified synchronously of every logical change.
type NodeObserver interface {
	RelayChanged(index int, relay domain.Relay)
	StateChanged(from, to domain.NodeState)
}

type NodeController interface {
	Id() string
	State() domain.NodeState
	BatterySoC() float32
	LastVoltage() float32
	FeatureReport() domain.FeatureReport
	Status(version string) domain.NodeStatus
	CheckVoltage(voltage float32) bool
	RecordLoad(watts float32)
	HandleCommand(cmd domain.Command) bool
	SetObserver(o NodeObserver)
}
