package port

import (
	"context"

	"github.com/streetgrid/gridnode/internal/core/domain"
)

// OrchestratorLink is the node's connection to the remote orchestrator.
type OrchestratorLink interface {
	Open(ctx context.Context) error
	Close() error
	SendHeartbeat(ctx context.Context, nodeId string, batteryLevel float32) error
	SendFeatureReport(ctx context.Context, report domain.FeatureReport) error
	SendVoltageAlert(ctx context.Context, nodeId string, voltage float32) error
	// Receive returns nil, nil when nothing is pending.
	Receive(ctx context.Context) (domain.Command, error)
}
