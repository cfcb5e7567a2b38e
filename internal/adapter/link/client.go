package link

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/streetgrid/gridnode/internal/core/domain"
	"github.com/streetgrid/gridnode/internal/core/port"

	"go.uber.org/zap"
)

var ErrNotConnected = errors.New("transport not connected")

// Transport moves envelopes between the node and the mesh.
type Transport interface {
	Open(ctx context.Context) error
	Close() error
	Send(ctx context.Context, env Envelope) error
	// Receive returns nil, nil when no message is pending. It must not block.
	Receive(ctx context.Context) (*Envelope, error)
}

// OrchestratorClient builds telemetry envelopes and decodes inbound commands over a Transport.
type OrchestratorClient struct {
	transport Transport
	logger    *zap.Logger
	now       func() time.Time
}

var _ port.OrchestratorLink = (*OrchestratorClient)(nil)

func NewOrchestratorClient(transport Transport, logger *zap.Logger) *OrchestratorClient {
	return &OrchestratorClient{
		transport: transport,
		logger:    logger.With(zap.String("component", "link")),
		now:       time.Now,
	}
}

func (c *OrchestratorClient) Open(ctx context.Context) error {
	return c.transport.Open(ctx)
}

func (c *OrchestratorClient) Close() error {
	return c.transport.Close()
}

func (c *OrchestratorClient) timestamp() uint64 {
	return uint64(c.now().Unix())
}

func (c *OrchestratorClient) SendHeartbeat(ctx context.Context, nodeId string, batteryLevel float32) error {
	c.logger.Debug("sending heartbeat", zap.String("node", nodeId), zap.Float32("battery", batteryLevel))
	err := c.transport.Send(ctx, Envelope{Heartbeat: &domain.Heartbeat{
		NodeId:       nodeId,
		Timestamp:    c.timestamp(),
		BatteryLevel: batteryLevel,
	}})
	if err != nil {
		return fmt.Errorf("send heartbeat: %w", err)
	}
	return nil
}

func (c *OrchestratorClient) SendFeatureReport(ctx context.Context, report domain.FeatureReport) error {
	c.logger.Info("sending feature report", zap.String("node", report.NodeId), zap.Int("relays", len(report.Relays)))
	if err := c.transport.Send(ctx, Envelope{FeatureReport: &report}); err != nil {
		return fmt.Errorf("send feature report: %w", err)
	}
	return nil
}

func (c *OrchestratorClient) SendVoltageAlert(ctx context.Context, nodeId string, voltage float32) error {
	c.logger.Warn("sending voltage alert", zap.String("node", nodeId), zap.Float32("voltage", voltage))
	err := c.transport.Send(ctx, Envelope{VoltageAlert: &domain.VoltageAlert{
		NodeId:    nodeId,
		Voltage:   voltage,
		Timestamp: c.timestamp(),
	}})
	if err != nil {
		return fmt.Errorf("send voltage alert: %w", err)
	}
	return nil
}

func (c *OrchestratorClient) Receive(ctx context.Context) (domain.Command, error) {
	env, err := c.transport.Receive(ctx)
	if err != nil {
		return nil, fmt.Errorf("receive: %w", err)
	}
	if env == nil {
		return nil, nil
	}
	cmd := env.ToCommand()
	if cmd == nil {
		c.logger.Debug("ignoring message without command payload")
	}
	return cmd, nil
}
