package service

import (
	"github.com/streetgrid/gridnode/internal/core/domain"

	"go.uber.org/zap"
)

// CheckVoltage feeds one voltage sample to the state machine and reports whether
// a voltage alert must be sent. Only Normal reacts to under-voltage.
func (n *Node) CheckVoltage(voltage float32) bool {
	n.lastVoltage = voltage
	if voltage >= n.threshold {
		return false
	}
	switch n.state {
	case domain.NodeStateNormal:
		n.logger.Warn("under-voltage detected", zap.Float32("voltage", voltage), zap.Float32("threshold", n.threshold))
		n.setState(domain.NodeStateAlertSent)
		return true
	default:
		n.logger.Debug("under-voltage ignored", zap.Float32("voltage", voltage), zap.Stringer("state", n.state))
		return false
	}
}

// RecordLoad stores the last power reading.
func (n *Node) RecordLoad(watts float32) {
	n.lastWatts = watts
}
