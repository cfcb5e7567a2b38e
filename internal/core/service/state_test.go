package service

import (
	"testing"

	"github.com/streetgrid/gridnode/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestCheckVoltageAlertsOnce(t *testing.T) {
	node, _ := newTestNode(t, scenarioRelays(), domain.MeshTypeAdHoc)
	obs := &recordingObserver{}
	node.SetObserver(obs)

	assert.False(t, node.CheckVoltage(120))
	assert.False(t, node.CheckVoltage(110))
	assert.Equal(t, domain.NodeStateNormal, node.State())

	assert.True(t, node.CheckVoltage(105.5))
	assert.Equal(t, domain.NodeStateAlertSent, node.State())
	assert.Equal(t, float32(105.5), node.LastVoltage())

	// sustained low voltage does not re-alert
	for i := 0; i < 5; i++ {
		assert.False(t, node.CheckVoltage(100))
	}
	// recovery does not return to normal
	assert.False(t, node.CheckVoltage(120))
	assert.Equal(t, domain.NodeStateAlertSent, node.State())
	assert.Len(t, obs.transitions, 1)
	assert.Empty(t, obs.relays)
}

func TestCheckVoltageCustomThreshold(t *testing.T) {
	node, _ := newTestNode(t, scenarioRelays(), domain.MeshTypeAdHoc)
	node.threshold = 200
	assert.True(t, node.CheckVoltage(199))
}

func TestCheckVoltageIgnoredWhenIslanded(t *testing.T) {
	node, _ := newTestNode(t, scenarioRelays(), domain.MeshTypeAdHoc)
	node.EnterIslandMode()
	assert.False(t, node.CheckVoltage(50))
	assert.Equal(t, domain.NodeStateIslanded, node.State())

	node.EnterBlackStartMode()
	assert.False(t, node.CheckVoltage(50))
	assert.Equal(t, domain.NodeStateBlackStart, node.State())
}

func TestEnterIslandFromAnyState(t *testing.T) {
	prepare := map[string]func(*Node){
		"normal":      func(n *Node) {},
		"alert_sent":  func(n *Node) { n.CheckVoltage(90) },
		"islanded":    func(n *Node) { n.EnterIslandMode() },
		"black_start": func(n *Node) { n.EnterIslandMode(); n.EnterBlackStartMode() },
	}
	for name, fn := range prepare {
		t.Run(name, func(t *testing.T) {
			node, _ := newTestNode(t, scenarioRelays(), domain.MeshTypeAdHoc)
			fn(node)
			node.EnterIslandMode()
			assert.Equal(t, domain.NodeStateIslanded, node.State())
		})
	}
}

func TestBlackStartDoesNotShed(t *testing.T) {
	node, _ := newTestNode(t, scenarioRelays(), domain.MeshTypeGovernmentSanctioned)
	node.EnterIslandMode()
	node.ActivateRelaysByPriority(domain.PriorityMedium)
	before := closedMap(node)

	node.EnterBlackStartMode()
	assert.Equal(t, domain.NodeStateBlackStart, node.State())
	assert.Equal(t, before, closedMap(node))
}

func TestBlackStartOutsideIslandHonoured(t *testing.T) {
	node, _ := newTestNode(t, scenarioRelays(), domain.MeshTypeAdHoc)
	node.EnterBlackStartMode()
	assert.Equal(t, domain.NodeStateBlackStart, node.State())
	assert.Equal(t, map[string]bool{"grid": true, "hvac": true, "outlets": true}, closedMap(node))
}
