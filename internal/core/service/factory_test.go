package service

import (
	"testing"

	"github.com/streetgrid/gridnode/internal/core/domain"
	"github.com/streetgrid/gridnode/internal/util"
	"github.com/streetgrid/gridnode/pkg/hal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNodeFromConfig(t *testing.T) {
	cfg := util.LoadTestConfig()
	cfg.MeshType = "GovernmentSanctioned"
	driver := hal.NewSimRelayDriver(cfg.BuildRelayPins())

	node, err := NodeFromConfig(&cfg, driver, zap.Must(zap.NewDevelopment()))
	require.NoError(t, err)
	assert.Equal(t, "node-test", node.Id())
	assert.Equal(t, domain.MeshTypeGovernmentSanctioned, node.MeshType())
	assert.Equal(t, float32(120), node.LastVoltage())
	assert.Equal(t, 3, node.Inventory().Len())

	pin, ok := node.Inventory().Pin("hvac")
	assert.True(t, ok)
	assert.Equal(t, uint8(27), pin)

	cfg.Relays[0].Priority = "urgent"
	_, err = NodeFromConfig(&cfg, driver, zap.Must(zap.NewDevelopment()))
	assert.Error(t, err)
}
