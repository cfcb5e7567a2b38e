package hal

import (
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/simonvetter/modbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const MODBUS_TEST_TIMEOUT = 500 * time.Millisecond

// testBoard is an in-memory relay board and ADC front end served over Modbus TCP.
type testBoard struct {
	mu      sync.Mutex
	coils   map[uint16]bool
	input   map[uint16]uint16
	holding map[uint16]uint16
}

func newTestBoard() *testBoard {
	return &testBoard{
		coils:   map[uint16]bool{},
		input:   map[uint16]uint16{},
		holding: map[uint16]uint16{},
	}
}

func (b *testBoard) coil(addr uint16) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.coils[addr]
}

func (b *testBoard) setInput(addr uint16, v uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.input[addr] = v
}

func (b *testBoard) setHolding(addr uint16, v uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.holding[addr] = v
}

func (b *testBoard) HandleCoils(req *modbus.CoilsRequest) ([]bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	res := make([]bool, req.Quantity)
	for i := uint16(0); i < req.Quantity; i++ {
		if req.IsWrite {
			b.coils[req.Addr+i] = req.Args[i]
		}
		res[i] = b.coils[req.Addr+i]
	}
	return res, nil
}

func (b *testBoard) HandleDiscreteInputs(*modbus.DiscreteInputsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

func (b *testBoard) HandleHoldingRegisters(req *modbus.HoldingRegistersRequest) ([]uint16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	res := make([]uint16, req.Quantity)
	for i := uint16(0); i < req.Quantity; i++ {
		if req.IsWrite {
			b.holding[req.Addr+i] = req.Args[i]
		}
		res[i] = b.holding[req.Addr+i]
	}
	return res, nil
}

func (b *testBoard) HandleInputRegisters(req *modbus.InputRegistersRequest) ([]uint16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	res := make([]uint16, req.Quantity)
	for i := uint16(0); i < req.Quantity; i++ {
		v, ok := b.input[req.Addr+i]
		if !ok {
			return nil, modbus.ErrIllegalDataAddress
		}
		res[i] = v
	}
	return res, nil
}

func freePort(t *testing.T) uint {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return uint(port)
}

func serveBoard(t *testing.T, port uint, board *testBoard) *modbus.ModbusServer {
	t.Helper()
	server, err := modbus.NewServer(&modbus.ServerConfiguration{
		URL:        fmt.Sprintf("tcp://127.0.0.1:%d", port),
		Timeout:    30 * time.Second,
		MaxClients: 4,
	}, board)
	require.NoError(t, err)
	require.NoError(t, server.Start())
	t.Cleanup(func() { _ = server.Stop() })
	return server
}

func TestModbusRelayDriver(t *testing.T) {
	port := freePort(t)
	board := newTestBoard()
	serveBoard(t, port, board)

	driver, err := CreateModbusRelayDriver("127.0.0.1", port, 1, MODBUS_TEST_TIMEOUT, []RelayPin{
		{RelayId: "grid", Pin: 17},
		{RelayId: "hvac", Pin: 27, ActiveLow: true},
	}, zap.NewNop(), nil)
	require.NoError(t, err)
	defer driver.Close()

	require.NoError(t, driver.SetRelay(17, true))
	assert.True(t, board.coil(17))
	closed, err := driver.GetRelay(17)
	require.NoError(t, err)
	assert.True(t, closed)

	// active low: closed writes a cleared coil
	require.NoError(t, driver.SetRelay(27, true))
	assert.False(t, board.coil(27))
	closed, err = driver.GetRelay(27)
	require.NoError(t, err)
	assert.True(t, closed)

	require.NoError(t, driver.SetRelay(27, false))
	assert.True(t, board.coil(27))
	closed, err = driver.GetRelay(27)
	require.NoError(t, err)
	assert.False(t, closed)
}

func TestModbusPowerSensor(t *testing.T) {
	port := freePort(t)
	board := newTestBoard()
	serveBoard(t, port, board)

	cfg := DefaultAdcConfig()
	sensor, err := CreateModbusPowerSensor("127.0.0.1", port, 2, MODBUS_TEST_TIMEOUT, cfg,
		100, 200, 0.1, zap.NewNop(), nil)
	require.NoError(t, err)
	defer sensor.Close()

	board.setInput(101, 8000)
	negative := int16(-8000)
	board.setInput(102, uint16(negative))
	board.setHolding(201, 1205)

	raw, err := sensor.ReadRaw(1)
	require.NoError(t, err)
	assert.Equal(t, int16(8000), raw)

	amps, err := sensor.ReadCurrentAmps(1)
	require.NoError(t, err)
	assert.InDelta(t, 3.03, amps, 0.01)

	raw, err = sensor.ReadRaw(2)
	require.NoError(t, err)
	assert.Equal(t, int16(-8000), raw)
	amps, err = sensor.ReadCurrentAmps(2)
	require.NoError(t, err)
	assert.InDelta(t, rawToAmps(8000, cfg), amps, 0.001)

	watts, err := sensor.ReadWatts(1)
	require.NoError(t, err)
	assert.InDelta(t, 3.03*cfg.VoltageRef, watts, 1.5)

	volts, err := sensor.ReadVoltage(1)
	require.NoError(t, err)
	assert.InDelta(t, 120.5, volts, 0.01)

	// a device exception keeps the connection
	_, err = sensor.ReadRaw(3)
	assert.ErrorIs(t, err, modbus.ErrIllegalDataAddress)
	assert.True(t, sensor.IsOpen())
}

func TestModbusRelayDriverBoardComesUpLater(t *testing.T) {
	port := freePort(t)
	driver, err := CreateModbusRelayDriver("127.0.0.1", port, 1, MODBUS_TEST_TIMEOUT,
		[]RelayPin{{RelayId: "grid", Pin: 17}}, zap.NewNop(), nil)
	require.NoError(t, err)
	defer driver.Close()

	assert.Error(t, driver.Open())
	assert.NotPanics(t, func() {
		assert.Error(t, driver.SetRelay(17, true))
		_, err := driver.GetRelay(17)
		assert.Error(t, err)
		assert.NoError(t, driver.Close())
	})
	assert.False(t, driver.IsOpen())

	board := newTestBoard()
	serveBoard(t, port, board)

	require.NoError(t, driver.SetRelay(17, true))
	assert.True(t, driver.IsOpen())
	assert.True(t, board.coil(17))
}

func TestModbusRelayDriverReconnectsAfterBoardRestart(t *testing.T) {
	port := freePort(t)
	board := newTestBoard()
	server := serveBoard(t, port, board)

	driver, err := CreateModbusRelayDriver("127.0.0.1", port, 1, MODBUS_TEST_TIMEOUT,
		[]RelayPin{{RelayId: "grid", Pin: 17}}, zap.NewNop(), nil)
	require.NoError(t, err)
	defer driver.Close()
	require.NoError(t, driver.SetRelay(17, true))

	require.NoError(t, server.Stop())
	assert.Eventually(t, func() bool {
		return driver.SetRelay(17, false) != nil && !driver.IsOpen()
	}, 5*time.Second, 50*time.Millisecond)

	serveBoard(t, port, board)
	assert.Eventually(t, func() bool {
		return driver.SetRelay(17, false) == nil
	}, 5*time.Second, 50*time.Millisecond)
	assert.False(t, board.coil(17))
}
