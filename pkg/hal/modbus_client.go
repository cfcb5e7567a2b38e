package hal

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

// ModbusClient is a reconnecting Modbus TCP connection. Every call opens the connection
// first if needed, and a transport error closes it so the next call dials again.
type ModbusClient struct {
	client     *modbus.ModbusClient
	instrument []ModbusInstrument
	logger     *zap.Logger
	open       bool
	mu         sync.Mutex
}

type ModbusInstrument struct {
	RecordTime func(fnName string, readTime time.Duration)
}

// device exceptions arrive over a healthy connection
var modbusExceptions = []error{
	modbus.ErrIllegalFunction,
	modbus.ErrIllegalDataAddress,
	modbus.ErrIllegalDataValue,
	modbus.ErrServerDeviceFailure,
	modbus.ErrAcknowledge,
	modbus.ErrServerDeviceBusy,
	modbus.ErrMemoryParityError,
	modbus.ErrGWPathUnavailable,
	modbus.ErrGWTargetFailedToRespond,
}

func newModbusClient(host string, port uint, unitId uint8, timeout time.Duration,
	logger *zap.Logger, instrumentation *ModbusInstrument) (*ModbusClient, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", host, port),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}

	var inst []ModbusInstrument
	if logger != nil {
		inst = append(inst, *traceLoggerInstrumentation(logger))
	} else {
		logger = zap.NewNop()
	}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}

	if unitId > 0 {
		if err := client.SetUnitId(unitId); err != nil {
			return nil, err
		}
	}
	return &ModbusClient{
		client:     client,
		instrument: inst,
		logger:     logger,
	}, nil
}

// Open dials the device. Calling it is optional, the first read or write dials too.
func (c *ModbusClient) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openLocked()
}

func (c *ModbusClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *ModbusClient) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *ModbusClient) openLocked() error {
	if c.open {
		return nil
	}
	if err := c.client.Open(); err != nil {
		return fmt.Errorf("modbus connect: %w", err)
	}
	c.open = true
	c.logger.Info("modbus connected")
	return nil
}

func (c *ModbusClient) closeLocked() error {
	if !c.open {
		return nil
	}
	c.open = false
	return c.client.Close()
}

func (c *ModbusClient) call(name string, fn func(*modbus.ModbusClient) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer RecordTimer(name, c.instrument)()

	if err := c.openLocked(); err != nil {
		return err
	}
	err := fn(c.client)
	if err != nil && !isModbusException(err) {
		c.logger.Warn("modbus transport error, reconnecting on next call", zap.String("fn", name), zap.Error(err))
		if cerr := c.closeLocked(); cerr != nil {
			c.logger.Debug("modbus close failed", zap.Error(cerr))
		}
	}
	return err
}

func isModbusException(err error) bool {
	for _, e := range modbusExceptions {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

func (c *ModbusClient) readRegister(addr uint16, regType modbus.RegType) (uint16, error) {
	var value uint16
	err := c.call("ReadRegister", func(mc *modbus.ModbusClient) (err error) {
		value, err = mc.ReadRegister(addr, regType)
		return err
	})
	return value, err
}

func (c *ModbusClient) readCoil(addr uint16) (bool, error) {
	var value bool
	err := c.call("ReadCoil", func(mc *modbus.ModbusClient) (err error) {
		value, err = mc.ReadCoil(addr)
		return err
	})
	return value, err
}

func (c *ModbusClient) writeCoil(addr uint16, value bool) error {
	return c.call("WriteCoil", func(mc *modbus.ModbusClient) error {
		return mc.WriteCoil(addr, value)
	})
}

func RecordTimer(name string, instrument []ModbusInstrument) func() {
	if instrument == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			instrument[i].RecordTime(name, duration)
		}
	}
}

func traceLoggerInstrumentation(logger *zap.Logger) *ModbusInstrument {
	return &ModbusInstrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			logger.Debug("modbus call", zap.String("fn", fnName), zap.Int64("millis", readTime.Milliseconds()))
		},
	}
}
