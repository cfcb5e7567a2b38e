package hal

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ModbusRelayDriver drives a relay board exposing one coil per pin.
// The coil address is the pin number.
type ModbusRelayDriver struct {
	*ModbusClient
	pins map[uint8]RelayPin
}

var _ RelayControl = (*ModbusRelayDriver)(nil)

func CreateModbusRelayDriver(host string, port uint, unitId uint8, timeout time.Duration, pins []RelayPin,
	logger *zap.Logger, instrumentation *ModbusInstrument) (*ModbusRelayDriver, error) {
	client, err := newModbusClient(host, port, unitId, timeout,
		logger.With(zap.String("target", "relay")).With(zap.Uint8("unit", unitId)), instrumentation)
	if err != nil {
		return nil, err
	}
	return &ModbusRelayDriver{
		ModbusClient: client,
		pins:         pinIndex(pins),
	}, nil
}

func (d *ModbusRelayDriver) SetRelay(pin uint8, closed bool) error {
	p, ok := d.pins[pin]
	if !ok {
		return fmt.Errorf("relay pin %d: %w", pin, ErrPinNotConfigured)
	}
	if err := d.writeCoil(uint16(pin), closed != p.ActiveLow); err != nil {
		return fmt.Errorf("write relay pin %d: %w", pin, err)
	}
	return nil
}

func (d *ModbusRelayDriver) GetRelay(pin uint8) (bool, error) {
	p, ok := d.pins[pin]
	if !ok {
		return false, fmt.Errorf("relay pin %d: %w", pin, ErrPinNotConfigured)
	}
	level, err := d.readCoil(uint16(pin))
	if err != nil {
		return false, fmt.Errorf("read relay pin %d: %w", pin, err)
	}
	return level != p.ActiveLow, nil
}
