package hal

import (
	"fmt"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

// ModbusPowerSensor reads raw ADC counts from consecutive input registers,
// one per channel starting at adcRegister.
type ModbusPowerSensor struct {
	*ModbusClient
	cfg             AdcConfig
	adcRegister     uint16
	voltageRegister uint16
	voltageScale    float32
}

var _ PowerSensor = (*ModbusPowerSensor)(nil)
var _ VoltageSensor = (*ModbusPowerSensor)(nil)

// CreateModbusPowerSensor builds a sensor reader. A voltageRegister of 0 disables ReadVoltage.
func CreateModbusPowerSensor(host string, port uint, unitId uint8, timeout time.Duration, cfg AdcConfig,
	adcRegister uint16, voltageRegister uint16, voltageScale float32,
	logger *zap.Logger, instrumentation *ModbusInstrument) (*ModbusPowerSensor, error) {
	client, err := newModbusClient(host, port, unitId, timeout,
		logger.With(zap.String("target", "adc")).With(zap.Uint8("unit", unitId)), instrumentation)
	if err != nil {
		return nil, err
	}
	if voltageScale == 0 {
		voltageScale = 1
	}
	return &ModbusPowerSensor{
		ModbusClient:    client,
		cfg:             cfg,
		adcRegister:     adcRegister,
		voltageRegister: voltageRegister,
		voltageScale:    voltageScale,
	}, nil
}

func (s *ModbusPowerSensor) ReadRaw(channel uint8) (int16, error) {
	if err := checkChannel(channel); err != nil {
		return 0, fmt.Errorf("adc channel %d: %w", channel, err)
	}
	v, err := s.readRegister(s.adcRegister+uint16(channel), modbus.INPUT_REGISTER)
	if err != nil {
		return 0, fmt.Errorf("read adc channel %d: %w", channel, err)
	}
	return int16(v), nil
}

func (s *ModbusPowerSensor) ReadCurrentAmps(channel uint8) (float32, error) {
	raw, err := s.ReadRaw(channel)
	if err != nil {
		return 0, err
	}
	return rawToAmps(raw, s.cfg), nil
}

func (s *ModbusPowerSensor) ReadWatts(channel uint8) (float32, error) {
	amps, err := s.ReadCurrentAmps(channel)
	if err != nil {
		return 0, err
	}
	return amps * s.cfg.VoltageRef, nil
}

func (s *ModbusPowerSensor) ReadVoltage(channel uint8) (float32, error) {
	if err := checkChannel(channel); err != nil {
		return 0, fmt.Errorf("adc channel %d: %w", channel, err)
	}
	if s.voltageRegister == 0 {
		return 0, ErrVoltageNotSupported
	}
	v, err := s.readRegister(s.voltageRegister+uint16(channel), modbus.HOLDING_REGISTER)
	if err != nil {
		return 0, fmt.Errorf("read voltage channel %d: %w", channel, err)
	}
	return float32(v) * s.voltageScale, nil
}
