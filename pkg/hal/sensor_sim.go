package hal

import (
	"fmt"
	"sync"
)

// SimPowerSensor produces ADC counts from a configured current per channel.
type SimPowerSensor struct {
	cfg     AdcConfig
	amps    [ADC_CHANNELS]float32
	volts   [ADC_CHANNELS]float32
	readErr error
	mu      sync.Mutex
}

var _ PowerSensor = (*SimPowerSensor)(nil)
var _ VoltageSensor = (*SimPowerSensor)(nil)

func NewSimPowerSensor(cfg AdcConfig) *SimPowerSensor {
	s := &SimPowerSensor{cfg: cfg}
	for i := range s.volts {
		s.volts[i] = cfg.VoltageRef
	}
	return s
}

func (s *SimPowerSensor) SetSimulatedCurrent(channel uint8, amps float32) {
	if checkChannel(channel) != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.amps[channel] = amps
}

func (s *SimPowerSensor) SetSimulatedVoltage(channel uint8, volts float32) {
	if checkChannel(channel) != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volts[channel] = volts
}

// SetReadError makes every following read fail with err. A nil err clears it.
func (s *SimPowerSensor) SetReadError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

func (s *SimPowerSensor) ReadRaw(channel uint8) (int16, error) {
	if err := checkChannel(channel); err != nil {
		return 0, fmt.Errorf("adc channel %d: %w", channel, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return 0, s.readErr
	}
	return ampsToRaw(s.amps[channel], s.cfg), nil
}

func (s *SimPowerSensor) ReadCurrentAmps(channel uint8) (float32, error) {
	raw, err := s.ReadRaw(channel)
	if err != nil {
		return 0, err
	}
	return rawToAmps(raw, s.cfg), nil
}

func (s *SimPowerSensor) ReadWatts(channel uint8) (float32, error) {
	amps, err := s.ReadCurrentAmps(channel)
	if err != nil {
		return 0, err
	}
	return amps * s.cfg.VoltageRef, nil
}

func (s *SimPowerSensor) ReadVoltage(channel uint8) (float32, error) {
	if err := checkChannel(channel); err != nil {
		return 0, fmt.Errorf("adc channel %d: %w", channel, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return 0, s.readErr
	}
	return s.volts[channel], nil
}
