package hal

import "errors"

const (
	ADC_CHANNELS          = 4
	ADC_FULL_SCALE_VOLTS  = 4.096
	ADC_FULL_SCALE_COUNTS = 32768.0
)

var (
	ErrPinNotConfigured    = errors.New("pin not configured")
	ErrInvalidChannel      = errors.New("invalid adc channel")
	ErrVoltageNotSupported = errors.New("voltage reading not supported")
)

// RelayControl drives relay outputs by pin. closed = true means the circuit is engaged.
// Active-low wiring is resolved by the implementation.
type RelayControl interface {
	SetRelay(pin uint8, closed bool) error
	GetRelay(pin uint8) (bool, error)
}

// PowerSensor reads a current transformer through an ADC.
type PowerSensor interface {
	ReadRaw(channel uint8) (int16, error)
	ReadCurrentAmps(channel uint8) (float32, error)
	// current x voltage reference
	ReadWatts(channel uint8) (float32, error)
}

// VoltageSensor is implemented by power sensors that can also measure line voltage.
type VoltageSensor interface {
	ReadVoltage(channel uint8) (float32, error)
}

type RelayPin struct {
	RelayId   string
	Pin       uint8
	ActiveLow bool
}

type AdcConfig struct {
	// e.g. 100 for a 100A:50mA CT
	CTRatio float32
	// line voltage used to compute power
	VoltageRef float32
	// burden resistor in ohms
	BurdenResistor float32
}

func DefaultAdcConfig() AdcConfig {
	return AdcConfig{
		CTRatio:        100.0,
		VoltageRef:     120.0,
		BurdenResistor: 33.0,
	}
}

func checkChannel(channel uint8) error {
	if channel >= ADC_CHANNELS {
		return ErrInvalidChannel
	}
	return nil
}

// V = I_secondary * R_burden, I_primary = I_secondary * CT ratio
func rawToAmps(raw int16, cfg AdcConfig) float32 {
	volts := (float32(raw) / ADC_FULL_SCALE_COUNTS) * ADC_FULL_SCALE_VOLTS
	secondary := volts / cfg.BurdenResistor
	primary := secondary * cfg.CTRatio
	if primary < 0 {
		return -primary
	}
	return primary
}

func ampsToRaw(amps float32, cfg AdcConfig) int16 {
	secondary := amps / cfg.CTRatio
	volts := secondary * cfg.BurdenResistor
	return int16((volts / ADC_FULL_SCALE_VOLTS) * ADC_FULL_SCALE_COUNTS)
}

func pinIndex(pins []RelayPin) map[uint8]RelayPin {
	idx := make(map[uint8]RelayPin, len(pins))
	for _, p := range pins {
		idx[p.Pin] = p
	}
	return idx
}
