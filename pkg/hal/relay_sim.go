package hal

import (
	"fmt"
	"sync"
)

// SimRelayDriver keeps relay states in memory. Used on dev machines and in tests.
type SimRelayDriver struct {
	pins   map[uint8]RelayPin
	levels map[uint8]bool
	faults map[uint8]error
	mu     sync.Mutex
}

var _ RelayControl = (*SimRelayDriver)(nil)

func NewSimRelayDriver(pins []RelayPin) *SimRelayDriver {
	return &SimRelayDriver{
		pins:   pinIndex(pins),
		levels: make(map[uint8]bool),
		faults: make(map[uint8]error),
	}
}

func (d *SimRelayDriver) SetRelay(pin uint8, closed bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pins[pin]
	if !ok {
		return fmt.Errorf("relay pin %d: %w", pin, ErrPinNotConfigured)
	}
	if err := d.faults[pin]; err != nil {
		return err
	}
	d.levels[pin] = closed != p.ActiveLow
	return nil
}

func (d *SimRelayDriver) GetRelay(pin uint8) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pins[pin]
	if !ok {
		return false, fmt.Errorf("relay pin %d: %w", pin, ErrPinNotConfigured)
	}
	return d.levels[pin] != p.ActiveLow, nil
}

// Level returns the electrical output level of a pin, before active-low resolution.
func (d *SimRelayDriver) Level(pin uint8) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.levels[pin]
}

// InjectFault makes every following SetRelay on pin fail with err. A nil err clears the fault.
func (d *SimRelayDriver) InjectFault(pin uint8, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.faults, pin)
		return
	}
	d.faults[pin] = err
}
