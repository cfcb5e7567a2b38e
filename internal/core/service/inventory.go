package service

import (
	"fmt"

	"github.com/streetgrid/gridnode/internal/core/domain"
	"github.com/streetgrid/gridnode/pkg/hal"

	"go.uber.org/zap"
)

// RelayInventory owns the ordered relay list. Not safe for concurrent use, the node actor is its only caller.
type RelayInventory struct {
	relays   []domain.Relay
	index    map[string]int
	pins     map[string]uint8
	driver   hal.RelayControl
	onChange func(index int, relay domain.Relay)
	logger   *zap.Logger
}

// NewRelayInventory copies relays in their given order. A nil driver means relays are only mutated logically.
func NewRelayInventory(relays []domain.Relay, pins []hal.RelayPin, driver hal.RelayControl, logger *zap.Logger) (*RelayInventory, error) {
	inv := &RelayInventory{
		relays: make([]domain.Relay, len(relays)),
		index:  make(map[string]int, len(relays)),
		pins:   make(map[string]uint8, len(pins)),
		driver: driver,
		logger: logger,
	}
	copy(inv.relays, relays)
	for i, r := range inv.relays {
		if _, ok := inv.index[r.Id]; ok {
			return nil, fmt.Errorf("duplicate relay id %q", r.Id)
		}
		inv.index[r.Id] = i
	}
	for _, p := range pins {
		inv.pins[p.RelayId] = p.Pin
	}
	return inv, nil
}

func (inv *RelayInventory) Len() int {
	return len(inv.relays)
}

// Relays returns a copy in construction order.
func (inv *RelayInventory) Relays() []domain.Relay {
	out := make([]domain.Relay, len(inv.relays))
	copy(out, inv.relays)
	return out
}

func (inv *RelayInventory) Relay(id string) (domain.Relay, bool) {
	i, ok := inv.index[id]
	if !ok {
		return domain.Relay{}, false
	}
	return inv.relays[i], true
}

func (inv *RelayInventory) Pin(id string) (uint8, bool) {
	pin, ok := inv.pins[id]
	return pin, ok
}

func (inv *RelayInventory) setChangeHook(fn func(index int, relay domain.Relay)) {
	inv.onChange = fn
}

// SetPhysicalRelay pushes the logical state of one relay to the driver.
// Errors are logged and never roll back the logical state.
func (inv *RelayInventory) SetPhysicalRelay(id string, closed bool) {
	pin, ok := inv.pins[id]
	if !ok {
		inv.logger.Debug("relay has no pin, not actuated", zap.String("relay", id))
		return
	}
	if inv.driver == nil {
		inv.logger.Debug("no relay driver attached", zap.String("relay", id), zap.Uint8("pin", pin))
		return
	}
	if err := inv.pushRelay(pin, closed); err != nil {
		inv.logger.Warn("relay set failed", zap.String("relay", id), zap.Uint8("pin", pin),
			zap.Bool("closed", closed), zap.Error(err))
		return
	}
	inv.logger.Debug("relay set", zap.String("relay", id), zap.Uint8("pin", pin), zap.Bool("closed", closed))
}

// pushRelay calls the driver, turning a driver panic into an error so the
// remaining relays of a policy are still actuated.
func (inv *RelayInventory) pushRelay(pin uint8, closed bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("relay driver panic on pin %d: %v", pin, r)
		}
	}()
	return inv.driver.SetRelay(pin, closed)
}

// mutate collects the relays selected by fn, sets them to closed, then pushes each one to hardware.
func (inv *RelayInventory) mutate(closed bool, fn func(domain.Relay) bool) []string {
	var ids []string
	for _, r := range inv.relays {
		if fn(r) {
			ids = append(ids, r.Id)
		}
	}
	for _, id := range ids {
		inv.setLogical(inv.index[id], closed)
	}
	for _, id := range ids {
		inv.SetPhysicalRelay(id, closed)
	}
	return ids
}

func (inv *RelayInventory) setLogical(i int, closed bool) {
	r := &inv.relays[i]
	changed := r.IsClosed != closed
	r.IsClosed = closed
	inv.logger.Info("relay state", zap.String("relay", r.Id), zap.String("name", r.Name),
		zap.Stringer("type", r.RelayType), zap.Stringer("priority", r.Priority), zap.Bool("closed", closed))
	if changed && inv.onChange != nil {
		inv.onChange(i, *r)
	}
}
