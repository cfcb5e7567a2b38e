package link

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

const (
	DEFAULT_RADIO_FREQUENCY        = 915_000_000
	DEFAULT_RADIO_BANDWIDTH        = 125_000
	DEFAULT_RADIO_SPREADING_FACTOR = 7
	DEFAULT_RADIO_TX_POWER         = 14
)

type RadioConfig struct {
	// Hz
	Frequency uint32
	// Hz
	Bandwidth uint32
	// 7..12
	SpreadingFactor uint8
	// dBm
	TxPower int8
}

func DefaultRadioConfig() RadioConfig {
	return RadioConfig{
		Frequency:       DEFAULT_RADIO_FREQUENCY,
		Bandwidth:       DEFAULT_RADIO_BANDWIDTH,
		SpreadingFactor: DEFAULT_RADIO_SPREADING_FACTOR,
		TxPower:         DEFAULT_RADIO_TX_POWER,
	}
}

// SimRadioTransport is an in-memory radio. Sent frames go to a TX log, inbound frames are injected.
type SimRadioTransport struct {
	cfg    RadioConfig
	open   bool
	txLog  [][]byte
	rx     [][]byte
	logger *zap.Logger
	mu     sync.Mutex
}

var _ Transport = (*SimRadioTransport)(nil)

func NewSimRadioTransport(cfg RadioConfig, logger *zap.Logger) *SimRadioTransport {
	return &SimRadioTransport{
		cfg:    cfg,
		logger: logger.With(zap.String("transport", "sim_radio")),
	}
}

func (t *SimRadioTransport) Open(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open = true
	t.logger.Info("radio up", zap.Uint32("frequency", t.cfg.Frequency), zap.Uint32("bandwidth", t.cfg.Bandwidth),
		zap.Uint8("sf", t.cfg.SpreadingFactor), zap.Int8("tx_power", t.cfg.TxPower))
	return nil
}

func (t *SimRadioTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open = false
	return nil
}

func (t *SimRadioTransport) Send(_ context.Context, env Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return ErrNotConnected
	}
	t.txLog = append(t.txLog, data)
	t.logger.Debug("tx", zap.Int("bytes", len(data)))
	return nil
}

func (t *SimRadioTransport) Receive(_ context.Context) (*Envelope, error) {
	t.mu.Lock()
	if !t.open {
		t.mu.Unlock()
		return nil, ErrNotConnected
	}
	if len(t.rx) == 0 {
		t.mu.Unlock()
		return nil, nil
	}
	data := t.rx[0]
	t.rx = t.rx[1:]
	t.mu.Unlock()

	env, err := DecodeEnvelope(data)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return env, nil
}

// Inject queues an inbound frame.
func (t *SimRadioTransport) Inject(env Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return err
	}
	t.InjectRaw(data)
	return nil
}

func (t *SimRadioTransport) InjectRaw(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rx = append(t.rx, data)
}

func (t *SimRadioTransport) TxLog() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.txLog))
	copy(out, t.txLog)
	return out
}

// Sent decodes the TX log.
func (t *SimRadioTransport) Sent() []Envelope {
	var out []Envelope
	for _, data := range t.TxLog() {
		if env, err := DecodeEnvelope(data); err == nil {
			out = append(out, *env)
		}
	}
	return out
}
