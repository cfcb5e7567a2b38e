package link

import (
	"context"

	"go.uber.org/zap"
)

// LogTransport stands in when no radio or broker is configured. Outbound envelopes are
// logged and nothing is ever received.
type LogTransport struct {
	logger *zap.Logger
}

var _ Transport = (*LogTransport)(nil)

func NewLogTransport(logger *zap.Logger) *LogTransport {
	return &LogTransport{logger: logger.With(zap.String("transport", "log"))}
}

func (t *LogTransport) Open(_ context.Context) error {
	t.logger.Warn("no transport configured, telemetry is only logged")
	return nil
}

func (t *LogTransport) Close() error {
	return nil
}

func (t *LogTransport) Send(_ context.Context, env Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return err
	}
	t.logger.Info("tx", zap.ByteString("envelope", data))
	return nil
}

func (t *LogTransport) Receive(_ context.Context) (*Envelope, error) {
	return nil, nil
}
