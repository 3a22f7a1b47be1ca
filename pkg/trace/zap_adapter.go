package trace

import "go.uber.org/zap"

// ZapAdapter writes events to a zap logger at debug level.
type ZapAdapter struct {
	logger *zap.Logger
}

// NewZapAdapter creates an adapter. A nil logger yields a no-op adapter.
func NewZapAdapter(logger *zap.Logger) *ZapAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapAdapter{logger: logger}
}

// Log emits the event as a structured debug entry.
func (a *ZapAdapter) Log(event Event) {
	fields := []zap.Field{
		zap.String("session", event.Session),
		zap.Stringer("source", event.Source),
		zap.Stringer("kind", event.Kind),
	}
	if event.Pin != "" {
		fields = append(fields, zap.String("pin", event.Pin))
	}
	if event.Value != 0 {
		fields = append(fields, zap.Uint64("value", event.Value))
	}
	if len(event.Data) > 0 {
		fields = append(fields, zap.ByteString("data", event.Data))
	}
	if event.Detail != "" {
		fields = append(fields, zap.String("detail", event.Detail))
	}
	a.logger.Debug("board event", fields...)
}

var _ Logger = (*ZapAdapter)(nil)
