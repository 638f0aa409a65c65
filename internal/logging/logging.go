// Package logging builds the zap logger used by the epochd binaries and
// adapts it to the Temporal SDK's logger interface.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a logger from a level name and an output format
// ("json" or "console").
func New(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	core := zapcore.NewCore(
		newEncoder(format),
		zapcore.Lock(os.Stderr),
		lvl,
	)
	return zap.New(core), nil
}

// newEncoder creates JSON or console encoder.
func newEncoder(format string) zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	if format == "console" {
		return zapcore.NewConsoleEncoder(encoderCfg)
	}
	return zapcore.NewJSONEncoder(encoderCfg)
}

// TemporalAdapter exposes a zap logger through the keyval-style interface
// the Temporal SDK expects for client and worker logging.
type TemporalAdapter struct {
	sugar *zap.SugaredLogger
}

// NewTemporalAdapter wraps logger for use as a Temporal client logger.
func NewTemporalAdapter(logger *zap.Logger) *TemporalAdapter {
	// Skip the adapter frame so call sites resolve to SDK code.
	return &TemporalAdapter{sugar: logger.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (a *TemporalAdapter) Debug(msg string, keyvals ...interface{}) {
	a.sugar.Debugw(msg, keyvals...)
}

func (a *TemporalAdapter) Info(msg string, keyvals ...interface{}) {
	a.sugar.Infow(msg, keyvals...)
}

func (a *TemporalAdapter) Warn(msg string, keyvals ...interface{}) {
	a.sugar.Warnw(msg, keyvals...)
}

func (a *TemporalAdapter) Error(msg string, keyvals ...interface{}) {
	a.sugar.Errorw(msg, keyvals...)
}
