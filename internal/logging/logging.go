// Package logging builds the logr.Logger used across ricover, backed by zap.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures the logger.
type Options struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `mapstructure:"level"`
	// Format is "console" or "json".
	Format string `mapstructure:"format"`
}

// DefaultOptions logs at info level in console format.
func DefaultOptions() Options {
	return Options{Level: "info", Format: "console"}
}

// Validate checks the level and format names.
func (o Options) Validate() error {
	if _, err := zapcore.ParseLevel(o.Level); err != nil {
		return fmt.Errorf("invalid log level %q", o.Level)
	}
	switch o.Format {
	case "console", "json":
		return nil
	}
	return fmt.Errorf("invalid log format %q (must be console or json)", o.Format)
}

// New returns a logger writing to w, or stderr when w is nil. logr V(1)
// messages are emitted at debug level. The returned function flushes
// buffered entries.
func New(opts Options, w io.Writer) (logr.Logger, func(), error) {
	if err := opts.Validate(); err != nil {
		return logr.Discard(), func() {}, err
	}
	level, _ := zapcore.ParseLevel(opts.Level)

	if w == nil {
		w = os.Stderr
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if opts.Format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(w), zap.NewAtomicLevelAt(level))
	zl := zap.New(core)

	return zapr.NewLogger(zl), func() { _ = zl.Sync() }, nil
}
