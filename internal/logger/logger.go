package logger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/casadx/pedidos/internal/config"
)

// Module exposes a configured Zap logger to the Fx container.
var Module = fx.Provide(New)

// New builds a production Zap logger; callers own the cleanup via Fx lifecycle.
func New(lc fx.Lifecycle, cfg config.Config) (*zap.Logger, error) {
	logger, err := Build(cfg.Observability)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			// stdout/stderr sync fails on some terminals; nothing to flush there.
			_ = logger.Sync()
			return nil
		},
	})

	return logger, nil
}

// Build creates the zap logger described by the observability settings.
func Build(obs config.Observability) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if err := level.Set(strings.ToLower(obs.LogLevel)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if obs.LogEncoding == "console" {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapCfg = zap.NewProductionConfig()
		zapCfg.Encoding = "json"
		zapCfg.EncoderConfig.TimeKey = "ts"
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339Nano)
		zapCfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
		zapCfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return logger.With(
		zap.String("service", obs.ServiceName),
		zap.String("environment", obs.Environment),
	), nil
}

// Printer adapts zap to the Printf-style logger interfaces expected by
// kafka-go and goose.
type Printer struct {
	sugar *zap.SugaredLogger
	level zapcore.Level
}

// NewPrinter returns a Printer writing at the given level under the named component.
func NewPrinter(logger *zap.Logger, component string, level zapcore.Level) Printer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Printer{sugar: logger.Named(component).Sugar(), level: level}
}

// Printf logs a formatted message.
func (p Printer) Printf(format string, args ...interface{}) {
	p.sugar.Logf(p.level, strings.TrimSuffix(format, "\n"), args...)
}

// Fatalf logs at error level. Callers get the failure through returned errors,
// so the process is not terminated here.
func (p Printer) Fatalf(format string, args ...interface{}) {
	p.sugar.Errorf(strings.TrimSuffix(format, "\n"), args...)
}
