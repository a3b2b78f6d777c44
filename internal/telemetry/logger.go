// Package telemetry constructs the venue's structured logger. zap.Logger
// is threaded through every domain package (phase.Handler, venue.Exchange,
// pipeline.Pipeline) the way it's threaded through the matching-engine
// structs across the tradSys example files; this package just owns the
// one-time construction from config.LoggingConfig.
package telemetry

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tradingfloor/exchange-core/internal/config"
)

// NewLogger builds a zap.Logger from logging config. format "json" uses
// zap's production encoder; anything else falls back to the human-readable
// console encoder used for local development.
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("telemetry: invalid log level %q: %w", cfg.Level, err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.EncoderConfig.TimeKey = "timestamp"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if cfg.Format != "json" {
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	return zcfg.Build()
}
