package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field keys shared across components so log lines stay searchable.
const (
	FieldMatchID    = "match_id"
	FieldVersion    = "version"
	FieldUserID     = "user_id"
	FieldAction     = "action"
	FieldTopic      = "topic"
	FieldReason     = "reason"
	FieldRequestID  = "request_id"
	FieldSubscriber = "subscriber"
)

// New builds a zap logger. format "console" gives the development encoder,
// anything else structured JSON.
func New(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	cfg := zap.NewProductionConfig()
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// OrNop lets components accept a nil logger.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
