// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package telemetry wraps zap logging and prometheus metrics behind
// small constructor-injected types, the way the teacher threads a
// log.Logger field through validator.logger and a prometheus
// Registerer through metrics.Metrics. Nothing here is a package-level
// global; every long-lived component takes a *Logger and *Metrics at
// construction time.
package telemetry

import (
	"go.uber.org/zap"
)

// Logger is a thin named wrapper around *zap.Logger.
type Logger struct {
	z *zap.Logger
}

// NewLogger wraps z. Pass nil to get a no-op logger suitable for
// tests.
func NewLogger(z *zap.Logger) *Logger {
	if z == nil {
		z = zap.NewNop()
	}
	return &Logger{z: z}
}

// NewDevelopmentLogger builds a human-readable console logger, useful
// for the cmd/evolu-relay binary during local development.
func NewDevelopmentLogger() (*Logger, error) {
	z, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return &Logger{z: z}, nil
}

// With returns a Logger with the given structured fields attached to
// every subsequent log line.
func (l *Logger) With(fields ...zap.Field) *Logger {
	if l == nil {
		return NewLogger(nil)
	}
	return &Logger{z: l.z.With(fields...)}
}

func (l *Logger) Info(msg string, fields ...zap.Field) {
	if l == nil {
		return
	}
	l.z.Info(msg, fields...)
}

func (l *Logger) Warn(msg string, fields ...zap.Field) {
	if l == nil {
		return
	}
	l.z.Warn(msg, fields...)
}

func (l *Logger) Error(msg string, fields ...zap.Field) {
	if l == nil {
		return
	}
	l.z.Error(msg, fields...)
}

func (l *Logger) Sync() error {
	if l == nil {
		return nil
	}
	return l.z.Sync()
}
