// Package zaplog adapts a zap logger to the es.Logger interface, giving
// applications structured store diagnostics without writing glue.
package zaplog

import (
	"context"

	"go.uber.org/zap"

	"github.com/tidemark/eventfold/es"
)

// Logger implements es.Logger on top of a zap.SugaredLogger.
type Logger struct {
	sugar *zap.SugaredLogger
}

// New wraps the given zap logger.
func New(logger *zap.Logger) *Logger {
	return &Logger{sugar: logger.Sugar()}
}

// Debug implements es.Logger.
func (l *Logger) Debug(_ context.Context, msg string, keyvals ...interface{}) {
	l.sugar.Debugw(msg, keyvals...)
}

// Info implements es.Logger.
func (l *Logger) Info(_ context.Context, msg string, keyvals ...interface{}) {
	l.sugar.Infow(msg, keyvals...)
}

// Error implements es.Logger.
func (l *Logger) Error(_ context.Context, msg string, keyvals ...interface{}) {
	l.sugar.Errorw(msg, keyvals...)
}

var _ es.Logger = (*Logger)(nil)
