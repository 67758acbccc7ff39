// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package logging

import (
	"context"
	"fmt"
	"time"
)

// contextKey is the key type for Logger attached to context.Context.
type contextKey struct{}

// AttachLogger creates a context associated with logger. The returned context
// can be used with Info/Infof/Debug/Debugf.
func AttachLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// loggerFromContext extracts a logger from a context.
func loggerFromContext(ctx context.Context) (Logger, bool) {
	logger, ok := ctx.Value(contextKey{}).(Logger)
	return logger, ok
}

// FromContext returns the logger attached to ctx, if any.
func FromContext(ctx context.Context) (Logger, bool) {
	return loggerFromContext(ctx)
}

// HasLogger checks if any logger is attached to ctx.
func HasLogger(ctx context.Context) bool {
	_, ok := loggerFromContext(ctx)
	return ok
}

func log(ctx context.Context, level Level, args ...interface{}) {
	logger, ok := loggerFromContext(ctx)
	if !ok {
		return
	}
	logger.Log(level, time.Now(), fmt.Sprint(args...))
}

func logf(ctx context.Context, level Level, format string, args ...interface{}) {
	logger, ok := loggerFromContext(ctx)
	if !ok {
		return
	}
	logger.Log(level, time.Now(), fmt.Sprintf(format, args...))
}

// Info emits an INFO log via the logger attached to ctx. If no logger is
// attached, the log is discarded.
func Info(ctx context.Context, args ...interface{}) {
	log(ctx, LevelInfo, args...)
}

// Infof is similar to Info but formats its arguments using fmt.Sprintf.
func Infof(ctx context.Context, format string, args ...interface{}) {
	logf(ctx, LevelInfo, format, args...)
}

// Debug emits a DEBUG log via the logger attached to ctx. If no logger is
// attached, the log is discarded.
func Debug(ctx context.Context, args ...interface{}) {
	log(ctx, LevelDebug, args...)
}

// Debugf is similar to Debug but formats its arguments using fmt.Sprintf.
func Debugf(ctx context.Context, format string, args ...interface{}) {
	logf(ctx, LevelDebug, format, args...)
}
