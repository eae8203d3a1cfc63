// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package xlog adapts github.com/luxfi/log for the transport packages: a
// thin wrapper so every constructor here returns a log.Logger and callers
// never import github.com/luxfi/log directly.
package xlog

import (
	"github.com/luxfi/log"
	"go.uber.org/zap"
)

// Logger is the structured logger interface threaded through every package
// constructor in this module.
type Logger = log.Logger

// Field is a structured logging field, e.g. zap.Uint32("chid", id).
type Field = zap.Field

// NewNoOp returns a logger that discards everything, for tests and
// benchmarks that don't care about log output.
func NewNoOp() Logger {
	return log.NewNoOpLogger()
}

// Named returns a child logger scoped to the given component name, for the
// per-channel / per-transfer loggers (e.g. Named(root, "channel")).
func Named(l Logger, name string) Logger {
	return l.WithFields(zap.String("component", name))
}
