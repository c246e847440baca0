// Package logging provides the package-level structured logger shared by
// the term pool, rewriter, and solver. Library consumers get silence by
// default; callers that want tracing install a real zap logger with Set.
package logging

import "go.uber.org/zap"

var current = zap.NewNop()

// Set installs l as the package-level logger. Passing nil restores the
// no-op logger.
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	current = l
}

// L returns the current package-level logger.
func L() *zap.Logger {
	return current
}

// S returns a SugaredLogger view of the current package-level logger, for
// call sites that want printf-style fields.
func S() *zap.SugaredLogger {
	return current.Sugar()
}
