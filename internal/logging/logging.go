// Package logging provides the small, injectable Zap wrapper used across
// cdpwire's components. Every component takes a *zap.Logger rather than
// reaching for a global, so importing this library never produces output
// unless the caller opts in.
package logging

import "go.uber.org/zap"

// Nop returns a logger that discards everything, the default for any
// component that isn't given one explicitly.
func Nop() *zap.Logger {
	return zap.NewNop()
}

// Named returns l scoped under name, or a nop logger named the same way
// if l is nil. The discovery and session constructors use this; the
// cdp constructors check for a nil logger themselves.
func Named(l *zap.Logger, name string) *zap.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return l.Named(name)
}

// Development builds a human-readable, colorless console logger suitable
// for the cmd/cdpwire smoke-test binary and for local debugging. It is
// never called by library code itself.
func Development() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}
