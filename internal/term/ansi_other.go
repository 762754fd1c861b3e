//go:build !windows

// Package term enables ANSI escape sequence handling where the
// platform needs it.
package term

// EnableANSI is a no-op on Unix systems, whose terminals handle ANSI
// escape sequences natively.
func EnableANSI() {}
