//go:build windows

// Package term enables ANSI escape sequence handling where the
// platform needs it.
package term

import (
	"os"

	"golang.org/x/sys/windows"
)

// EnableANSI turns on virtual terminal processing for stdout so color
// output renders on Windows 10+ consoles. Failures are ignored; output
// simply stays uncolored.
func EnableANSI() {
	handle := windows.Handle(os.Stdout.Fd())

	var mode uint32
	if err := windows.GetConsoleMode(handle, &mode); err != nil {
		return
	}
	_ = windows.SetConsoleMode(handle, mode|windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING)
}
