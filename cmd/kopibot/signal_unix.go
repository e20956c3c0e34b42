//go:build !windows

package main

import (
	"os"
	"syscall"
)

// terminationSignals are the shutdown triggers. SIGTERM covers process
// managers (systemd, kubernetes); os.Interrupt covers Ctrl+C.
var terminationSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
