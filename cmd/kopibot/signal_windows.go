//go:build windows

package main

import (
	"os"
)

// terminationSignals are the shutdown triggers. Windows only delivers
// os.Interrupt (Ctrl+C).
var terminationSignals = []os.Signal{os.Interrupt}
