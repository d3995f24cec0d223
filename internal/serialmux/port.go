package serialmux

import (
	"io"
)

// SerialPorter is the minimal port surface SerialMux needs, satisfied by
// go.bug.st/serial.Port and by the test doubles in mock.go.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}
