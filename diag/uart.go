//go:build rp2040 || rp2350

package diag

import "machine"

// UARTWriter adapts a machine.Serialer to io.Writer so it can back
// SetOutput, grounded on tuffrabit-tinygo-narwhal-rp2040's serial.Serial
// wrapper around the same interface.
type UARTWriter struct {
	serial machine.Serialer
}

// NewUARTWriter wraps an already-configured UART.
func NewUARTWriter(serial machine.Serialer) UARTWriter {
	return UARTWriter{serial: serial}
}

func (w UARTWriter) Write(p []byte) (int, error) {
	return w.serial.Write(p)
}
