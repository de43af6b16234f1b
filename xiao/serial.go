//go:build tinygo

package xiao

import (
	"io"
	"machine"
	"runtime"
	"time"
)

// Port adapts a machine.Serialer such as the USB CDC port to io.ReadWriter.
type Port struct {
	serial machine.Serialer
	// Poll is how long Read sleeps while the receive buffer is empty.
	Poll time.Duration
}

var _ io.ReadWriter = (*Port)(nil)

// NewPort wraps serial.
func NewPort(serial machine.Serialer) *Port {
	return &Port{serial: serial, Poll: time.Millisecond}
}

// Read blocks until at least one byte is buffered, then drains as many
// bytes as fit in b.
func (p *Port) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}

	for p.serial.Buffered() == 0 {
		time.Sleep(p.Poll)
	}

	n := p.serial.Buffered()
	if n > len(b) {
		n = len(b)
	}

	for i := 0; i < n; i++ {
		c, err := p.serial.ReadByte()
		if err != nil {
			return i, err
		}
		b[i] = c
	}

	runtime.Gosched()
	return n, nil
}

// Write writes b byte by byte.
func (p *Port) Write(b []byte) (int, error) {
	for i, c := range b {
		if err := p.serial.WriteByte(c); err != nil {
			return i, err
		}
	}
	runtime.Gosched()
	return len(b), nil
}
