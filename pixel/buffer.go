// Package pixel implements the color buffer of a WS281x strip.
//
// A Buffer stores three bytes per LED in the order the LEDs expect them on
// the wire. Callers only ever see packed RGB Colors; the physical order is a
// storage detail.
package pixel

import (
	"fmt"
	"io"
	"strings"
)

// MaxPixels is the largest strip a Buffer can hold. Asking for more degrades
// the buffer to zero capacity, the same way a failed allocation does.
const MaxPixels = 1<<16 - 1

// Order is the physical channel order of a strip.
type Order uint8

const (
	// GRB is the order used by WS2812 and most derived parts.
	GRB Order = iota
	// RGB is the order used by most WS2811 parts.
	RGB
)

// String returns the lowercase name of the order.
func (o Order) String() string {
	switch o {
	case GRB:
		return "grb"
	case RGB:
		return "rgb"
	default:
		return fmt.Sprintf("Order(%d)", uint8(o))
	}
}

// Valid reports whether o is a known order.
func (o Order) Valid() bool {
	return o == GRB || o == RGB
}

// MarshalText implements encoding.TextMarshaler.
func (o Order) MarshalText() ([]byte, error) {
	if !o.Valid() {
		return nil, fmt.Errorf("unknown channel order %d", uint8(o))
	}
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Order) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "grb":
		*o = GRB
	case "rgb":
		*o = RGB
	default:
		return fmt.Errorf("unknown channel order %q", text)
	}
	return nil
}

// offsets returns where the red, green and blue bytes of a pixel live.
func (o Order) offsets() (r, g, b int) {
	if o == GRB {
		return 1, 0, 2
	}
	return 0, 1, 2
}

// Buffer is a fixed-size strip of pixels. The zero value is a valid buffer
// with no pixels.
//
// A Buffer has a single owner. It must not be written while a transmission
// is reading it.
type Buffer struct {
	pix   []byte
	order Order
}

// New allocates a buffer of count pixels, all black. If the buffer cannot
// be allocated, New returns a buffer of zero capacity on which every
// operation is a no-op.
func New(count int, order Order) *Buffer {
	b := &Buffer{order: order}
	if count <= 0 || count > MaxPixels || !order.Valid() {
		return b
	}
	b.pix = make([]byte, 3*count)
	return b
}

// Len returns the number of pixels. It is 0 if allocation failed.
func (b *Buffer) Len() int {
	return len(b.pix) / 3
}

// Order returns the channel order of the stored bytes.
func (b *Buffer) Order() Order {
	return b.order
}

// Bytes returns the raw pixel bytes in storage order. The slice aliases the
// buffer.
func (b *Buffer) Bytes() []byte {
	return b.pix
}

func (b *Buffer) valid(i int) bool {
	return i >= 0 && i < b.Len()
}

// SetRGB sets the color of pixel i. Out-of-range indices are ignored.
func (b *Buffer) SetRGB(i int, r, g, bl uint8) {
	if !b.valid(i) {
		return
	}
	p := b.pix[3*i : 3*i+3]
	ro, gofs, bo := b.order.offsets()
	p[ro] = r
	p[gofs] = g
	p[bo] = bl
}

// SetColor sets the color of pixel i. Out-of-range indices are ignored.
func (b *Buffer) SetColor(i int, c Color) {
	r, g, bl := Unpack(c)
	b.SetRGB(i, r, g, bl)
}

// Color returns the color of pixel i, or Black if i is out of range.
func (b *Buffer) Color(i int) Color {
	if !b.valid(i) {
		return Black
	}
	p := b.pix[3*i : 3*i+3]
	ro, gofs, bo := b.order.offsets()
	return Pack(p[ro], p[gofs], p[bo])
}

// SetRange sets pixels [start, end) to c. The range is clamped to the
// buffer.
func (b *Buffer) SetRange(start, end int, c Color) {
	if start < 0 {
		start = 0
	}
	if end > b.Len() {
		end = b.Len()
	}
	for i := start; i < end; i++ {
		b.SetColor(i, c)
	}
}

// Fill sets every pixel to c.
func (b *Buffer) Fill(c Color) {
	b.SetRange(0, b.Len(), c)
}

// Clear turns every pixel off.
func (b *Buffer) Clear() {
	for i := range b.pix {
		b.pix[i] = 0
	}
}

// Draw draws the colors of src into b starting at pixel start. It stops when
// either buffer is exhausted and returns the number of pixels written.
func (b *Buffer) Draw(start int, src *Buffer) int {
	if start < 0 {
		return 0
	}
	for i := 0; i < src.Len(); i++ {
		if start+i >= b.Len() {
			return i
		}
		b.SetColor(start+i, src.Color(i))
	}
	return src.Len()
}

// CopyFrom copies the colors of src into b, converting between channel
// orders as needed. It stops at the shorter of the two buffers and returns
// the number of pixels copied.
func (b *Buffer) CopyFrom(src *Buffer) int {
	n := b.Len()
	if src.Len() < n {
		n = src.Len()
	}
	if b.order == src.order {
		copy(b.pix[:3*n], src.pix[:3*n])
		return n
	}
	for i := 0; i < n; i++ {
		b.SetColor(i, src.Color(i))
	}
	return n
}

// WriteTo implements io.WriterTo. It writes the raw pixel bytes in storage
// order.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.pix)
	return int64(n), err
}
