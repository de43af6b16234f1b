package pixel

import (
	"encoding"
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Color is a packed 24-bit RGB color. Red occupies bits 16-23, green bits
// 8-15 and blue bits 0-7. The layout never depends on the channel order of
// the strip the color ends up on.
type Color uint32

// Common colors.
const (
	Black Color = 0x000000
	Red   Color = 0xFF0000
	Green Color = 0x00FF00
	Blue  Color = 0x0000FF
	White Color = 0xFFFFFF
)

var (
	_ color.Color              = Color(0)
	_ encoding.TextUnmarshaler = (*Color)(nil)
	_ encoding.TextMarshaler   = Color(0)
)

// Pack packs the given channels into a Color.
func Pack(r, g, b uint8) Color {
	return Color(r)<<16 | Color(g)<<8 | Color(b)
}

// Unpack splits c into its channels. It is the inverse of Pack. Bits above
// the lower 24 are ignored.
func Unpack(c Color) (r, g, b uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// RGB returns the channels of c.
func (c Color) RGB() (r, g, b uint8) {
	return Unpack(c)
}

// RGBA implements color.Color. The alpha channel is always opaque.
func (c Color) RGBA() (r, g, b, a uint32) {
	r8, g8, b8 := Unpack(c)
	r = uint32(r8) * 0x101
	g = uint32(g8) * 0x101
	b = uint32(b8) * 0x101
	a = 0xFFFF
	return
}

// FromColor converts any color.Color into a packed Color. Alpha is applied
// by the conversion to non-premultiplied RGBA and then dropped.
func FromColor(c color.Color) Color {
	if c, ok := c.(Color); ok {
		return c
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return Pack(n.R, n.G, n.B)
}

// String formats c as #rrggbb.
func (c Color) String() string {
	return fmt.Sprintf("#%06x", uint32(c)&0xFFFFFF)
}

// MarshalText implements encoding.TextMarshaler.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It accepts #rrggbb,
// #rgb and the same forms without the leading hash.
func (c *Color) UnmarshalText(text []byte) error {
	s := strings.TrimPrefix(string(text), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return fmt.Errorf("invalid color %q: want #rrggbb", text)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return fmt.Errorf("invalid color %q: %w", text, err)
	}
	*c = Color(v)
	return nil
}
