package neopixel

import (
	"encoding"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"libdb.so/neopixel/pixel"
	"libdb.so/neopixel/waveform"
)

// ErrUnknownProfile is returned for a Profile outside the four known ones.
var ErrUnknownProfile = errors.New("unknown strip profile")

// Profile describes how a strip expects its data: the bit rate regime and
// the channel order.
type Profile uint8

const (
	// GRB800 is a WS2812/WS2812B strip: 800KHz, green-red-blue.
	GRB800 Profile = iota
	// RGB800 is an 800KHz strip taking red-green-blue.
	RGB800
	// GRB400 is a 400KHz strip taking green-red-blue.
	GRB400
	// RGB400 is a WS2811 strip driven at 400KHz, red-green-blue.
	RGB400
)

var profileNames = [...]string{
	GRB800: "grb800",
	RGB800: "rgb800",
	GRB400: "grb400",
	RGB400: "rgb400",
}

var (
	_ encoding.TextMarshaler   = Profile(0)
	_ encoding.TextUnmarshaler = (*Profile)(nil)
)

// Valid reports whether p is one of the known profiles.
func (p Profile) Valid() bool {
	return int(p) < len(profileNames)
}

// Rate returns the bit rate of the profile.
func (p Profile) Rate() waveform.Rate {
	if p == GRB400 || p == RGB400 {
		return waveform.KHz400
	}
	return waveform.KHz800
}

// Order returns the channel order of the profile.
func (p Profile) Order() pixel.Order {
	if p == RGB800 || p == RGB400 {
		return pixel.RGB
	}
	return pixel.GRB
}

// String returns the name of the profile, such as "grb800".
func (p Profile) String() string {
	if !p.Valid() {
		return fmt.Sprintf("Profile(%d)", uint8(p))
	}
	return profileNames[p]
}

// ParseProfile parses a profile name such as "grb800". Case is ignored.
func ParseProfile(s string) (Profile, error) {
	for i, name := range profileNames {
		if strings.EqualFold(s, name) {
			return Profile(i), nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownProfile, "%q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Profile) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, errors.Wrapf(ErrUnknownProfile, "%d", uint8(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Profile) UnmarshalText(text []byte) error {
	v, err := ParseProfile(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
