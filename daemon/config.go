package daemon

import (
	"encoding"
	"fmt"
	"io"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"libdb.so/neopixel"
	"libdb.so/neopixel/pixel"
	"periph.io/x/conn/v3/physic"
)

// Backend names where the daemon sends its frames.
type Backend string

const (
	// CdevBackend bit-bangs a Linux GPIO character device line.
	CdevBackend Backend = "cdev"
	// PeriphBackend bit-bangs a pin found through periph.io.
	PeriphBackend Backend = "periph"
	// SerialBackend sends frames to a microcontroller over a serial port.
	SerialBackend Backend = "serial"
	// SPIBackend encodes frames as NRZ on an SPI port.
	SPIBackend Backend = "spi"
	// SimBackend bit-bangs a line that goes nowhere. It is useful for
	// trying out configurations.
	SimBackend Backend = "sim"
)

// Config is the configuration for the neopixel daemon.
type Config struct {
	// Backend is where frames are sent.
	Backend Backend `toml:"backend"`
	// Profile is the bit rate and channel order of the strip.
	Profile neopixel.Profile `toml:"profile"`
	// Rate is the refresh rate for the LEDs in frames per second.
	Rate int `toml:"rate"`
	// EdgeOverhead is the cost of one line transition in clock ticks. Only
	// bit-banged backends use it.
	EdgeOverhead uint32 `toml:"edge_overhead"`

	Cdev   CdevConfig   `toml:"cdev"`
	Periph PeriphConfig `toml:"periph"`
	Serial SerialConfig `toml:"serial"`
	SPI    SPIConfig    `toml:"spi"`

	// LEDs is a list of LED configurations.
	LEDs []LEDConfig `toml:"led"`
}

// CdevConfig selects a GPIO character device line.
type CdevConfig struct {
	// Chip is the GPIO chip, such as "gpiochip0".
	Chip string `toml:"chip"`
	// Line is the line offset on the chip.
	Line int `toml:"line"`
}

// PeriphConfig selects a pin by its periph.io name, such as "GPIO18".
type PeriphConfig struct {
	Pin string `toml:"pin"`
}

// SerialConfig selects the serial port of a microcontroller.
type SerialConfig struct {
	// Device is the path to the device file.
	// This is usually /dev/ttyUSB0 or /dev/ttyACM0.
	Device string `toml:"device"`
	// Baud is the baud rate for the serial connection.
	Baud int `toml:"baud"`
}

// SPIConfig selects an SPI port.
type SPIConfig struct {
	// Port is the periph.io SPI port name. Empty picks the first one.
	Port string `toml:"port"`
	// Freq overrides the NRZ bit rate, such as "800kHz". Empty derives it
	// from the profile.
	Freq string `toml:"freq"`
}

// Frequency parses Freq. It returns 0 if Freq is empty.
func (c SPIConfig) Frequency() (physic.Frequency, error) {
	if c.Freq == "" {
		return 0, nil
	}
	var f physic.Frequency
	if err := f.Set(c.Freq); err != nil {
		return 0, errors.Wrapf(err, "invalid spi frequency %q", c.Freq)
	}
	return f, nil
}

const (
	defaultRate = 30
	defaultBaud = 115200
)

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.LEDs) == 0 || c.NumLEDs() == 0 {
		return errors.New("no LEDs configured")
	}
	if c.NumLEDs() > pixel.MaxPixels {
		return fmt.Errorf("too many LEDs: %d > %d", c.NumLEDs(), pixel.MaxPixels)
	}

	if !c.Profile.Valid() {
		return errors.Wrapf(neopixel.ErrUnknownProfile, "%d", uint8(c.Profile))
	}
	if c.Rate <= 0 {
		return fmt.Errorf("invalid rate %d", c.Rate)
	}

	switch c.Backend {
	case CdevBackend:
		if c.Cdev.Chip == "" {
			return errors.New("cdev backend needs cdev.chip")
		}
		if c.Cdev.Line < 0 {
			return fmt.Errorf("invalid cdev line %d", c.Cdev.Line)
		}
	case PeriphBackend:
		if c.Periph.Pin == "" {
			return errors.New("periph backend needs periph.pin")
		}
	case SerialBackend:
		if c.Serial.Device == "" {
			return errors.New("serial backend needs serial.device")
		}
		if c.Serial.Baud <= 0 {
			return fmt.Errorf("invalid baud rate %d", c.Serial.Baud)
		}
	case SPIBackend:
		if _, err := c.SPI.Frequency(); err != nil {
			return err
		}
	case SimBackend:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}

	for i, led := range c.LEDs {
		if err := led.Validate(); err != nil {
			return errors.Wrapf(err, "led %d", i)
		}
	}

	// Check for overlapping LED ranges.
	for i, led1 := range c.LEDs {
		for _, led2 := range c.LEDs[i+1:] {
			if led1.Range[0] < led2.Range[1] && led2.Range[0] < led1.Range[1] {
				return fmt.Errorf("LED range %v overlaps with %v", led1.Range, led2.Range)
			}
		}
	}

	return nil
}

// NumLEDs returns the number of LEDs configured.
func (c *Config) NumLEDs() int {
	var numLEDs int
	for _, led := range c.LEDs {
		if led.Range[1] > numLEDs {
			numLEDs = led.Range[1]
		}
	}
	return numLEDs
}

// LEDConfig is the configuration for a range of LEDs.
type LEDConfig struct {
	// Range is the range of LEDs to configure, end exclusive.
	Range [2]int `toml:"range"`

	// Only one of the following fields should be set.
	// If none are set, then the LEDs are left off.

	// Color is the color to set the LEDs to.
	Color *pixel.Color `toml:"color,omitempty"`
	// Snake is the configuration for the snake animation.
	Snake *SnakeAnimationConfig `toml:"snake,omitempty"`
	// Breathe is the configuration for the breathing animation.
	Breathe *BreatheAnimationConfig `toml:"breathe,omitempty"`
	// Cycle is the configuration for the color cycling animation.
	Cycle *CycleAnimationConfig `toml:"cycle,omitempty"`
}

// Len returns the number of LEDs in the range.
func (c LEDConfig) Len() int {
	return c.Range[1] - c.Range[0]
}

// Validate validates a single LED range.
func (c LEDConfig) Validate() error {
	if c.Range[0] < 0 || c.Range[0] >= c.Range[1] {
		return fmt.Errorf("invalid LED range %v", c.Range)
	}
	var set int
	for _, isSet := range []bool{c.Color != nil, c.Snake != nil, c.Breathe != nil, c.Cycle != nil} {
		if isSet {
			set++
		}
	}
	if set > 1 {
		return fmt.Errorf("LED range %v has more than one of color, snake, breathe and cycle", c.Range)
	}
	if c.Snake != nil {
		if len(c.Snake.Chunks) == 0 {
			return fmt.Errorf("snake in LED range %v has no chunks", c.Range)
		}
		if c.Snake.Speed <= 0 {
			return fmt.Errorf("snake in LED range %v has no speed", c.Range)
		}
		for _, chunk := range c.Snake.Chunks {
			if chunk.Length < 0 {
				return fmt.Errorf("snake in LED range %v has a negative chunk length", c.Range)
			}
		}
	}
	if c.Breathe != nil {
		if c.Breathe.Period <= 0 {
			return fmt.Errorf("breathe in LED range %v has no period", c.Range)
		}
		switch c.Breathe.Curve {
		case "", LinearCurve, SineCurve:
		default:
			return fmt.Errorf("breathe in LED range %v has unknown curve %q", c.Range, c.Breathe.Curve)
		}
	}
	if c.Cycle != nil {
		if len(c.Cycle.Colors) == 0 {
			return fmt.Errorf("cycle in LED range %v has no colors", c.Range)
		}
		if c.Cycle.Interval <= 0 {
			return fmt.Errorf("cycle in LED range %v has no interval", c.Range)
		}
	}
	return nil
}

// SnakeAnimationConfig is the configuration for the snake animation.
type SnakeAnimationConfig struct {
	// Chunks is the list of chunks for the snake animation.
	Chunks []SnakeAnimationChunk `toml:"chunk"`
	// Speed is how long the snake takes to move by one LED.
	Speed TOMLDuration `toml:"speed"`
	// Reverse moves the snake towards the start of the range.
	Reverse bool `toml:"reverse"`
}

// SnakeAnimationChunk is a chunk for the snake animation.
type SnakeAnimationChunk struct {
	// Color is the color for the chunk.
	Color pixel.Color `toml:"color"`
	// Length is the number of LEDs in the chunk. Zero means 1.
	Length int `toml:"length"`
}

// BreatheAnimationConfig is the configuration for the breathing animation.
type BreatheAnimationConfig struct {
	// Color is the color at full brightness.
	Color pixel.Color `toml:"color"`
	// Period is the time from full brightness to off and back.
	Period TOMLDuration `toml:"period"`
	// Curve is the brightness curve. It defaults to SineCurve.
	Curve BreatheCurve `toml:"curve"`
}

// BreatheCurve is the shape of the brightness over a breathing period.
type BreatheCurve string

const (
	// LinearCurve fades linearly down and back up.
	LinearCurve BreatheCurve = "linear"
	// SineCurve fades along a cosine.
	SineCurve BreatheCurve = "sine"
)

// CycleAnimationConfig is the configuration for the color cycling animation.
type CycleAnimationConfig struct {
	// Colors are shown one after another.
	Colors []pixel.Color `toml:"colors"`
	// Interval is how long each color is shown.
	Interval TOMLDuration `toml:"interval"`
}

// TOMLDuration is a duration that can be parsed from TOML.
type TOMLDuration time.Duration

var (
	_ encoding.TextUnmarshaler = (*TOMLDuration)(nil)
	_ encoding.TextMarshaler   = (*TOMLDuration)(nil)
)

func (d *TOMLDuration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = TOMLDuration(duration)
	return nil
}

func (d TOMLDuration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// ParseConfig parses a configuration from a reader. Missing settings take
// their defaults; the result is not validated.
func ParseConfig(r io.Reader) (*Config, error) {
	var config Config
	if err := toml.NewDecoder(r).Decode(&config); err != nil {
		return nil, err
	}
	config.setDefaults()
	return &config, nil
}

func (c *Config) setDefaults() {
	if c.Backend == "" {
		c.Backend = SimBackend
	}
	if c.Rate == 0 {
		c.Rate = defaultRate
	}
	if c.Serial.Baud == 0 {
		c.Serial.Baud = defaultBaud
	}
}
