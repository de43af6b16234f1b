package daemon

import (
	"math"
	"time"

	"libdb.so/neopixel/pixel"
)

// Animator is the interface for types that can animate the LEDs.
// It is kept to a minimum.
type Animator interface {
	// Draw draws the frame at time t since the animation started into leds.
	// leds only covers the LED range the animator was configured for.
	Draw(t time.Duration, leds *pixel.Buffer)
}

// SnakeAnimation scrolls a repeating pattern of colored chunks along its
// range, one LED per Speed.
type SnakeAnimation struct {
	pattern []pixel.Color
	speed   time.Duration
	reverse bool
}

var _ Animator = (*SnakeAnimation)(nil)

// NewSnakeAnimation creates a snake animation from its configuration.
func NewSnakeAnimation(cfg SnakeAnimationConfig) *SnakeAnimation {
	var pattern []pixel.Color
	for _, chunk := range cfg.Chunks {
		n := chunk.Length
		if n == 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			pattern = append(pattern, chunk.Color)
		}
	}

	return &SnakeAnimation{
		pattern: pattern,
		speed:   time.Duration(cfg.Speed),
		reverse: cfg.Reverse,
	}
}

// Draw implements Animator.
func (a *SnakeAnimation) Draw(t time.Duration, leds *pixel.Buffer) {
	if len(a.pattern) == 0 {
		leds.Clear()
		return
	}

	var shift int
	if a.speed > 0 && t > 0 {
		shift = int((t / a.speed) % time.Duration(len(a.pattern)))
	}
	if a.reverse {
		shift = -shift
	}

	n := len(a.pattern)
	for i := 0; i < leds.Len(); i++ {
		j := ((i-shift)%n + n) % n
		leds.SetColor(i, a.pattern[j])
	}
}

// BreatheAnimation fades its range from full brightness to off and back.
type BreatheAnimation struct {
	color  pixel.Color
	period time.Duration
	curve  BreatheCurve
}

var _ Animator = (*BreatheAnimation)(nil)

// NewBreatheAnimation creates a breathing animation from its configuration.
func NewBreatheAnimation(cfg BreatheAnimationConfig) *BreatheAnimation {
	curve := cfg.Curve
	if curve == "" {
		curve = SineCurve
	}
	return &BreatheAnimation{
		color:  cfg.Color,
		period: time.Duration(cfg.Period),
		curve:  curve,
	}
}

// Intensity returns the brightness at time t in the range [0, 1].
func (a *BreatheAnimation) Intensity(t time.Duration) float64 {
	if a.period <= 0 {
		return 1
	}

	half := float64(a.period / 2)
	elapsed := t % a.period

	switch a.curve {
	case LinearCurve:
		return math.Abs(1 - float64(elapsed)/half)
	default:
		return (1 + math.Cos(float64(elapsed)/half*math.Pi)) / 2
	}
}

// Draw implements Animator.
func (a *BreatheAnimation) Draw(t time.Duration, leds *pixel.Buffer) {
	intensity := uint(math.Round(a.Intensity(t) * 0xFF))

	r, g, b := a.color.RGB()
	c := pixel.Pack(
		uint8(uint(r)*intensity/0xFF),
		uint8(uint(g)*intensity/0xFF),
		uint8(uint(b)*intensity/0xFF),
	)
	leds.Fill(c)
}

// CycleAnimation shows a list of colors one after another.
type CycleAnimation struct {
	colors   []pixel.Color
	interval time.Duration
}

var _ Animator = (*CycleAnimation)(nil)

// NewCycleAnimation creates a color cycling animation from its
// configuration.
func NewCycleAnimation(cfg CycleAnimationConfig) *CycleAnimation {
	return &CycleAnimation{
		colors:   cfg.Colors,
		interval: time.Duration(cfg.Interval),
	}
}

// Draw implements Animator.
func (a *CycleAnimation) Draw(t time.Duration, leds *pixel.Buffer) {
	if len(a.colors) == 0 {
		leds.Clear()
		return
	}

	var i int
	if a.interval > 0 && t > 0 {
		i = int((t / a.interval) % time.Duration(len(a.colors)))
	}
	leds.Fill(a.colors[i])
}
