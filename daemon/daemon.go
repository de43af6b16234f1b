// Package daemon renders configured colors and animations into frames and
// sends them to an Output: a local strip, a microcontroller on a serial
// port, or an SPI port.
package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"libdb.so/neopixel/pixel"
)

// Daemon is the main neopixel daemon.
type Daemon struct {
	cfg    *Config
	out    Output
	logger *slog.Logger
	now    func() time.Time
}

// NewDaemon creates a new daemon sending frames to out. A nil logger means
// slog.Default().
func NewDaemon(cfg *Config, out Output, logger *slog.Logger) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Daemon{
		cfg:    cfg,
		out:    out,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Run starts the daemon. It blocks until the given context is canceled or
// the output fails. The LEDs are turned off before it returns.
func (d *Daemon) Run(ctx context.Context) error {
	errg, ctx := errgroup.WithContext(ctx)
	errg.Go(func() error {
		return d.out.Run(ctx)
	})
	errg.Go(func() error {
		return d.mainLoop(ctx)
	})

	err := errg.Wait()
	d.turnOff()
	return err
}

// Once renders and writes the first frame, then returns. The LEDs are left
// on.
func (d *Daemon) Once(ctx context.Context) error {
	r := newRenderer(d.cfg)
	if err := d.out.WriteFrame(ctx, r.render(0)); err != nil {
		return errors.Wrap(err, "failed to write frame")
	}
	return nil
}

func (d *Daemon) mainLoop(ctx context.Context) error {
	r := newRenderer(d.cfg)
	d.logger.Debug(
		"starting frame loop",
		"leds", r.leds.Len(),
		"animators", len(r.animators),
		"rate", d.cfg.Rate)

	frameTicker := time.NewTicker(time.Second / time.Duration(d.cfg.Rate))
	defer frameTicker.Stop()

	start := d.now()
	for {
		frame := r.render(d.now().Sub(start))
		if err := d.out.WriteFrame(ctx, frame); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "failed to write frame")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-frameTicker.C:
		}
	}
}

func (d *Daemon) turnOff() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	d.logger.Debug("turning LEDs off")

	off := pixel.New(d.cfg.NumLEDs(), pixel.RGB)
	if err := d.out.WriteFrame(ctx, off); err != nil {
		d.logger.Warn(
			"failed to turn LEDs off",
			"error", err)
	}
}

type trackedAnimator struct {
	Animator
	cfg  LEDConfig
	leds *pixel.Buffer
}

// renderer keeps the frame between renders so static colors are only drawn
// once.
type renderer struct {
	leds      *pixel.Buffer
	animators []trackedAnimator
}

func newRenderer(cfg *Config) *renderer {
	r := &renderer{leds: pixel.New(cfg.NumLEDs(), pixel.RGB)}

	for _, led := range cfg.LEDs {
		switch {
		case led.Color != nil:
			// Pre-initialize with static colors and skip the animator.
			r.leds.SetRange(led.Range[0], led.Range[1], *led.Color)
		case led.Snake != nil:
			r.track(NewSnakeAnimation(*led.Snake), led)
		case led.Breathe != nil:
			r.track(NewBreatheAnimation(*led.Breathe), led)
		case led.Cycle != nil:
			r.track(NewCycleAnimation(*led.Cycle), led)
		}
	}

	return r
}

func (r *renderer) track(a Animator, cfg LEDConfig) {
	r.animators = append(r.animators, trackedAnimator{
		Animator: a,
		cfg:      cfg,
		leds:     pixel.New(cfg.Len(), pixel.RGB),
	})
}

func (r *renderer) render(t time.Duration) *pixel.Buffer {
	for _, animator := range r.animators {
		animator.Draw(t, animator.leds)
		r.leds.Draw(animator.cfg.Range[0], animator.leds)
	}
	return r.leds
}
