package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/pflag"
	"libdb.so/neopixel"
	"libdb.so/neopixel/daemon"
	"libdb.so/neopixel/internal/hostline"
)

var (
	config  = "neopixel.toml"
	verbose = false
	serve   = ""
	once    = false
)

func init() {
	pflag.StringVarP(&config, "config", "c", config, "configuration file")
	pflag.BoolVarP(&verbose, "verbose", "v", verbose, "verbose output")
	pflag.StringVar(&serve, "serve", serve, "act as a serial LED device on this port instead of running the daemon")
	pflag.BoolVar(&once, "once", once, "render the first frame, leave it on and exit")
}

func main() {
	pflag.Parse()

	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := readConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if serve != "" {
		return runDevice(ctx, cfg)
	}
	return runDaemon(ctx, cfg)
}

func runDaemon(ctx context.Context, cfg *daemon.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	out, err := daemon.OpenOutput(cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to open %s output: %w", cfg.Backend, err)
	}
	defer out.Close()

	d, err := daemon.NewDaemon(cfg, out, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	if once {
		return d.Once(ctx)
	}

	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("daemon failed: %w", err)
	}

	return nil
}

// runDevice serves the LED serial protocol on a serial port, driving the
// configured line. This lets one host feed frames to a strip on another.
func runDevice(ctx context.Context, cfg *daemon.Config) error {
	line, excl, err := daemon.OpenLine(cfg)
	if err != nil {
		return err
	}
	if closer, ok := line.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	port, err := daemon.OpenSerialPort(serve, cfg.Serial.Baud)
	if err != nil {
		return err
	}
	defer port.Close()

	go func() {
		<-ctx.Done()
		slog.Debug("closing serial port")
		port.Close()
	}()

	dev := neopixel.NewDevice(line, &neopixel.DeviceOpts{
		Clock:        hostline.NewClock(),
		Exclusive:    excl,
		EdgeOverhead: cfg.EdgeOverhead,
	})

	slog.Info("serving LED device", "port", serve, "backend", cfg.Backend)

	if err := dev.Serve(ctx, port); err != nil && ctx.Err() == nil {
		return fmt.Errorf("device failed: %w", err)
	}

	return nil
}

func readConfig() (*daemon.Config, error) {
	f, err := os.Open(config)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	return daemon.ParseConfig(f)
}
