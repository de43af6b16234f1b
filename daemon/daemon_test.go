package daemon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"libdb.so/neopixel/pixel"
)

type fakeOutput struct {
	mu     sync.Mutex
	frames [][]pixel.Color
	wrote  chan struct{}
	runErr error
}

func newFakeOutput() *fakeOutput {
	return &fakeOutput{wrote: make(chan struct{}, 100)}
}

func (o *fakeOutput) Run(ctx context.Context) error {
	if o.runErr != nil {
		return o.runErr
	}
	<-ctx.Done()
	return ctx.Err()
}

func (o *fakeOutput) WriteFrame(ctx context.Context, frame *pixel.Buffer) error {
	o.mu.Lock()
	o.frames = append(o.frames, colors(frame))
	o.mu.Unlock()

	select {
	case o.wrote <- struct{}{}:
	default:
	}
	return nil
}

func (o *fakeOutput) Close() error { return nil }

func (o *fakeOutput) Frames() [][]pixel.Color {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([][]pixel.Color(nil), o.frames...)
}

func testDaemonConfig() *Config {
	red := pixel.Red
	return &Config{
		Backend: SimBackend,
		Rate:    100,
		LEDs: []LEDConfig{
			{Range: [2]int{0, 2}, Color: &red},
			{Range: [2]int{2, 5}, Snake: &SnakeAnimationConfig{
				Chunks: []SnakeAnimationChunk{
					{Color: pixel.Blue},
					{Color: pixel.Black, Length: 2},
				},
				Speed: TOMLDuration(time.Hour),
			}},
		},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDaemon_Run(t *testing.T) {
	out := newFakeOutput()
	d, err := NewDaemon(testDaemonConfig(), out, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	for i := 0; i < 3; i++ {
		select {
		case <-out.wrote:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for frame")
		}
	}
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}

	frames := out.Frames()
	require.GreaterOrEqual(t, len(frames), 4)

	R, B, K := pixel.Red, pixel.Blue, pixel.Black
	assert.Equal(t, []pixel.Color{R, R, B, K, K}, frames[0])
	assert.Equal(t, []pixel.Color{K, K, K, K, K}, frames[len(frames)-1], "LEDs are turned off on exit")
}

func TestDaemon_OutputFails(t *testing.T) {
	out := newFakeOutput()
	out.runErr = errors.New("unplugged")

	d, err := NewDaemon(testDaemonConfig(), out, testLogger())
	require.NoError(t, err)

	err = d.Run(context.Background())
	assert.EqualError(t, err, "unplugged")

	frames := out.Frames()
	require.NotEmpty(t, frames)
	assert.Equal(t, make([]pixel.Color, 5), frames[len(frames)-1])
}

func TestDaemon_Once(t *testing.T) {
	out := newFakeOutput()
	d, err := NewDaemon(testDaemonConfig(), out, testLogger())
	require.NoError(t, err)

	require.NoError(t, d.Once(context.Background()))

	frames := out.Frames()
	require.Len(t, frames, 1)
	assert.Equal(t, []pixel.Color{pixel.Red, pixel.Red, pixel.Blue, pixel.Black, pixel.Black}, frames[0])
}

func TestNewDaemon_InvalidConfig(t *testing.T) {
	_, err := NewDaemon(&Config{Backend: SimBackend, Rate: 30}, newFakeOutput(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
