package reporter

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"i4.energy/across/sensorlink/at"
	"i4.energy/across/sensorlink/radio"
)

type fakeNode struct {
	calls         []string
	setupErr      error
	sendErr       error
	disconnectErr error
	onSetup       func()
}

func (n *fakeNode) Setup(ctx context.Context, ssid, password, host string, port int) error {
	n.calls = append(n.calls, "setup")
	if n.onSetup != nil {
		n.onSetup()
	}
	return n.setupErr
}

func (n *fakeNode) Send(ctx context.Context, light, temperature, humidity float32) error {
	n.calls = append(n.calls, "send")
	return n.sendErr
}

func (n *fakeNode) Disconnect(ctx context.Context) error {
	n.calls = append(n.calls, "disconnect")
	return n.disconnectErr
}

func newReporter(t *testing.T, node Node, source Source) *Reporter {
	t.Helper()
	r, err := New(node, source, Config{
		SSID:     "NetA",
		Password: "pw",
		Host:     "10.0.0.5",
		Port:     6301,
		Interval: 10 * time.Millisecond,
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error from New(): %v", err)
	}
	return r
}

func TestNew(t *testing.T) {
	if _, err := New(nil, nil, Config{}, nil); err != ErrNoNode {
		t.Errorf("expected ErrNoNode, got: %v", err)
	}

	r, err := New(&fakeNode{}, nil, Config{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.config.Interval != DefaultInterval || r.config.MaxBackoff != DefaultMaxBackoff {
		t.Errorf("unexpected defaults: %+v", r.config)
	}
}

func TestCycle(t *testing.T) {
	ctx := context.Background()

	t.Run("Setup, send, disconnect", func(t *testing.T) {
		node := &fakeNode{}
		if err := newReporter(t, node, nil).Cycle(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := []string{"setup", "send", "disconnect"}; !slices.Equal(node.calls, want) {
			t.Errorf("expected calls %q, got %q", want, node.calls)
		}
	})

	t.Run("Failed setup sends nothing", func(t *testing.T) {
		setupErr := errors.New("join failed")
		node := &fakeNode{setupErr: setupErr}

		err := newReporter(t, node, nil).Cycle(ctx)
		if !errors.Is(err, setupErr) {
			t.Errorf("expected setup error, got: %v", err)
		}
		if want := []string{"setup"}; !slices.Equal(node.calls, want) {
			t.Errorf("expected calls %q, got %q", want, node.calls)
		}
	})

	t.Run("Failed send still disconnects", func(t *testing.T) {
		sendErr := errors.New("SEND FAIL")
		disconnectErr := errors.New("CWQAP rejected")
		node := &fakeNode{sendErr: sendErr, disconnectErr: disconnectErr}

		err := newReporter(t, node, nil).Cycle(ctx)
		if !errors.Is(err, sendErr) || !errors.Is(err, disconnectErr) {
			t.Errorf("expected both errors, got: %v", err)
		}
		if want := []string{"setup", "send", "disconnect"}; !slices.Equal(node.calls, want) {
			t.Errorf("expected calls %q, got %q", want, node.calls)
		}
	})

	t.Run("Source error skips the radio", func(t *testing.T) {
		readErr := errors.New("sensor unplugged")
		node := &fakeNode{}
		source := SourceFunc(func(context.Context) (Readings, error) {
			return Readings{}, readErr
		})

		if err := newReporter(t, node, source).Cycle(ctx); !errors.Is(err, readErr) {
			t.Errorf("expected read error, got: %v", err)
		}
		if len(node.calls) != 0 {
			t.Errorf("expected no radio calls, got %q", node.calls)
		}
	})

	t.Run("Drives a radio", func(t *testing.T) {
		tr := radio.NewHealthyTestTransport()
		config, err := radio.NewConfigBuilder().
			WithDialer(tr.Dialer()).
			WithClientName("test_new").
			WithReplyTimeout(time.Second).
			Build()
		if err != nil {
			t.Fatalf("unexpected error from Build(): %v", err)
		}
		rd, err := radio.New(ctx, config)
		if err != nil {
			t.Fatalf("unexpected error from New(): %v", err)
		}
		tr.Forget()

		r := newReporter(t, rd, StaticSource{Light: 1.0, Temperature: 2.0, Humidity: 3.0})
		if err := r.Cycle(ctx); err != nil {
			t.Fatalf("unexpected error from Cycle(): %v", err)
		}

		want := []byte("DATA")
		for _, v := range []float32{1.0, 2.0, 3.0} {
			want = binary.LittleEndian.AppendUint32(want, math.Float32bits(v))
		}
		want = append(want, 8)
		want = append(want, "test_new"...)
		if frames := tr.Frames(); len(frames) != 1 || !bytes.Equal(frames[0], want) {
			t.Errorf("expected frame %x, got %x", want, frames)
		}
		if _, ok := rd.State().(radio.Idle); !ok {
			t.Errorf("expected the radio to be idle after the cycle, got %v", rd.State())
		}
	})

	t.Run("Recovers from a failed reset", func(t *testing.T) {
		tr := radio.NewHealthyTestTransport()
		tr.Reply(at.CmdReset, "OK\r\nready\r\n", "ERROR\r\n", "OK\r\nready\r\n")
		config, err := radio.NewConfigBuilder().
			WithDialer(tr.Dialer()).
			WithClientName("test_new").
			WithReplyTimeout(time.Second).
			Build()
		if err != nil {
			t.Fatalf("unexpected error from Build(): %v", err)
		}
		rd, err := radio.New(ctx, config)
		if err != nil {
			t.Fatalf("unexpected error from New(): %v", err)
		}

		r := newReporter(t, rd, StaticSource{Light: 1.0, Temperature: 2.0, Humidity: 3.0})
		for i := range 5 {
			if err := r.Cycle(ctx); err != nil {
				t.Fatalf("cycle %d: unexpected error: %v", i+1, err)
			}
		}
		if frames := tr.Frames(); len(frames) != 5 {
			t.Errorf("expected a frame per cycle, got %d", len(frames))
		}
		if _, ok := rd.State().(radio.Idle); !ok {
			t.Errorf("expected the radio to be idle after the last cycle, got %v", rd.State())
		}
	})
}

func TestNext(t *testing.T) {
	r, err := New(&fakeNode{}, nil, Config{Interval: time.Second, MaxBackoff: 4 * time.Second}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	failure := errors.New("failed")

	if got := r.next(nil); got != time.Second {
		t.Errorf("expected the interval after success, got %v", got)
	}

	var last time.Duration
	for range 10 {
		last = r.next(failure)
		if last <= 0 || last > 6*time.Second {
			t.Fatalf("backoff %v out of range", last)
		}
	}
	if last < 2*time.Second {
		t.Errorf("expected the backoff to reach its cap, got %v", last)
	}

	if got := r.next(nil); got != time.Second {
		t.Errorf("expected success to reset the backoff, got %v", got)
	}
	if got := r.next(failure); got > 1500*time.Millisecond {
		t.Errorf("expected the backoff to restart, got %v", got)
	}
}

func TestRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cycles := 0
	node := &fakeNode{onSetup: func() {
		cycles++
		if cycles == 3 {
			cancel()
		}
	}}

	r := newReporter(t, node, nil)
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if cycles != 3 {
		t.Errorf("expected 3 cycles, got %d", cycles)
	}
}
