package radio_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"slices"
	"testing"

	"go.uber.org/mock/gomock"
	"i4.energy/across/sensorlink/at"
	"i4.energy/across/sensorlink/radio"
)

func expectedFrame(name string, values ...float32) []byte {
	frame := []byte("DATA")
	for _, v := range values {
		frame = binary.LittleEndian.AppendUint32(frame, math.Float32bits(v))
	}
	frame = append(frame, byte(len(name)))
	return append(frame, name...)
}

func TestRadioSend(t *testing.T) {
	ctx := context.Background()

	t.Run("Writes the announced frame", func(t *testing.T) {
		tr := radio.NewHealthyTestTransport()
		r := newRadio(t, tr.Dialer())

		if err := r.Setup(ctx, "NetA", "pw", "10.0.0.5", 6301); err != nil {
			t.Fatalf("unexpected error from Setup(): %v", err)
		}
		tr.Forget()

		if err := r.Send(ctx, 1.0, 2.0, 3.0); err != nil {
			t.Fatalf("unexpected error from Send(): %v", err)
		}

		want := expectedFrame("test_new", 1.0, 2.0, 3.0)
		frames := tr.Frames()
		if len(frames) != 1 || !bytes.Equal(frames[0], want) {
			t.Fatalf("expected frame %x, got %x", want, frames)
		}
		if cmds := tr.Commands(); !slices.Equal(cmds, []string{"AT+CIPSEND=0,25"}) {
			t.Errorf("expected a single CIPSEND of 25 bytes, got %q", cmds)
		}
	})

	t.Run("Frame follows the prompt", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := radio.NewMockTransport(ctrl)
		mockDialer := radio.NewMockDialer(ctrl)

		frame := expectedFrame("test_new", -4.5, 21.25, 0.5)
		gomock.InOrder(slices.Concat(
			[]any{
				mockDialer.EXPECT().Dial(gomock.Any()).Return(mockTransport, nil),
			},
			initMockCalls(mockTransport),
			NewMockSequence(mockTransport).
				Join("NetA", "pw").
				Multiplex().
				StartUDP("10.0.0.5", 6301).
				Send(frame).
				Build(),
		)...)

		r := newRadio(t, mockDialer)
		if err := r.Setup(ctx, "NetA", "pw", "10.0.0.5", 6301); err != nil {
			t.Fatalf("unexpected error from Setup(): %v", err)
		}
		if err := r.Send(ctx, -4.5, 21.25, 0.5); err != nil {
			t.Fatalf("unexpected error from Send(): %v", err)
		}
	})

	t.Run("ErrNotBound without a socket", func(t *testing.T) {
		tr := radio.NewHealthyTestTransport()
		r := newRadio(t, tr.Dialer())
		tr.Forget()

		if err := r.Send(ctx, 1, 2, 3); !errors.Is(err, radio.ErrNotBound) {
			t.Errorf("expected ErrNotBound, got: %v", err)
		}
		if cmds := tr.Commands(); len(cmds) != 0 {
			t.Errorf("expected no traffic, got %q", cmds)
		}
	})

	t.Run("Rejected announcement writes no frame", func(t *testing.T) {
		tr := radio.NewHealthyTestTransport()
		tr.Reply("AT+CIPSEND", "link is not valid\r\n\r\nERROR\r\n")
		var failed []radio.Event
		r := newRadio(t, tr.Dialer(), func(b *radio.ConfigBuilder) {
			b.WithObserver(radio.ObserverFunc(func(e radio.Event) {
				if e.Kind == radio.EventSendFailed {
					failed = append(failed, e)
				}
			}))
		})

		if err := r.Setup(ctx, "NetA", "pw", "10.0.0.5", 6301); err != nil {
			t.Fatalf("unexpected error from Setup(): %v", err)
		}

		err := r.Send(ctx, 1, 2, 3)
		if !errors.Is(err, at.ErrRejected) {
			t.Errorf("expected rejected CIPSEND, got: %v", err)
		}
		if frames := tr.Frames(); len(frames) != 0 {
			t.Errorf("expected no frame, got %x", frames)
		}
		if len(failed) != 1 || failed[0].Bytes != 25 {
			t.Errorf("expected one send failure event for 25 bytes, got %+v", failed)
		}
	})

	t.Run("SEND FAIL keeps the socket", func(t *testing.T) {
		tr := radio.NewHealthyTestTransport()
		tr.Reply("DATA", "\r\nRecv 25 bytes\r\n\r\nSEND FAIL\r\n", "\r\nRecv 25 bytes\r\n\r\nSEND OK\r\n")
		r := newRadio(t, tr.Dialer())

		if err := r.Setup(ctx, "NetA", "pw", "10.0.0.5", 6301); err != nil {
			t.Fatalf("unexpected error from Setup(): %v", err)
		}

		if err := r.Send(ctx, 1, 2, 3); !errors.Is(err, at.ErrRejected) {
			t.Errorf("expected rejected frame, got: %v", err)
		}
		if _, ok := r.State().(radio.Bound); !ok {
			t.Errorf("expected the socket to stay bound, got %v", r.State())
		}
		if err := r.Send(ctx, 1, 2, 3); err != nil {
			t.Errorf("expected the next send to succeed, got: %v", err)
		}
	})

	t.Run("Short frame write desynchronizes", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := radio.NewMockTransport(ctrl)
		mockDialer := radio.NewMockDialer(ctrl)

		frame := expectedFrame("test_new", 1, 2, 3)
		gomock.InOrder(slices.Concat(
			[]any{
				mockDialer.EXPECT().Dial(gomock.Any()).Return(mockTransport, nil),
			},
			initMockCalls(mockTransport),
			NewMockSequence(mockTransport).
				Join("NetA", "pw").
				Multiplex().
				StartUDP("10.0.0.5", 6301).
				Exchange("AT+CIPSEND=0,25", "\r\nOK\r\n> ").
				Build(),
			[]any{
				mockTransport.EXPECT().Write(frame).Return(0, nil),
			},
		)...)

		r := newRadio(t, mockDialer)
		if err := r.Setup(ctx, "NetA", "pw", "10.0.0.5", 6301); err != nil {
			t.Fatalf("unexpected error from Setup(): %v", err)
		}

		if err := r.Send(ctx, 1, 2, 3); !errors.Is(err, radio.ErrDesync) {
			t.Errorf("expected ErrDesync, got: %v", err)
		}
		if _, ok := r.State().(radio.Uninitialized); !ok {
			t.Errorf("expected uninitialized state, got %v", r.State())
		}
	})
}

func TestRadioPlainReplies(t *testing.T) {
	ctx := context.Background()
	plain := func() *radio.TestTransport {
		return radio.NewTestTransport().
			Reply("AT", "OK\r\n").
			Reply(at.CmdReset, "ready\r\n").
			Reply("DATA", "OK\r\n")
	}

	t.Run("Setup and send", func(t *testing.T) {
		tr := plain()
		r := newRadio(t, tr.Dialer())

		if err := r.Setup(ctx, "NetA", "pw", "10.0.0.5", 6301); err != nil {
			t.Fatalf("unexpected error from Setup(): %v", err)
		}
		if err := r.Send(ctx, 1.0, 2.0, 3.0); err != nil {
			t.Fatalf("unexpected error from Send(): %v", err)
		}

		want := expectedFrame("test_new", 1.0, 2.0, 3.0)
		if frames := tr.Frames(); len(frames) != 1 || !bytes.Equal(frames[0], want) {
			t.Errorf("expected frame %x, got %x", want, frames)
		}
	})

	t.Run("Association always rejected", func(t *testing.T) {
		tr := plain().Reply("AT+CWJAP_CUR", "ERROR\r\n")
		r := newRadio(t, tr.Dialer())

		if err := r.Setup(ctx, "NetA", "pw", "10.0.0.5", 6301); err == nil {
			t.Fatal("expected Setup to fail")
		}
		if n := tr.Count("AT+CWJAP_CUR"); n != 3 {
			t.Errorf("expected exactly 3 join attempts, got %d", n)
		}
		if n := tr.Count("AT+CIPSTART"); n != 0 {
			t.Errorf("expected no socket-open command, got %d", n)
		}
	})
}
