package radio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

//go:generate mockgen -source=transport.go -destination=mock_transport.go -package=radio

// Transport represents an established, bidirectional byte stream to the
// Wi-Fi radio.
//
// A Transport is assumed to be already connected and ready for use. The radio
// owns it exclusively: nothing else may read from or write to it while a Radio
// is using it. Read may return 0 bytes and a nil error when no data is
// available yet, the way a serial port with a read timeout does.
type Transport interface {
	io.ReadWriteCloser
}

// Dialer opens a Transport to the radio.
//
// Dialer abstracts how the connection is created (serial port, TCP bridge,
// test double) and is only used while constructing a Radio.
type Dialer interface {
	// Dial creates and returns a connected Transport. It should respect
	// cancellation of the context.
	Dial(ctx context.Context) (Transport, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Transport, error)

func (f DialerFunc) Dial(ctx context.Context) (Transport, error) {
	return f(ctx)
}

const (
	DefaultBaudRate          = 115200
	DefaultSerialReadTimeout = 100 * time.Millisecond
)

// SerialDialer opens the radio's UART with go.bug.st/serial.
type SerialDialer struct {
	PortName string
	// BaudRate is used when Mode is nil. Zero selects DefaultBaudRate.
	BaudRate int
	// Mode overrides the default 8N1 mode.
	Mode *serial.Mode
	// ReadTimeout bounds a single Read so the reply scanner can observe
	// cancellation. Zero selects DefaultSerialReadTimeout.
	ReadTimeout time.Duration
}

// Dial opens the serial port.
func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("radio: context is nil")
	}
	if d.PortName == "" {
		return nil, errors.New("radio: serial port name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := d.Mode
	if mode == nil {
		baud := d.BaudRate
		if baud == 0 {
			baud = DefaultBaudRate
		}
		mode = &serial.Mode{
			BaudRate: baud,
			Parity:   serial.NoParity,
			DataBits: 8,
			StopBits: serial.OneStopBit,
		}
	}

	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("radio: open serial port %q: %w", d.PortName, err)
	}

	readTimeout := d.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = DefaultSerialReadTimeout
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("radio: set serial read timeout: %w", err)
	}

	return port, nil
}

func writeFull(ctx context.Context, w io.Writer, buf []byte) error {
	written := 0
	for written < len(buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := w.Write(buf[written:])
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		written += n
	}
	return nil
}
