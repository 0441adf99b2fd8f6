// Package collector receives sensor packets over UDP and hands the decoded
// readings to a Sink.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"i4.energy/across/sensorlink/packet"
)

// Reading is one decoded packet.
type Reading struct {
	Name        string    `json:"name"`
	Light       float32   `json:"light"`
	Temperature float32   `json:"temperature"`
	Humidity    float32   `json:"humidity"`
	Source      string    `json:"source"`
	Time        time.Time `json:"time"`
}

// Sink consumes readings.
type Sink interface {
	Handle(ctx context.Context, r Reading) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, r Reading) error

func (f SinkFunc) Handle(ctx context.Context, r Reading) error {
	return f(ctx, r)
}

// Collector reads packets from a PacketConn.
type Collector struct {
	conn   net.PacketConn
	sink   Sink
	logger *slog.Logger
}

// Listen opens a UDP socket on address and returns a Collector reading
// from it.
func Listen(address string, sink Sink, logger *slog.Logger) (*Collector, error) {
	conn, err := net.ListenPacket("udp", address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", address, err)
	}
	return New(conn, sink, logger), nil
}

// New creates a Collector reading from conn. The Collector owns conn and
// closes it when Run returns.
func New(conn net.PacketConn, sink Sink, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{conn: conn, sink: sink, logger: logger}
}

// Addr returns the local address packets are read from.
func (c *Collector) Addr() net.Addr {
	return c.conn.LocalAddr()
}

// Run reads packets until ctx is done. Malformed packets and sink failures
// are logged and skipped. It returns nil after cancellation.
func (c *Collector) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		c.conn.Close()
	})
	defer func() {
		if stop() {
			c.conn.Close()
		}
	}()

	c.logger.Info("Collector listening", "address", c.Addr().String())
	buf := make([]byte, packet.MaxSize+1)
	for {
		n, from, err := c.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read packet: %w", err)
		}

		p, err := packet.Decode(buf[:n])
		if err != nil {
			c.logger.Warn("Dropping malformed packet", "from", from.String(), "size", n, "error", err)
			continue
		}

		r := Reading{
			Name:        string(p.Name),
			Light:       p.Light,
			Temperature: p.Temperature,
			Humidity:    p.Humidity,
			Source:      from.String(),
			Time:        time.Now().UTC(),
		}
		c.logger.Debug("Reading received", "name", r.Name, "from", r.Source)

		if err := c.sink.Handle(ctx, r); err != nil {
			c.logger.Error("Failed to handle reading", "name", r.Name, "error", err)
		}
	}
}
