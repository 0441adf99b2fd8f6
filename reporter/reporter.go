// Package reporter runs the node's duty cycle: join, send one set of
// readings, leave, wait.
package reporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff"
)

const (
	DefaultInterval   = 10 * time.Second
	DefaultMaxBackoff = 5 * time.Minute
)

var ErrNoNode = errors.New("no node configured")

// Node is the part of *radio.Radio the reporter drives.
type Node interface {
	Setup(ctx context.Context, ssid, password, host string, port int) error
	Send(ctx context.Context, light, temperature, humidity float32) error
	Disconnect(ctx context.Context) error
}

// Readings is one set of sensor values.
type Readings struct {
	Light       float32
	Temperature float32
	Humidity    float32
}

// Source provides the readings sent in each cycle.
type Source interface {
	Read(ctx context.Context) (Readings, error)
}

// StaticSource always returns the same readings.
type StaticSource Readings

func (s StaticSource) Read(context.Context) (Readings, error) {
	return Readings(s), nil
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (Readings, error)

func (f SourceFunc) Read(ctx context.Context) (Readings, error) {
	return f(ctx)
}

// Config describes where readings go and how often.
type Config struct {
	SSID     string
	Password string
	Host     string
	Port     int

	// Interval separates successful cycles. Zero selects DefaultInterval.
	Interval time.Duration
	// MaxBackoff caps the wait after consecutive failed cycles. Zero
	// selects DefaultMaxBackoff.
	MaxBackoff time.Duration
}

// Reporter repeats the cycle until its context is done.
type Reporter struct {
	node    Node
	source  Source
	config  Config
	backoff *backoff.ExponentialBackOff
	logger  *slog.Logger
}

// New creates a Reporter sending readings from source through node.
func New(node Node, source Source, config Config, logger *slog.Logger) (*Reporter, error) {
	if node == nil {
		return nil, ErrNoNode
	}
	if source == nil {
		source = StaticSource{}
	}
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = DefaultMaxBackoff
	}
	if config.MaxBackoff < config.Interval {
		config.MaxBackoff = config.Interval
	}
	if logger == nil {
		logger = slog.Default()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = config.Interval
	b.MaxInterval = config.MaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	return &Reporter{
		node:    node,
		source:  source,
		config:  config,
		backoff: b,
		logger:  logger,
	}, nil
}

// Run repeats Cycle until ctx is done and returns ctx's error.
func (r *Reporter) Run(ctx context.Context) error {
	r.logger.Info("Reporter started", "interval", r.config.Interval, "target_port", r.config.Port)
	for {
		err := r.Cycle(ctx)
		wait := r.next(err)
		if err != nil && ctx.Err() == nil {
			r.logger.Warn("Cycle failed", "error", err, "retry_in", wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Info("Reporter stopped")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Cycle runs one duty cycle. The network is left even if sending failed.
func (r *Reporter) Cycle(ctx context.Context) error {
	readings, err := r.source.Read(ctx)
	if err != nil {
		return fmt.Errorf("read sensors: %w", err)
	}

	if err := r.node.Setup(ctx, r.config.SSID, r.config.Password, r.config.Host, r.config.Port); err != nil {
		return fmt.Errorf("setup: %w", err)
	}

	sendErr := r.node.Send(ctx, readings.Light, readings.Temperature, readings.Humidity)
	if sendErr != nil {
		sendErr = fmt.Errorf("send: %w", sendErr)
	} else {
		r.logger.Info("Readings sent",
			"light", readings.Light,
			"temperature", readings.Temperature,
			"humidity", readings.Humidity,
		)
	}

	if err := r.node.Disconnect(ctx); err != nil {
		return errors.Join(sendErr, fmt.Errorf("disconnect: %w", err))
	}
	return sendErr
}

// next returns the wait before the following cycle.
func (r *Reporter) next(err error) time.Duration {
	if err == nil {
		r.backoff.Reset()
		return r.config.Interval
	}
	return r.backoff.NextBackOff()
}
