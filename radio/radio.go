package radio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"i4.energy/across/sensorlink/at"
)

// Radio drives an ESP8266-class Wi-Fi module through AT commands: it joins
// a network, binds a UDP target and sends sensor packets to it.
//
// Every exported method runs one complete AT exchange (or a fixed sequence
// of them) before returning. A mutex serializes callers, so at most one
// command is in flight on the Transport at any time.
type Radio struct {
	mu sync.Mutex

	// transport provides the physical connection to the radio
	transport Transport
	// scanner reads replies from transport
	scanner *at.Scanner
	// name is carried by every packet
	name []byte
	// attempts is the number of join attempts per association
	attempts int
	observer Observer
	logger   *slog.Logger

	state  State
	closed bool
}

// New creates a Radio with the given configuration. It opens the transport
// and runs the mandatory reset and station mode handshake.
//
// Returns an error if the configuration is invalid, the transport cannot be
// opened, or the handshake fails. In the latter case the transport is closed
// again and the error wraps ErrHandshake.
func New(ctx context.Context, config Config) (*Radio, error) {
	if config.dialer == nil {
		return nil, ErrNoDialer
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	transport, err := config.dialer.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial radio: %w", err)
	}
	if transport == nil {
		return nil, ErrNotInitialized
	}

	r := &Radio{
		transport: transport,
		scanner: at.NewScanner(transport,
			at.WithTimeout(config.replyTimeout),
			at.WithPollInterval(config.pollInterval),
		),
		name:     []byte(config.clientName),
		attempts: config.associateAttempts,
		observer: config.observer,
		logger:   config.logger,
		state:    Uninitialized{},
	}

	if err := r.initialize(ctx); err != nil {
		transport.Close()
		return nil, fmt.Errorf("initialize radio: %w", err)
	}

	return r, nil
}

// State returns the current connection state.
func (r *Radio) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Reset restarts the radio and puts it back into station mode. Any
// association and socket are lost. On failure the Radio is uninitialized;
// Setup and Reset retry the handshake, other operations fail.
func (r *Radio) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrAlreadyClosed
	}
	return r.initialize(ctx)
}

// Close releases the transport. The radio itself is left as it is; call
// Disconnect first to leave the network.
func (r *Radio) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrAlreadyClosed
	}
	r.closed = true
	r.state = Uninitialized{}
	return r.transport.Close()
}

// initialize performs the reset and station mode handshake.
func (r *Radio) initialize(ctx context.Context) error {
	r.state = Uninitialized{}

	if _, err := r.exchange(ctx, at.Reset, at.ExpectReady); err != nil {
		err = fmt.Errorf("%w: reset: %w", ErrHandshake, err)
		r.emit(Event{Kind: EventResetFailed, Err: err})
		return err
	}

	if _, err := r.exchange(ctx, at.StationMode, at.ExpectOK); err != nil {
		err = fmt.Errorf("%w: station mode: %w", ErrHandshake, err)
		r.emit(Event{Kind: EventResetFailed, Err: err})
		return err
	}

	r.state = Idle{}
	r.logger.Info("Radio ready")
	r.emit(Event{Kind: EventReset})
	return nil
}

// ready returns the error for operations that need a completed handshake.
func (r *Radio) ready() error {
	if r.closed {
		return ErrAlreadyClosed
	}
	if _, ok := r.state.(Uninitialized); ok {
		return ErrNotInitialized
	}
	return nil
}

// exchange writes cmd and waits for a reply matching expect. A reply ending
// with a failure token is returned as *at.RejectedError.
func (r *Radio) exchange(ctx context.Context, cmd at.Command, expect at.Expect) (at.Result, error) {
	r.discardInput()

	r.logger.Debug("Sending command", "command", cmd.String())
	if err := writeFull(ctx, r.transport, cmd.Wire()); err != nil {
		return at.Result{}, fmt.Errorf("write command %s: %w", cmd.Name(), err)
	}

	return r.await(ctx, cmd.Name(), expect)
}

// await scans the reply to what, which has already been written.
func (r *Radio) await(ctx context.Context, what string, expect at.Expect) (at.Result, error) {
	res, err := r.scanner.Scan(ctx, expect)
	if err != nil {
		r.logger.Warn("No reply", "command", what, "error", err)
		return res, fmt.Errorf("%s: %w", what, err)
	}

	if !res.OK() {
		r.logger.Warn("Command rejected", "command", what, "detail", res.Detail())
		return res, &at.RejectedError{Command: what, Reply: res.Raw}
	}

	r.logger.Debug("Command succeeded", "command", what, "lines", len(res.Lines()))
	return res, nil
}

// inputResetter is implemented by transports that can drop unread input,
// such as serial.Port.
type inputResetter interface {
	ResetInputBuffer() error
}

// discardInput drops stale bytes, e.g. status lines printed between
// commands, so they cannot terminate the next reply early.
func (r *Radio) discardInput() {
	if ir, ok := r.transport.(inputResetter); ok {
		if err := ir.ResetInputBuffer(); err != nil {
			r.logger.Debug("Could not discard stale input", "error", err)
		}
	}
}

func (r *Radio) emit(e Event) {
	e.State = r.state
	e.Time = time.Now()
	r.observer.Notify(e)
}
