package radio

import (
	"context"
	"errors"
	"fmt"

	"i4.energy/across/sensorlink/at"
)

// Setup joins the network ssid and binds socket 0 to the UDP target
// host:port. It is idempotent:
//
//   - already joined to ssid and bound to host:port: nothing is sent;
//   - joined to ssid but not bound: only the socket is opened, the
//     association is kept;
//   - joined to ssid but bound elsewhere: AT+CIPCLOSE=0 is sent before the
//     socket is opened again, the association is kept;
//   - otherwise an open socket is closed, the network is joined (up to the
//     configured number of attempts) and, if that succeeded, the socket is
//     bound.
//
// An uninitialized radio, after a failed reset or a desynchronized send, is
// reset first.
//
// Setup returns nil only if the radio ends up joined and bound.
func (r *Radio) Setup(ctx context.Context, ssid, password, host string, port int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrAlreadyClosed
	}
	join, err := at.JoinAP(ssid, password)
	if err != nil {
		return err
	}
	start, err := at.StartUDP(host, port)
	if err != nil {
		return err
	}
	target := Target{Host: host, Port: port}

	if _, ok := r.state.(Uninitialized); ok {
		r.logger.Info("Radio uninitialized, resetting before setup")
		if err := r.initialize(ctx); err != nil {
			return err
		}
	}

	if network, ok := networkOf(r.state); ok && network.SSID == ssid {
		if bound, ok := r.state.(Bound); ok && bound.Target == target {
			r.logger.Debug("Setup unchanged", "network", network, "target", target)
			return nil
		}
		return r.openUDP(ctx, network, target, start)
	}

	if _, ok := r.state.(Bound); ok {
		r.closeLink(ctx)
	}
	network := Network{SSID: ssid, Password: password}
	if err := r.associate(ctx, network, join); err != nil {
		return err
	}
	return r.openUDP(ctx, network, target, start)
}

// associate joins network, retrying immediately with the same credentials.
// The first success ends the loop; otherwise the last error is returned.
func (r *Radio) associate(ctx context.Context, network Network, join at.Command) error {
	logger := r.logger.With("network", network)

	err := fmt.Errorf("%w: no join attempts configured", ErrNotAssociated)
	attempt := 0
	for attempt < r.attempts {
		attempt++
		if _, err = r.exchange(ctx, join, at.ExpectJoin); err == nil {
			r.state = Joined{Network: network}
			logger.Info("Joined network", "attempt", attempt)
			r.emit(Event{Kind: EventAssociated, Attempts: attempt})
			return nil
		}
		logger.Warn("Join attempt failed", "attempt", attempt, "max_attempts", r.attempts, "error", err)
		if ctx.Err() != nil {
			break
		}
	}

	r.state = Idle{}
	err = fmt.Errorf("join %q: %w", network.SSID, err)
	r.emit(Event{Kind: EventAssociationFailed, Attempts: attempt, Err: err})
	return err
}

// openUDP binds socket 0 to target. A socket bound to another target is
// closed first, since the firmware refuses CIPMUX and CIPSTART while a link
// is up.
func (r *Radio) openUDP(ctx context.Context, network Network, target Target, start at.Command) error {
	logger := r.logger.With("target", target)

	if _, ok := r.state.(Bound); ok {
		r.closeLink(ctx)
	}
	r.state = Joined{Network: network}

	if _, err := r.exchange(ctx, at.Multiplex, at.ExpectOK); err != nil {
		err = fmt.Errorf("enable multiple connections: %w", err)
		r.emit(Event{Kind: EventSocketFailed, Err: err})
		return err
	}

	if _, err := r.exchange(ctx, start, at.ExpectOK); err != nil {
		err = fmt.Errorf("open UDP socket to %s: %w", target, err)
		r.emit(Event{Kind: EventSocketFailed, Err: err})
		return err
	}

	r.state = Bound{Network: network, Target: target}
	logger.Info("UDP socket open")
	r.emit(Event{Kind: EventSocketOpened})
	return nil
}

// closeLink closes the bound socket 0. A failure is only logged; the caller
// moves on to commands that replace the link.
func (r *Radio) closeLink(ctx context.Context) {
	bound := r.state.(Bound)
	if _, err := r.exchange(ctx, at.CloseLink, at.ExpectOK); err != nil {
		r.logger.Warn("Could not close previous socket", "previous", bound.Target, "error", err)
		return
	}
	r.state = Joined{Network: bound.Network}
	r.emit(Event{Kind: EventSocketClosed})
}

// Disconnect closes the socket if one is open, leaves the network and
// resets the radio. It returns ErrNotAssociated without sending anything if
// no network is joined.
//
// The network is left even if closing the socket failed; the close error is
// still reported. Once the network is left a failed reset is only logged: the
// radio stays uninitialized and the next Setup resets it.
func (r *Radio) Disconnect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ready(); err != nil {
		return err
	}
	network, ok := networkOf(r.state)
	if !ok {
		return ErrNotAssociated
	}

	// No open socket counts as a successful close.
	var closeErr error
	if _, bound := r.state.(Bound); bound {
		if _, closeErr = r.exchange(ctx, at.CloseLink, at.ExpectOK); closeErr == nil {
			r.state = Joined{Network: network}
			r.emit(Event{Kind: EventSocketClosed})
		} else {
			closeErr = fmt.Errorf("close UDP socket: %w", closeErr)
		}
	}

	if _, err := r.exchange(ctx, at.QuitAP, at.ExpectDisconnect); err != nil {
		err = errors.Join(closeErr, fmt.Errorf("leave %q: %w", network.SSID, err))
		r.emit(Event{Kind: EventDisconnectFailed, Err: err})
		return err
	}
	r.state = Idle{}
	r.logger.Info("Left network", "network", network)

	if err := r.initialize(ctx); err != nil {
		r.logger.Warn("Reset after leaving the network failed", "error", err)
	}

	if closeErr != nil {
		r.emit(Event{Kind: EventDisconnectFailed, Err: closeErr})
		return closeErr
	}
	r.emit(Event{Kind: EventDisconnected})
	return nil
}
