package radio

import (
	"context"
	"fmt"

	"i4.energy/across/sensorlink/at"
	"i4.energy/across/sensorlink/packet"
)

// Send transmits one packet with the given readings and the client name to
// the bound UDP target.
//
// The frame length is announced with AT+CIPSEND, the frame is written once
// the radio shows its prompt, and the radio's SEND OK is awaited. There is
// no retry; a failed send leaves the socket bound.
func (r *Radio) Send(ctx context.Context, light, temperature, humidity float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ready(); err != nil {
		return err
	}
	bound, ok := r.state.(Bound)
	if !ok {
		return ErrNotBound
	}

	p := packet.Packet{
		Light:       light,
		Temperature: temperature,
		Humidity:    humidity,
		Name:        r.name,
	}
	// The encoded frame is the only source of the announced length.
	frame, err := p.MarshalBinary()
	if err != nil {
		return err
	}
	announce, err := at.Send(len(frame))
	if err != nil {
		return err
	}

	if _, err := r.exchange(ctx, announce, at.ExpectPrompt); err != nil {
		return r.sendFailed(fmt.Errorf("announce %d bytes: %w", len(frame), err), len(frame))
	}

	if err := writeFull(ctx, r.transport, frame); err != nil {
		r.state = Uninitialized{}
		return r.sendFailed(fmt.Errorf("%w: %w", ErrDesync, err), len(frame))
	}

	if _, err := r.await(ctx, "frame", at.ExpectSent); err != nil {
		return r.sendFailed(fmt.Errorf("send to %s: %w", bound.Target, err), len(frame))
	}

	r.logger.Debug("Packet sent", "target", bound.Target, "bytes", len(frame))
	r.emit(Event{Kind: EventSent, Bytes: len(frame)})
	return nil
}

func (r *Radio) sendFailed(err error, n int) error {
	r.emit(Event{Kind: EventSendFailed, Bytes: n, Err: err})
	return err
}
