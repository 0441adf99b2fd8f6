// Package packet implements the binary frame carrying one set of sensor
// readings to the collector.
//
// Layout, all numbers little-endian:
//
//	offset 0:  4 bytes  "DATA"
//	offset 4:  4 bytes  float32 light
//	offset 8:  4 bytes  float32 temperature
//	offset 12: 4 bytes  float32 humidity
//	offset 16: 1 byte   uint8 name length N
//	offset 17: N bytes  name
package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	// Magic opens every frame.
	Magic = "DATA"
	// HeaderSize is the frame length of a packet with an empty name.
	HeaderSize = 17
	// MaxNameLength is the largest name a one-byte length prefix can describe.
	MaxNameLength = math.MaxUint8
	// MaxSize is the length of the largest possible frame.
	MaxSize = HeaderSize + MaxNameLength
)

var (
	ErrNameTooLong = errors.New("name too long")
	ErrShortFrame  = errors.New("frame too short")
	ErrBadMagic    = errors.New("bad frame magic")
	ErrLength      = errors.New("frame length does not match name length")
)

// Packet is a single outbound sensor record.
type Packet struct {
	Light       float32
	Temperature float32
	Humidity    float32
	Name        []byte
}

// Len returns the encoded length, HeaderSize plus the name length.
func (p Packet) Len() int {
	return HeaderSize + len(p.Name)
}

// MarshalBinary encodes the packet.
func (p Packet) MarshalBinary() ([]byte, error) {
	return p.AppendBinary(make([]byte, 0, p.Len()))
}

// AppendBinary appends the encoded packet to b.
func (p Packet) AppendBinary(b []byte) ([]byte, error) {
	if len(p.Name) > MaxNameLength {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrNameTooLong, len(p.Name), MaxNameLength)
	}

	b = append(b, Magic...)
	b = binary.LittleEndian.AppendUint32(b, math.Float32bits(p.Light))
	b = binary.LittleEndian.AppendUint32(b, math.Float32bits(p.Temperature))
	b = binary.LittleEndian.AppendUint32(b, math.Float32bits(p.Humidity))
	// #nosec G115 -- length is bounded by MaxNameLength above.
	b = append(b, uint8(len(p.Name)))
	b = append(b, p.Name...)
	return b, nil
}

// UnmarshalBinary decodes a frame produced by MarshalBinary. The frame must
// be exactly HeaderSize plus the announced name length.
func (p *Packet) UnmarshalBinary(frame []byte) error {
	if len(frame) < HeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrShortFrame, len(frame))
	}
	if string(frame[:4]) != Magic {
		return fmt.Errorf("%w: %q", ErrBadMagic, frame[:4])
	}
	n := int(frame[16])
	if len(frame) != HeaderSize+n {
		return fmt.Errorf("%w: have %d bytes, want %d", ErrLength, len(frame), HeaderSize+n)
	}

	p.Light = math.Float32frombits(binary.LittleEndian.Uint32(frame[4:8]))
	p.Temperature = math.Float32frombits(binary.LittleEndian.Uint32(frame[8:12]))
	p.Humidity = math.Float32frombits(binary.LittleEndian.Uint32(frame[12:16]))
	p.Name = append([]byte(nil), frame[HeaderSize:]...)
	return nil
}

// Decode is a convenience wrapper around UnmarshalBinary.
func Decode(frame []byte) (Packet, error) {
	var p Packet
	err := p.UnmarshalBinary(frame)
	return p, err
}
