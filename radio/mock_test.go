package radio_test

import (
	"fmt"

	gomock "go.uber.org/mock/gomock"
	"i4.energy/across/sensorlink/at"
	"i4.energy/across/sensorlink/radio"
)

// MockSequenceBuilder records the writes and reads of an AT conversation on
// a MockTransport, for use with gomock.InOrder.
type MockSequenceBuilder struct {
	transport *radio.MockTransport
	calls     []any
}

func NewMockSequence(transport *radio.MockTransport) *MockSequenceBuilder {
	return &MockSequenceBuilder{
		transport: transport,
		calls:     []any{},
	}
}

// Exchange expects cmd to be written and answers with reply, delivered in
// reads of at most at.DefaultChunkSize bytes.
func (b *MockSequenceBuilder) Exchange(cmd, reply string) *MockSequenceBuilder {
	wire := []byte(cmd + at.CRLF)
	b.calls = append(b.calls, b.transport.EXPECT().Write(wire).Return(len(wire), nil))
	return b.Replies(reply)
}

// Replies expects reads returning reply.
func (b *MockSequenceBuilder) Replies(reply string) *MockSequenceBuilder {
	for len(reply) > 0 {
		n := min(len(reply), at.DefaultChunkSize)
		chunk := reply[:n]
		reply = reply[n:]
		b.calls = append(b.calls,
			b.transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
				return copy(p, chunk), nil
			}),
		)
	}
	return b
}

func (b *MockSequenceBuilder) Reset() *MockSequenceBuilder {
	return b.Exchange("AT+RST", "OK\r\n\r\nready\r\n")
}

func (b *MockSequenceBuilder) ResetFails() *MockSequenceBuilder {
	return b.Exchange("AT+RST", "ERROR\r\n")
}

func (b *MockSequenceBuilder) StationMode() *MockSequenceBuilder {
	return b.Exchange("AT+CWMODE_CUR=1", "\r\nOK\r\n")
}

func (b *MockSequenceBuilder) Join(ssid, password string) *MockSequenceBuilder {
	return b.Exchange(fmt.Sprintf(`AT+CWJAP_CUR="%s","%s"`, ssid, password), "WIFI GOT IP\r\n\r\nOK\r\n")
}

func (b *MockSequenceBuilder) JoinFails(ssid, password string) *MockSequenceBuilder {
	return b.Exchange(fmt.Sprintf(`AT+CWJAP_CUR="%s","%s"`, ssid, password), "\r\nERROR\r\n")
}

func (b *MockSequenceBuilder) Multiplex() *MockSequenceBuilder {
	return b.Exchange("AT+CIPMUX=1", "\r\nOK\r\n")
}

func (b *MockSequenceBuilder) StartUDP(host string, port int) *MockSequenceBuilder {
	return b.Exchange(fmt.Sprintf(`AT+CIPSTART=0,"UDP","%s",%d`, host, port), "0,CONNECT\r\n\r\nOK\r\n")
}

func (b *MockSequenceBuilder) CloseLink() *MockSequenceBuilder {
	return b.Exchange("AT+CIPCLOSE=0", "0,CLOSED\r\n\r\nOK\r\n")
}

func (b *MockSequenceBuilder) QuitAP() *MockSequenceBuilder {
	return b.Exchange("AT+CWQAP", "\r\nOK\r\nWIFI DISCONNECT\r\n")
}

// Send expects the CIPSEND announcement, the frame and the radio's SEND OK.
func (b *MockSequenceBuilder) Send(frame []byte) *MockSequenceBuilder {
	b.Exchange(fmt.Sprintf("AT+CIPSEND=0,%d", len(frame)), "\r\nOK\r\n> ")
	b.calls = append(b.calls, b.transport.EXPECT().Write(frame).Return(len(frame), nil))
	return b.Replies(fmt.Sprintf("\r\nRecv %d bytes\r\n\r\nSEND OK\r\n", len(frame)))
}

func (b *MockSequenceBuilder) Build() []any {
	return b.calls
}

// initMockCalls returns the handshake every radio performs in New.
func initMockCalls(transport *radio.MockTransport) []any {
	return NewMockSequence(transport).
		Reset().
		StationMode().
		Build()
}
