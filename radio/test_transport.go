package radio

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"

	"i4.energy/across/sensorlink/at"
	"i4.energy/across/sensorlink/packet"
)

// TestTransport is a test helper that plays the radio's side of the
// conversation. Every write is answered by the reply registered for the
// longest matching prefix; frames are matched by their "DATA" magic.
// Writes without a registered reply are answered with ERROR, like the
// firmware does for commands it does not know.
//
// Exported for use in tests of other packages.
type TestTransport struct {
	mu      sync.Mutex
	replies map[string][]string
	pending bytes.Buffer
	writes  []string
	closed  bool
}

// NewTestTransport creates a TestTransport with no replies registered.
func NewTestTransport() *TestTransport {
	return &TestTransport{
		replies: make(map[string][]string),
	}
}

// NewHealthyTestTransport creates a TestTransport that accepts every command
// of the happy path with realistic replies.
func NewHealthyTestTransport() *TestTransport {
	t := NewTestTransport()
	t.Reply(at.CmdReset, "AT+RST\r\n\r\nOK\r\n\r\n ets Jan  8 2013,rst cause:2\r\n\r\nready\r\n")
	t.Reply(at.CmdStationMode, "\r\nOK\r\n")
	t.Reply("AT+CWJAP_CUR", "WIFI CONNECTED\r\nWIFI GOT IP\r\n\r\nOK\r\n")
	t.Reply(at.CmdMultiplex, "\r\nOK\r\n")
	t.Reply("AT+CIPSTART", "0,CONNECT\r\n\r\nOK\r\n")
	t.Reply(at.CmdCloseLink, "0,CLOSED\r\n\r\nOK\r\n")
	t.Reply(at.CmdQuitAP, "\r\nOK\r\nWIFI DISCONNECT\r\n")
	t.Reply("AT+CIPSEND", "\r\nOK\r\n> ")
	t.Reply(packet.Magic, "\r\nRecv bytes\r\n\r\nSEND OK\r\n")
	return t
}

// Reply registers the replies to writes starting with prefix. Replies are
// used in order; the last one is repeated.
func (t *TestTransport) Reply(prefix string, replies ...string) *TestTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies[prefix] = replies
	return t
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.ErrClosedPipe
	}

	written := string(p)
	t.writes = append(t.writes, written)

	best := ""
	found := false
	for prefix := range t.replies {
		if strings.HasPrefix(written, prefix) && (!found || len(prefix) > len(best)) {
			best, found = prefix, true
		}
	}
	if !found {
		t.pending.WriteString(at.ERROR + at.CRLF)
		return len(p), nil
	}

	queue := t.replies[best]
	if len(queue) > 0 {
		t.pending.WriteString(queue[0])
		if len(queue) > 1 {
			t.replies[best] = queue[1:]
		}
	}
	return len(p), nil
}

// Read returns pending reply bytes, or 0 bytes and no error when nothing
// is pending, like a serial port whose read timeout expired.
func (t *TestTransport) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.EOF
	}
	if t.pending.Len() == 0 {
		return 0, nil
	}
	return t.pending.Read(p)
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Commands returns the AT command lines written so far, without CRLF.
func (t *TestTransport) Commands() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var cmds []string
	for _, w := range t.writes {
		if strings.HasPrefix(w, "AT") {
			cmds = append(cmds, strings.TrimSuffix(w, at.CRLF))
		}
	}
	return cmds
}

// Count returns how many command lines started with prefix.
func (t *TestTransport) Count(prefix string) int {
	n := 0
	for _, cmd := range t.Commands() {
		if strings.HasPrefix(cmd, prefix) {
			n++
		}
	}
	return n
}

// Frames returns the raw packet frames written so far.
func (t *TestTransport) Frames() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	var frames [][]byte
	for _, w := range t.writes {
		if strings.HasPrefix(w, packet.Magic) {
			frames = append(frames, []byte(w))
		}
	}
	return frames
}

// Forget clears the record of writes, keeping the registered replies.
func (t *TestTransport) Forget() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writes = nil
}

// Dialer returns a Dialer handing out t.
func (t *TestTransport) Dialer() Dialer {
	return DialerFunc(func(ctx context.Context) (Transport, error) {
		return t, nil
	})
}
