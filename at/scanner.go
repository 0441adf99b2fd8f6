package at

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// DefaultChunkSize is the number of bytes requested per read.
const DefaultChunkSize = 32

// Outcome classifies a scanned reply.
type Outcome int

const (
	Success Outcome = iota
	Failure
	Timeout
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Timeout:
		return "timeout"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Expect names the tokens that end a reply. A reply ends when the
// accumulated text ends with one of the tokens followed by CRLF.
type Expect struct {
	Success  string
	Failures []string

	// prompt makes the success token match without a trailing CRLF.
	prompt bool
}

var (
	ExpectOK         = Expect{Success: OK, Failures: []string{ERROR}}
	ExpectReady      = Expect{Success: Ready, Failures: []string{ERROR}}
	ExpectDisconnect = Expect{Success: Disconnect, Failures: []string{ERROR}}

	// ExpectJoin also fails on FAIL, which the firmware prints after a
	// +CWJAP:<code> line when the access point refuses the station.
	ExpectJoin = Expect{Success: OK, Failures: []string{ERROR, FAIL}}

	// ExpectSent matches "SEND OK" and "SEND FAIL".
	ExpectSent = Expect{Success: OK, Failures: []string{ERROR, FAIL}}

	// ExpectPrompt waits for the ">" the radio prints once it is ready to
	// take the bytes announced by CIPSEND. The OK that precedes the prompt
	// is accepted as well: the radio takes input from that point on.
	ExpectPrompt = Expect{Success: Prompt, Failures: []string{ERROR}, prompt: true}
)

func (e Expect) match(acc string) (Outcome, bool) {
	if e.prompt {
		if strings.HasSuffix(strings.TrimRight(acc, " "), e.Success) || strings.HasSuffix(acc, OK+CRLF) {
			return Success, true
		}
	} else if strings.HasSuffix(acc, e.Success+CRLF) {
		return Success, true
	}

	for _, f := range e.Failures {
		if strings.HasSuffix(acc, f+CRLF) {
			return Failure, true
		}
	}
	return 0, false
}

// Result is a classified reply.
type Result struct {
	Outcome Outcome
	// Raw is everything read while waiting for the terminator.
	Raw string
}

// OK reports whether the reply ended with the success token.
func (r Result) OK() bool {
	return r.Outcome == Success
}

// Lines returns the non-empty lines of the reply.
func (r Result) Lines() []string {
	return Lines(r.Raw)
}

// Detail returns the last informational line preceding the terminator,
// e.g. "busy p..." or "link is not valid". It returns "" if there is none.
func (r Result) Detail() string {
	return detail(r.Raw)
}

func detail(raw string) string {
	lines := Lines(raw)
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		if Classify(line) == TypeData && !strings.HasPrefix(line, "AT") {
			return line
		}
		if strings.HasPrefix(line, StatusJoinFailure) {
			return line
		}
	}
	return ""
}

// Scanner accumulates incoming bytes from the radio and detects the
// token that terminates a reply.
//
// Without a timeout, Scan polls until a terminator arrives or the context
// is done. A radio that never answers blocks the caller for as long as
// the context allows.
type Scanner struct {
	r            io.Reader
	chunkSize    int
	pollInterval time.Duration
	timeout      time.Duration
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithTimeout bounds the wait for a single reply. Zero disables the bound.
func WithTimeout(d time.Duration) ScannerOption {
	return func(s *Scanner) {
		s.timeout = d
	}
}

// WithPollInterval sets the pause after a read that returned no data.
func WithPollInterval(d time.Duration) ScannerOption {
	return func(s *Scanner) {
		s.pollInterval = d
	}
}

// WithChunkSize sets the number of bytes requested per read.
func WithChunkSize(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// NewScanner returns a Scanner reading from r.
func NewScanner(r io.Reader, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		r:         r,
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan reads until the accumulated text ends with one of the tokens of
// expect. A failure token is not an error: it is reported through the
// Outcome of the Result. Errors are reserved for transport failures,
// context cancellation and ErrTimeout.
func (s *Scanner) Scan(ctx context.Context, expect Expect) (Result, error) {
	parent := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var acc strings.Builder
	buf := make([]byte, s.chunkSize)

	for {
		if err := ctx.Err(); err != nil {
			if parent.Err() == nil {
				return Result{Outcome: Timeout, Raw: acc.String()}, fmt.Errorf("%w after %s", ErrTimeout, s.timeout)
			}
			return Result{Raw: acc.String()}, err
		}

		n, err := s.r.Read(buf)
		if n > 0 {
			acc.Write(buf[:n])
			if outcome, done := expect.match(acc.String()); done {
				return Result{Outcome: outcome, Raw: acc.String()}, nil
			}
		}
		if err != nil && !isTemporary(err) {
			return Result{Raw: acc.String()}, fmt.Errorf("read reply: %w", err)
		}
		if n == 0 && s.pollInterval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.pollInterval):
			}
		}
	}
}

// isTemporary reports read errors that only mean "no data yet".
func isTemporary(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
