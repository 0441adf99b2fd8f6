package at

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// MaxSSIDLength and MaxPasswordLength are the limits of the 802.11 standard.
	MaxSSIDLength     = 32
	MaxPasswordLength = 64
	// MaxSendLength is the largest payload a single CIPSEND accepts.
	MaxSendLength = 2048
)

// Command is a single AT command line, ready to be written to the radio.
// Commands are built with the constructors of this package, so every
// Command value is well formed.
type Command struct {
	text string
	// redacted replaces text in logs when the command carries a secret.
	redacted string
}

var (
	Reset       = Command{text: CmdReset}
	StationMode = Command{text: CmdStationMode}
	QuitAP      = Command{text: CmdQuitAP}
	Multiplex   = Command{text: CmdMultiplex}
	CloseLink   = Command{text: CmdCloseLink}
)

// String returns the command as it may be logged. Secrets are masked.
func (c Command) String() string {
	if c.redacted != "" {
		return c.redacted
	}
	return c.text
}

// Name returns the command without its arguments, e.g. "AT+CWJAP_CUR".
func (c Command) Name() string {
	if i := strings.IndexByte(c.text, '='); i >= 0 {
		return c.text[:i]
	}
	return c.text
}

// Wire returns the bytes to write to the transport, CRLF terminated.
func (c Command) Wire() []byte {
	return []byte(c.text + CRLF)
}

// JoinAP builds AT+CWJAP_CUR="<ssid>","<password>".
//
// Quotes, commas and backslashes are escaped the way the ESP AT firmware
// expects them. Line breaks cannot be escaped and are rejected.
func JoinAP(ssid, password string) (Command, error) {
	if ssid == "" || len(ssid) > MaxSSIDLength {
		return Command{}, fmt.Errorf("%w: ssid length %d not in 1..%d", ErrInvalidArgument, len(ssid), MaxSSIDLength)
	}
	if len(password) > MaxPasswordLength {
		return Command{}, fmt.Errorf("%w: password length %d exceeds %d", ErrInvalidArgument, len(password), MaxPasswordLength)
	}
	if hasLineBreak(ssid) || hasLineBreak(password) {
		return Command{}, fmt.Errorf("%w: credentials contain a line break", ErrInvalidArgument)
	}

	return Command{
		text:     fmt.Sprintf(`AT+CWJAP_CUR="%s","%s"`, escape(ssid), escape(password)),
		redacted: fmt.Sprintf(`AT+CWJAP_CUR="%s","***"`, escape(ssid)),
	}, nil
}

// StartUDP builds AT+CIPSTART=0,"UDP","<host>",<port>.
func StartUDP(host string, port int) (Command, error) {
	if host == "" {
		return Command{}, fmt.Errorf("%w: empty host", ErrInvalidArgument)
	}
	if strings.ContainsAny(host, "\",\\ \r\n") {
		return Command{}, fmt.Errorf("%w: malformed host %q", ErrInvalidArgument, host)
	}
	if port < 0 || port > 65535 {
		return Command{}, fmt.Errorf("%w: port %d not in 0..65535", ErrInvalidArgument, port)
	}

	return Command{
		text: fmt.Sprintf(`AT+CIPSTART=%d,"UDP","%s",%d`, LinkID, host, port),
	}, nil
}

// Send builds AT+CIPSEND=0,<length>, announcing length raw bytes.
func Send(length int) (Command, error) {
	if length < 1 || length > MaxSendLength {
		return Command{}, fmt.Errorf("%w: send length %d not in 1..%d", ErrInvalidArgument, length, MaxSendLength)
	}

	return Command{
		text: "AT+CIPSEND=" + strconv.Itoa(LinkID) + "," + strconv.Itoa(length),
	}, nil
}

func hasLineBreak(s string) bool {
	return strings.ContainsAny(s, "\r\n")
}

var escaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `,`, `\,`)

func escape(s string) string {
	return escaper.Replace(s)
}
