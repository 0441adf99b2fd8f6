package at

const (
	// Terminal Control
	CRLF   = "\r\n"
	Prompt = ">"

	// Response Codes
	OK         = "OK"
	ERROR      = "ERROR"
	Ready      = "ready"
	Disconnect = "DISCONNECT"
	SendOK     = "SEND OK"
	SendFail   = "SEND FAIL"
	Busy       = "busy p..."
	FAIL       = "FAIL"

	// Status lines the radio prints on its own. They are logged, never acted on.
	StatusWifiConnected    = "WIFI CONNECTED"
	StatusWifiGotIP        = "WIFI GOT IP"
	StatusWifiDisconnected = "WIFI DISCONNECT"
	StatusLinkConnected    = "CONNECT"
	StatusLinkClosed       = "CLOSED"
	StatusJoinFailure      = "+CWJAP:"
	StatusReceive          = "+IPD,"

	// Fixed commands
	CmdReset       = "AT+RST"
	CmdStationMode = "AT+CWMODE_CUR=1"
	CmdQuitAP      = "AT+CWQAP"
	CmdMultiplex   = "AT+CIPMUX=1"
	CmdCloseLink   = "AT+CIPCLOSE=0"
)

// LinkID is the only socket the radio driver ever uses.
const LinkID = 0

type ResponseType int

const (
	TypeFinal  ResponseType = iota // OK, ERROR, ready, SEND OK
	TypeStatus                     // WIFI GOT IP, 0,CONNECT, ...
	TypeData                       // Echoed commands and informational text
	TypePrompt                     // CIPSEND input prompt
)

func (t ResponseType) String() string {
	switch t {
	case TypeFinal:
		return "final"
	case TypeStatus:
		return "status"
	case TypePrompt:
		return "prompt"
	default:
		return "data"
	}
}
