package radio

import (
	"fmt"
	"time"
)

// EventKind names the outcome of a radio operation.
type EventKind int

const (
	EventReset EventKind = iota
	EventResetFailed
	EventAssociated
	EventAssociationFailed
	EventSocketOpened
	EventSocketFailed
	EventSocketClosed
	EventSent
	EventSendFailed
	EventDisconnected
	EventDisconnectFailed
)

var eventNames = map[EventKind]string{
	EventReset:             "reset",
	EventResetFailed:       "reset_failed",
	EventAssociated:        "associated",
	EventAssociationFailed: "association_failed",
	EventSocketOpened:      "socket_opened",
	EventSocketFailed:      "socket_failed",
	EventSocketClosed:      "socket_closed",
	EventSent:              "sent",
	EventSendFailed:        "send_failed",
	EventDisconnected:      "disconnected",
	EventDisconnectFailed:  "disconnect_failed",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Failed reports whether k describes a failed operation.
func (k EventKind) Failed() bool {
	switch k {
	case EventResetFailed, EventAssociationFailed, EventSocketFailed, EventSendFailed, EventDisconnectFailed:
		return true
	default:
		return false
	}
}

// Event describes the outcome of one operation. It is delivered to the
// Observer after the state has been updated.
type Event struct {
	Kind EventKind
	// State is the radio state after the operation.
	State State
	// Err is set for failures.
	Err error
	// Attempts is the number of join attempts made, for association events.
	Attempts int
	// Bytes is the frame length, for send events.
	Bytes int
	Time  time.Time
}

// Observer receives events from a Radio, e.g. to drive a status indicator.
//
// Notify is called synchronously while the Radio is locked, so it must not
// call back into the Radio and should return quickly.
type Observer interface {
	Notify(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) Notify(e Event) {
	f(e)
}

// Observers fans an event out to several observers in order.
type Observers []Observer

func (o Observers) Notify(e Event) {
	for _, observer := range o {
		observer.Notify(e)
	}
}
