package room

// State is the lifecycle position of a Controller.
//
//	Connecting -> Connected -> Closed
//	Connecting | Connected -> Errored
//
// Closed and Errored are terminal; a controller in a terminal state ignores
// every further event.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateClosed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

func (s State) Terminal() bool {
	return s == StateClosed || s == StateErrored
}

type eventKind int

const (
	eventSignal eventKind = iota
	eventConnect
	eventStream
	eventData
	eventClose
	eventError
)

func (k eventKind) String() string {
	switch k {
	case eventSignal:
		return "signal"
	case eventConnect:
		return "connect"
	case eventStream:
		return "stream"
	case eventData:
		return "data"
	case eventClose:
		return "close"
	case eventError:
		return "error"
	default:
		return "unknown"
	}
}

type effect int

const (
	effectForwardSignal effect = iota
	effectAnnounceConnected
	effectPlayCue
	effectForwardStream
	effectDeliverData
	effectAnnounceClosed
	effectAnnounceError
	effectDropStream
	effectReleaseTransport
	effectLeaveRegistry
)

// transition is the whole controller state machine. It has no side effects;
// the returned effects are executed by the controller in order.
//
// A close is honoured from Connecting as well as Connected: a transport that
// goes away mid-handshake ends the controller exactly like one that drops
// after connecting.
func transition(s State, k eventKind) (State, []effect) {
	if s.Terminal() {
		return s, nil
	}

	switch k {
	case eventSignal:
		return s, []effect{effectForwardSignal}

	case eventConnect:
		if s != StateConnecting {
			return s, nil
		}
		return StateConnected, []effect{effectAnnounceConnected, effectPlayCue}

	case eventStream:
		return s, []effect{effectForwardStream}

	case eventData:
		if s != StateConnected {
			return s, nil
		}
		return s, []effect{effectDeliverData}

	case eventClose:
		return StateClosed, []effect{effectAnnounceClosed, effectDropStream, effectReleaseTransport, effectLeaveRegistry}

	case eventError:
		return StateErrored, []effect{effectAnnounceError, effectDropStream, effectReleaseTransport, effectLeaveRegistry}
	}

	return s, nil
}
