package room

// PeerTransport is a single direct connection to one remote participant.
// Implementations report lifecycle and data through the TransportEvents
// they were constructed with.
type PeerTransport interface {
	// Signal applies a signaling payload received from the remote side.
	Signal(payload []byte) error
	Send(data []byte) error
	Destroy() error
}

// TransportEvents receives everything a PeerTransport raises. Events for one
// transport are delivered in the order the transport raises them.
type TransportEvents interface {
	OnSignal(payload []byte)
	OnConnect()
	OnStream(stream MediaStream)
	OnData(data []byte)
	OnClose()
	OnError(err error)
}

// MediaStream is an opaque media source. Outbound streams are borrowed: the
// session shares them read-only across transports and never stops them.
type MediaStream interface {
	ID() string
}

type MediaOfferPolicy struct {
	OfferToReceiveAudio bool
	OfferToReceiveVideo bool
}

type TransportOptions struct {
	ParticipantID  string
	IsInitiator    bool
	OutboundStream MediaStream
	MediaOffer     MediaOfferPolicy
	Events         TransportEvents
}

// TransportFactory builds a transport. ICE configuration is bound by the
// implementation when the factory is created.
type TransportFactory func(opts TransportOptions) (PeerTransport, error)

// SignalingChannel relays handshake payloads to the coordination server.
type SignalingChannel interface {
	EmitSignal(participantID string, signal []byte) error
}

// Notifier shows user-facing messages. Calls are fire-and-forget.
type Notifier interface {
	Info(message string)
	Warning(message string)
	Error(message string)
}

// CuePlayer is an optional Notifier capability for audio cues.
type CuePlayer interface {
	PlayCue(cue string) error
}

// ChatLog receives an entry for every sent and received application message.
type ChatLog interface {
	Append(entry ChatEntry) error
}

// MediaSink receives remote streams keyed by participant.
type MediaSink interface {
	AddStream(participantID string, stream MediaStream)
	RemoveStream(participantID string)
}

const CueConnected = "connected"

type nopNotifier struct{}

func (nopNotifier) Info(string)    {}
func (nopNotifier) Warning(string) {}
func (nopNotifier) Error(string)   {}

type nopChatLog struct{}

func (nopChatLog) Append(ChatEntry) error { return nil }

type nopMediaSink struct{}

func (nopMediaSink) AddStream(string, MediaStream) {}
func (nopMediaSink) RemoveStream(string)           {}
