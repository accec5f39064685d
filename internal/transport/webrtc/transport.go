// Package webrtc implements room.PeerTransport on top of pion.
package webrtc

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"

	"github.com/rudransh-shrivastava/peer-room/internal/room"
)

var (
	ErrChannelNotReady  = errors.New("data channel not ready")
	ErrConnectionFailed = errors.New("peer connection failed")
	ErrInvalidSignal    = errors.New("invalid signal")
)

const (
	signalOffer     = "offer"
	signalAnswer    = "answer"
	signalCandidate = "candidate"
)

// signalPayload is what travels through the signaling server, e.g.
// {"type":"offer","sdp":"v=0..."} or {"type":"candidate","candidate":{...}}.
type signalPayload struct {
	Type      string                   `json:"type"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}

// IsOffer reports whether payload is a session offer, the only signal that
// may open a connection to a participant we are not yet talking to.
func IsOffer(payload []byte) bool {
	var sig signalPayload
	if err := json.Unmarshal(payload, &sig); err != nil {
		return false
	}
	return sig.Type == signalOffer
}

type Config struct {
	ICE         webrtc.Configuration
	DataChannel *webrtc.DataChannelInit
	Logger      *logrus.Logger
}

// NewFactory binds cfg into a room.TransportFactory.
func NewFactory(cfg Config) room.TransportFactory {
	return func(opts room.TransportOptions) (room.PeerTransport, error) {
		return New(cfg, opts)
	}
}

type Transport struct {
	participantID string
	isInitiator   bool
	pc            *webrtc.PeerConnection
	events        room.TransportEvents
	logger        *logrus.Entry

	mu sync.Mutex
	dc *webrtc.DataChannel
	// remoteCandidates arrived before the remote description.
	remoteCandidates []webrtc.ICECandidateInit
	// localCandidates were gathered before the local description was sent.
	localCandidates []webrtc.ICECandidateInit
	descriptionSent bool

	destroyed atomic.Bool
}

var _ room.PeerTransport = (*Transport)(nil)

// New creates a peer connection for opts.ParticipantID. The initiator opens the
// data channel and emits its offer before New returns.
func New(cfg Config, opts room.TransportOptions) (*Transport, error) {
	if opts.Events == nil {
		return nil, errors.New("transport events are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	dcConfig := cfg.DataChannel
	if dcConfig == nil {
		dcConfig = DefaultDataChannelConfig()
	}

	pc, err := webrtc.NewPeerConnection(cfg.ICE)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	t := &Transport{
		participantID: opts.ParticipantID,
		isInitiator:   opts.IsInitiator,
		pc:            pc,
		events:        opts.Events,
		logger:        logger.WithField("participant", opts.ParticipantID),
	}

	pc.OnICECandidate(t.handleLocalCandidate)
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		t.logger.Debugf("Remote track %s (%s)", track.ID(), track.Kind())
		t.emit(func(ev room.TransportEvents) { ev.OnStream(RemoteStream{track: track}) })
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		t.logger.Debugf("Peer connection state has changed: %s", s)
		switch s {
		case webrtc.PeerConnectionStateFailed:
			t.emit(func(ev room.TransportEvents) { ev.OnError(fmt.Errorf("%w: %s", ErrConnectionFailed, t.participantID)) })
		case webrtc.PeerConnectionStateClosed:
			t.emit(func(ev room.TransportEvents) { ev.OnClose() })
		}
	})

	if err := t.addOutboundStream(opts.OutboundStream); err != nil {
		_ = pc.Close()
		return nil, err
	}

	if !opts.IsInitiator {
		t.logger.Debug("Waiting for data channel as the other peer is the initiator")
		pc.OnDataChannel(t.setupDataChannel)
		return t, nil
	}

	t.logger.Debug("Creating data channel as we are the initiator")
	dc, err := pc.CreateDataChannel(DataChannelLabel, dcConfig)
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("failed to create data channel: %w", err)
	}
	t.setupDataChannel(dc)

	if err := t.addReceiveTransceivers(opts.MediaOffer); err != nil {
		_ = pc.Close()
		return nil, err
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("failed to create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("failed to set local description: %w", err)
	}
	t.sendDescription(signalPayload{Type: signalOffer, SDP: offer.SDP})

	return t, nil
}

func (t *Transport) addOutboundStream(stream room.MediaStream) error {
	if stream == nil {
		return nil
	}
	local, ok := stream.(*LocalStream)
	if !ok {
		return fmt.Errorf("unsupported outbound stream %T", stream)
	}

	for _, track := range local.Tracks() {
		sender, err := t.pc.AddTrack(track)
		if err != nil {
			return fmt.Errorf("failed to add track %s: %w", track.ID(), err)
		}
		// RTCP has to be drained for interceptors to run.
		go func() {
			buf := make([]byte, 1500)
			for {
				if _, _, err := sender.Read(buf); err != nil {
					return
				}
			}
		}()
	}
	return nil
}

func (t *Transport) addReceiveTransceivers(policy room.MediaOfferPolicy) error {
	recvonly := webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly}
	if policy.OfferToReceiveAudio {
		if _, err := t.pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, recvonly); err != nil {
			return fmt.Errorf("failed to add audio transceiver: %w", err)
		}
	}
	if policy.OfferToReceiveVideo {
		if _, err := t.pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, recvonly); err != nil {
			return fmt.Errorf("failed to add video transceiver: %w", err)
		}
	}
	return nil
}

func (t *Transport) setupDataChannel(dc *webrtc.DataChannel) {
	t.mu.Lock()
	t.dc = dc
	t.mu.Unlock()

	dc.OnOpen(func() {
		t.logger.Debugf("Data channel '%s'-'%d' open", dc.Label(), dc.ID())
		t.emit(func(ev room.TransportEvents) { ev.OnConnect() })
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		t.emit(func(ev room.TransportEvents) { ev.OnData(msg.Data) })
	})

	dc.OnError(func(err error) {
		t.logger.Errorf("Data channel error: %v", err)
		t.emit(func(ev room.TransportEvents) { ev.OnError(err) })
	})

	dc.OnClose(func() {
		t.logger.Debugf("Data channel '%s'-'%d' closed", dc.Label(), dc.ID())
		t.emit(func(ev room.TransportEvents) { ev.OnClose() })
	})
}

// emit drops events raised after Destroy.
func (t *Transport) emit(fn func(room.TransportEvents)) {
	if t.destroyed.Load() {
		return
	}
	fn(t.events)
}

func (t *Transport) emitSignal(sig signalPayload) {
	payload, err := json.Marshal(sig)
	if err != nil {
		t.logger.Errorf("Failed to encode %s signal: %v", sig.Type, err)
		return
	}
	t.emit(func(ev room.TransportEvents) { ev.OnSignal(payload) })
}

// sendDescription emits an offer or answer followed by any candidates gathered
// before it.
func (t *Transport) sendDescription(sig signalPayload) {
	t.emitSignal(sig)

	t.mu.Lock()
	t.descriptionSent = true
	pending := t.localCandidates
	t.localCandidates = nil
	t.mu.Unlock()

	for i := range pending {
		t.emitSignal(signalPayload{Type: signalCandidate, Candidate: &pending[i]})
	}
}

func (t *Transport) handleLocalCandidate(c *webrtc.ICECandidate) {
	if c == nil {
		return
	}
	init := c.ToJSON()

	t.mu.Lock()
	if !t.descriptionSent {
		t.localCandidates = append(t.localCandidates, init)
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	t.emitSignal(signalPayload{Type: signalCandidate, Candidate: &init})
}

// Signal applies an offer, answer or ICE candidate from the remote peer.
// Candidates that arrive before the remote description are held until it is set.
func (t *Transport) Signal(payload []byte) error {
	if t.destroyed.Load() {
		return ErrChannelNotReady
	}

	var sig signalPayload
	if err := json.Unmarshal(payload, &sig); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignal, err)
	}

	switch sig.Type {
	case signalOffer, signalAnswer:
		return t.applyDescription(sig)

	case signalCandidate:
		if sig.Candidate == nil {
			return fmt.Errorf("%w: candidate missing", ErrInvalidSignal)
		}
		t.mu.Lock()
		if t.pc.RemoteDescription() == nil {
			t.remoteCandidates = append(t.remoteCandidates, *sig.Candidate)
			t.mu.Unlock()
			return nil
		}
		t.mu.Unlock()

		if err := t.pc.AddICECandidate(*sig.Candidate); err != nil {
			return fmt.Errorf("failed to add ICE candidate: %w", err)
		}
		return nil
	}

	return fmt.Errorf("%w: unknown type %q", ErrInvalidSignal, sig.Type)
}

func (t *Transport) applyDescription(sig signalPayload) error {
	desc := webrtc.SessionDescription{Type: webrtc.NewSDPType(sig.Type), SDP: sig.SDP}

	t.mu.Lock()
	err := t.pc.SetRemoteDescription(desc)
	pending := t.remoteCandidates
	t.remoteCandidates = nil
	t.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}

	for _, c := range pending {
		if err := t.pc.AddICECandidate(c); err != nil {
			t.logger.Warnf("Failed to add buffered ICE candidate: %v", err)
		}
	}

	if desc.Type != webrtc.SDPTypeOffer {
		return nil
	}

	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("failed to create answer: %w", err)
	}
	if err := t.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("failed to set local description: %w", err)
	}
	t.sendDescription(signalPayload{Type: signalAnswer, SDP: answer.SDP})
	return nil
}

// Send writes data as a text message on the data channel.
func (t *Transport) Send(data []byte) error {
	t.mu.Lock()
	dc := t.dc
	t.mu.Unlock()

	if t.destroyed.Load() || dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrChannelNotReady
	}
	return dc.SendText(string(data))
}

// Destroy closes the data channel and peer connection. It is safe to call more
// than once; no events are raised once it has been called.
func (t *Transport) Destroy() error {
	if t.destroyed.Swap(true) {
		return nil
	}

	t.mu.Lock()
	dc := t.dc
	t.dc = nil
	t.mu.Unlock()

	if dc != nil {
		_ = dc.Close()
	}
	return t.pc.Close()
}

func (t *Transport) ParticipantID() string {
	return t.participantID
}
