// Package room keeps one direct connection per remote participant of a session
// and routes chat messages and files across them.
package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rudransh-shrivastava/peer-room/internal/filecodec"
)

type Options struct {
	// LocalID identifies this participant in the session.
	LocalID    string
	Transports TransportFactory
	Signaling  SignalingChannel
	Notifier   Notifier
	Chat       ChatLog
	Media      MediaSink
	Codec      *filecodec.Codec
	MediaOffer MediaOfferPolicy
	Logger     *logrus.Logger
}

// Session exposes the operations a UI or orchestrator drives.
type Session struct {
	localID    string
	transports TransportFactory
	signaling  SignalingChannel
	notifier   Notifier
	media      MediaSink
	codec      *filecodec.Codec
	mediaOffer MediaOfferPolicy
	logger     *logrus.Logger

	registry *Registry
	router   *Router
}

func New(opts Options) (*Session, error) {
	if opts.LocalID == "" {
		return nil, errors.New("local participant id is required")
	}
	if opts.Transports == nil {
		return nil, errors.New("transport factory is required")
	}
	if opts.Signaling == nil {
		return nil, errors.New("signaling channel is required")
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Media == nil {
		opts.Media = nopMediaSink{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	registry := NewRegistry()
	return &Session{
		localID:    opts.LocalID,
		transports: opts.Transports,
		signaling:  opts.Signaling,
		notifier:   opts.Notifier,
		media:      opts.Media,
		codec:      opts.Codec,
		mediaOffer: opts.MediaOffer,
		logger:     opts.Logger,
		registry:   registry,
		router:     NewRouter(opts.LocalID, registry, opts.Chat, opts.Logger),
	}, nil
}

type ConnectRequest struct {
	ParticipantID string
	// InitiatorID names the participant that starts the handshake.
	InitiatorID string
	// OutboundStream is borrowed; the session never stops it.
	OutboundStream MediaStream
}

// ConnectToParticipant replaces any connection held for the participant with
// a new one.
func (s *Session) ConnectToParticipant(req ConnectRequest) (*Controller, error) {
	if req.ParticipantID == "" {
		return nil, errors.New("participant id is required")
	}
	isInitiator := s.localID == req.InitiatorID

	c, err := s.registry.Upsert(req.ParticipantID, func() (*Controller, error) {
		c := newController(controllerConfig{
			participantID: req.ParticipantID,
			isInitiator:   isInitiator,
			localStream:   req.OutboundStream,
			signaling:     s.signaling,
			notifier:      s.notifier,
			media:         s.media,
			receive:       s.router.Receive,
			leave:         s.registry.release,
			logger:        s.logger,
		})

		t, err := s.transports(TransportOptions{
			ParticipantID:  req.ParticipantID,
			IsInitiator:    isInitiator,
			OutboundStream: req.OutboundStream,
			MediaOffer:     s.mediaOffer,
			Events:         c,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: creating transport for %s: %v", ErrTransport, req.ParticipantID, err)
		}
		c.attach(t)
		return c, nil
	})
	if err != nil {
		s.logger.Errorf("Failed to connect to %s: %v", req.ParticipantID, err)
		s.notifier.Error(fmt.Sprintf("Could not connect to %s", req.ParticipantID))
		return nil, err
	}

	s.logger.Infof("Connecting to %s (initiator: %t)", req.ParticipantID, isInitiator)
	return c, nil
}

// HandleSignal delivers a signaling payload from the server to the controller
// registered for participantID.
func (s *Session) HandleSignal(participantID string, payload []byte) error {
	c, ok := s.registry.Get(participantID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParticipant, participantID)
	}
	if err := c.Signal(payload); err != nil {
		s.logger.Warnf("Failed to apply signal from %s: %v", participantID, err)
		return err
	}
	return nil
}

func (s *Session) SendTextMessage(text string) (int, error) {
	sent, err := s.router.Broadcast(TextMessage{Payload: text})
	if err != nil {
		s.logger.Warnf("Text message not delivered to every peer: %v", err)
		s.notifier.Warning("Message was not delivered to every participant")
	}
	return sent, err
}

// SendFile reads name through the session's codec and sends it to every
// connected participant. Nothing is sent if the read fails.
func (s *Session) SendFile(ctx context.Context, name string) (int, error) {
	desc, err := s.codec.Encode(ctx, name)
	if err != nil {
		s.logger.Errorf("Failed to read %s: %v", name, err)
		switch {
		case errors.Is(err, ErrUnsupportedEnvironment):
			s.notifier.Error("File sharing is not supported here")
		default:
			s.notifier.Error(fmt.Sprintf("Could not read %s", name))
		}
		return 0, err
	}

	sent, err := s.router.Broadcast(FileMessage{Payload: desc})
	if err != nil {
		s.logger.Warnf("File %s not delivered to every peer: %v", desc.Name, err)
		s.notifier.Warning(fmt.Sprintf("%s was not delivered to every participant", desc.Name))
	}
	return sent, err
}

func (s *Session) DisconnectParticipant(participantID string) {
	if s.registry.Remove(participantID) {
		s.media.RemoveStream(participantID)
		s.logger.Infof("Disconnected %s", participantID)
	}
}

func (s *Session) DisconnectAll() {
	for _, id := range s.registry.DestroyAll() {
		s.media.RemoveStream(id)
	}
	s.logger.Info("Disconnected all participants")
}

type ParticipantStatus struct {
	ID          string
	State       State
	IsInitiator bool
}

// Participants lists registered participants ordered by id.
func (s *Session) Participants() []ParticipantStatus {
	var out []ParticipantStatus
	for id, c := range s.registry.All() {
		out = append(out, ParticipantStatus{ID: id, State: c.State(), IsInitiator: c.IsInitiator()})
	}
	return out
}

// Receive feeds a raw payload through the inbound path as if it arrived from
// participantID.
func (s *Session) Receive(participantID string, raw []byte) (ChatEntry, error) {
	return s.router.Receive(participantID, raw)
}
