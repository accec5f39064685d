package room

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Controller owns one PeerTransport and drives it through the State machine.
// It implements TransportEvents; the transport it wraps reports to it directly.
type Controller struct {
	participantID string
	isInitiator   bool
	localStream   MediaStream

	signaling SignalingChannel
	notifier  Notifier
	media     MediaSink
	receive   func(participantID string, data []byte) (ChatEntry, error)
	leave     func(*Controller)
	logger    *logrus.Entry

	// handling serializes event processing for this controller.
	handling sync.Mutex

	mu        sync.Mutex
	state     State
	transport PeerTransport

	released atomic.Bool
}

type controllerConfig struct {
	participantID string
	isInitiator   bool
	localStream   MediaStream
	signaling     SignalingChannel
	notifier      Notifier
	media         MediaSink
	receive       func(participantID string, data []byte) (ChatEntry, error)
	leave         func(*Controller)
	logger        *logrus.Logger
}

func newController(cfg controllerConfig) *Controller {
	return &Controller{
		participantID: cfg.participantID,
		isInitiator:   cfg.isInitiator,
		localStream:   cfg.localStream,
		signaling:     cfg.signaling,
		notifier:      cfg.notifier,
		media:         cfg.media,
		receive:       cfg.receive,
		leave:         cfg.leave,
		logger: cfg.logger.WithFields(logrus.Fields{
			"participant": cfg.participantID,
			"initiator":   cfg.isInitiator,
		}),
		state: StateConnecting,
	}
}

type event struct {
	kind    eventKind
	payload []byte
	stream  MediaStream
	err     error
}

func (c *Controller) OnSignal(payload []byte) {
	c.dispatch(event{kind: eventSignal, payload: payload})
}

func (c *Controller) OnConnect() {
	c.dispatch(event{kind: eventConnect})
}

func (c *Controller) OnStream(stream MediaStream) {
	c.dispatch(event{kind: eventStream, stream: stream})
}

func (c *Controller) OnData(data []byte) {
	c.dispatch(event{kind: eventData, payload: data})
}

func (c *Controller) OnClose() {
	c.dispatch(event{kind: eventClose})
}

func (c *Controller) OnError(err error) {
	c.dispatch(event{kind: eventError, err: err})
}

var _ TransportEvents = (*Controller)(nil)

func (c *Controller) dispatch(ev event) {
	// Transports may call back while being destroyed.
	if c.released.Load() {
		return
	}

	c.handling.Lock()
	defer c.handling.Unlock()

	c.mu.Lock()
	prev := c.state
	next, effects := transition(prev, ev.kind)
	c.state = next
	c.mu.Unlock()

	if len(effects) == 0 {
		c.logger.Debugf("Ignoring %s event in state %s", ev.kind, prev)
		return
	}
	if prev != next {
		c.logger.Debugf("State %s -> %s on %s", prev, next, ev.kind)
	}

	for _, e := range effects {
		c.apply(e, ev)
	}
}

func (c *Controller) apply(e effect, ev event) {
	switch e {
	case effectForwardSignal:
		if err := c.signaling.EmitSignal(c.participantID, ev.payload); err != nil {
			c.logger.Errorf("Failed to emit signal: %v", err)
		}

	case effectAnnounceConnected:
		c.logger.Info("Connection established")
		c.notifier.Info(fmt.Sprintf("Connected to %s", c.participantID))

	case effectPlayCue:
		if player, ok := c.notifier.(CuePlayer); ok {
			if err := player.PlayCue(CueConnected); err != nil {
				c.logger.Warnf("Failed to play %s cue: %v", CueConnected, err)
			}
		}

	case effectForwardStream:
		c.media.AddStream(c.participantID, ev.stream)

	case effectDeliverData:
		if _, err := c.receive(c.participantID, ev.payload); err != nil {
			c.logger.Warnf("Dropping inbound message: %v", err)
		}

	case effectAnnounceClosed:
		c.logger.Info("Connection closed")
		c.notifier.Info(fmt.Sprintf("Connection with %s closed", c.participantID))

	case effectAnnounceError:
		c.logger.Errorf("Connection failed: %v", ev.err)
		c.notifier.Error(fmt.Sprintf("Connection with %s failed: %v", c.participantID, ev.err))

	case effectDropStream:
		c.media.RemoveStream(c.participantID)

	case effectReleaseTransport:
		c.release()

	case effectLeaveRegistry:
		if c.leave != nil {
			c.leave(c)
		}
	}
}

// attach binds the transport built for this controller. If the controller was
// released while the transport was being built, the transport is destroyed.
func (c *Controller) attach(t PeerTransport) {
	c.mu.Lock()
	if !c.released.Load() {
		c.transport = t
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if err := t.Destroy(); err != nil {
		c.logger.Warnf("Failed to destroy transport: %v", err)
	}
}

// release destroys the transport exactly once.
func (c *Controller) release() {
	c.mu.Lock()
	if c.released.Swap(true) {
		c.mu.Unlock()
		return
	}
	t := c.transport
	c.transport = nil
	c.mu.Unlock()

	if t == nil {
		return
	}
	if err := t.Destroy(); err != nil {
		c.logger.Warnf("Failed to destroy transport: %v", err)
	}
}

// Destroy tears the controller down without raising any notification. Events
// the transport reports afterwards are ignored.
func (c *Controller) Destroy() {
	c.handling.Lock()
	defer c.handling.Unlock()

	c.mu.Lock()
	if !c.state.Terminal() {
		c.state = StateClosed
	}
	c.mu.Unlock()

	c.release()
}

// Signal applies a signaling payload received from the remote participant.
func (c *Controller) Signal(payload []byte) error {
	c.mu.Lock()
	t, state := c.transport, c.state
	c.mu.Unlock()

	if state.Terminal() || t == nil {
		return fmt.Errorf("%w: %s is %s", ErrNotConnected, c.participantID, state)
	}
	if err := t.Signal(payload); err != nil {
		return fmt.Errorf("%w: signal %s: %v", ErrTransport, c.participantID, err)
	}
	return nil
}

// Send hands data to the transport. Only connected controllers accept data.
func (c *Controller) Send(data []byte) error {
	c.mu.Lock()
	t, state := c.transport, c.state
	c.mu.Unlock()

	if state != StateConnected || t == nil {
		return fmt.Errorf("%w: %s is %s", ErrNotConnected, c.participantID, state)
	}
	if err := t.Send(data); err != nil {
		return fmt.Errorf("%w: send to %s: %v", ErrTransport, c.participantID, err)
	}
	return nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) ParticipantID() string {
	return c.participantID
}

func (c *Controller) IsInitiator() bool {
	return c.isInitiator
}

// LocalStream is the borrowed outbound stream the transport was built with.
func (c *Controller) LocalStream() MediaStream {
	return c.localStream
}
