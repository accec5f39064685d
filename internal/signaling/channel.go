// Package signaling relays connection setup messages through a coordination
// server over a websocket.
package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/rudransh-shrivastava/peer-room/internal/room"
)

type EnvelopeType string

const (
	// TypeJoin announces a participant. InitiatorID names who starts the
	// handshake for the pair.
	TypeJoin        EnvelopeType = "join"
	TypeLeave       EnvelopeType = "leave"
	TypeSignal      EnvelopeType = "signal"
	TypeRenegotiate EnvelopeType = "renegotiate"
)

// ParticipantHeader carries the local participant id on the websocket handshake.
const ParticipantHeader = "X-Participant-Id"

const writeTimeout = 10 * time.Second

var ErrClosed = errors.New("signaling channel closed")

// Envelope is the unit exchanged with the server. Outbound, ParticipantID is
// the target; inbound, it is the sender.
type Envelope struct {
	Type          EnvelopeType    `json:"type" validate:"required,oneof=join leave signal renegotiate"`
	ParticipantID string          `json:"participantId" validate:"required"`
	InitiatorID   string          `json:"initiatorId,omitempty"`
	Signal        json.RawMessage `json:"signal,omitempty" validate:"required_if=Type signal"`
}

type Handler func(Envelope)

type Channel struct {
	conn     *websocket.Conn
	logger   *logrus.Entry
	validate *validator.Validate

	writeMu sync.Mutex

	mu       sync.RWMutex
	handlers map[EnvelopeType]Handler

	closeOnce sync.Once
	closeErr  error
}

var _ room.SignalingChannel = (*Channel)(nil)

// Dial connects to the signaling server at url as localID.
func Dial(ctx context.Context, url, localID string, logger *logrus.Logger) (*Channel, error) {
	header := http.Header{}
	header.Set(ParticipantHeader, localID)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial signaling server: %w", err)
	}
	return NewChannel(conn, logger), nil
}

func NewChannel(conn *websocket.Conn, logger *logrus.Logger) *Channel {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Channel{
		conn:     conn,
		logger:   logger.WithField("remote", conn.RemoteAddr().String()),
		validate: validator.New(),
		handlers: make(map[EnvelopeType]Handler),
	}
}

// Handle registers h for inbound envelopes of type t, replacing any previous
// handler.
func (c *Channel) Handle(t EnvelopeType, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[t] = h
}

func (c *Channel) Send(env Envelope) error {
	if err := c.validate.Struct(env); err != nil {
		return fmt.Errorf("invalid envelope: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	if err := c.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("failed to write %s envelope: %w", env.Type, err)
	}
	return nil
}

// EmitSignal sends a handshake payload to participantID.
func (c *Channel) EmitSignal(participantID string, signal []byte) error {
	return c.Send(Envelope{Type: TypeSignal, ParticipantID: participantID, Signal: signal})
}

// Listen reads envelopes and dispatches them to their handlers until ctx is
// cancelled or the connection drops. Envelopes that fail validation are logged
// and skipped.
func (c *Channel) Listen(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("failed to read from signaling server: %w", err)
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.logger.Warnf("Failed to decode envelope: %v", err)
			continue
		}
		if err := c.validate.Struct(env); err != nil {
			c.logger.Warnf("Dropping invalid envelope: %v", err)
			continue
		}

		c.mu.RLock()
		h, ok := c.handlers[env.Type]
		c.mu.RUnlock()
		if !ok {
			c.logger.Debugf("No handler for %s envelope", env.Type)
			continue
		}
		h(env)
	}
}

// Close sends a close frame and closes the connection.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
