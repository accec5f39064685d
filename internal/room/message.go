package room

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/rudransh-shrivastava/peer-room/internal/filecodec"
)

type MessageType string

const (
	MessageText MessageType = "text"
	MessageFile MessageType = "file"
)

// Message is an application message exchanged over a data channel. It is one
// of TextMessage or FileMessage.
type Message interface {
	Type() MessageType
	isMessage()
}

type TextMessage struct {
	Payload string
}

func (TextMessage) Type() MessageType { return MessageText }
func (TextMessage) isMessage()        {}

type FileMessage struct {
	Payload filecodec.FileDescriptor
}

func (FileMessage) Type() MessageType { return MessageFile }
func (FileMessage) isMessage()        {}

// ChatEntry is what the chat log receives for each sent or received message.
// Image holds the encoded attachment of file messages and is empty otherwise.
// Recipient is set on entries logged per peer for outgoing files.
type ChatEntry struct {
	ID        uuid.UUID
	UserID    string
	Message   string
	Timestamp time.Time
	Image     string
	Recipient string
}

type wireMessage struct {
	Type    MessageType     `json:"type" validate:"required,oneof=text file"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}

var validate = validator.New()

// EncodeMessage serializes msg into its data channel form,
// e.g. {"type":"text","payload":"hi"}.
func EncodeMessage(msg Message) ([]byte, error) {
	var payload any
	switch m := msg.(type) {
	case TextMessage:
		payload = m.Payload
	case FileMessage:
		payload = m.Payload
	default:
		return nil, fmt.Errorf("unsupported message %T", msg)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireMessage{Type: msg.Type(), Payload: raw})
}

// DecodeMessage validates raw before dispatching on its type tag. Anything that
// does not match a known variant exactly fails with ErrMalformedMessage.
func DecodeMessage(raw []byte) (Message, error) {
	var wire wireMessage
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if err := validate.Struct(wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if bytes.Equal(bytes.TrimSpace(wire.Payload), []byte("null")) {
		return nil, fmt.Errorf("%w: null payload", ErrMalformedMessage)
	}

	switch wire.Type {
	case MessageText:
		var text string
		if err := json.Unmarshal(wire.Payload, &text); err != nil {
			return nil, fmt.Errorf("%w: text payload: %v", ErrMalformedMessage, err)
		}
		return TextMessage{Payload: text}, nil

	case MessageFile:
		var desc filecodec.FileDescriptor
		dec := json.NewDecoder(bytes.NewReader(wire.Payload))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&desc); err != nil {
			return nil, fmt.Errorf("%w: file payload: %v", ErrMalformedMessage, err)
		}
		if err := validate.Struct(desc); err != nil {
			return nil, fmt.Errorf("%w: file payload: %v", ErrMalformedMessage, err)
		}
		return FileMessage{Payload: desc}, nil
	}

	return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedMessage, wire.Type)
}
