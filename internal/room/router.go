package room

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Router fans outbound messages out to connected controllers and turns inbound
// data channel payloads into chat entries.
type Router struct {
	localID  string
	registry *Registry
	chat     ChatLog
	logger   *logrus.Logger
	now      func() time.Time
}

func NewRouter(localID string, registry *Registry, chat ChatLog, logger *logrus.Logger) *Router {
	if chat == nil {
		chat = nopChatLog{}
	}
	return &Router{
		localID:  localID,
		registry: registry,
		chat:     chat,
		logger:   logger,
		now:      time.Now,
	}
}

// Broadcast sends msg to every controller that is connected when the call
// starts and returns how many accepted it. Text is logged locally once; a file
// is logged once per recipient, before it is sent to that recipient.
func (r *Router) Broadcast(msg Message) (int, error) {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return 0, err
	}

	var recipients []*Controller
	for _, c := range r.registry.All() {
		recipients = append(recipients, c)
	}
	recipients = lo.Filter(recipients, func(c *Controller, _ int) bool {
		return c.State() == StateConnected
	})

	if text, ok := msg.(TextMessage); ok {
		r.append(ChatEntry{Message: text.Payload})
	}

	var errs []error
	sent := 0
	for _, c := range recipients {
		if file, ok := msg.(FileMessage); ok {
			r.append(ChatEntry{
				Message:   file.Payload.Name,
				Image:     file.Payload.EncodedData,
				Recipient: c.ParticipantID(),
			})
		}

		if err := c.Send(payload); err != nil {
			errs = append(errs, err)
			continue
		}
		sent++
	}

	r.logger.Debugf("Broadcast %s message to %d/%d peers", msg.Type(), sent, len(recipients))
	return sent, errors.Join(errs...)
}

// Receive decodes a payload from participantID and logs it. Malformed payloads
// are dropped and produce no entry.
func (r *Router) Receive(participantID string, raw []byte) (ChatEntry, error) {
	msg, err := DecodeMessage(raw)
	if err != nil {
		return ChatEntry{}, fmt.Errorf("from %s: %w", participantID, err)
	}

	entry := ChatEntry{
		ID:        uuid.New(),
		UserID:    participantID,
		Timestamp: r.now(),
	}
	switch m := msg.(type) {
	case TextMessage:
		entry.Message = m.Payload
	case FileMessage:
		entry.Message = m.Payload.Name
		entry.Image = m.Payload.EncodedData
	}

	if err := r.chat.Append(entry); err != nil {
		r.logger.Errorf("Failed to append chat entry from %s: %v", participantID, err)
	}
	return entry, nil
}

func (r *Router) append(entry ChatEntry) {
	entry.ID = uuid.New()
	entry.UserID = r.localID
	entry.Timestamp = r.now()
	if err := r.chat.Append(entry); err != nil {
		r.logger.Errorf("Failed to append chat entry: %v", err)
	}
}
