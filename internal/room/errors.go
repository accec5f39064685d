package room

import (
	"errors"

	"github.com/rudransh-shrivastava/peer-room/internal/filecodec"
)

var (
	ErrTransport          = errors.New("transport error")
	ErrMalformedMessage   = errors.New("malformed message")
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrNotConnected       = errors.New("participant not connected")

	ErrUnsupportedEnvironment = filecodec.ErrUnsupportedEnvironment
	ErrRead                   = filecodec.ErrRead
)
