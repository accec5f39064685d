package webrtc

import (
	"github.com/pion/webrtc/v3"

	"github.com/rudransh-shrivastava/peer-room/internal/room"
)

// LocalStream groups outbound tracks. It is shared by every transport built
// with it and is never closed by them.
type LocalStream struct {
	id     string
	tracks []webrtc.TrackLocal
}

func NewLocalStream(id string, tracks ...webrtc.TrackLocal) *LocalStream {
	return &LocalStream{id: id, tracks: tracks}
}

func (s *LocalStream) ID() string {
	return s.id
}

func (s *LocalStream) Tracks() []webrtc.TrackLocal {
	return append([]webrtc.TrackLocal(nil), s.tracks...)
}

// RemoteStream is a track received from a peer.
type RemoteStream struct {
	track *webrtc.TrackRemote
}

func (s RemoteStream) ID() string {
	return s.track.StreamID()
}

func (s RemoteStream) Track() *webrtc.TrackRemote {
	return s.track
}

var (
	_ room.MediaStream = (*LocalStream)(nil)
	_ room.MediaStream = RemoteStream{}
)
