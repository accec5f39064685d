package room

import (
	"errors"
	"io"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/sirupsen/logrus"

	"github.com/rudransh-shrivastava/peer-room/internal/filecodec"
)

type fakeTransport struct {
	opts TransportOptions

	// closeOnDestroy makes Destroy raise a close event, like a real transport
	// tearing down its data channel.
	closeOnDestroy bool
	sendErr        error

	mu        sync.Mutex
	signals   [][]byte
	sent      [][]byte
	destroyed int
}

func (t *fakeTransport) Signal(payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.signals = append(t.signals, payload)
	return nil
}

func (t *fakeTransport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sendErr != nil {
		return t.sendErr
	}
	t.sent = append(t.sent, data)
	return nil
}

func (t *fakeTransport) Destroy() error {
	t.mu.Lock()
	t.destroyed++
	t.mu.Unlock()
	if t.closeOnDestroy {
		t.opts.Events.OnClose()
	}
	return nil
}

func (t *fakeTransport) Sent() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]byte(nil), t.sent...)
}

func (t *fakeTransport) Destroyed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.destroyed
}

type fakeFactory struct {
	mu         sync.Mutex
	transports []*fakeTransport
	// onCreate runs before the transport is returned.
	onCreate func(*fakeTransport)
	err      error
}

func (f *fakeFactory) New(opts TransportOptions) (PeerTransport, error) {
	if f.err != nil {
		return nil, f.err
	}
	t := &fakeTransport{opts: opts, closeOnDestroy: true}
	f.mu.Lock()
	f.transports = append(f.transports, t)
	f.mu.Unlock()
	if f.onCreate != nil {
		f.onCreate(t)
	}
	return t, nil
}

func (f *fakeFactory) Last() *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transports[len(f.transports)-1]
}

type emittedSignal struct {
	participantID string
	signal        []byte
}

type fakeSignaling struct {
	mu      sync.Mutex
	emitted []emittedSignal
	err     error
}

func (s *fakeSignaling) EmitSignal(participantID string, signal []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitted = append(s.emitted, emittedSignal{participantID, signal})
	return s.err
}

type fakeNotifier struct {
	mu       sync.Mutex
	infos    []string
	warnings []string
	errors   []string
	cues     []string
}

func (n *fakeNotifier) Info(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.infos = append(n.infos, message)
}

func (n *fakeNotifier) Warning(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.warnings = append(n.warnings, message)
}

func (n *fakeNotifier) Error(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, message)
}

func (n *fakeNotifier) PlayCue(cue string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cues = append(n.cues, cue)
	return nil
}

type fakeChat struct {
	mu      sync.Mutex
	entries []ChatEntry
}

func (c *fakeChat) Append(entry ChatEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
	return nil
}

func (c *fakeChat) Entries() []ChatEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ChatEntry(nil), c.entries...)
}

type fakeMedia struct {
	mu      sync.Mutex
	streams map[string]MediaStream
	removed []string
}

func (m *fakeMedia) AddStream(participantID string, stream MediaStream) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.streams == nil {
		m.streams = make(map[string]MediaStream)
	}
	m.streams[participantID] = stream
}

func (m *fakeMedia) RemoveStream(participantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.streams, participantID)
	m.removed = append(m.removed, participantID)
}

type fakeStream string

func (s fakeStream) ID() string { return string(s) }

type harness struct {
	session   *Session
	factory   *fakeFactory
	signaling *fakeSignaling
	notifier  *fakeNotifier
	chat      *fakeChat
	media     *fakeMedia
}

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newHarness(t *testing.T, files fstest.MapFS) *harness {
	t.Helper()

	h := &harness{
		factory:   &fakeFactory{},
		signaling: &fakeSignaling{},
		notifier:  &fakeNotifier{},
		chat:      &fakeChat{},
		media:     &fakeMedia{},
	}

	var codec *filecodec.Codec
	if files != nil {
		codec = filecodec.New(files)
	}

	s, err := New(Options{
		LocalID:    "me",
		Transports: h.factory.New,
		Signaling:  h.signaling,
		Notifier:   h.notifier,
		Chat:       h.chat,
		Media:      h.media,
		Codec:      codec,
		Logger:     discardLogger(),
	})
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	h.session = s
	return h
}

// connect registers participantID and drives it to Connected.
func (h *harness) connect(t *testing.T, participantID string) (*Controller, *fakeTransport) {
	t.Helper()

	c, err := h.session.ConnectToParticipant(ConnectRequest{ParticipantID: participantID, InitiatorID: participantID})
	if err != nil {
		t.Fatalf("failed to connect to %s: %v", participantID, err)
	}
	tr := h.factory.Last()
	c.OnConnect()
	if c.State() != StateConnected {
		t.Fatalf("expected %s to be connected, got %s", participantID, c.State())
	}
	return c, tr
}

var errBoom = errors.New("boom")
