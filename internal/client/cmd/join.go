package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"github.com/rudransh-shrivastava/peer-room/internal/config"
	"github.com/rudransh-shrivastava/peer-room/internal/filecodec"
	"github.com/rudransh-shrivastava/peer-room/internal/logger"
	"github.com/rudransh-shrivastava/peer-room/internal/notify"
	"github.com/rudransh-shrivastava/peer-room/internal/room"
	"github.com/rudransh-shrivastava/peer-room/internal/signaling"
	"github.com/rudransh-shrivastava/peer-room/internal/store"
	rtc "github.com/rudransh-shrivastava/peer-room/internal/transport/webrtc"
)

func runJoin(ctx context.Context, cfg config.Config, offer room.MediaOfferPolicy, in io.Reader, out io.Writer) error {
	log, err := logger.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close(db) }()
	chat := store.NewChatStore(db)

	ch, err := signaling.Dial(ctx, cfg.SignalURL, cfg.ParticipantID, log)
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	codec := filecodec.New(os.DirFS("/"),
		filecodec.WithMaxSize(cfg.MaxFileSize),
		filecodec.WithProgress(func(name string, size int64) io.Writer {
			return newProgressBar(out, name, size)
		}),
	)

	session, err := room.New(room.Options{
		LocalID: cfg.ParticipantID,
		Transports: rtc.NewFactory(rtc.Config{
			ICE:    rtc.ConfigurationFrom(cfg.STUNList()),
			Logger: log,
		}),
		Signaling:  ch,
		Notifier:   notify.NewTerminal(out),
		Chat:       &printingChatLog{next: chat, out: out},
		Media:      &loggingMediaSink{logger: log},
		Codec:      codec,
		MediaOffer: offer,
		Logger:     log,
	})
	if err != nil {
		return err
	}
	defer session.DisconnectAll()

	c := &client{localID: cfg.ParticipantID, session: session, logger: log}
	ch.Handle(signaling.TypeJoin, c.handleJoin)
	ch.Handle(signaling.TypeLeave, c.handleLeave)
	ch.Handle(signaling.TypeSignal, c.handleSignal)
	ch.Handle(signaling.TypeRenegotiate, c.handleRenegotiate)

	if err := ch.Send(signaling.Envelope{Type: signaling.TypeJoin, ParticipantID: cfg.ParticipantID}); err != nil {
		return err
	}
	log.Infof("Joined as %s", cfg.ParticipantID)

	listenErr := make(chan error, 1)
	go func() { listenErr <- ch.Listen(ctx) }()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-listenErr:
			return err
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := c.execute(ctx, line, out); quit {
				return nil
			}
		}
	}
}

type client struct {
	localID string
	session *room.Session
	logger  *logrus.Logger
}

func (c *client) handleJoin(env signaling.Envelope) {
	if env.ParticipantID == c.localID {
		return
	}
	initiator := env.InitiatorID
	if initiator == "" {
		initiator = c.localID
	}
	_, _ = c.session.ConnectToParticipant(room.ConnectRequest{ParticipantID: env.ParticipantID, InitiatorID: initiator})
}

func (c *client) handleLeave(env signaling.Envelope) {
	c.session.DisconnectParticipant(env.ParticipantID)
}

func (c *client) handleRenegotiate(env signaling.Envelope) {
	c.logger.Infof("Renegotiating with %s", env.ParticipantID)
	c.handleJoin(env)
}

// handleSignal applies a remote handshake payload. An offer from a participant
// we hold no connection for means they are initiating one; anything else from
// them is stale and dropped.
func (c *client) handleSignal(env signaling.Envelope) {
	err := c.session.HandleSignal(env.ParticipantID, env.Signal)
	if !errors.Is(err, room.ErrUnknownParticipant) {
		return
	}
	if !rtc.IsOffer(env.Signal) {
		c.logger.Warnf("Dropping signal from unknown participant %s", env.ParticipantID)
		return
	}

	if _, err := c.session.ConnectToParticipant(room.ConnectRequest{
		ParticipantID: env.ParticipantID,
		InitiatorID:   env.ParticipantID,
	}); err != nil {
		return
	}
	_ = c.session.HandleSignal(env.ParticipantID, env.Signal)
}

// execute runs one line of user input and reports whether the user asked to
// leave.
func (c *client) execute(ctx context.Context, line string, out io.Writer) bool {
	command, arg := parseCommand(line)
	switch command {
	case "":
		return false
	case "/quit":
		return true
	case "/peers":
		writePeers(out, c.session.Participants())
	case "/send":
		if arg == "" {
			fmt.Fprintln(out, "usage: /send path")
			return false
		}
		name, err := fsPath(arg)
		if err != nil {
			fmt.Fprintln(out, err)
			return false
		}
		_, _ = c.session.SendFile(ctx, name)
	case "text":
		_, _ = c.session.SendTextMessage(arg)
	default:
		fmt.Fprintln(out, `type to chat, "/send path", "/peers" or "/quit"`)
	}
	return false
}

// parseCommand splits "/cmd arg" lines. Lines that are not commands come back
// with command set to "text".
func parseCommand(line string) (string, string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", ""
	}
	if !strings.HasPrefix(line, "/") {
		return "text", line
	}
	command, arg, _ := strings.Cut(line, " ")
	return command, strings.TrimSpace(arg)
}

// fsPath turns a user supplied path into a name for an os.DirFS("/") file system.
func fsPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(filepath.ToSlash(abs), "/"), nil
}

// newProgressBar mirrors progressbar.DefaultBytes but renders to out.
func newProgressBar(out io.Writer, name string, size int64) *progressbar.ProgressBar {
	return progressbar.NewOptions64(size,
		progressbar.OptionSetDescription("reading "+name),
		progressbar.OptionSetWriter(out),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(10),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(out, "\n")
		}),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func writePeers(out io.Writer, peers []room.ParticipantStatus) {
	if len(peers) == 0 {
		fmt.Fprintln(out, "no participants")
		return
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Participant", "State", "Initiator"})
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for _, p := range peers {
		table.Append([]string{p.ID, p.State.String(), fmt.Sprint(p.IsInitiator)})
	}
	table.Render()
}

// printingChatLog echoes entries to the terminal before persisting them.
type printingChatLog struct {
	next room.ChatLog
	out  io.Writer
}

func (l *printingChatLog) Append(entry room.ChatEntry) error {
	fmt.Fprintln(l.out, formatEntry(entry))
	return l.next.Append(entry)
}

func formatEntry(e room.ChatEntry) string {
	ts := e.Timestamp.Format(time.TimeOnly)
	switch {
	case e.Image != "" && e.Recipient != "":
		return fmt.Sprintf("[%s] %s sent %s to %s", ts, e.UserID, e.Message, e.Recipient)
	case e.Image != "":
		return fmt.Sprintf("[%s] %s shared %s", ts, e.UserID, e.Message)
	default:
		return fmt.Sprintf("[%s] %s: %s", ts, e.UserID, e.Message)
	}
}

// loggingMediaSink has nowhere to render media; it logs streams and drains
// their packets.
type loggingMediaSink struct {
	logger *logrus.Logger
}

func (s *loggingMediaSink) AddStream(participantID string, stream room.MediaStream) {
	s.logger.Infof("Receiving stream %s from %s", stream.ID(), participantID)

	remote, ok := stream.(rtc.RemoteStream)
	if !ok {
		return
	}
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := remote.Track().Read(buf); err != nil {
				return
			}
		}
	}()
}

func (s *loggingMediaSink) RemoveStream(participantID string) {
	s.logger.Debugf("Dropping streams from %s", participantID)
}
