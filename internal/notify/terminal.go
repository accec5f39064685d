// Package notify shows session notifications on a terminal.
package notify

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gookit/color"

	"github.com/rudransh-shrivastava/peer-room/internal/room"
)

// bell is written for audio cues.
const bell = "\a"

type Terminal struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time

	info    color.Style
	warning color.Style
	err     color.Style
}

var (
	_ room.Notifier  = (*Terminal)(nil)
	_ room.CuePlayer = (*Terminal)(nil)
)

func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{
		out:     out,
		now:     time.Now,
		info:    color.New(color.FgGreen),
		warning: color.New(color.FgYellow),
		err:     color.New(color.FgRed, color.OpBold),
	}
}

func (t *Terminal) Info(message string) {
	t.write(t.info, "INFO", message)
}

func (t *Terminal) Warning(message string) {
	t.write(t.warning, "WARN", message)
}

func (t *Terminal) Error(message string) {
	t.write(t.err, "ERROR", message)
}

// PlayCue rings the terminal bell.
func (t *Terminal) PlayCue(cue string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := io.WriteString(t.out, bell)
	return err
}

func (t *Terminal) write(style color.Style, level, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	// Failures are ignored; notifications are best effort.
	_, _ = fmt.Fprintf(t.out, "%s %s %s\n", t.now().Format(time.TimeOnly), style.Sprintf("%-5s", level), message)
}
