package main

import (
	"bkalan/domain"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gookit/color"
)

var (
	authorStyle  = color.New(color.FgCyan, color.OpBold)
	systemStyle  = color.New(color.FgGray)
	dividerStyle = color.New(color.BgBlack, color.FgGreen)
	errorStyle   = color.New(color.FgRed)
)

// Renderer prints the message log incrementally. A log that no longer
// extends what was printed (resync, disconnect) is printed again in full.
type Renderer struct {
	mu       sync.Mutex
	out      io.Writer
	colours  bool
	location *time.Location
	printed  []domain.ChatMessage
}

func NewRenderer(out io.Writer, colours bool) *Renderer {
	return &Renderer{out: out, colours: colours, location: time.Local}
}

func (r *Renderer) Render(messages []domain.ChatMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(messages) == 0 {
		r.printed = nil
		return
	}
	if !extends(messages, r.printed) {
		if len(r.printed) > 0 {
			_, _ = fmt.Fprintln(r.out, r.paint(dividerStyle, "── historique ──"))
		}
		r.printed = nil
	}
	for _, message := range messages[len(r.printed):] {
		_, _ = fmt.Fprintln(r.out, r.line(message))
	}
	r.printed = append([]domain.ChatMessage(nil), messages...)
}

func (r *Renderer) Status(state domain.SessionState) string {
	if !state.IsConnected() {
		return r.paint(systemStyle, "* déconnecté")
	}
	return r.paint(systemStyle, fmt.Sprintf("* connecté en tant que %s (%s)",
		state.Participant.DisplayName, state.Transport))
}

// Lost is printed when the session leaves Connected, typically after the
// live channel closed.
func (r *Renderer) Lost() string {
	return r.paint(errorStyle, "* connexion perdue, tapez /reconnect pour revenir")
}

func (r *Renderer) Error(err error) string {
	return r.paint(errorStyle, fmt.Sprintf("! %v", err))
}

func (r *Renderer) line(message domain.ChatMessage) string {
	clock := message.Timestamp
	if at, err := time.Parse(time.RFC3339Nano, message.Timestamp); err == nil {
		clock = at.In(r.location).Format("15:04")
	}
	if message.Kind == domain.KindSystem {
		return r.paint(systemStyle, fmt.Sprintf("[%s] * %s", clock, message.Body))
	}
	return fmt.Sprintf("[%s] %s: %s", clock, r.paint(authorStyle, message.Author), message.Body)
}

func (r *Renderer) paint(style color.Style, text string) string {
	if !r.colours {
		return text
	}
	return style.Render(text)
}

func extends(messages, prefix []domain.ChatMessage) bool {
	if len(prefix) > len(messages) {
		return false
	}
	for i := range prefix {
		if messages[i] != prefix[i] {
			return false
		}
	}
	return true
}
