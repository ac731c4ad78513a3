package terminal

import (
	"fmt"
	"io"
	"sync"

	"github.com/gookit/color"

	"github.com/rickgao/relay-chat/internal/chat"
	"github.com/rickgao/relay-chat/internal/connection"
)

// Line styles.
var (
	styleOwn       = color.New(color.FgCyan, color.OpBold)
	styleRemote    = color.New(color.FgGreen)
	styleClock     = color.New(color.FgGray)
	styleConnected = color.New(color.BgBlack, color.FgGreen)
	styleDegraded  = color.New(color.BgBlack, color.FgYellow)
	styleDown      = color.New(color.BgBlack, color.FgRed)
	styleError     = color.New(color.FgRed)
)

// Options configures a Presenter.
type Options struct {
	Colours bool // Apply ANSI styles
}

// Presenter writes manager events to an output stream.
type Presenter struct {
	out  io.Writer
	opts Options

	mu     sync.Mutex
	status connection.State
	lines  int
}

var _ connection.Listener = (*Presenter)(nil)

// NewPresenter creates a Presenter writing to out.
func NewPresenter(out io.Writer, opts Options) *Presenter {
	return &Presenter{
		out:    out,
		opts:   opts,
		status: connection.Idle(),
	}
}

// OnStatusChange prints the connection indicator.
func (p *Presenter) OnStatusChange(state connection.State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = state
	p.println(p.render(statusStyle(state), "* "+state.Status()))
}

// OnMessage prints one chat line: time, sender and text.
func (p *Presenter) OnMessage(msg chat.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sender := msg.Sender.String()
	style := styleRemote
	if msg.IsOwn() {
		sender += " (you)"
		style = styleOwn
	}

	p.println(fmt.Sprintf("%s %s: %s",
		p.render(styleClock, "["+msg.Clock()+"]"),
		p.render(style, sender),
		msg.Text,
	))
}

// OnConnectionError prints a non-fatal error.
func (p *Presenter) OnConnectionError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.println(p.render(styleError, "! "+message))
}

// Status returns the last state shown.
func (p *Presenter) Status() connection.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Lines returns the number of lines written.
func (p *Presenter) Lines() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lines
}

func (p *Presenter) render(style color.Style, text string) string {
	if !p.opts.Colours {
		return text
	}
	return style.Render(text)
}

// println writes one line. Write errors are ignored; there is nowhere
// better to report them.
func (p *Presenter) println(line string) {
	fmt.Fprintln(p.out, line)
	p.lines++
}

func statusStyle(state connection.State) color.Style {
	switch state.Kind {
	case connection.KindOpen:
		return styleConnected
	case connection.KindConnecting, connection.KindReconnecting:
		return styleDegraded
	default:
		return styleDown
	}
}
