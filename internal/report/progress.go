package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/feed2imap/internal/keys"
	"github.com/nhle/feed2imap/internal/sync"
	"github.com/nhle/feed2imap/internal/theme"
)

const (
	titleWidth = 20
	barWidth   = 40
)

// Messages delivered to the Bubble Tea program. Program.Send is safe to
// call from any goroutine, which makes Progress safe for concurrent use.
type (
	beginMsg struct{ url string }
	countMsg struct {
		url   string
		title string
		count int
	}
	entryMsg struct{ url string }
	endMsg   struct {
		url     string
		outcome sync.Outcome
	}
	doneMsg struct{}
)

type feedBar struct {
	title    string
	pos      int
	total    int
	counted  bool
	finished bool
	err      error
}

type progressModel struct {
	order []string
	feeds map[string]*feedBar
	bar   progress.Model

	// cancel is nil when the view does not read the keyboard.
	cancel     func()
	cancelling bool
	keys       *keys.KeyMap
	help       help.Model
}

func newProgressModel(cancel func()) progressModel {
	return progressModel{
		feeds:  make(map[string]*feedBar),
		cancel: cancel,
		keys:   keys.DefaultKeyMap(),
		help:   help.New(),
		bar: progress.New(
			progress.WithGradient(theme.GradientStart, theme.GradientEnd),
			progress.WithWidth(barWidth),
			progress.WithoutPercentage(),
		),
	}
}

func (m progressModel) Init() tea.Cmd {
	return nil
}

func (m progressModel) feed(url string) *feedBar {
	f, ok := m.feeds[url]
	if !ok {
		f = &feedBar{title: url}
		m.feeds[url] = f
	}
	return f
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.cancel != nil && !m.cancelling && key.Matches(msg, m.keys.Cancel) {
			m.cancelling = true
			m.cancel()
		}
	case beginMsg:
		if _, ok := m.feeds[msg.url]; !ok {
			m.order = append(m.order, msg.url)
		}
		m.feed(msg.url)
	case countMsg:
		f := m.feed(msg.url)
		f.title = msg.title
		f.total = msg.count
		f.counted = true
	case entryMsg:
		m.feed(msg.url).pos++
	case endMsg:
		f := m.feed(msg.url)
		f.finished = true
		f.err = msg.outcome.Err
	case doneMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m progressModel) View() string {
	var b strings.Builder
	for _, url := range m.order {
		f := m.feeds[url]
		b.WriteString(m.renderFeed(f))
		b.WriteString("\n")
	}
	switch {
	case m.cancelling:
		b.WriteString(theme.DimmedStyle.Render("cancelling, waiting for feeds in flight"))
		b.WriteString("\n")
	case m.cancel != nil:
		b.WriteString(m.help.View(m.keys))
		b.WriteString("\n")
	}
	return b.String()
}

func (m progressModel) renderFeed(f *feedBar) string {
	// Inline stops Width from wrapping long or wide titles onto a second line.
	title := theme.FeedTitleStyle.
		Inline(true).
		Width(titleWidth).
		MaxWidth(titleWidth).
		Render(f.title)

	pct := 0.0
	switch {
	case f.total > 0:
		pct = float64(f.pos) / float64(f.total)
	case f.finished && f.err == nil:
		pct = 1
	}

	counter := theme.CounterStyle.Render(fmt.Sprintf("[%d / %d]", f.pos, f.total))

	var status string
	switch {
	case f.err != nil:
		status = theme.ErrorStyle.Inline(true).Render(f.err.Error())
	case f.finished:
		status = theme.SuccessStyle.Render("done")
	case !f.counted:
		status = theme.PendingStyle.Render("fetching")
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, title, " ", m.bar.ViewAs(pct), " ", counter, " ", status)
}

// Progress draws one progress bar per feed.
type Progress struct {
	program *tea.Program
	done    chan error
}

// NewProgress starts rendering to w. Close must be called to stop it.
//
// When cancel is non-nil the view reads the keyboard and calls cancel on
// the cancel binding. The terminal is in raw mode then, so ctrl+c arrives
// as a key rather than a signal.
func NewProgress(w io.Writer, cancel func()) *Progress {
	opts := []tea.ProgramOption{
		tea.WithOutput(w),
		tea.WithoutSignalHandler(),
	}
	if cancel == nil {
		opts = append(opts, tea.WithInput(nil))
	}
	p := &Progress{
		program: tea.NewProgram(newProgressModel(cancel), opts...),
		done:    make(chan error, 1),
	}
	go func() {
		_, err := p.program.Run()
		p.done <- err
	}()
	return p
}

// OnBegin adds a bar for url.
func (p *Progress) OnBegin(url string) {
	p.program.Send(beginMsg{url: url})
}

// OnEntriesCount titles and sizes the bar of url.
func (p *Progress) OnEntriesCount(url, title string, count int) {
	p.program.Send(countMsg{url: url, title: title, count: count})
}

// OnEntry advances the bar of url.
func (p *Progress) OnEntry(url string) {
	p.program.Send(entryMsg{url: url})
}

// OnEnd marks the bar of url done or failed.
func (p *Progress) OnEnd(url string, outcome sync.Outcome) {
	p.program.Send(endMsg{url: url, outcome: outcome})
}

// Close renders the final state and waits for the program to exit.
func (p *Progress) Close() error {
	p.program.Send(doneMsg{})
	if err := <-p.done; err != nil {
		return fmt.Errorf("rendering progress: %w", err)
	}
	return nil
}
