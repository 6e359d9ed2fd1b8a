// Package editor is the terminal front end of the hot-reload loop: a text
// area holding the user fragment, a diagnostics panel and a status bar.
//
// Model implements both reload.Editor and diag.Publisher, so the coordinator
// it owns reads from and reports into the same Bubble Tea model.
package editor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"shaderlab/internal/diag"
	"shaderlab/internal/highlight"
	"shaderlab/internal/reload"
	"shaderlab/internal/render"
	"shaderlab/internal/template"
)

// Options configures the editor.
type Options struct {
	Title string
	// PollInterval is how often external changes are checked.
	PollInterval time.Duration
	// PanelLines bounds the diagnostics panel height.
	PanelLines int
	Highlight  highlight.LineColorer
}

// Model is the Bubble Tea model of the editor.
type Model struct {
	ctx   context.Context
	opts  Options
	coord *reload.Coordinator

	area     textarea.Model
	diags    diag.Set
	playback *render.Playback
	last     reload.Outcome
	message  string
	lastTick time.Time
	width    int
	quitting bool
}

type tickMsg time.Time

// New wires a coordinator to a fresh model and performs the initial load.
// ro.Editor, ro.Publisher and ro.Playback are replaced by the model.
func New(ctx context.Context, ro reload.Options, opts Options) (*Model, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 250 * time.Millisecond
	}
	if opts.PanelLines <= 0 {
		opts.PanelLines = 6
	}
	if opts.Highlight == nil {
		opts.Highlight = highlight.Plain{}
	}

	area := textarea.New()
	area.ShowLineNumbers = true
	area.CharLimit = 0
	area.MaxHeight = 0
	area.Prompt = ""
	area.Focus()

	m := &Model{
		ctx:      ctx,
		opts:     opts,
		area:     area,
		playback: &render.Playback{},
		width:    80,
	}
	ro.Editor = m
	ro.Publisher = m
	ro.Playback = m.playback

	coord, err := reload.New(ro)
	if err != nil {
		return nil, err
	}
	m.coord = coord
	out, err := coord.Start(ctx)
	if err != nil {
		return nil, err
	}
	m.record(out)
	return m, nil
}

// Text implements reload.Editor.
func (m *Model) Text() template.Fragment { return template.Fragment(m.area.Value()) }

// SetText implements reload.Editor.
func (m *Model) SetText(f template.Fragment) {
	m.area.SetValue(string(f))
	m.area.CursorStart()
}

// Publish implements diag.Publisher.
func (m *Model) Publish(s diag.Set) { m.diags = s.Clone() }

// Clear implements diag.Publisher.
func (m *Model) Clear() { m.diags = nil }

// Coordinator exposes the reload coordinator, e.g. to read the active program.
func (m *Model) Coordinator() *reload.Coordinator { return m.coord }

// Diagnostics returns what the panel currently shows.
func (m *Model) Diagnostics() diag.Set { return m.diags }

// Playback returns the shader clock.
func (m *Model) Playback() *render.Playback { return m.playback }

// Close releases the coordinator's handles.
func (m *Model) Close() { m.coord.Close() }

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.tick())
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.opts.PollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "ctrl+s":
			if err := m.coord.Save(m.ctx); err != nil {
				m.message = "save failed: " + err.Error()
			} else {
				m.message = "saved"
			}
			return m, nil
		case "ctrl+r":
			m.coord.RequestCompile()
			m.runTick()
			return m, nil
		case "ctrl+p":
			m.playback.Toggle()
			return m, nil
		case "ctrl+t":
			m.playback.Reset()
			return m, nil
		}
	case tickMsg:
		now := time.Time(msg)
		if !m.lastTick.IsZero() {
			m.playback.Advance(now.Sub(m.lastTick).Seconds())
		}
		m.lastTick = now
		m.runTick()
		return m, m.tick()
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.area.SetWidth(msg.Width)
		if h := msg.Height - m.opts.PanelLines - 4; h > 3 {
			m.area.SetHeight(h)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.area, cmd = m.area.Update(msg)
	return m, cmd
}

// runTick lets the coordinator handle a pending trigger.
func (m *Model) runTick() {
	out, ran, err := m.coord.Tick(m.ctx)
	if !ran {
		return
	}
	m.record(out)
	if err != nil {
		m.message = err.Error()
	}
}

func (m *Model) record(out reload.Outcome) {
	m.last = out
	switch {
	case out.OK() && out.Unsaved:
		m.message = fmt.Sprintf("%s reload: file has no user region, default shown (ctrl+s overwrites the file)", out.Trigger)
	case out.OK() && out.Fallback:
		m.message = fmt.Sprintf("%s reload: no user region, default fragment loaded", out.Trigger)
	case out.OK():
		m.message = fmt.Sprintf("%s reload: linked", out.Trigger)
	case out.Err != nil:
		m.message = fmt.Sprintf("%s reload: %s failed", out.Trigger, out.Failure)
	}
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	panelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	statusStyle = lipgloss.NewStyle().Reverse(true)
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	if m.opts.Title != "" {
		b.WriteString(titleStyle.Render(m.opts.Title))
		b.WriteString("\n")
	}
	b.WriteString(m.area.View())
	b.WriteString("\n")
	b.WriteString(m.panel())
	b.WriteString(m.statusBar())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("ctrl+r compile · ctrl+s save · ctrl+p play/pause · ctrl+t restart · esc quit"))
	return b.String()
}

// panel lists diagnostics by line, the offending source line under each.
func (m *Model) panel() string {
	if m.diags.Len() == 0 {
		if m.last.OK() {
			return okStyle.Render("no diagnostics") + "\n"
		}
		return "\n"
	}
	source := strings.Split(string(m.Text()), "\n")
	var lines []string
	for _, e := range m.diags.Entries() {
		style := errStyle
		if e.Severity == diag.SevWarning {
			style = warnStyle
		}
		where := "template"
		if e.Line > 0 {
			where = fmt.Sprintf("line %d", e.Line)
		}
		lines = append(lines, style.Render(where+": ")+runewidth.Truncate(e.Message, max(m.width-len(where)-2, 10), "…"))
		if e.Line > 0 && e.Line <= len(source) {
			lines = append(lines, "    "+m.opts.Highlight.Line(strings.TrimSpace(source[e.Line-1])))
		}
	}
	if len(lines) > m.opts.PanelLines {
		hidden := len(lines) - m.opts.PanelLines + 1
		lines = append(lines[:m.opts.PanelLines-1], fmt.Sprintf("… %d more lines", hidden))
	}
	return panelStyle.Render(strings.Join(lines, "\n")) + "\n"
}

func (m *Model) statusBar() string {
	gen := uint64(0)
	if p := m.coord.Active(); p != nil {
		gen = p.Generation
	}
	parts := []string{
		fmt.Sprintf(" %s %.1fs", m.playback.State(), m.playback.Time),
		fmt.Sprintf("program #%d", gen),
	}
	if n := m.diags.Count(diag.SevError); n > 0 {
		parts = append(parts, fmt.Sprintf("%d errors", n))
	}
	if m.message != "" {
		parts = append(parts, m.message)
	}
	bar := strings.Join(parts, " · ")
	if pad := m.width - runewidth.StringWidth(bar); pad > 0 {
		bar += strings.Repeat(" ", pad)
	}
	return statusStyle.Render(bar)
}
