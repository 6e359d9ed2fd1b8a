// Package ui renders the progress of a batch check as a Bubble Tea program.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"shaderlab/internal/checkpipeline"
)

// docState is where one document is in the check.
type docState uint8

const (
	docQueued docState = iota
	docWorking
	docPassed
	docFailed
)

func (s docState) finished() bool { return s == docPassed || s == docFailed }

// document is one row of the view.
type document struct {
	path    string
	state   docState
	stage   checkpipeline.Stage
	elapsed time.Duration
	reason  string // first line of the failure
}

// label is the status column: the running stage, or the outcome.
func (d document) label() string {
	switch d.state {
	case docWorking:
		return stageVerb[d.stage]
	case docPassed:
		if d.stage == checkpipeline.StageCache {
			return "cached"
		}
		return "ok"
	case docFailed:
		if d.stage == checkpipeline.StageLoad {
			return "unreadable"
		}
		return string(d.stage) + " failed"
	}
	return "queued"
}

// weight estimates how much of a document's work is done.
func (d document) weight() float64 {
	if d.state.finished() {
		return 1
	}
	if d.state == docWorking {
		return stageWeight[d.stage]
	}
	return 0
}

var (
	stageVerb = map[checkpipeline.Stage]string{
		checkpipeline.StageLoad:    "loading",
		checkpipeline.StageCompile: "compiling",
		checkpipeline.StageLink:    "linking",
		checkpipeline.StageCache:   "cache",
	}
	stageWeight = map[checkpipeline.Stage]float64{
		checkpipeline.StageLoad:    0.1,
		checkpipeline.StageCompile: 0.3,
		checkpipeline.StageLink:    0.8,
		checkpipeline.StageCache:   0.9,
	}

	headerStyle  = lipgloss.NewStyle().Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	workingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

type progressModel struct {
	title   string
	events  <-chan checkpipeline.Event
	spinner spinner.Model
	bar     progress.Model
	docs    []document
	byPath  map[string]int
	started time.Time
	width   int
	done    bool
}

type eventMsg checkpipeline.Event
type doneMsg struct{}

// NewProgressModel returns a model that follows events until the channel is
// closed, then quits. files are the display paths Run reports events for.
func NewProgressModel(title string, files []string, events <-chan checkpipeline.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = workingStyle

	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = 60

	docs := make([]document, len(files))
	byPath := make(map[string]int, len(files))
	for i, f := range files {
		docs[i] = document{path: f}
		byPath[f] = i
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		bar:     bar,
		docs:    docs,
		byPath:  byPath,
		started: time.Now(),
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.next())
}

func (m *progressModel) next() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		return m, tea.Batch(m.apply(checkpipeline.Event(msg)), m.next())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		// quitting early cancels the running check
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.bar.Width = max(msg.Width-4, 10)
		}
	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd
	}
	return m, nil
}

// apply records ev and returns the bar animation for the new total.
func (m *progressModel) apply(ev checkpipeline.Event) tea.Cmd {
	i, ok := m.byPath[ev.File]
	if !ok {
		return nil
	}
	d := &m.docs[i]
	d.stage = ev.Stage
	d.elapsed = ev.Elapsed
	switch ev.Status {
	case checkpipeline.StatusQueued:
		d.state = docQueued
	case checkpipeline.StatusWorking:
		d.state = docWorking
	case checkpipeline.StatusDone:
		d.state = docPassed
	case checkpipeline.StatusError:
		d.state = docFailed
		if ev.Err != nil {
			d.reason, _, _ = strings.Cut(ev.Err.Error(), "\n")
		}
	}
	return m.bar.SetPercent(m.fraction())
}

func (m *progressModel) fraction() float64 {
	if len(m.docs) == 0 {
		return 1
	}
	var sum float64
	for _, d := range m.docs {
		sum += d.weight()
	}
	return sum / float64(len(m.docs))
}

func (m *progressModel) counts() (finished, failed, cached int) {
	for _, d := range m.docs {
		if !d.state.finished() {
			continue
		}
		finished++
		if d.state == docFailed {
			failed++
		} else if d.stage == checkpipeline.StageCache {
			cached++
		}
	}
	return finished, failed, cached
}

func (m *progressModel) View() string {
	if len(m.docs) == 0 {
		return ""
	}
	var b strings.Builder
	if m.done {
		b.WriteString(headerStyle.Render(m.title))
		b.WriteString(dimStyle.Render(fmt.Sprintf(" in %s", time.Since(m.started).Round(time.Millisecond))))
	} else {
		b.WriteString(m.spinner.View() + " " + headerStyle.Render(m.title))
	}
	b.WriteString("\n\n")

	const statusWidth = 14
	nameWidth := max(m.width-statusWidth-16, 20)
	for _, d := range m.docs {
		status := fmt.Sprintf("%*s", statusWidth, d.label())
		switch {
		case d.state == docFailed:
			status = failStyle.Render(status)
		case d.state == docPassed:
			status = okStyle.Render(status)
		case d.state == docWorking:
			status = workingStyle.Render(status)
		default:
			status = dimStyle.Render(status)
		}
		line := fmt.Sprintf("  %s  %s", status, truncate(d.path, nameWidth))
		if d.state.finished() && d.elapsed > 0 {
			line += dimStyle.Render(fmt.Sprintf("  %.1fms", float64(d.elapsed)/float64(time.Millisecond)))
		}
		b.WriteString(line + "\n")
		if d.state == docFailed && d.reason != "" {
			b.WriteString(dimStyle.Render("  "+strings.Repeat(" ", statusWidth)+"  "+truncate(d.reason, nameWidth)) + "\n")
		}
	}

	finished, failed, cached := m.counts()
	summary := fmt.Sprintf("  %d/%d checked", finished, len(m.docs))
	if cached > 0 {
		summary += fmt.Sprintf(", %d cached", cached)
	}
	if failed > 0 {
		summary += ", " + failStyle.Render(fmt.Sprintf("%d failed", failed))
	}
	b.WriteString("\n" + summary + "\n")
	if m.done {
		b.WriteString(m.bar.ViewAs(1))
	} else {
		b.WriteString(m.bar.View())
	}
	b.WriteString("\n")
	return b.String()
}

// truncate shortens value to width terminal columns, marking the cut with "...".
func truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
