package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/fm3/pkg/layout"
)

// maxProgressRows bounds the components shown at once; the rest are summarized.
const maxProgressRows = 8

// =============================================================================
// ProgressModel - Live layout progress
// =============================================================================

// levelMsg reports one finished level of one component.
type levelMsg layout.Event

// doneMsg ends the progress view.
type doneMsg struct{ err error }

// ProgressModel is the bubbletea model behind `layout --progress`. It shows
// the most recently finished level of each component that is still active.
type ProgressModel struct {
	Title      string
	Components int
	Latest     map[int]layout.Event
	Finished   map[int]bool
	Levels     int
	Iterations int
	Err        error
	Done       bool
	start      time.Time
}

// NewProgressModel creates an empty progress view.
func NewProgressModel(title string) ProgressModel {
	return ProgressModel{
		Title:    title,
		Latest:   make(map[int]layout.Event),
		Finished: make(map[int]bool),
		start:    time.Now(),
	}
}

func (m ProgressModel) Init() tea.Cmd {
	return nil
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case levelMsg:
		ev := layout.Event(msg)
		m.Components = ev.Components
		m.Latest[ev.Component] = ev
		m.Levels++
		m.Iterations += ev.Stats.Iterations
		if ev.Level == 0 {
			m.Finished[ev.Component] = true
		}
	case doneMsg:
		m.Done = true
		m.Err = msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.Err = context.Canceled
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m ProgressModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(m.Title))
	b.WriteString("\n")
	b.WriteString(StyleDim.Render(fmt.Sprintf("%d/%d components · %d levels · %d iterations · %s",
		len(m.Finished), m.Components, m.Levels, m.Iterations,
		time.Since(m.start).Round(100*time.Millisecond))))
	b.WriteString("\n")

	active := m.active()
	if len(active) == 0 {
		return b.String()
	}

	rows := make([][]string, 0, len(active))
	for _, c := range active {
		ev := m.Latest[c]
		rows = append(rows, []string{
			strconv.Itoa(c),
			fmt.Sprintf("%d/%d", ev.Level, ev.Depth),
			strconv.Itoa(ev.Stats.Vertices),
			strconv.Itoa(ev.Stats.Iterations),
			strconv.FormatFloat(ev.Stats.AverageForce, 'g', 4, 64),
		})
	}
	b.WriteString(newTable("#", "Level", "Vertices", "Iterations", "Avg force").Rows(rows...).Render())
	b.WriteString("\n")
	if hidden := m.Components - len(m.Finished) - len(active); hidden > 0 {
		b.WriteString(StyleDim.Render(fmt.Sprintf("  … %d more", hidden)))
		b.WriteString("\n")
	}
	return b.String()
}

// active returns the unfinished components that have reported a level,
// lowest index first, capped at maxProgressRows.
func (m ProgressModel) active() []int {
	var out []int
	for c := range m.Latest {
		if !m.Finished[c] {
			out = append(out, c)
		}
	}
	sort.Ints(out)
	if len(out) > maxProgressRows {
		out = out[:maxProgressRows]
	}
	return out
}

// =============================================================================
// Running
// =============================================================================

// runWithProgress runs fn while a live progress view is drawn on w. fn
// receives the callback to install as layout.Options.Progress.
func runWithProgress(ctx context.Context, w io.Writer, title string, fn func(progress func(layout.Event)) error) error {
	p := tea.NewProgram(NewProgressModel(title),
		tea.WithContext(ctx),
		tea.WithOutput(w),
		tea.WithInput(nil),
	)

	errc := make(chan error, 1)
	go func() {
		err := fn(func(ev layout.Event) { p.Send(levelMsg(ev)) })
		errc <- err
		p.Send(doneMsg{err: err})
	}()

	final, runErr := p.Run()
	err := <-errc
	if err != nil {
		return err
	}
	if m, ok := final.(ProgressModel); ok && m.Err != nil {
		return m.Err
	}
	if runErr != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}
