// Package progressbar renders run progress as a bubbletea progress bar.
//
// The orchestrator only touches atomic counters through Add; the bubbletea
// program polls them on a tick, so a slow or broken terminal never stalls
// completion handling.
package progressbar

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Iron-Ham/orchard/internal/errors"
	"github.com/Iron-Ham/orchard/internal/tui/styles"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
)

// refreshInterval is how often the bar re-reads the counters.
const refreshInterval = 100 * time.Millisecond

// defaultWidth is the bar width in columns.
const defaultWidth = 40

// Bar is a progress.Indicator backed by a bubbletea program.
type Bar struct {
	out   io.Writer
	label string

	total atomic.Int64
	done  atomic.Int64

	mu      sync.Mutex
	program *tea.Program
	exited  chan struct{}
	runErr  error
}

// New creates a Bar that renders to out.
func New(out io.Writer, label string) *Bar {
	return &Bar{out: out, label: label}
}

// Start launches the bubbletea program.
func (b *Bar) Start(total int) {
	b.total.Store(int64(total))
	b.done.Store(0)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.program != nil {
		return
	}

	b.program = tea.NewProgram(
		newModel(b, defaultWidth),
		tea.WithOutput(b.out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	b.exited = make(chan struct{})

	go func(p *tea.Program, exited chan struct{}) {
		defer close(exited)
		if _, err := p.Run(); err != nil {
			b.mu.Lock()
			b.runErr = err
			b.mu.Unlock()
		}
	}(b.program, b.exited)
}

// Add advances the bar. It never blocks.
func (b *Bar) Add(n int) { b.done.Add(int64(n)) }

// Finish renders the final state and waits for the program to exit.
func (b *Bar) Finish(success bool) error {
	b.mu.Lock()
	p, exited := b.program, b.exited
	b.mu.Unlock()
	if p == nil {
		return nil
	}

	p.Send(finishMsg{success: success})
	<-exited

	b.mu.Lock()
	defer b.mu.Unlock()
	b.program = nil
	if b.runErr != nil {
		return fmt.Errorf("%w: %v", errors.ErrIndicatorFailed, b.runErr)
	}
	return nil
}

func (b *Bar) snapshot() (done, total int64) {
	return b.done.Load(), b.total.Load()
}

type tickMsg time.Time

type finishMsg struct{ success bool }

// model is the bubbletea model for one run.
type model struct {
	src      *Bar
	bar      progress.Model
	done     int64
	total    int64
	finished bool
	success  bool
}

func newModel(src *Bar, width int) model {
	return model{
		src: src,
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(width)),
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Init() tea.Cmd { return tick() }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.done, m.total = m.src.snapshot()
		return m, tick()
	case finishMsg:
		m.done, m.total = m.src.snapshot()
		m.finished = true
		m.success = msg.success
		return m, tea.Quit
	}
	return m, nil
}

func (m model) percent() float64 {
	if m.total <= 0 {
		return 1
	}
	return min(1, float64(m.done)/float64(m.total))
}

func (m model) View() string {
	label := styles.Label.Render(m.src.label)
	counts := styles.Muted.Render(fmt.Sprintf("%d/%d", m.done, m.total))
	line := fmt.Sprintf("%s %s %s", label, m.bar.ViewAs(m.percent()), counts)

	if m.finished {
		status := styles.Success.Render("done")
		if !m.success {
			status = styles.Failure.Render("aborted")
		}
		return line + " " + status + "\n"
	}
	return line
}
