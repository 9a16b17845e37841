package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/spoilerguard/internal/client"
	"github.com/raphaelgruber/spoilerguard/internal/service"
)

const pollInterval = time.Second

// Theme holds the color scheme for terminal output.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// jobPoller is the part of the API client the progress UI needs.
type jobPoller interface {
	GetJob(ctx context.Context, id string) (*service.Job, error)
}

var _ jobPoller = (*client.Client)(nil)

type pollMsg time.Time

type jobUpdateMsg struct {
	job *service.Job
	err error
}

// progressModel polls an index job and draws a bar over its episodes.
type progressModel struct {
	poller   jobPoller
	jobID    string
	job      *service.Job
	bar      progress.Model
	theme    Theme
	done     bool
	quitting bool
	err      error
}

func newProgressModel(p jobPoller, job *service.Job) progressModel {
	return progressModel{
		poller: p,
		jobID:  job.ID,
		job:    job,
		bar:    progress.New(progress.WithDefaultBlend(), progress.WithWidth(40)),
		theme:  defaultTheme,
	}
}

func (m progressModel) Init() tea.Cmd {
	return tea.Batch(schedulePoll(), m.bar.Init())
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		if k := msg.String(); k == "ctrl+c" || k == "q" {
			m.quitting = true
			return m, tea.Quit
		}

	case pollMsg:
		return m, m.poll()

	case jobUpdateMsg:
		if msg.err != nil {
			m.done, m.err = true, fmt.Errorf("poll job %s: %w", m.jobID, msg.err)
			return m, tea.Quit
		}
		m.job = msg.job
		if !m.job.Finished() {
			return m, schedulePoll()
		}
		m.done, m.err = true, jobError(m.job)
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.bar, cmd = m.bar.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	switch {
	case m.done:
		return m.finalView()
	case m.job == nil:
		return "waiting for job...\n"
	}

	var ratio float64
	if m.job.Total > 0 {
		ratio = float64(m.job.Progress) / float64(m.job.Total)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %d/%d episodes",
		m.theme.statusStyle().Render(string(m.job.Status)),
		m.bar.ViewAs(ratio), m.job.Progress, m.job.Total)
	if !m.job.StartedAt.IsZero() {
		fmt.Fprintf(&b, "  %s", time.Since(m.job.StartedAt).Truncate(time.Second))
	}
	b.WriteByte('\n')
	if n := len(m.job.Results); n > 0 {
		last := m.job.Results[n-1]
		fmt.Fprintf(&b, "last: %s (%d chunks)\n", last.EpisodeID, last.ChunksBuilt)
	}
	b.WriteString(m.theme.hintStyle().Render("q / ctrl+c detaches; indexing keeps running"))
	b.WriteByte('\n')
	return b.String()
}

func (m progressModel) finalView() string {
	if m.quitting {
		return m.theme.hintStyle().Render(fmt.Sprintf(
			"\ndetached from job %s, check it with: spoilerguard jobs %s\n", m.jobID, m.jobID))
	}
	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Indexing failed: %s\n", m.err))
	}
	done := m.theme.completedStyle().Render("✓ Completed")
	if m.job == nil {
		return done + "\n"
	}
	return done + "\n\n" + jobSummary(m.job, m.theme)
}

// jobSummary renders one row per indexed episode and the episode errors.
func jobSummary(job *service.Job, theme Theme) string {
	var b strings.Builder
	var lines, chunks int
	for _, r := range job.Results {
		lines += r.LinesIndexed
		chunks += r.ChunksBuilt
		fmt.Fprintf(&b, "  %-16s %5d lines  %4d chunks", r.EpisodeID, r.LinesIndexed, r.ChunksBuilt)
		if r.CacheWarmed {
			b.WriteString(" (cached)")
		}
		b.WriteByte('\n')
	}
	if len(job.Results) > 1 {
		fmt.Fprintf(&b, "  %-16s %5d lines  %4d chunks\n", "total", lines, chunks)
	}
	if len(job.Errors) == 0 {
		return b.String()
	}
	b.WriteString(theme.errorStyle().Render(fmt.Sprintf("\n%d episode(s) skipped:\n", len(job.Errors))))
	for _, e := range job.Errors {
		fmt.Fprintf(&b, "  • %s\n", e)
	}
	return b.String()
}

func jobError(job *service.Job) error {
	switch {
	case job.Status != service.JobStatusFailed:
		return nil
	case job.Error != "":
		return errors.New(job.Error)
	default:
		return errors.New("job failed with unknown error")
	}
}

// poll runs as a tea.Cmd so Update never blocks on the network.
func (m progressModel) poll() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		job, err := m.poller.GetJob(ctx, m.jobID)
		return jobUpdateMsg{job: job, err: err}
	}
}

func schedulePoll() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return pollMsg(t) })
}

// RunJobProgress follows job until it finishes. Off a terminal it polls
// quietly and prints the summary. Detaching with q or ctrl+c is not an error.
func RunJobProgress(p jobPoller, job *service.Job) error {
	if !isTerminal() {
		return waitJobPlain(context.Background(), p, job)
	}

	final, err := tea.NewProgram(newProgressModel(p, job)).Run()
	if err != nil {
		return fmt.Errorf("run progress ui: %w", err)
	}
	if m, ok := final.(progressModel); ok && !m.quitting {
		return m.err
	}
	return nil
}

func waitJobPlain(ctx context.Context, p jobPoller, job *service.Job) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for !job.Finished() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		next, err := p.GetJob(ctx, job.ID)
		if err != nil {
			return fmt.Errorf("poll job %s: %w", job.ID, err)
		}
		job = next
	}

	if err := jobError(job); err != nil {
		return err
	}
	fmt.Printf("Job %s %s\n", job.ID, job.Status)
	fmt.Print(jobSummary(job, defaultTheme))
	return nil
}
