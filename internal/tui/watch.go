// Package tui renders the live status watch for cairn.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cairnhq/cairn/internal/registry"
	"github.com/cairnhq/cairn/internal/state"
	"github.com/cairnhq/cairn/pkg/models"
)

// defaultRefresh is how often the watch re-reads the registry unless
// WithRefresh overrides it.
const defaultRefresh = 2 * time.Second

// tickMsg asks the model to refresh its listing.
type tickMsg time.Time

// listingMsg delivers a fresh registry listing with the latest run per
// vision.
type listingMsg struct {
	entries []registry.Entry
	runs    map[string]state.Run
	err     error
}

// Watch is the bubbletea model behind `cairn status --watch`. It lists
// the registered visions with completion bars and refreshes on a tick.
type Watch struct {
	registry *registry.Registry
	// audit is optional; without it the stage column shows a dash.
	audit    state.RunStore
	interval time.Duration

	entries  []registry.Entry
	runs     map[string]state.Run
	err      error
	width    int
	quitting bool

	sp spinner.Model

	titleStyle    lipgloss.Style
	headerStyle   lipgloss.Style
	rowStyle      lipgloss.Style
	errStyle      lipgloss.Style
	footerStyle   lipgloss.Style
	barFillStyle  lipgloss.Style
	barEmptyStyle lipgloss.Style
	statusDone    lipgloss.Style
	statusActive  lipgloss.Style
	statusBlocked lipgloss.Style
	statusIdle    lipgloss.Style
}

// NewWatch creates a Watch over the given registry. audit may be nil.
func NewWatch(reg *registry.Registry, audit state.RunStore) *Watch {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &Watch{
		registry: reg,
		audit:    audit,
		interval: defaultRefresh,
		runs:     make(map[string]state.Run),
		sp:       sp,

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")),

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("7")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("240")),

		rowStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),

		errStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),

		footerStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		barFillStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")), // Green

		barEmptyStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")), // Dark gray

		statusDone: lipgloss.NewStyle().
			Foreground(lipgloss.Color("28")), // Dark green

		statusActive: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")), // Green

		statusBlocked: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")), // Red

		statusIdle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")), // Gray
	}
}

// WithRefresh overrides the refresh interval. Non-positive durations
// keep the default.
func (w *Watch) WithRefresh(d time.Duration) *Watch {
	if d > 0 {
		w.interval = d
	}
	return w
}

// Init implements tea.Model.
func (w *Watch) Init() tea.Cmd {
	return tea.Batch(w.sp.Tick, w.refresh(), w.tick())
}

// Update implements tea.Model.
func (w *Watch) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			w.quitting = true
			return w, tea.Quit
		case "r":
			return w, w.refresh()
		}

	case tea.WindowSizeMsg:
		w.width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		w.sp, cmd = w.sp.Update(msg)
		return w, cmd

	case tickMsg:
		return w, tea.Batch(w.refresh(), w.tick())

	case listingMsg:
		w.entries = msg.entries
		w.runs = msg.runs
		w.err = msg.err
	}

	return w, nil
}

// View implements tea.Model.
func (w *Watch) View() string {
	if w.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(w.sp.View())
	b.WriteString(w.titleStyle.Render(fmt.Sprintf(" cairn status - %d vision(s)", len(w.entries))))
	b.WriteString("\n\n")

	if w.err != nil {
		b.WriteString(w.errStyle.Render("read registry: " + w.err.Error()))
		b.WriteString("\n")
		return b.String()
	}
	if len(w.entries) == 0 {
		b.WriteString(w.rowStyle.Render("No visions registered. Run `cairn plan` to create one."))
		b.WriteString("\n")
		return b.String()
	}

	colIcon := 4
	colSlug := 24
	colType := 9
	colBar := barWidth + 6
	colStage := 15

	header := fmt.Sprintf("%-*s %-*s %-*s %-*s %-*s %s",
		colIcon, "STS",
		colSlug, "VISION",
		colType, "PLAN",
		colBar, "PROGRESS",
		colStage, "STAGE",
		"UPDATED",
	)
	b.WriteString(w.headerStyle.Render(header))
	b.WriteString("\n")

	for _, entry := range w.entries {
		b.WriteString(w.renderRow(entry, colIcon, colSlug, colType, colBar, colStage))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(w.footerStyle.Render("[r] refresh  [q] quit"))
	return b.String()
}

// renderRow renders one registry entry.
func (w *Watch) renderRow(entry registry.Entry, colIcon, colSlug, colType, colBar, colStage int) string {
	icon := w.statusIcon(entry.Status)
	bar := fmt.Sprintf("%s %3.0f%%", w.completionBar(entry.CompletionPercentage), entry.CompletionPercentage)

	stage := "-"
	if run, ok := w.runs[entry.Slug]; ok {
		stage = string(run.Stage)
		if run.Status == state.RunActive {
			stage += " (active)"
		}
	}

	return w.rowStyle.Render(fmt.Sprintf("%-*s %-*s %-*s %-*s %-*s %s",
		colIcon, icon,
		colSlug, truncate(entry.Slug, colSlug-1),
		colType, string(entry.PlanType),
		colBar, bar,
		colStage, truncate(stage, colStage-1),
		formatAgo(time.Since(entry.Updated)),
	))
}

// statusIcon maps a node status onto its colored icon.
func (w *Watch) statusIcon(status models.NodeStatus) string {
	switch status {
	case models.NodeStatusCompleted:
		return w.statusDone.Render(iconDone)
	case models.NodeStatusInProgress:
		return w.statusActive.Render(iconRunning)
	case models.NodeStatusBlocked, models.NodeStatusFailed:
		return w.statusBlocked.Render(iconFailed)
	case models.NodeStatusPlanning:
		return w.statusIdle.Render(iconWaiting)
	default:
		return w.statusIdle.Render(iconPending)
	}
}

// completionBar renders a fixed-width bar for a percentage.
func (w *Watch) completionBar(pct float64) string {
	filled := int(pct / 100 * float64(barWidth))
	if filled < 0 {
		filled = 0
	}
	if filled > barWidth {
		filled = barWidth
	}
	return w.barFillStyle.Render(strings.Repeat("█", filled)) +
		w.barEmptyStyle.Render(strings.Repeat("░", barWidth-filled))
}

// refresh reads the registry and the latest run per vision.
func (w *Watch) refresh() tea.Cmd {
	return func() tea.Msg {
		entries, err := w.registry.List()
		if err != nil {
			return listingMsg{err: err}
		}
		runs := make(map[string]state.Run, len(entries))
		if w.audit != nil {
			for _, entry := range entries {
				latest, err := w.audit.ListRuns(entry.Slug, 1)
				if err != nil || len(latest) == 0 {
					continue
				}
				runs[entry.Slug] = latest[0]
			}
		}
		return listingMsg{entries: entries, runs: runs}
	}
}

// tick schedules the next refresh.
func (w *Watch) tick() tea.Cmd {
	return tea.Tick(w.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
