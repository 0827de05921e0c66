package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chkdhq/chkd/internal/engine"
	"github.com/chkdhq/chkd/models"
	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// repoRow pairs a tracked repository with its live item progress and
// active worker count.
type repoRow struct {
	repo     models.Repository
	progress models.Progress
	workers  int
}

// DashboardModel shows tracked repositories: item progress and active
// worker counts.
type DashboardModel struct {
	eng      *engine.Engine
	rows     []repoRow
	width    int
	height   int
	lastLoad time.Time
	loading  bool
}

// dashLoadedMsg carries a freshly loaded repository overview.
type dashLoadedMsg struct{ rows []repoRow }

// NewDashboardModel creates a DashboardModel.
func NewDashboardModel(eng *engine.Engine) DashboardModel {
	return DashboardModel{eng: eng, loading: true}
}

func (d DashboardModel) Init() tea.Cmd {
	return d.loadCmd()
}

func (d DashboardModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		repos, _ := d.eng.ListRepositories(ctx)

		rows := make([]repoRow, 0, len(repos))
		for _, repo := range repos {
			progress, _ := d.eng.Items.Progress(ctx, repo.ID, "")
			active, _ := d.eng.Workers.ByRepo(ctx, repo.ID)
			count := 0
			for _, w := range active {
				if !w.Status.Terminal() {
					count++
				}
			}
			rows = append(rows, repoRow{repo: repo, progress: progress, workers: count})
		}
		return dashLoadedMsg{rows: rows}
	}
}

func (d DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dashLoadedMsg:
		d.rows = msg.rows
		d.loading = false
		d.lastLoad = time.Now()
		return d, tea.Tick(10*time.Second, func(t time.Time) tea.Msg {
			return d.loadCmd()()
		})
	case tea.KeyMsg:
		if msg.String() == "r" {
			d.loading = true
			return d, d.loadCmd()
		}
	}
	return d, nil
}

func (d *DashboardModel) SetSize(w, h int) {
	d.width = w
	d.height = h
}

func (d DashboardModel) View() string {
	if d.loading && len(d.rows) == 0 {
		return panelStyle.Width(max(20, d.width-2)).Render("Loading repositories...")
	}

	var totalWorkers, totalDone, totalItems int
	for _, r := range d.rows {
		totalWorkers += r.workers
		totalDone += r.progress.Done
		totalItems += r.progress.Total
	}

	cardW := 18
	if d.width >= 100 {
		cardW = 20
	}
	summary := lipgloss.JoinHorizontal(lipgloss.Top,
		renderCounter("Repos", len(d.rows), okStyle, cardW),
		renderCounter("Active workers", totalWorkers, highStyle, cardW),
		renderCounter("Items done", totalDone, mediumStyle, cardW),
		renderCounter("Items total", totalItems, lowStyle, cardW),
	)

	lineLimit := d.height - 12
	if lineLimit < 5 {
		lineLimit = 5
	}
	rows := ""
	for i, r := range d.rows {
		if i >= lineLimit {
			break
		}
		status := "enabled"
		statusFmt := lipgloss.NewStyle().Foreground(bgDark).Background(green).Padding(0, 1).Render(status)
		if !r.repo.Enabled {
			status = "disabled"
			statusFmt = mutedBadgeStyle.Render(status)
		}
		name := truncate(r.repo.DisplayName, 34)
		branch := truncate(r.repo.DefaultBranch, 12)
		counts := fmt.Sprintf("%d/%d done  workers:%d", r.progress.Done, r.progress.Total, r.workers)
		line := lipgloss.JoinHorizontal(lipgloss.Left,
			lipgloss.NewStyle().Width(36).Foreground(ink).Render(name),
			lipgloss.NewStyle().Width(14).Foreground(slate).Render(branch),
			lipgloss.NewStyle().Width(14).Render(statusFmt),
			dimStyle.Render(counts),
		)
		rows += line + "\n"
	}

	if len(d.rows) == 0 {
		rows = dimStyle.Render("No repositories tracked. Run: chkd repo add <path>\n")
	}

	updated := "never"
	if !d.lastLoad.IsZero() {
		updated = d.lastLoad.Format("15:04:05")
	}
	refreshInfo := lipgloss.JoinHorizontal(lipgloss.Left,
		keycapStyle.Render("r"),
		" ",
		dimStyle.Render("refresh"),
		"   ",
		dimStyle.Render("updated "+updated),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Padding(0, 1).Render(summary),
		panelStyle.Width(max(20, d.width-2)).Render(
			lipgloss.JoinVertical(lipgloss.Left,
				panelHeaderStyle.Render("Tracked Repositories"),
				dimStyle.Render("Repository                           Branch        Status         Progress"),
				rows,
				refreshInfo,
			),
		),
	)
}

func renderCounter(label string, count int, style lipgloss.Style, width int) string {
	return boxStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Center,
			style.Bold(true).Render(fmt.Sprintf("%d", count)),
			dimStyle.Render(strings.ToUpper(label)),
		),
	) + "  "
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "…" + s[len(s)-max+1:]
}
