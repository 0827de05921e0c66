package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/chkdhq/chkd/internal/engine"
	"github.com/chkdhq/chkd/models"
	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SignalsModel displays active advisory signals across all tracked
// repositories, with type filtering.
type SignalsModel struct {
	eng     *engine.Engine
	signals []models.Signal
	width   int
	height  int
	cursor  int
	filter  models.SignalType // "" means all
	loading bool
}

type signalsLoadedMsg struct{ signals []models.Signal }

// NewSignalsModel creates a SignalsModel.
func NewSignalsModel(eng *engine.Engine) SignalsModel {
	return SignalsModel{eng: eng, loading: true}
}

func (f SignalsModel) Init() tea.Cmd {
	return f.loadCmd()
}

func (f SignalsModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		repos, _ := f.eng.ListRepositories(ctx)
		var all []models.Signal
		for _, repo := range repos {
			active, err := f.eng.Signals.Active(ctx, repo.ID)
			if err != nil {
				continue
			}
			all = append(all, active...)
		}
		return signalsLoadedMsg{signals: all}
	}
}

func (f SignalsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case signalsLoadedMsg:
		f.signals = msg.signals
		f.loading = false
		return f, tea.Tick(10*time.Second, func(t time.Time) tea.Msg {
			return f.loadCmd()()
		})

	case tea.KeyMsg:
		switch msg.String() {
		case "j", "down":
			f.cursor++
		case "k", "up":
			if f.cursor > 0 {
				f.cursor--
			}
		case "d":
			f.filter = models.SignalDecision
			f.cursor = 0
		case "h":
			f.filter = models.SignalHelp
			f.cursor = 0
		case "w":
			f.filter = models.SignalWarning
			f.cursor = 0
		case "0":
			f.filter = ""
			f.cursor = 0
		case "x":
			if sig, ok := f.selected(); ok {
				_ = f.eng.Signals.Dismiss(context.Background(), sig.ID)
				return f, f.loadCmd()
			}
		case "r":
			f.loading = true
			return f, f.loadCmd()
		}
	}
	f = f.clampCursor()
	return f, nil
}

func (f *SignalsModel) SetSize(w, h int) {
	f.width = w
	f.height = h
}

func (f SignalsModel) filtered() []models.Signal {
	if f.filter == "" {
		return f.signals
	}
	out := make([]models.Signal, 0, len(f.signals))
	for _, s := range f.signals {
		if s.Type == f.filter {
			out = append(out, s)
		}
	}
	return out
}

func (f SignalsModel) selected() (models.Signal, bool) {
	list := f.filtered()
	if f.cursor < 0 || f.cursor >= len(list) {
		return models.Signal{}, false
	}
	return list[f.cursor], true
}

func (f SignalsModel) View() string {
	if f.loading && len(f.signals) == 0 {
		return panelStyle.Width(max(20, f.width-2)).Render("Loading signals...")
	}

	list := f.filtered()
	lineLimit := f.height - 10
	if lineLimit < 5 {
		lineLimit = 5
	}

	rows := ""
	for i, s := range list {
		if i >= lineLimit {
			break
		}
		action := ""
		if s.ActionRequired {
			action = "ACTION"
		}
		rows += f.renderRow(i, string(s.Type), s.WorkerID, s.Message, action)
	}
	if rows == "" {
		rows = dimStyle.Render("No active signals.\n")
	}

	filterBar := lipgloss.JoinHorizontal(lipgloss.Left,
		f.filterChip("All", "", len(f.signals), "0"),
		" ",
		f.filterChip("Decision", models.SignalDecision, countType(f.signals, models.SignalDecision), "d"),
		" ",
		f.filterChip("Help", models.SignalHelp, countType(f.signals, models.SignalHelp), "h"),
		" ",
		f.filterChip("Warning", models.SignalWarning, countType(f.signals, models.SignalWarning), "w"),
		"  ",
		keycapStyle.Render("x"),
		" ",
		dimStyle.Render("dismiss"),
		"  ",
		keycapStyle.Render("r"),
		" ",
		dimStyle.Render("refresh"),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		panelStyle.Width(max(20, f.width-2)).Render(
			lipgloss.JoinVertical(lipgloss.Left,
				panelHeaderStyle.Render("Active Signals"),
				filterBar,
				"",
				dimStyle.Render("Type       Worker                  Message                                    "),
				rows,
				"",
				dimStyle.Render("j/k navigate  d decision  h help  w warning  0 all  x dismiss"),
			),
		),
	)
}

func (f SignalsModel) renderRow(idx int, typ, workerID, message, meta string) string {
	cursor := " "
	if idx == f.cursor {
		cursor = "▌"
	}
	metaText := dimStyle.Render(meta)
	if meta == "ACTION" {
		metaText = lipgloss.NewStyle().Foreground(bgDark).Background(orange).Padding(0, 1).Render(meta)
	}

	line := lipgloss.JoinHorizontal(lipgloss.Left,
		lipgloss.NewStyle().Width(2).Foreground(accent).Render(cursor),
		lipgloss.NewStyle().Width(10).Render(signalStyle(typ).Render(typ)),
		lipgloss.NewStyle().Width(24).Foreground(slate).Render(truncate(workerID, 22)),
		lipgloss.NewStyle().Width(42).Foreground(ink).Render(truncate(message, 40)),
		metaText,
	)
	if idx == f.cursor {
		return selectedRowStyle.Width(max(20, f.width-6)).Render(line) + "\n"
	}
	return line + "\n"
}

func (f SignalsModel) filterChip(label string, value models.SignalType, count int, key string) string {
	text := fmt.Sprintf("%s %d", label, count)
	if f.filter == value {
		return activeTabStyle.Render(text)
	}
	return tabStyle.Render(text + " [" + key + "]")
}

func (f SignalsModel) clampCursor() SignalsModel {
	total := len(f.filtered())
	if total == 0 {
		f.cursor = 0
		return f
	}
	if f.cursor < 0 {
		f.cursor = 0
	}
	if f.cursor >= total {
		f.cursor = total - 1
	}
	return f
}

func countType(signals []models.Signal, typ models.SignalType) int {
	n := 0
	for _, s := range signals {
		if s.Type == typ {
			n++
		}
	}
	return n
}
