package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"timeblock/internal/modules/timer/domain"
	timerdto "timeblock/internal/modules/timer/dto"
	"timeblock/internal/ui/theme"
)

func (m Model) View() string {
	header := m.renderHeader()
	statusBar := m.renderStatusBar()
	contentH := m.height - lipgloss.Height(header) - lipgloss.Height(statusBar)
	if contentH < 1 {
		contentH = 1
	}

	var content string
	switch {
	case m.showHelp:
		content = lipgloss.NewStyle().Width(m.width).Height(contentH).Render(m.help.View(m.keys))
	case m.palette.Visible():
		content = lipgloss.Place(m.width, contentH, lipgloss.Center, lipgloss.Center, m.palette.View())
	default:
		content = m.renderBoard()
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}

func (m Model) renderHeader() string {
	session := theme.Muted.Render("❚❚ paused")
	if m.board.Running {
		session = theme.Running.Render("● running")
	}
	parts := []string{theme.Title.Render("timeblock"), session}
	if !m.board.Now.IsZero() {
		parts = append(parts, theme.Muted.Render("now "+m.board.Now.Local().Format("15:04")))
	}
	if m.board.ProjectedFinish != nil {
		parts = append(parts,
			theme.Muted.Render("left "+domain.FormatClock(m.board.RemainingTotal)),
			theme.Muted.Render("done by "+m.board.ProjectedFinish.Local().Format("15:04")),
		)
	}
	if m.board.Permission != "" && m.board.Permission != "granted" {
		parts = append(parts, theme.Warn.Render("notifications "+m.board.Permission))
	}
	bar := strings.Join(parts, theme.Muted.Render(" │ "))
	out := lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar) + "\n"
	if m.board.LoadError != "" {
		out += theme.Banner.Render("store unavailable: "+m.board.LoadError) + "\n"
	}
	if m.board.LastError != "" {
		out += theme.Banner.Render(m.board.LastError+"  (x to dismiss)") + "\n"
	}
	return out
}

func (m Model) renderBoard() string {
	if !m.board.Loaded {
		return theme.Muted.Render("loading activities…")
	}
	var sb strings.Builder
	sb.WriteString(theme.Title.Render("Active") + "\n")
	active := m.board.Active()
	if len(active) == 0 {
		sb.WriteString(theme.Muted.Render("  nothing planned, press a to add") + "\n")
	}
	row := 0
	for i, a := range active {
		sb.WriteString(m.renderRow(row, i+1, a) + "\n")
		row++
	}
	sb.WriteString("\n" + theme.Title.Render("Completed") + "\n")
	completed := m.board.Completed()
	if len(completed) == 0 {
		sb.WriteString(theme.Muted.Render("  none yet") + "\n")
	}
	for i, a := range completed {
		sb.WriteString(m.renderRow(row, i+1, a) + "\n")
		row++
	}
	return theme.Pane.Width(max(m.width-2, 40)).Render(strings.TrimRight(sb.String(), "\n"))
}

func (m Model) renderRow(row, position int, a timerdto.ActivityOutput) string {
	cursor := "  "
	if row == m.cursor {
		cursor = theme.Selected.Render("▸ ")
	}
	title := a.Title
	if len([]rune(title)) > 40 {
		title = string([]rune(title)[:39]) + "…"
	}
	var line string
	switch {
	case a.IsCompleted:
		line = theme.Done.Render(fmt.Sprintf("%2d. %-40s", position, title)) +
			theme.Muted.Render("  spent "+domain.FormatClock(a.TimeSpent))
	default:
		finish := ""
		if a.EstimatedFinish != nil {
			finish = "  ~" + a.EstimatedFinish.Local().Format("15:04")
		}
		text := fmt.Sprintf("%2d. %-40s %s / %s%s", position, title,
			domain.FormatClock(a.Remaining), domain.FormatClock(a.InitialDuration), finish)
		if a.IsRunning {
			line = theme.Running.Render(text)
		} else {
			line = text
		}
	}
	return cursor + line
}

func (m Model) renderStatusBar() string {
	left := m.status
	right := theme.Muted.Render("?:help  enter:play  s:session  a:add  q:quit")
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	bar := left + strings.Repeat(" ", gap) + right
	return "\n" + lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar)
}
