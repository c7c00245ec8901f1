package app

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"timeblock/internal/modules/timer/domain"
	timerdto "timeblock/internal/modules/timer/dto"
	"timeblock/internal/ui/components"
)

// ─── ports ───────────────────────────────────────────────────────────────────

type timerPort interface {
	Board(ctx context.Context) (timerdto.Board, error)
	Changes() <-chan struct{}
	Add(ctx context.Context, title string, seconds int) error
	Rename(ctx context.Context, id, title string) error
	Retime(ctx context.Context, id string, seconds int) error
	Delete(ctx context.Context, id string) error
	Toggle(ctx context.Context, id string, running bool) error
	Reset(ctx context.Context, id string) error
	Move(ctx context.Context, id, to string, index int) error
	ToggleSession(ctx context.Context) error
	Tick(ctx context.Context) error
	CatchUp(ctx context.Context) error
	DismissError(ctx context.Context) error
}

// ─── async messages ───────────────────────────────────────────────────────────

type tickMsg time.Time

type changedMsg struct{}

type boardMsg struct {
	board timerdto.Board
	err   error
}

type actionDoneMsg struct {
	label string
	err   error
}

// ─── key bindings ─────────────────────────────────────────────────────────────

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Toggle  key.Binding
	Session key.Binding
	Reset   key.Binding
	Delete  key.Binding
	Raise   key.Binding
	Lower   key.Binding
	Restore key.Binding
	Add     key.Binding
	Rename  key.Binding
	Retime  key.Binding
	Palette key.Binding
	Dismiss key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Toggle:  key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "play/pause")),
		Session: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start/pause session")),
		Reset:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset")),
		Delete:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Raise:   key.NewBinding(key.WithKeys("K", "shift+up"), key.WithHelp("K", "move up")),
		Lower:   key.NewBinding(key.WithKeys("J", "shift+down"), key.WithHelp("J", "move down")),
		Restore: key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "restore")),
		Add:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		Rename:  key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "rename")),
		Retime:  key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "retime")),
		Palette: key.NewBinding(key.WithKeys(":"), key.WithHelp(":", "command")),
		Dismiss: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "dismiss error")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:    key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Session, k.Add, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Raise, k.Lower},
		{k.Toggle, k.Session, k.Reset, k.Restore},
		{k.Add, k.Rename, k.Retime, k.Delete},
		{k.Palette, k.Dismiss, k.Help, k.Quit},
	}
}

// ─── model ───────────────────────────────────────────────────────────────────

// Model is the board. The countdown is re-read from the use case on every
// tick; the model never keeps its own timer state.
type Model struct {
	timer     timerPort
	tickEvery time.Duration

	board    timerdto.Board
	cursor   int
	keys     keyMap
	help     help.Model
	showHelp bool
	palette  components.Palette
	status   string
	width    int
	height   int
}

func NewModel(timer timerPort, tickEvery time.Duration) Model {
	if tickEvery <= 0 {
		tickEvery = time.Second
	}
	return Model{
		timer:     timer,
		tickEvery: tickEvery,
		keys:      defaultKeys(),
		help:      help.New(),
		palette:   components.NewPalette(),
		status:    "ready",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadBoardCmd(), m.tickCmd(), m.waitChangeCmd())
}

// ─── update ───────────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.palette.SetWidth(min(m.width-4, 80))
		m.help.Width = m.width
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.triggerCmd(m.timer.Tick), m.tickCmd())

	case tea.FocusMsg:
		// Ticks may have been throttled while the terminal was in the background.
		return m, m.triggerCmd(m.timer.CatchUp)

	case changedMsg:
		return m, tea.Batch(m.loadBoardCmd(), m.waitChangeCmd())

	case boardMsg:
		if msg.err != nil {
			m.status = "board: " + msg.err.Error()
			return m, nil
		}
		m.board = msg.board
		m.clampCursor()
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.status = msg.label + ": " + msg.err.Error()
		} else {
			m.status = msg.label
		}
		return m, m.loadBoardCmd()

	case components.PaletteSubmitMsg:
		return m.executePalette(msg.Input)

	case components.PaletteCancelMsg:
		m.status = "ready"
		return m, nil
	}

	// The palette intercepts all input while open.
	if m.palette.Visible() {
		var cmd tea.Cmd
		m.palette, cmd = m.palette.Update(msg)
		return m, cmd
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if m.showHelp {
		if keyMsg.String() == "?" || keyMsg.String() == "esc" {
			m.showHelp = false
		}
		return m, nil
	}

	selected, hasSelection := m.selected()
	switch {
	case key.Matches(keyMsg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Help):
		m.showHelp = true
	case key.Matches(keyMsg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(keyMsg, m.keys.Down):
		if m.cursor < len(m.board.Activities)-1 {
			m.cursor++
		}
	case key.Matches(keyMsg, m.keys.Session):
		return m, m.actionCmd("session "+nextSessionLabel(m.board.Running), m.timer.ToggleSession)
	case key.Matches(keyMsg, m.keys.Dismiss):
		return m, m.actionCmd("error dismissed", m.timer.DismissError)
	case key.Matches(keyMsg, m.keys.Add):
		return m, m.palette.Open("add ")
	case key.Matches(keyMsg, m.keys.Palette):
		return m, m.palette.Open("")
	}
	if !hasSelection {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Toggle):
		if selected.IsCompleted {
			m.status = "completed activities cannot be played"
			return m, nil
		}
		label := "playing " + selected.Title
		if selected.IsRunning {
			label = "paused " + selected.Title
		}
		return m, m.actionCmd(label, func(ctx context.Context) error {
			return m.timer.Toggle(ctx, selected.ID, selected.IsRunning)
		})
	case key.Matches(keyMsg, m.keys.Reset):
		return m, m.actionCmd("reset "+selected.Title, func(ctx context.Context) error {
			return m.timer.Reset(ctx, selected.ID)
		})
	case key.Matches(keyMsg, m.keys.Delete):
		return m, m.actionCmd("deleted "+selected.Title, func(ctx context.Context) error {
			return m.timer.Delete(ctx, selected.ID)
		})
	case key.Matches(keyMsg, m.keys.Raise):
		return m.shift(selected, -1)
	case key.Matches(keyMsg, m.keys.Lower):
		return m.shift(selected, 1)
	case key.Matches(keyMsg, m.keys.Restore):
		if !selected.IsCompleted {
			m.status = "only completed activities can be restored"
			return m, nil
		}
		return m, m.actionCmd("restored "+selected.Title, func(ctx context.Context) error {
			return m.timer.Move(ctx, selected.ID, "active", len(m.board.Active()))
		})
	case key.Matches(keyMsg, m.keys.Rename):
		return m, m.palette.Open("rename " + selected.Title)
	case key.Matches(keyMsg, m.keys.Retime):
		return m, m.palette.Open("retime " + domain.FormatClock(selected.InitialDuration))
	}
	return m, nil
}

// shift moves the selection one slot within its partition and keeps the
// cursor on it.
func (m Model) shift(selected timerdto.ActivityOutput, delta int) (tea.Model, tea.Cmd) {
	index := m.partitionIndex(selected)
	target := index + delta
	if target < 0 || target >= m.partitionLen(selected) {
		return m, nil
	}
	m.cursor += delta
	return m, m.actionCmd("moved "+selected.Title, func(ctx context.Context) error {
		return m.timer.Move(ctx, selected.ID, selected.Partition, target)
	})
}

// ─── palette execution ────────────────────────────────────────────────────────

func (m Model) executePalette(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}
	rest := strings.TrimSpace(strings.TrimPrefix(input, parts[0]))
	selected, hasSelection := m.selected()

	switch parts[0] {
	case "add":
		if len(parts) < 3 {
			m.status = "usage: add <duration> <title>"
			return m, nil
		}
		seconds, err := domain.ParseSpan(parts[1])
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		title := strings.TrimSpace(strings.TrimPrefix(rest, parts[1]))
		return m, m.actionCmd("added "+title, func(ctx context.Context) error {
			return m.timer.Add(ctx, title, seconds)
		})
	case "session":
		return m, m.actionCmd("session "+nextSessionLabel(m.board.Running), m.timer.ToggleSession)
	}

	if !hasSelection {
		m.status = "no activity selected"
		return m, nil
	}
	switch parts[0] {
	case "rename":
		return m, m.actionCmd("renamed to "+rest, func(ctx context.Context) error {
			return m.timer.Rename(ctx, selected.ID, rest)
		})
	case "retime":
		seconds, err := domain.ParseSpan(rest)
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		return m, m.actionCmd("retimed "+selected.Title, func(ctx context.Context) error {
			return m.timer.Retime(ctx, selected.ID, seconds)
		})
	case "move":
		position, err := strconv.Atoi(rest)
		if err != nil || position < 1 {
			m.status = "usage: move <position>"
			return m, nil
		}
		return m, m.actionCmd("moved "+selected.Title, func(ctx context.Context) error {
			return m.timer.Move(ctx, selected.ID, selected.Partition, position-1)
		})
	case "restore":
		return m, m.actionCmd("restored "+selected.Title, func(ctx context.Context) error {
			return m.timer.Move(ctx, selected.ID, "active", len(m.board.Active()))
		})
	case "delete":
		return m, m.actionCmd("deleted "+selected.Title, func(ctx context.Context) error {
			return m.timer.Delete(ctx, selected.ID)
		})
	}
	m.status = "unknown command: " + parts[0]
	return m, nil
}

// ─── commands ────────────────────────────────────────────────────────────────

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.tickEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) waitChangeCmd() tea.Cmd {
	changes := m.timer.Changes()
	return func() tea.Msg {
		<-changes
		return changedMsg{}
	}
}

func (m Model) loadBoardCmd() tea.Cmd {
	return func() tea.Msg {
		board, err := m.timer.Board(context.Background())
		return boardMsg{board: board, err: err}
	}
}

// triggerCmd runs a scheduler trigger and then re-reads the board so the
// countdown advances even when nothing was written.
func (m Model) triggerCmd(trigger func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		_ = trigger(ctx)
		board, err := m.timer.Board(ctx)
		return boardMsg{board: board, err: err}
	}
}

func (m Model) actionCmd(label string, action func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{label: label, err: action(context.Background())}
	}
}

// ─── selection helpers ───────────────────────────────────────────────────────

func (m Model) selected() (timerdto.ActivityOutput, bool) {
	if m.cursor < 0 || m.cursor >= len(m.board.Activities) {
		return timerdto.ActivityOutput{}, false
	}
	return m.board.Activities[m.cursor], true
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.board.Activities) {
		m.cursor = len(m.board.Activities) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) partitionIndex(a timerdto.ActivityOutput) int {
	index := 0
	for _, other := range m.board.Activities {
		if other.ID == a.ID {
			return index
		}
		if other.Partition == a.Partition {
			index++
		}
	}
	return -1
}

func (m Model) partitionLen(a timerdto.ActivityOutput) int {
	if a.IsCompleted {
		return len(m.board.Completed())
	}
	return len(m.board.Active())
}

func nextSessionLabel(running bool) string {
	if running {
		return "paused"
	}
	return "started"
}
