package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"veridia/internal/game"
	"veridia/internal/storage"
	"veridia/pkg/scenario"
	"veridia/pkg/session"
	"veridia/pkg/textfilter"
	"veridia/pkg/turn"
)

const PlaceHolderText = "What do you do?"

// UI is the BubbleTea model that runs the client.
// https://github.com/charmbracelet/bubbletea
type UI struct {
	ctrl   *game.Controller
	scen   *scenario.Scenario
	logger *slog.Logger

	storyViewport viewport.Model
	metaViewport  viewport.Model
	textarea      textarea.Model
	ready         bool
	width         int
	height        int
	loading       bool
	progressTick  int

	showStartScreen  bool
	showNewGameModal bool
	showQuitModal    bool

	status string
}

type turnDoneMsg struct{ err error }
type newGameDoneMsg struct{ err error }
type loadDoneMsg struct{ err error }
type saveDoneMsg struct{ err error }
type imageArrivedMsg game.ImageUpdate
type progressTickMsg struct{}
type clearStatusMsg struct{}

var (
	storyPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingBottom(1).
			PaddingLeft(3)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")). // cyan
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	gameOverStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	suggestionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("99")) // purple

	// Per-effect frame tints. Shake and particles reuse the combat tint;
	// the terminal can't move the window.
	effectStyles = map[turn.VisualEffect]lipgloss.Style{
		turn.EffectGlitch:          lipgloss.NewStyle().Foreground(lipgloss.Color("201")),
		turn.EffectShake:           lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		turn.EffectFlashRed:        lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		turn.EffectFlashWhite:      lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
		turn.EffectParticlesCombat: lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
	}
)

var titleCaser = cases.Title(language.English)

// NewUI creates the client UI in its start-screen state.
func NewUI(ctrl *game.Controller, scen *scenario.Scenario, logger *slog.Logger) UI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 500
	ta.SetWidth(50)
	ta.SetHeight(2)
	ta.ShowLineNumbers = false

	storyVp := viewport.New(50, 20)
	storyVp.MouseWheelEnabled = true
	metaVp := viewport.New(30, 20)

	return UI{
		ctrl:            ctrl,
		scen:            scen,
		logger:          logger,
		textarea:        ta,
		storyViewport:   storyVp,
		metaViewport:    metaVp,
		showStartScreen: true,
	}
}

func (m UI) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.waitForImage())
}

func (m UI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}
	if m.showNewGameModal {
		return m.updateNewGameModal(msg)
	}
	if m.showStartScreen {
		return m.updateStartScreen(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.ready = true

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyCtrlN:
			m.showNewGameModal = true
			return m, nil
		case tea.KeyCtrlS:
			return m, m.saveGame()
		case tea.KeyCtrlL:
			return m, m.loadGame()
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}
			return m.submitAction(input)
		default:
			if cmd, handled := m.handleSuggestionKey(msg); handled {
				return m, cmd
			}
		}

	case turnDoneMsg:
		m.loading = false
		if msg.err != nil {
			m = m.showError(msg.err)
		}
		m.refresh()
		return m, m.expireStatus()

	case newGameDoneMsg:
		m.loading = false
		m.showStartScreen = false
		if msg.err != nil {
			m = m.showError(msg.err)
		} else {
			m.status = statusStyle.Render("A new journey begins")
		}
		m.refresh()
		return m, m.expireStatus()

	case loadDoneMsg:
		m.loading = false
		switch {
		case msg.err == nil:
			m.showStartScreen = false
			m.status = statusStyle.Render("Game loaded")
		case errors.Is(msg.err, storage.ErrNotFound):
			m.status = statusStyle.Render("No saved game found")
		case errors.Is(msg.err, storage.ErrCorrupt):
			m.status = errorStyle.Render("Save file is unreadable (incompatible version)")
		default:
			m.status = errorStyle.Render("Load failed: " + msg.err.Error())
		}
		m.refresh()
		return m, m.expireStatus()

	case saveDoneMsg:
		if msg.err != nil {
			m.status = errorStyle.Render("Save failed: " + msg.err.Error())
		} else {
			m.status = statusStyle.Render("Game saved")
		}
		m.refresh()
		return m, m.expireStatus()

	case imageArrivedMsg:
		// Art resolved for some entry; re-render and keep listening.
		m.refresh()
		return m, m.waitForImage()

	case clearStatusMsg:
		m.status = ""
		m.refresh()

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.refresh()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.storyViewport, vpCmd = m.storyViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

func (m *UI) submitAction(input string) (tea.Model, tea.Cmd) {
	sess := m.ctrl.Session()
	if sess == nil || m.ctrl.Phase() == game.PhaseGameOver {
		m.status = statusStyle.Render("The story has ended. Ctrl+N starts a new game.")
		return *m, m.expireStatus()
	}

	m.textarea.Reset()
	m.loading = true
	m.progressTick = 0
	return *m, tea.Batch(m.doAction(input), progressTick())
}

// handleSuggestionKey maps alt+1..3 onto the current suggested actions.
func (m *UI) handleSuggestionKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	var idx int
	switch msg.String() {
	case "alt+1":
		idx = 0
	case "alt+2":
		idx = 1
	case "alt+3":
		idx = 2
	default:
		return nil, false
	}

	if m.loading {
		return nil, true
	}
	sess := m.ctrl.Session()
	if sess == nil || sess.Current == nil || idx >= len(sess.Current.SuggestedActions) {
		return nil, true
	}

	action := sess.Current.SuggestedActions[idx]
	m.loading = true
	m.progressTick = 0
	return tea.Batch(m.doAction(action), progressTick()), true
}

func (m UI) handleCommand(input string) (tea.Model, tea.Cmd) {
	m.textarea.Reset()
	fields := strings.Fields(input)

	// Only the command word is case-insensitive; arguments such as lore
	// IDs pass through verbatim.
	switch strings.ToLower(fields[0]) {
	case "/help":
		m.status = statusStyle.Render("Enter: act · Alt+1/2/3: suggestions · Ctrl+S: save · Ctrl+L: load · Ctrl+N: new game · /copy · /lore <id>")
	case "/copy":
		sess := m.ctrl.Session()
		if sess != nil && sess.Current != nil {
			if err := clipboard.WriteAll(sess.Current.SceneDescription); err != nil {
				m.logger.Warn("Clipboard write failed", "error", err)
				m.status = errorStyle.Render("Clipboard unavailable: " + err.Error())
			} else {
				m.status = statusStyle.Render("Scene copied to clipboard")
			}
		}
	case "/lore":
		if len(fields) < 2 {
			m.status = statusStyle.Render("Usage: /lore <id>")
			break
		}
		m.status = m.loreDetails(fields[1])
	default:
		m.status = statusStyle.Render("Unknown command " + fields[0])
	}

	m.refresh()
	return m, m.expireStatus()
}

func (m UI) loreDetails(id string) string {
	sess := m.ctrl.Session()
	if sess == nil || sess.Current == nil {
		return statusStyle.Render("No lore yet")
	}
	for _, entry := range sess.Current.Lore {
		if entry.ID == id {
			return statusStyle.Render(entry.Topic + ": " + entry.Details)
		}
	}
	return statusStyle.Render("No lore entry " + id)
}

func (m UI) showError(err error) UI {
	switch {
	case errors.Is(err, game.ErrGeneration):
		m.status = errorStyle.Render("The connection was severed. The story ends here.")
	case errors.Is(err, game.ErrBusy), errors.Is(err, game.ErrGameOver), errors.Is(err, game.ErrNoSession):
		// Ignored inputs, not failures.
	default:
		m.status = errorStyle.Render("Error: " + err.Error())
	}
	return m
}

// Commands

func (m UI) doAction(action string) tea.Cmd {
	return func() tea.Msg {
		err := m.ctrl.Act(context.Background(), action)
		if errors.Is(err, game.ErrBusy) || errors.Is(err, game.ErrGameOver) || errors.Is(err, game.ErrNoSession) {
			err = nil
		}
		return turnDoneMsg{err}
	}
}

func (m UI) startNewGame() tea.Cmd {
	return func() tea.Msg {
		return newGameDoneMsg{m.ctrl.NewGame(context.Background())}
	}
}

func (m UI) loadGame() tea.Cmd {
	return func() tea.Msg {
		return loadDoneMsg{m.ctrl.Load(context.Background())}
	}
}

func (m UI) saveGame() tea.Cmd {
	return func() tea.Msg {
		return saveDoneMsg{m.ctrl.Save(context.Background())}
	}
}

func (m UI) waitForImage() tea.Cmd {
	return func() tea.Msg {
		update, ok := <-m.ctrl.Updates()
		if !ok {
			return nil
		}
		return imageArrivedMsg(update)
	}
}

func (m UI) expireStatus() tea.Cmd {
	return tea.Tick(4*time.Second, func(time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}

// Layout

func (m *UI) resize() {
	storyWidth := int(float64(m.width)*0.68) - 4
	metaWidth := m.width - storyWidth - 6

	m.storyViewport.Width = storyWidth - 2
	m.storyViewport.Height = m.height - 7
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 3
	m.textarea.SetWidth(storyWidth - 4)

	m.refresh()
}

// refresh rebuilds both panels from the session.
func (m *UI) refresh() {
	sess := m.ctrl.Session()
	m.writeStoryContent(sess)
	m.metaViewport.SetContent(m.writeMetadata(sess))
}

func (m *UI) writeStoryContent(sess *session.Session) {
	storyWidth := m.storyViewport.Width - 4
	if storyWidth < 10 {
		storyWidth = 10
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render(strings.ToUpper(m.scen.Name)) + "\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", storyWidth)) + "\n\n")

	if sess != nil {
		for _, entry := range sess.Log {
			switch entry.Kind {
			case session.EntryPlayer:
				content.WriteString(userStyle.Render("You: ") + wordwrap.String(entry.Text, storyWidth-5) + "\n\n")
			case session.EntrySystem:
				text := textfilter.CleanDisplay(entry.Text)
				content.WriteString(narratorStyle.Render(wordwrap.String(text, storyWidth)) + "\n")
				if entry.State != nil && entry.State.SceneImage != "" {
					content.WriteString(promptStyle.Render("[scene art resolved]") + "\n")
				}
				content.WriteString("\n")
			}
		}

		if sess.GameOver() {
			content.WriteString(gameOverStyle.Render("*.*.*.*.*.*. THE END .*.*.*.*.*.*") + "\n")
			if sess.Current.GameOverMessage != "" {
				content.WriteString(gameOverStyle.Render(wordwrap.String(sess.Current.GameOverMessage, storyWidth)) + "\n")
			}
			content.WriteString(promptStyle.Render("Ctrl+N to start again, Ctrl+C to exit") + "\n")
		}
	}

	if m.loading {
		content.WriteString(m.renderProgressBar())
	}
	if m.status != "" {
		content.WriteString("\n" + m.status + "\n")
	}

	m.storyViewport.SetContent(content.String())
	m.storyViewport.GotoBottom()
}

func (m *UI) writeMetadata(sess *session.Session) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("STATUS") + "\n\n")

	if sess == nil || sess.Current == nil {
		content.WriteString("No active game.\n")
		return content.String()
	}
	cur := sess.Current

	content.WriteString(fmt.Sprintf("%s (%d, %d)\n", cur.Location.Name, cur.Location.X, cur.Location.Y))
	content.WriteString(promptStyle.Render(cur.Location.Description) + "\n\n")

	content.WriteString(fmt.Sprintf("Health %3d/%d\n", cur.PlayerHealth, turn.MaxPlayerHealth))
	content.WriteString(renderBar(cur.PlayerHealth, turn.MaxPlayerHealth, 20) + "\n\n")

	if cur.Combat.IsInCombat {
		content.WriteString(errorStyle.Render(fmt.Sprintf("⚔ %s %d/%d\n",
			cur.Combat.EnemyName, cur.Combat.EnemyHealth, cur.Combat.EnemyMaxHealth)))
		if cur.Combat.CombatLog != "" {
			content.WriteString(wordwrap.String(cur.Combat.CombatLog, m.metaViewport.Width-2) + "\n")
		}
		content.WriteString("\n")
	}

	content.WriteString(titleStyle.Render("SECTOR MAP") + "\n")
	content.WriteString(renderMiniMap(sess) + "\n")

	content.WriteString(titleStyle.Render("INVENTORY") + "\n")
	if len(cur.Inventory) == 0 {
		content.WriteString(promptStyle.Render("Empty") + "\n")
	}
	for _, item := range cur.Inventory {
		content.WriteString(fmt.Sprintf("• %s %s\n", item.Name,
			promptStyle.Render("["+titleCaser.String(string(item.Type))+"]")))
	}
	content.WriteString("\n")

	content.WriteString(titleStyle.Render("LORE") + "\n")
	if len(cur.Lore) == 0 {
		content.WriteString(promptStyle.Render("Nothing discovered yet") + "\n")
	}
	for _, entry := range cur.Lore {
		content.WriteString(fmt.Sprintf("• %s %s\n", entry.Topic, promptStyle.Render("("+entry.ID+")")))
	}
	content.WriteString("\n")

	if !cur.IsGameOver && len(cur.SuggestedActions) > 0 {
		content.WriteString(titleStyle.Render("SUGGESTED") + "\n")
		for i, action := range cur.SuggestedActions {
			content.WriteString(suggestionStyle.Render(fmt.Sprintf("%d. %s", i+1, action)) + "\n")
		}
		content.WriteString(promptStyle.Render("Alt+number to act") + "\n")
	}

	if cur.SceneImage != "" {
		content.WriteString("\n" + promptStyle.Render("Scene art: ✓") + "\n")
	}

	return content.String()
}

func renderBar(value, max, width int) string {
	if max <= 0 {
		max = 1
	}
	if value < 0 {
		value = 0
	}
	filled := value * width / max
	return statusStyle.Render(strings.Repeat("█", filled)) +
		promptStyle.Render(strings.Repeat("░", width-filled))
}

// renderProgressBar draws the animated waiting bar while a turn is being
// generated.
func (m UI) renderProgressBar() string {
	usable := m.storyViewport.Width - 6
	if usable <= 0 {
		usable = 30
	}
	if usable > 60 {
		usable = 60
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		switch {
		case i < filled:
			bar.WriteString("█")
		case i == filled && frame%4 < 2:
			bar.WriteString("▓")
		default:
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

// Modals and start screen

func (m UI) updateStartScreen(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.ready = true

	case newGameDoneMsg, loadDoneMsg:
		// Delegate to the main handler so status mapping stays in one place.
		m.showStartScreen = false
		return m.Update(msg)

	case clearStatusMsg:
		m.status = ""

	case imageArrivedMsg:
		return m, m.waitForImage()

	case tea.KeyMsg:
		if m.loading {
			if msg.Type == tea.KeyCtrlC {
				return m, tea.Quit
			}
			return m, nil
		}
		switch msg.String() {
		case "n", "N":
			m.loading = true
			return m, m.startNewGame()
		case "l", "L":
			m.loading = true
			return m, m.loadGame()
		case "q", "Q", "ctrl+c":
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m UI) updateNewGameModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "y", "Y", "enter":
			m.showNewGameModal = false
			m.loading = true
			m.progressTick = 0
			return m, tea.Batch(m.startNewGame(), progressTick())
		case "n", "N", "esc":
			m.showNewGameModal = false
			m.textarea.Focus()
			return m, textarea.Blink
		case "ctrl+c":
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m UI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "y", "Y", "enter", "ctrl+c", "esc":
			return m, tea.Quit
		case "n", "N":
			m.showQuitModal = false
			m.textarea.Focus()
			return m, textarea.Blink
		}
	}
	return m, nil
}

func (m UI) renderStartScreen() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render(strings.ToUpper(m.scen.Name)))
	content.WriteString("\n\n")
	content.WriteString(wordwrap.String(m.scen.Tagline, 56))
	content.WriteString("\n\n")
	if m.loading {
		content.WriteString(statusStyle.Render("Initializing..."))
	} else {
		content.WriteString(promptStyle.Render("N: new game · L: load game · Q: quit"))
	}
	if m.status != "" {
		content.WriteString("\n\n" + m.status)
	}

	modal := modalStyle.Width(64).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal,
		lipgloss.WithWhitespaceChars(" "))
}

func (m UI) renderConfirmModal(title, body string) string {
	var content strings.Builder
	content.WriteString(modalTitleStyle.Render(title))
	content.WriteString("\n\n")
	content.WriteString(body)
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Y to confirm, N to cancel"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal,
		lipgloss.WithWhitespaceChars(" "))
}

func (m UI) View() string {
	if m.showQuitModal {
		return m.renderConfirmModal("Quit Game?", "Are you sure you want to quit your adventure?")
	}
	if m.showNewGameModal {
		return m.renderConfirmModal("New Game?", "Unsaved progress will be lost.")
	}
	if m.showStartScreen {
		return m.renderStartScreen()
	}
	if !m.ready {
		return "\n  Initializing..."
	}

	storyWidth := int(float64(m.width)*0.68) - 4
	metaWidth := m.width - storyWidth - 6

	frame := separatorStyle
	if sess := m.ctrl.Session(); sess != nil && sess.Current != nil {
		if style, ok := effectStyles[sess.Current.VisualEffect]; ok {
			frame = style
		}
	}

	storyPanel := storyPanelStyle.Width(storyWidth).Height(m.height - 2).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.storyViewport.View(),
			"",
			frame.Render(strings.Repeat("─", storyWidth-4)),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, storyPanel, metaPanel)
}
