package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	appTitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).Padding(0, 1)
	subtitleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("110")).MarginTop(1)
	menuBoxStyle     = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(1, 2).MarginTop(1)
	menuItemStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).PaddingLeft(1)
	menuHotkeyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true)
	menuHintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).MarginTop(1)
	boardHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
	statusStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("109")).MarginTop(1)
	connectedStyle   = statusStyle.Copy().Foreground(lipgloss.Color("42")).Bold(true)
	connectingStyle  = statusStyle.Copy().Foreground(lipgloss.Color("178")).Italic(true)
	errorStyle       = statusStyle.Copy().Foreground(lipgloss.Color("196")).Bold(true)
	warningStyle     = statusStyle.Copy().Foreground(lipgloss.Color("214")).Bold(true)
	chatBoxStyle     = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("60")).Padding(1, 2).MarginTop(1)
	inputBoxStyle    = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1).MarginTop(1)
	timestampStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	usernameStyle    = lipgloss.NewStyle().Bold(true)
	systemMsgStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
	rosterStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))
	toolStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	activityStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
)

func (model *TUIModel) View() string {
	switch model.mode {
	case modeMenu:
		return model.renderMenuView()
	case modeNamePrompt:
		return model.renderPromptView("Pick a display name", "Your name is what peers see in the roster and chat.")
	case modeRoomPrompt:
		return model.renderPromptView("Join a board", "Enter a room code and press Enter.")
	default:
		return model.renderBoardView()
	}
}

func (model *TUIModel) renderMenuView() string {
	title := appTitleStyle.Render("CollabBoard")
	subtitle := subtitleStyle.Render("Draw and chat together from your terminal")

	options := []string{
		renderMenuOption("1", "Join a board"),
		renderMenuOption("2", "Create a board"),
		renderMenuOption("q", "Quit"),
	}

	sections := []string{
		lipgloss.JoinVertical(lipgloss.Left, title, subtitle),
		menuBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, options...)),
	}
	if notices := model.renderNotices(); notices != "" {
		sections = append(sections, notices)
	}
	sections = append(sections, menuHintStyle.Render("1) Join  •  2) Create  •  q) Quit"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func renderMenuOption(hotkey, label string) string {
	return menuItemStyle.Render(menuHotkeyStyle.Render(hotkey+")") + " " + label)
}

func (model *TUIModel) renderPromptView(title, hint string) string {
	sections := []string{
		appTitleStyle.Render(title),
		subtitleStyle.Render(hint),
		inputBoxStyle.Render(model.textInput.View()),
	}
	if notices := model.renderNotices(); notices != "" {
		sections = append(sections, notices)
	}
	sections = append(sections, menuHintStyle.Render("Enter) Confirm  •  Esc) Back"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (model *TUIModel) renderBoardView() string {
	title := model.roomCode
	if model.roomName != "" {
		title = model.roomName + " (" + model.roomCode + ")"
	}
	header := boardHeaderStyle.Render(fmt.Sprintf("CollabBoard  •  %s  •  %s", title, model.username))

	var status string
	switch {
	case model.connectionError != nil:
		status = errorStyle.Render("✗ " + model.connectionError.Error())
	case model.isConnected:
		status = connectedStyle.Render("● connected")
	default:
		status = connectingStyle.Render("… connecting")
	}

	roster := rosterStyle.Render("In room: " + strings.Join(model.roster, ", "))

	tool := ""
	if model.tool != nil {
		tool = toolStyle.Render(fmt.Sprintf("Shared tool: %s %s %.0fpx (%s)", model.tool.Tool, model.tool.Color, model.tool.BrushSize, model.tool.Sender))
	}

	undoDepth, redoDepth := model.history.Depth()
	canvas := activityStyle.Render(fmt.Sprintf("Canvas: %d strokes  •  undo %d / redo %d", len(model.strokes), undoDepth, redoDepth))
	if model.lastActivity != "" {
		canvas += activityStyle.Render("  •  " + model.lastActivity)
	}

	sections := []string{header, status, roster}
	if tool != "" {
		sections = append(sections, tool)
	}
	sections = append(sections, canvas)
	if model.outOfSync {
		sections = append(sections, warningStyle.Render("⚠ canvas history may be out of sync with peers"))
	}
	sections = append(sections, chatBoxStyle.Render(model.renderChatLog()))
	if notices := model.renderNotices(); notices != "" {
		sections = append(sections, notices)
	}
	sections = append(sections, inputBoxStyle.Render(model.textInput.View()))
	sections = append(sections, menuHintStyle.Render("Enter) Send  •  /draw /undo /redo /clear /tool /save  •  Esc) Leave"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (model *TUIModel) renderChatLog() string {
	if len(model.chat) == 0 {
		return systemMsgStyle.Render("No messages yet. Say hello!")
	}
	start := 0
	if len(model.chat) > 12 {
		start = len(model.chat) - 12
	}
	lines := make([]string, 0, len(model.chat)-start)
	for _, msg := range model.chat[start:] {
		stamp := timestampStyle.Render(time.UnixMilli(msg.Ts).Format("15:04"))
		if msg.Sender == SystemSender {
			lines = append(lines, stamp+" "+systemMsgStyle.Render(msg.Text))
			continue
		}
		lines = append(lines, stamp+" "+usernameStyle.Render(msg.Sender)+": "+msg.Text)
	}
	return strings.Join(lines, "\n")
}

func (model *TUIModel) renderNotices() string {
	if len(model.notices) == 0 {
		return ""
	}
	lines := make([]string, len(model.notices))
	for i, notice := range model.notices {
		lines[i] = systemMsgStyle.Render(notice)
	}
	return strings.Join(lines, "\n")
}
