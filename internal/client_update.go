package internal

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

func (model *TUIModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch typedMessage := message.(type) {
	case tea.KeyMsg:
		// Ctrl+C bails out from any screen.
		if typedMessage.Type == tea.KeyCtrlC {
			model.closeConn()
			return model, tea.Quit
		}
		switch model.mode {
		case modeMenu:
			return model.updateMenu(typedMessage)
		case modeNamePrompt:
			return model.updateNamePrompt(typedMessage)
		case modeRoomPrompt:
			return model.updateRoomPrompt(typedMessage)
		case modeBoard:
			return model.updateBoard(typedMessage)
		}
		return model, nil

	case connectedMsg:
		model.websocketConn = typedMessage.conn
		model.isConnected = true
		model.connectionError = nil
		if typedMessage.roomName != "" {
			model.roomName = typedMessage.roomName
		}
		return model, model.listenCmd()

	case connectFailedMsg:
		model.isConnected = false
		model.connectionError = typedMessage.err
		return model, nil

	case disconnectedMsg:
		model.isConnected = false
		model.websocketConn = nil
		model.connectionError = typedMessage.err
		model.addNotice("Disconnected from server")
		return model, nil

	case boardCreatedMsg:
		model.roomCode = typedMessage.code
		model.mode = modeBoard
		model.textInput.Placeholder = "Chat, or /draw /undo /redo /clear /tool …"
		model.textInput.Prompt = "> "
		focusCmd := model.textInput.Focus()
		model.addNotice("Created board " + typedMessage.code + " — share this code to invite others")
		return model, tea.Batch(focusCmd, model.connectCmd())

	case noticeMsg:
		model.addNotice(typedMessage.text)
		return model, nil

	case serverEventMsg:
		model.applyServerEvent(typedMessage)
		if model.websocketConn != nil {
			return model, model.listenCmd()
		}
		return model, nil
	}
	return model, nil
}

func (model *TUIModel) updateMenu(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "1", "j", "J":
		model.pendingAction = actionJoin
		return model, model.promptForName()
	case "2", "c", "C":
		model.pendingAction = actionCreate
		return model, model.promptForName()
	case "q", "Q", "esc":
		return model, tea.Quit
	}
	return model, nil
}

func (model *TUIModel) promptForName() tea.Cmd {
	model.mode = modeNamePrompt
	model.textInput.SetValue(model.username)
	model.textInput.Placeholder = "Enter display name…"
	model.textInput.Prompt = "name> "
	return model.textInput.Focus()
}

func (model *TUIModel) updateNamePrompt(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyEnter:
		trimmed := strings.TrimSpace(model.textInput.Value())
		if trimmed == "" {
			model.addNotice("Display name cannot be empty.")
			return model, nil
		}
		model.username = trimmed
		model.textInput.SetValue("")
		nextAction := model.pendingAction
		model.pendingAction = actionNone
		switch nextAction {
		case actionJoin:
			model.mode = modeRoomPrompt
			model.textInput.Placeholder = "Enter room code (adjective-noun-0000)…"
			model.textInput.Prompt = "room> "
			return model, model.textInput.Focus()
		case actionCreate:
			model.textInput.Blur()
			return model, model.createBoardCmd("")
		default:
			model.returnToMenu()
			return model, nil
		}
	case tea.KeyEsc:
		model.pendingAction = actionNone
		model.returnToMenu()
		return model, nil
	}
	var cmd tea.Cmd
	model.textInput, cmd = model.textInput.Update(key)
	return model, cmd
}

func (model *TUIModel) updateRoomPrompt(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyEnter:
		trimmed := strings.TrimSpace(model.textInput.Value())
		if trimmed == "" {
			model.addNotice("Room code cannot be empty.")
			return model, nil
		}
		model.roomCode = trimmed
		model.mode = modeBoard
		model.textInput.SetValue("")
		model.textInput.Placeholder = "Chat, or /draw /undo /redo /clear /tool …"
		model.textInput.Prompt = "> "
		return model, tea.Batch(model.textInput.Focus(), model.connectCmd())
	case tea.KeyEsc:
		model.returnToMenu()
		return model, nil
	}
	var cmd tea.Cmd
	model.textInput, cmd = model.textInput.Update(key)
	return model, cmd
}

func (model *TUIModel) updateBoard(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyEsc:
		model.closeConn()
		return model, tea.Quit
	case tea.KeyEnter:
		text := strings.TrimSpace(model.textInput.Value())
		model.textInput.SetValue("")
		if text == "" {
			return model, nil
		}
		return model, model.handleBoardInput(text)
	}
	var cmd tea.Cmd
	model.textInput, cmd = model.textInput.Update(key)
	return model, cmd
}

func (model *TUIModel) returnToMenu() {
	model.mode = modeMenu
	model.textInput.SetValue("")
	model.textInput.Blur()
	model.textInput.Placeholder = ""
	model.textInput.Prompt = ""
}

// applyServerEvent folds one broker event into the local replica. Remote
// undo/redo notifications step the local history stacks in lockstep; when
// the stacks cannot follow, the client flags that the canvas may be out of
// sync instead of guessing.
func (model *TUIModel) applyServerEvent(event serverEventMsg) {
	switch payload := event.payload.(type) {
	case *CurrentUsers:
		model.roster = append([]string{}, payload.Users...)
		model.roster = append(model.roster, model.username)
	case *UserPresence:
		switch event.kind {
		case EventUserJoined:
			model.roster = append(model.roster, payload.Username)
			model.addNotice(payload.Username + " joined the room")
		case EventUserLeft:
			for i, name := range model.roster {
				if name == payload.Username {
					model.roster = append(model.roster[:i], model.roster[i+1:]...)
					break
				}
			}
			model.addNotice(payload.Username + " left the room")
		}
	case *Drawing:
		model.strokes = append(model.strokes, *payload)
		model.history.RecordState(model.snapshotCanvas())
		model.lastActivity = fmt.Sprintf("%s drew %d points with %s", payload.Sender, len(payload.Points), payload.Tool)
	case *ToolChange:
		// shared indicator only; never switches this client's own tool
		toolCopy := *payload
		model.tool = &toolCopy
		if payload.Sender != "" {
			model.lastActivity = fmt.Sprintf("%s switched to %s", payload.Sender, payload.Tool)
		}
	case *ActorRef:
		switch event.kind {
		case EventCanvasCleared:
			model.strokes = nil
			model.history.RecordState(model.snapshotCanvas())
			model.addNotice(payload.Sender + " cleared the canvas")
		case EventUndoPerformed:
			snapshot, result := model.history.Undo()
			switch result {
			case UndoEmpty:
				model.outOfSync = true
			case UndoBlank:
				model.restoreCanvas(nil)
			case UndoSnapshot:
				model.restoreCanvas(snapshot)
			}
			model.lastActivity = payload.Sender + " undid an action"
		case EventRedoPerformed:
			if snapshot, ok := model.history.Redo(); ok {
				model.restoreCanvas(snapshot)
			} else {
				model.outOfSync = true
			}
			model.lastActivity = payload.Sender + " redid an action"
		}
	case *ChatMessage:
		model.addChat(*payload)
	case *ChatHistory:
		// backlog replaces anything shown so far; it is the broker's record
		model.chat = append([]ChatMessage{}, payload.Messages...)
	case *ErrorPayload:
		model.connectionError = fmt.Errorf("%s: %s", payload.Code, payload.Message)
		model.addNotice("Server error: " + payload.Message)
	}
}
