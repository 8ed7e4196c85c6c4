package internal

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

// messages produced by the client's background commands
type (
	connectedMsg struct {
		conn     *websocket.Conn
		roomName string
	}
	connectFailedMsg struct{ err error }
	serverEventMsg   struct {
		kind    string
		payload any
	}
	disconnectedMsg struct{ err error }
	boardCreatedMsg struct{ code string }
	noticeMsg       struct{ text string }
)

// connectCmd dials the broker and performs the join-room handshake.
func (model *TUIModel) connectCmd() tea.Cmd {
	serverURL := model.serverURL
	roomCode := model.roomCode
	username := model.username
	return func() tea.Msg {
		wsURL, err := websocketURL(serverURL)
		if err != nil {
			return connectFailedMsg{err: err}
		}
		roomName := ""
		if info, err := apiGetBoard(serverURL, roomCode); err == nil {
			roomName = info.RoomName
		}
		dialer := websocket.Dialer{HandshakeTimeout: httpTimeout}
		conn, _, err := dialer.Dial(wsURL, nil)
		if err != nil {
			return connectFailedMsg{err: err}
		}
		join, err := marshalEvent(EventJoinRoom, JoinRoom{Room: roomCode, Username: username})
		if err != nil {
			_ = conn.Close()
			return connectFailedMsg{err: err}
		}
		if err := conn.WriteMessage(websocket.TextMessage, join); err != nil {
			_ = conn.Close()
			return connectFailedMsg{err: err}
		}
		return connectedMsg{conn: conn, roomName: roomName}
	}
}

// listenCmd reads exactly one broker frame; Update re-issues it after every
// event so the read loop lives inside the bubbletea message cycle.
func (model *TUIModel) listenCmd() tea.Cmd {
	conn := model.websocketConn
	return func() tea.Msg {
		if conn == nil {
			return disconnectedMsg{err: errors.New("not connected")}
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return disconnectedMsg{err: err}
		}
		kind, payload, err := parseServerEvent(raw)
		if err != nil {
			// unreadable frame; keep listening
			return serverEventMsg{kind: "", payload: nil}
		}
		return serverEventMsg{kind: kind, payload: payload}
	}
}

func (model *TUIModel) createBoardCmd(roomName string) tea.Cmd {
	serverURL := model.serverURL
	return func() tea.Msg {
		code, err := apiCreateBoard(serverURL, roomName)
		if err != nil {
			return connectFailedMsg{err: err}
		}
		return boardCreatedMsg{code: code}
	}
}

func (model *TUIModel) saveBoardCmd(name string) tea.Cmd {
	serverURL := model.serverURL
	owner := model.username
	roomCode := model.roomCode
	image := model.snapshotCanvas()
	return func() tea.Msg {
		if err := apiSaveBoard(serverURL, owner, roomCode, name, []byte(image)); err != nil {
			return noticeMsg{text: "Save failed: " + err.Error()}
		}
		return noticeMsg{text: "Board saved as " + name}
	}
}

func (model *TUIModel) sendEvent(kind string, payload any) error {
	if model.websocketConn == nil {
		return errors.New("not connected")
	}
	encoded, err := marshalEvent(kind, payload)
	if err != nil {
		return err
	}
	model.writeMutex.Lock()
	defer model.writeMutex.Unlock()
	return model.websocketConn.WriteMessage(websocket.TextMessage, encoded)
}

func (model *TUIModel) closeConn() {
	if model.websocketConn == nil {
		return
	}
	model.writeMutex.Lock()
	_ = model.websocketConn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	model.writeMutex.Unlock()
	_ = model.websocketConn.Close()
}

// handleBoardInput dispatches one line of input from the board view: slash
// commands drive drawing, history and the shared tool; anything else is chat.
func (model *TUIModel) handleBoardInput(text string) tea.Cmd {
	if !strings.HasPrefix(text, "/") {
		err := model.sendEvent(EventChatMessage, ChatMessage{
			Room: model.roomCode,
			Text: text,
			Ts:   time.Now().UnixMilli(),
		})
		if err != nil {
			model.addNotice("Send failed: " + err.Error())
		}
		// own chat is not applied optimistically; the broker echo is the
		// canonical copy
		return nil
	}

	fields := strings.Fields(text)
	switch fields[0] {
	case "/draw":
		return model.commandDraw(fields[1:])
	case "/undo":
		model.commandUndo()
	case "/redo":
		model.commandRedo()
	case "/clear":
		model.strokes = nil
		model.history.RecordState(model.snapshotCanvas())
		if err := model.sendEvent(EventClearCanvas, ClearCanvas{Room: model.roomCode}); err != nil {
			model.addNotice("Send failed: " + err.Error())
		}
	case "/tool":
		model.commandTool(fields[1:])
	case "/save":
		name := "Board-" + model.roomCode
		if len(fields) > 1 {
			name = strings.Join(fields[1:], " ")
		}
		return model.saveBoardCmd(name)
	default:
		model.addNotice("Unknown command: " + fields[0])
	}
	return nil
}

// commandDraw parses "/draw x,y x,y …" into one stroke, applies it locally
// (optimistic application plus a history snapshot) and relays it.
func (model *TUIModel) commandDraw(args []string) tea.Cmd {
	if len(args) == 0 {
		model.addNotice("Usage: /draw x,y x,y …")
		return nil
	}
	points := make([][2]float64, 0, len(args))
	for _, arg := range args {
		xy := strings.SplitN(arg, ",", 2)
		if len(xy) != 2 {
			model.addNotice("Bad point: " + arg)
			return nil
		}
		x, errX := strconv.ParseFloat(xy[0], 64)
		y, errY := strconv.ParseFloat(xy[1], 64)
		if errX != nil || errY != nil {
			model.addNotice("Bad point: " + arg)
			return nil
		}
		points = append(points, [2]float64{x, y})
	}
	stroke := Drawing{
		Room:      model.roomCode,
		Tool:      model.ownTool.Tool,
		Color:     model.ownTool.Color,
		BrushSize: model.ownTool.BrushSize,
		Points:    points,
		Sender:    model.username,
		Ts:        time.Now().UnixMilli(),
	}
	model.strokes = append(model.strokes, stroke)
	model.history.RecordState(model.snapshotCanvas())
	if err := model.sendEvent(EventDrawing, stroke); err != nil {
		model.addNotice("Send failed: " + err.Error())
	}
	return nil
}

func (model *TUIModel) commandUndo() {
	snapshot, result := model.history.Undo()
	switch result {
	case UndoEmpty:
		model.addNotice("Nothing to undo")
		return
	case UndoBlank:
		model.restoreCanvas(nil)
	case UndoSnapshot:
		model.restoreCanvas(snapshot)
	}
	if err := model.sendEvent(EventUndoAction, HistoryAction{Room: model.roomCode}); err != nil {
		model.addNotice("Send failed: " + err.Error())
	}
}

func (model *TUIModel) commandRedo() {
	snapshot, ok := model.history.Redo()
	if !ok {
		model.addNotice("Nothing to redo")
		return
	}
	model.restoreCanvas(snapshot)
	if err := model.sendEvent(EventRedoAction, HistoryAction{Room: model.roomCode}); err != nil {
		model.addNotice("Send failed: " + err.Error())
	}
}

func (model *TUIModel) commandTool(args []string) {
	if len(args) == 0 {
		model.addNotice("Usage: /tool pen|eraser [color] [size]")
		return
	}
	tool := model.ownTool
	tool.Tool = args[0]
	if len(args) > 1 {
		tool.Color = args[1]
	}
	if len(args) > 2 {
		if size, err := strconv.ParseFloat(args[2], 64); err == nil && size > 0 {
			tool.BrushSize = size
		}
	}
	tool.Room = model.roomCode
	model.ownTool = tool
	if err := model.sendEvent(EventToolChange, tool); err != nil {
		model.addNotice("Send failed: " + err.Error())
	}
	model.addNotice(fmt.Sprintf("Tool: %s %s %.0fpx", tool.Tool, tool.Color, tool.BrushSize))
}
