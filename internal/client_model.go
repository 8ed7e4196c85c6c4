package internal

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

// TUIModel drives the terminal client: menu and prompt screens, then the live
// board view with chat, roster, the shared tool indicator and the local
// undo/redo stacks held in lockstep with peers.
type TUIModel struct {
	textInput textinput.Model
	serverURL string
	username  string
	roomCode  string
	roomName  string

	websocketConn   *websocket.Conn
	writeMutex      sync.Mutex
	isConnected     bool
	connectionError error

	mode          appMode
	pendingAction actionType

	chat         []ChatMessage
	roster       []string
	notices      []string
	tool         *ToolChange
	ownTool      ToolChange
	strokes      []Drawing
	history      *History
	outOfSync    bool
	lastActivity string
}

type appMode int

const (
	modeMenu appMode = iota
	modeNamePrompt
	modeRoomPrompt
	modeBoard
)

type actionType int

const (
	actionNone actionType = iota
	actionJoin
	actionCreate
)

func NewTUIModel(serverURL, roomCode, username string) *TUIModel {
	input := textinput.New()
	input.Placeholder = "Chat, or /draw /undo /redo /clear /tool …"
	input.CharLimit = 0
	input.Focus()
	input.Prompt = "> "

	if username == "" {
		username = defaultUsername()
	}

	model := &TUIModel{
		textInput: input,
		serverURL: serverURL,
		roomCode:  roomCode,
		username:  username,
		chat:      make([]ChatMessage, 0, 64),
		history:   NewHistory(),
		ownTool:   ToolChange{Tool: "pen", Color: "#000000", BrushSize: 3},
	}
	if roomCode == "" {
		model.mode = modeMenu
		model.textInput.Blur()
		model.textInput.Prompt = ""
		model.textInput.Placeholder = ""
	} else {
		model.mode = modeBoard
	}
	return model
}

func defaultUsername() string {
	if user := os.Getenv("COLLABBOARD_USER"); user != "" {
		return user
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "anon"
}

func (model *TUIModel) Init() tea.Cmd {
	if model.mode == modeBoard {
		return model.connectCmd()
	}
	return nil
}

// snapshotCanvas captures the stroke replica as an opaque history snapshot.
func (model *TUIModel) snapshotCanvas() Snapshot {
	encoded, err := json.Marshal(model.strokes)
	if err != nil {
		return nil
	}
	return Snapshot(encoded)
}

// restoreCanvas replaces the stroke replica from a snapshot; nil means blank.
func (model *TUIModel) restoreCanvas(s Snapshot) {
	if len(s) == 0 {
		model.strokes = nil
		return
	}
	var strokes []Drawing
	if err := json.Unmarshal([]byte(s), &strokes); err != nil {
		return
	}
	model.strokes = strokes
}

func (model *TUIModel) addNotice(text string) {
	model.notices = append(model.notices, text)
	if len(model.notices) > 5 {
		model.notices = model.notices[len(model.notices)-5:]
	}
}

func (model *TUIModel) addChat(msg ChatMessage) {
	model.chat = append(model.chat, msg)
	if len(model.chat) > 200 {
		model.chat = model.chat[len(model.chat)-200:]
	}
}
