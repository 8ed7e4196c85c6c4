package internal

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Event kinds carried in the websocket envelope. Inbound kinds are what
// clients send; outbound kinds are what the broker relays or synthesizes.
const (
	EventJoinRoom    = "join-room"
	EventDrawing     = "drawing"
	EventClearCanvas = "clear-canvas"
	EventUndoAction  = "undo-action"
	EventRedoAction  = "redo-action"
	EventToolChange  = "tool-change"
	EventChatMessage = "chat-message"

	EventCurrentUsers  = "current-users"
	EventUserJoined    = "user-joined"
	EventUserLeft      = "user-left"
	EventCanvasCleared = "canvas-cleared"
	EventUndoPerformed = "undo-performed"
	EventRedoPerformed = "redo-performed"
	EventToolChanged   = "tool-changed"
	EventChatHistory   = "chat-history"
	EventError         = "error"
)

const (
	// Older points are dropped past this cap so a single drawing event stays
	// bounded no matter how long the client buffered mouse moves.
	maxDrawPoints = 50
	maxChatLen    = 500
	maxNameLen    = 40
)

// SystemSender is the reserved display name for broker-synthesized messages.
const SystemSender = "system"

var errMalformedEvent = errors.New("malformed event payload")

// Envelope is the wire frame every websocket message uses.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// JoinRoom binds a connection to a session and display name.
type JoinRoom struct {
	Room     string `json:"room"`
	Username string `json:"username"`
}

// Drawing is one relayed stroke fragment. Points are absolute coordinates,
// so a dropped fragment is self-healing on the next one.
type Drawing struct {
	Room      string       `json:"room"`
	Tool      string       `json:"tool"`
	Color     string       `json:"color"`
	BrushSize float64      `json:"brushSize"`
	Points    [][2]float64 `json:"points"`
	Sender    string       `json:"sender"`
	Ts        int64        `json:"ts"`
}

// ClearCanvas asks peers to wipe their canvases.
type ClearCanvas struct {
	Room   string `json:"room"`
	Sender string `json:"sender"`
}

// HistoryAction announces that the sender ran an undo or a redo locally.
// It carries no canvas state; peers step their own history stacks.
type HistoryAction struct {
	Room   string `json:"room"`
	Sender string `json:"sender"`
}

// ToolChange keeps the shared tool indicator consistent. Receivers only use
// it for display and for replaying the sender's strokes, never to switch
// their own active tool.
type ToolChange struct {
	Room      string  `json:"room"`
	Tool      string  `json:"tool"`
	Color     string  `json:"color"`
	BrushSize float64 `json:"brushSize"`
	Sender    string  `json:"sender"`
}

// ChatMessage round-trips through the broker even for its own sender, so
// everyone observes the same relative order.
type ChatMessage struct {
	Room   string `json:"room"`
	Sender string `json:"sender"`
	Text   string `json:"text"`
	Ts     int64  `json:"ts"`
}

// CurrentUsers hydrates a newly joined connection with the roster.
type CurrentUsers struct {
	Users []string `json:"users"`
}

// UserPresence is the payload for user-joined and user-left deltas.
type UserPresence struct {
	Username string `json:"username"`
}

// ChatHistory hydrates a late joiner with the session's recent backlog.
type ChatHistory struct {
	Messages []ChatMessage `json:"messages"`
}

// ErrorPayload is the only error surface the socket exposes.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func marshalEvent(kind string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: kind, Data: data})
}

// decodeInbound parses a raw client frame into exactly one of the inbound
// payload types. Anything that does not validate is reported as malformed;
// the caller drops it without crashing the connection.
func decodeInbound(raw []byte) (string, any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, errMalformedEvent
	}
	switch env.Type {
	case EventJoinRoom:
		var p JoinRoom
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return env.Type, nil, errMalformedEvent
		}
		p.Room = strings.TrimSpace(p.Room)
		p.Username = strings.TrimSpace(p.Username)
		if p.Room == "" || p.Username == "" || len(p.Username) > maxNameLen {
			return env.Type, nil, errMalformedEvent
		}
		return env.Type, p, nil
	case EventDrawing:
		var p Drawing
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return env.Type, nil, errMalformedEvent
		}
		if p.Tool == "" || p.BrushSize <= 0 || len(p.Points) == 0 {
			return env.Type, nil, errMalformedEvent
		}
		if len(p.Points) > maxDrawPoints {
			p.Points = p.Points[len(p.Points)-maxDrawPoints:]
		}
		if p.Ts == 0 {
			p.Ts = time.Now().UnixMilli()
		}
		return env.Type, p, nil
	case EventClearCanvas:
		var p ClearCanvas
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return env.Type, nil, errMalformedEvent
		}
		return env.Type, p, nil
	case EventUndoAction, EventRedoAction:
		var p HistoryAction
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return env.Type, nil, errMalformedEvent
		}
		return env.Type, p, nil
	case EventToolChange:
		var p ToolChange
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return env.Type, nil, errMalformedEvent
		}
		if p.Tool == "" || p.BrushSize <= 0 {
			return env.Type, nil, errMalformedEvent
		}
		return env.Type, p, nil
	case EventChatMessage:
		var p ChatMessage
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return env.Type, nil, errMalformedEvent
		}
		p.Text = strings.TrimSpace(p.Text)
		if p.Text == "" || len(p.Text) > maxChatLen {
			return env.Type, nil, errMalformedEvent
		}
		if p.Ts == 0 {
			p.Ts = time.Now().UnixMilli()
		}
		return env.Type, p, nil
	default:
		return env.Type, nil, errMalformedEvent
	}
}
