package internal

import "errors"

// errRoomMismatch marks an event whose room field names a session the
// connection is not joined to. Policy is a silent drop.
var errRoomMismatch = errors.New("event names a session the connection is not joined to")

// ActorRef is the outbound payload for events that only need to say who acted.
type ActorRef struct {
	Sender string `json:"sender"`
}

// relayRule is one row of the audience table: the outbound kind peers receive
// and whether the sender gets an echo. Drawing, tool, clear, undo and redo
// are applied optimistically by the originating client, so echoing them would
// double-apply; chat is not applied optimistically — the copy that round-trips
// through the broker is the canonical one, which makes the broker the single
// ordering authority for chat.
type relayRule struct {
	outKind string
	echo    bool
}

var relayRules = map[string]relayRule{
	EventDrawing:     {outKind: EventDrawing, echo: false},
	EventToolChange:  {outKind: EventToolChanged, echo: false},
	EventClearCanvas: {outKind: EventCanvasCleared, echo: false},
	EventUndoAction:  {outKind: EventUndoPerformed, echo: false},
	EventRedoAction:  {outKind: EventRedoPerformed, echo: false},
	EventChatMessage: {outKind: EventChatMessage, echo: true},
}

// routeEvent is the one place the audience table is enforced. It stamps the
// sender identity and session code over whatever the client claimed, folds
// session state (tool, chat backlog) into the broadcast, and hands the frame
// to the session for fire-and-forget fan-out. The returned ChatMessage is
// non-nil only for chat, so the caller can archive it.
func routeEvent(s *Session, senderHandle, senderName, kind string, payload any) (*ChatMessage, error) {
	rule, ok := relayRules[kind]
	if !ok {
		return nil, errMalformedEvent
	}

	out := outbound{}
	if !rule.echo {
		out.exclude = senderHandle
	}

	var relayed any
	switch p := payload.(type) {
	case Drawing:
		if p.Room != "" && p.Room != s.Code {
			return nil, errRoomMismatch
		}
		p.Room = s.Code
		p.Sender = senderName
		relayed = p
	case ToolChange:
		if p.Room != "" && p.Room != s.Code {
			return nil, errRoomMismatch
		}
		p.Room = s.Code
		p.Sender = senderName
		out.tool = &p
		relayed = p
	case ClearCanvas:
		if p.Room != "" && p.Room != s.Code {
			return nil, errRoomMismatch
		}
		relayed = ActorRef{Sender: senderName}
	case HistoryAction:
		if p.Room != "" && p.Room != s.Code {
			return nil, errRoomMismatch
		}
		relayed = ActorRef{Sender: senderName}
	case ChatMessage:
		if p.Room != "" && p.Room != s.Code {
			return nil, errRoomMismatch
		}
		p.Room = s.Code
		p.Sender = senderName
		out.chat = &p
		relayed = p
	default:
		return nil, errMalformedEvent
	}

	encoded, err := marshalEvent(rule.outKind, relayed)
	if err != nil {
		return nil, err
	}
	out.payload = encoded
	s.broadcast(out)
	return out.chat, nil
}
