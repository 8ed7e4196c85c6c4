package internal

import (
	"sync"
	"time"
)

const (
	relayBuffer    = 256
	maxChatBacklog = 100
)

// outbound is one fan-out unit handed to a session's run loop: the encoded
// frame, the handle to exclude (empty means broadcast-to-all), and the state
// the loop must fold into the session before delivering, so the retained
// backlog and tool state always match the delivery order peers observed.
type outbound struct {
	payload []byte
	exclude string
	chat    *ChatMessage
	tool    *ToolChange
}

// Session is one collaborative board room. All membership changes and
// broadcasts are serialized through a single run goroutine, which is what
// gives chat its broker-determined total order; different sessions never
// contend with each other.
type Session struct {
	Code      string
	Name      string
	CreatedAt time.Time

	participants *participantSet

	mu         sync.RWMutex
	chatLog    []ChatMessage
	tool       *ToolChange
	emptySince time.Time

	join  chan *member
	part  chan string
	relay chan outbound
	done  chan struct{}
}

func newSession(code, name string, now time.Time) *Session {
	s := &Session{
		Code:         code,
		Name:         name,
		CreatedAt:    now,
		participants: newParticipantSet(),
		emptySince:   now,
		join:         make(chan *member),
		part:         make(chan string),
		relay:        make(chan outbound, relayBuffer),
		done:         make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Session) run() {
	for {
		select {
		case m := <-s.join:
			s.handleJoin(m)
		case handle := <-s.part:
			s.handleLeave(handle)
		case out := <-s.relay:
			s.handleRelay(out)
		case <-s.done:
			return
		}
	}
}

func (s *Session) handleJoin(m *member) {
	// The roster snapshot is taken before the join so the hydration frame
	// lists only the peers that were already present.
	others := s.participants.roster()
	nameIsNew := s.participants.add(m)

	s.mu.Lock()
	s.emptySince = time.Time{}
	tool := s.tool
	backlog := make([]ChatMessage, len(s.chatLog))
	copy(backlog, s.chatLog)
	s.mu.Unlock()

	s.deliverTo(m, EventCurrentUsers, CurrentUsers{Users: others})
	if tool != nil {
		s.deliverTo(m, EventToolChanged, *tool)
	}
	if len(backlog) > 0 {
		s.deliverTo(m, EventChatHistory, ChatHistory{Messages: backlog})
	}

	if nameIsNew {
		s.fanOut(EventUserJoined, UserPresence{Username: m.name}, m.handle)
	}
}

func (s *Session) handleLeave(handle string) {
	m, nameGone := s.participants.remove(handle)
	if m == nil {
		return
	}
	if nameGone {
		s.fanOut(EventUserLeft, UserPresence{Username: m.name}, "")
	}
	if s.participants.size() == 0 {
		s.mu.Lock()
		s.emptySince = time.Now()
		s.mu.Unlock()
	}
}

func (s *Session) handleRelay(out outbound) {
	if out.chat != nil {
		s.mu.Lock()
		s.chatLog = append(s.chatLog, *out.chat)
		if len(s.chatLog) > maxChatBacklog {
			s.chatLog = s.chatLog[len(s.chatLog)-maxChatBacklog:]
		}
		s.mu.Unlock()
	}
	if out.tool != nil {
		s.mu.Lock()
		s.tool = out.tool
		s.mu.Unlock()
	}
	s.participants.each(func(m *member) {
		if m.handle == out.exclude {
			return
		}
		// A recipient that cannot accept right now is skipped; the rest of
		// the fan-out is unaffected.
		m.out.deliver(out.payload)
	})
}

func (s *Session) fanOut(kind string, payload any, exclude string) {
	encoded, err := marshalEvent(kind, payload)
	if err != nil {
		return
	}
	s.handleRelay(outbound{payload: encoded, exclude: exclude})
}

func (s *Session) deliverTo(m *member, kind string, payload any) {
	encoded, err := marshalEvent(kind, payload)
	if err != nil {
		return
	}
	m.out.deliver(encoded)
}

// addMember hands the connection to the run loop. It fails only when the
// session was evicted between lookup and join.
func (s *Session) addMember(m *member) error {
	select {
	case s.join <- m:
		return nil
	case <-s.done:
		return ErrUnknownSession
	}
}

func (s *Session) removeMember(handle string) {
	select {
	case s.part <- handle:
	case <-s.done:
	}
}

func (s *Session) broadcast(out outbound) {
	select {
	case s.relay <- out:
	case <-s.done:
	}
}

// Roster lists current display names in join order.
func (s *Session) Roster() []string {
	return s.participants.roster()
}

// ParticipantCount reports live connections, not distinct names.
func (s *Session) ParticipantCount() int {
	return s.participants.size()
}

// EmptyFor reports how long the session has had no participants; zero while
// anyone is connected.
func (s *Session) EmptyFor(now time.Time) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.emptySince.IsZero() || s.participants.size() > 0 {
		return 0
	}
	return now.Sub(s.emptySince)
}

func (s *Session) closeLoop() {
	close(s.done)
}
