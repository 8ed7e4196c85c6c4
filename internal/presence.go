package internal

import (
	"sync"
	"time"
)

// outbox is the non-blocking delivery target for one connection. deliver
// returns false when the recipient cannot accept the payload right now;
// the broadcast moves on to the next recipient either way.
type outbox interface {
	deliver(payload []byte) bool
}

// member is one connected participant: an opaque connection handle bound to
// a display name inside exactly one session.
type member struct {
	handle   string
	name     string
	joinedAt time.Time
	out      outbox
}

// participantSet tracks a session's live connections keyed by handle. Display
// names are not unique, so the roster and the join/leave notifications are
// deduplicated by name while every handle stays individually tracked —
// disconnecting one of two same-named connections must never remove the other.
type participantSet struct {
	mu      sync.RWMutex
	members map[string]*member
	order   []string // handles in join order
}

func newParticipantSet() *participantSet {
	return &participantSet{members: make(map[string]*member)}
}

// add registers the member and reports whether its display name is new to the
// session, i.e. whether a user-joined notification is due.
func (p *participantSet) add(m *member) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	nameIsNew := !p.nameTrackedLocked(m.name)
	p.members[m.handle] = m
	p.order = append(p.order, m.handle)
	return nameIsNew
}

// remove drops the handle and reports the removed member plus whether its
// display name has no remaining connections, i.e. whether a user-left
// notification is due.
func (p *participantSet) remove(handle string) (*member, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.members[handle]
	if !ok {
		return nil, false
	}
	delete(p.members, handle)
	for i, h := range p.order {
		if h == handle {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return m, !p.nameTrackedLocked(m.name)
}

func (p *participantSet) nameTrackedLocked(name string) bool {
	for _, m := range p.members {
		if m.name == name {
			return true
		}
	}
	return false
}

// roster returns display names in join order, one entry per name even when
// several connections share it.
func (p *participantSet) roster() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	seen := make(map[string]bool, len(p.members))
	names := make([]string, 0, len(p.members))
	for _, h := range p.order {
		m := p.members[h]
		if seen[m.name] {
			continue
		}
		seen[m.name] = true
		names = append(names, m.name)
	}
	return names
}

func (p *participantSet) size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.members)
}

// each visits a snapshot of the current members, so delivery never runs under
// the set's lock.
func (p *participantSet) each(fn func(*member)) {
	p.mu.RLock()
	snapshot := make([]*member, 0, len(p.members))
	for _, m := range p.members {
		snapshot = append(snapshot, m)
	}
	p.mu.RUnlock()
	for _, m := range snapshot {
		fn(m)
	}
}
