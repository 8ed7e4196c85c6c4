package internal

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// Metrics counts broker activity. A nil *Metrics is valid and counts nothing,
// so components can be wired without one in tests.
type Metrics struct {
	sessionsCreated atomic.Uint64
	sessionsEvicted atomic.Uint64
	activeConns     atomic.Int64
	eventsRelayed   atomic.Uint64
	chatArchived    atomic.Uint64
	archiveDropped  atomic.Uint64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncSessionCreated() {
	if m != nil {
		m.sessionsCreated.Add(1)
	}
}

func (m *Metrics) IncSessionEvicted() {
	if m != nil {
		m.sessionsEvicted.Add(1)
	}
}

func (m *Metrics) IncConn() {
	if m != nil {
		m.activeConns.Add(1)
	}
}

func (m *Metrics) DecConn() {
	if m != nil {
		m.activeConns.Add(-1)
	}
}

func (m *Metrics) IncEventRelayed() {
	if m != nil {
		m.eventsRelayed.Add(1)
	}
}

func (m *Metrics) IncChatArchived() {
	if m != nil {
		m.chatArchived.Add(1)
	}
}

func (m *Metrics) IncArchiveDropped() {
	if m != nil {
		m.archiveDropped.Add(1)
	}
}

func (m *Metrics) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{
		"sessions_created_total": m.sessionsCreated.Load(),
		"sessions_evicted_total": m.sessionsEvicted.Load(),
		"active_connections":     m.activeConns.Load(),
		"events_relayed_total":   m.eventsRelayed.Load(),
		"chat_archived_total":    m.chatArchived.Load(),
		"archive_dropped_total":  m.archiveDropped.Load(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
