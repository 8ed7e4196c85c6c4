package internal

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"collabboard/internal/storage"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 8192

	chatBurst       = 5
	chatBurstWindow = 3 * time.Second

	provisionBurst  = 10
	provisionWindow = time.Minute
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// all origins allowed; the broker has no auth and any caller who
		// knows a room code may join
		return true
	},
}

// Server ties the registry, metrics, archiver and the optional store to the
// websocket and REST surfaces.
type Server struct {
	registry         *Registry
	metrics          *Metrics
	store            *storage.Store
	archiver         *chatArchiver
	chatLimiter      *RateLimiter
	provisionLimiter *RateLimiter
}

// NewServer wires the broker surfaces. store may be nil for a memory-only
// broker; saved-board routes then answer 503 and chat is not archived.
func NewServer(registry *Registry, metrics *Metrics, store *storage.Store) *Server {
	var sink Archiver
	if store != nil {
		sink = store
	}
	return &Server{
		registry:         registry,
		metrics:          metrics,
		store:            store,
		archiver:         newChatArchiver(sink, metrics),
		chatLimiter:      NewRateLimiter(chatBurst, chatBurstWindow),
		provisionLimiter: NewRateLimiter(provisionBurst, provisionWindow),
	}
}

// Registry exposes the session registry for the REST layer.
func (s *Server) Registry() *Registry {
	return s.registry
}

// MetricsHandler exposes the JSON counters endpoint.
func (s *Server) MetricsHandler() http.Handler {
	return s.metrics
}

// Client is one websocket connection moving through Connected -> Joined ->
// Disconnected. session and name are only touched from the connection's own
// read goroutine; deliver may run from any session loop and never blocks.
type Client struct {
	id     string
	conn   *websocket.Conn
	server *Server

	send   chan []byte
	closed chan struct{}

	session *Session
	name    string
}

// deliver implements outbox. It reports false instead of waiting when the
// connection is gone or its buffer is full; a slow reader loses frames, not
// the whole room.
func (c *Client) deliver(payload []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// ServeWS upgrades the request and runs the connection until the transport
// closes. The connection is anonymous until its first join-room event.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade error: %v", err)
		return
	}
	client := &Client{
		id:     uuid.NewString(),
		conn:   conn,
		server: s,
		send:   make(chan []byte, 256),
		closed: make(chan struct{}),
	}
	s.metrics.IncConn()

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		if c.session != nil {
			// leave always notifies remaining peers; the registry records
			// when the session went empty so the janitor can age it out
			c.session.removeMember(c.id)
		}
		close(c.closed)
		c.conn.Close()
		c.server.chatLimiter.Forget(c.id)
		c.server.metrics.DecConn()
	}()
	c.conn.SetReadLimit(maxMsgSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			// normal close or read error; deferred cleanup runs
			break
		}
		kind, payload, err := decodeInbound(raw)
		if err != nil {
			// malformed payloads are dropped at the boundary
			continue
		}
		if kind == EventJoinRoom {
			c.handleJoin(payload.(JoinRoom))
			continue
		}
		if c.session == nil {
			// events before a completed join are treated as malformed
			// client state and dropped
			continue
		}
		if kind == EventChatMessage && !c.server.chatLimiter.Allow(c.id) {
			c.notifyRateLimit()
			continue
		}
		chat, err := routeEvent(c.session, c.id, c.name, kind, payload)
		if err != nil {
			continue
		}
		c.server.metrics.IncEventRelayed()
		if chat != nil {
			c.server.archiver.enqueue(*chat)
		}
	}
}

func (c *Client) handleJoin(join JoinRoom) {
	if c.session != nil {
		// a connection binds to exactly one session; repeat joins are noise
		return
	}
	sess, err := c.server.registry.GetSession(join.Room)
	if err == nil {
		err = sess.addMember(&member{
			handle:   c.id,
			name:     join.Username,
			joinedAt: time.Now(),
			out:      c,
		})
	}
	if err != nil {
		if errors.Is(err, ErrUnknownSession) {
			c.sendEvent(EventError, ErrorPayload{Code: "unknown-session", Message: "room " + join.Room + " does not exist"})
			return
		}
		log.Printf("join %s: %v", join.Room, err)
		return
	}
	c.session = sess
	c.name = join.Username
}

func (c *Client) notifyRateLimit() {
	c.sendEvent(EventChatMessage, ChatMessage{
		Room:   c.session.Code,
		Sender: SystemSender,
		Text:   "You're sending messages too quickly. Please wait a moment and try again.",
		Ts:     time.Now().UnixMilli(),
	})
}

func (c *Client) sendEvent(kind string, payload any) {
	encoded, err := marshalEvent(kind, payload)
	if err != nil {
		return
	}
	c.deliver(encoded)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-c.closed:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// RunArchiver drains the chat archive queue until ctx is done. No-op when the
// server runs memory-only.
func (s *Server) RunArchiver(ctx context.Context) {
	s.archiver.run(ctx)
}
