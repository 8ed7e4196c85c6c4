package internal

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"collabboard/internal/storage"
)

type createBoardRequest struct {
	RoomName string `json:"roomName"`
}

type joinBoardRequest struct {
	Username string `json:"username"`
}

type boardInfo struct {
	RoomCode  string    `json:"roomCode"`
	RoomName  string    `json:"roomName"`
	Users     []string  `json:"users"`
	CreatedAt time.Time `json:"createdAt"`
}

type saveBoardRequest struct {
	Owner     string `json:"owner"`
	RoomCode  string `json:"roomCode"`
	Name      string `json:"name"`
	ImageData []byte `json:"imageData"`
}

type savedBoardDTO struct {
	ID        int64     `json:"id"`
	Owner     string    `json:"owner"`
	RoomCode  string    `json:"roomCode"`
	Name      string    `json:"name"`
	ImageData []byte    `json:"imageData"`
	CreatedAt time.Time `json:"createdAt"`
}

// Routes builds the REST surface: board provisioning (the out-of-band session
// provisioning collaborator), board info, explicit teardown, saved snapshots,
// health and metrics, plus the websocket endpoint itself.
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.ServeWS)
	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	r.HandleFunc("/api/whiteboards/create", s.handleCreateBoard).Methods(http.MethodPost)
	r.HandleFunc("/api/whiteboards/{code}", s.handleGetBoard).Methods(http.MethodGet)
	r.HandleFunc("/api/whiteboards/{code}", s.handleDeleteBoard).Methods(http.MethodDelete)
	r.HandleFunc("/api/whiteboards/{code}/join", s.handleJoinBoard).Methods(http.MethodPost)
	r.HandleFunc("/api/whiteboards/{code}/chat", s.handleChatArchive).Methods(http.MethodGet)
	r.HandleFunc("/api/boards", s.handleSaveBoard).Methods(http.MethodPost)
	r.HandleFunc("/api/boards/{owner}", s.handleListSavedBoards).Methods(http.MethodGet)
	r.HandleFunc("/api/boards/{id:[0-9]+}", s.handleDeleteSavedBoard).Methods(http.MethodDelete)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	database := "memory-only"
	if s.store != nil {
		database = "sqlite"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"database":  database,
		"sessions":  s.registry.Count(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleCreateBoard(w http.ResponseWriter, r *http.Request) {
	if !s.provisionLimiter.Allow(clientIP(r)) {
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		return
	}
	var req createBoardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sess := s.registry.CreateSession(strings.TrimSpace(req.RoomName))
	if s.store != nil {
		if err := s.store.CreateBoard(r.Context(), sess.Code, sess.Name); err != nil && !errors.Is(err, storage.ErrBoardExists) {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"roomCode": sess.Code,
		"message":  "Whiteboard created successfully",
	})
}

func (s *Server) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	sess, err := s.registry.GetSession(code)
	if err != nil {
		writeError(w, http.StatusNotFound, errors.New("Room not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"whiteboard": boardInfo{
			RoomCode:  sess.Code,
			RoomName:  sess.Name,
			Users:     sess.Roster(),
			CreatedAt: sess.CreatedAt,
		},
	})
}

// handleJoinBoard is the REST preview of a join: it validates the code and
// returns the roster. Presence itself only changes through the socket join.
func (s *Server) handleJoinBoard(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	var req joinBoardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		writeError(w, http.StatusBadRequest, errors.New("username is required"))
		return
	}
	sess, err := s.registry.GetSession(code)
	if err != nil {
		writeError(w, http.StatusNotFound, errors.New("Room not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"whiteboard": boardInfo{
			RoomCode:  sess.Code,
			RoomName:  sess.Name,
			Users:     sess.Roster(),
			CreatedAt: sess.CreatedAt,
		},
	})
}

// handleChatArchive serves the durable chat backlog for a room. Unlike the
// socket's chat-history hydration this reads the archive, so it works for
// rooms whose live session is gone.
func (s *Server) handleChatArchive(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("persistence is not configured"))
		return
	}
	code := mux.Vars(r)["code"]
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}
	records, err := s.store.ChatBacklog(r.Context(), code, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	messages := make([]ChatMessage, 0, len(records))
	for _, rec := range records {
		messages = append(messages, ChatMessage{
			Room:   rec.RoomCode,
			Sender: rec.Sender,
			Text:   rec.Body,
			Ts:     rec.Ts,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "messages": messages})
}

// handleDeleteBoard is the explicit teardown confirmation path. It is the
// only way to destroy a session whose room has durable history.
func (s *Server) handleDeleteBoard(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	if err := s.registry.Delete(code); err != nil {
		writeError(w, http.StatusNotFound, errors.New("Room not found"))
		return
	}
	if s.store != nil {
		if err := s.store.DeleteBoard(r.Context(), code); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSaveBoard(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("persistence is not configured"))
		return
	}
	var req saveBoardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Owner == "" || req.Name == "" || len(req.ImageData) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("owner, name and imageData are required"))
		return
	}
	id, err := s.store.SaveBoard(r.Context(), storage.SavedBoard{
		Owner:     req.Owner,
		RoomCode:  req.RoomCode,
		Name:      req.Name,
		ImageData: req.ImageData,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "id": id})
}

func (s *Server) handleListSavedBoards(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("persistence is not configured"))
		return
	}
	owner := mux.Vars(r)["owner"]
	boards, err := s.store.ListSavedBoards(r.Context(), owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	dtos := make([]savedBoardDTO, 0, len(boards))
	for _, b := range boards {
		dtos = append(dtos, savedBoardDTO{
			ID:        b.ID,
			Owner:     b.Owner,
			RoomCode:  b.RoomCode,
			Name:      b.Name,
			ImageData: b.ImageData,
			CreatedAt: b.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "savedBoards": dtos})
}

func (s *Server) handleDeleteSavedBoard(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("persistence is not configured"))
		return
	}
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.store.DeleteSavedBoard(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeJSON(r *http.Request, out any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"success": false, "message": err.Error()})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.IndexByte(forwarded, ','); idx >= 0 {
			forwarded = forwarded[:idx]
		}
		return strings.TrimSpace(forwarded)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
