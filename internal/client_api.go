package internal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var httpTimeout = 5 * time.Second

// BoardInfo is what the REST API reports about a board.
type BoardInfo struct {
	RoomCode string   `json:"roomCode"`
	RoomName string   `json:"roomName"`
	Users    []string `json:"users"`
}

type createBoardResponse struct {
	Success  bool   `json:"success"`
	RoomCode string `json:"roomCode"`
	Message  string `json:"message"`
}

type boardInfoResponse struct {
	Success    bool      `json:"success"`
	Whiteboard BoardInfo `json:"whiteboard"`
	Message    string    `json:"message"`
}

func apiCreateBoard(baseURL, roomName string) (string, error) {
	var resp createBoardResponse
	payload := map[string]string{"roomName": roomName}
	if err := doJSONRequest(http.MethodPost, baseURL+"/api/whiteboards/create", payload, &resp); err != nil {
		return "", err
	}
	if !resp.Success || resp.RoomCode == "" {
		return "", errors.New("server did not return a room code")
	}
	return resp.RoomCode, nil
}

func apiGetBoard(baseURL, code string) (*BoardInfo, error) {
	var resp boardInfoResponse
	endpoint := baseURL + "/api/whiteboards/" + url.PathEscape(code)
	if err := doJSONRequest(http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Whiteboard, nil
}

func apiSaveBoard(baseURL, owner, roomCode, name string, imageData []byte) error {
	payload := map[string]any{
		"owner":     owner,
		"roomCode":  roomCode,
		"name":      name,
		"imageData": imageData,
	}
	return doJSONRequest(http.MethodPost, baseURL+"/api/boards", payload, nil)
}

func doJSONRequest(method, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(buf)
	}
	req, err := http.NewRequest(method, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	client := &http.Client{Timeout: httpTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Message != "" {
			return errors.New(apiErr.Message)
		}
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// websocketURL rewrites the REST base URL into the broker's socket endpoint.
func websocketURL(baseURL string) (string, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server scheme %q", parsed.Scheme)
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/") + "/ws"
	return parsed.String(), nil
}

// parseServerEvent decodes a broker frame into the typed payload the client
// reacts to. Unknown kinds are reported as-is with a nil payload so the UI
// can ignore them quietly.
func parseServerEvent(raw []byte) (string, any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, err
	}
	var payload any
	switch env.Type {
	case EventCurrentUsers:
		payload = &CurrentUsers{}
	case EventUserJoined, EventUserLeft:
		payload = &UserPresence{}
	case EventDrawing:
		payload = &Drawing{}
	case EventToolChanged:
		payload = &ToolChange{}
	case EventCanvasCleared, EventUndoPerformed, EventRedoPerformed:
		payload = &ActorRef{}
	case EventChatMessage:
		payload = &ChatMessage{}
	case EventChatHistory:
		payload = &ChatHistory{}
	case EventError:
		payload = &ErrorPayload{}
	default:
		return env.Type, nil, nil
	}
	if err := json.Unmarshal(env.Data, payload); err != nil {
		return env.Type, nil, err
	}
	return env.Type, payload, nil
}
