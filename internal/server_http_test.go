package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"collabboard/internal/storage"
)

func newTestBrokerWithStore(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "broker.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	srv := NewServer(NewRegistry(0, store, nil), NewMetrics(), store)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return srv, ts
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestCreateBoardIssuesWellFormedCode(t *testing.T) {
	_, ts := newTestBroker(t)
	resp := postJSON(t, ts.URL+"/api/whiteboards/create", map[string]string{"roomName": "Sprint Planning"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var created struct {
		Success  bool   `json:"success"`
		RoomCode string `json:"roomCode"`
	}
	decodeBody(t, resp, &created)
	if !created.Success {
		t.Fatalf("create reported failure")
	}
	if !roomCodePattern.MatchString(created.RoomCode) {
		t.Fatalf("room code %q does not match adjective-noun-NNNN", created.RoomCode)
	}
}

func TestGetBoardReturnsRosterAndName(t *testing.T) {
	srv, ts := newTestBroker(t)
	sess := srv.Registry().CreateSession("Design Review")

	resp, err := http.Get(ts.URL + "/api/whiteboards/" + sess.Code)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Success    bool      `json:"success"`
		Whiteboard boardInfo `json:"whiteboard"`
	}
	decodeBody(t, resp, &body)
	if body.Whiteboard.RoomCode != sess.Code || body.Whiteboard.RoomName != "Design Review" {
		t.Fatalf("unexpected board info: %+v", body.Whiteboard)
	}
	if len(body.Whiteboard.Users) != 0 {
		t.Fatalf("expected empty roster, got %v", body.Whiteboard.Users)
	}
}

func TestGetUnknownBoardIs404(t *testing.T) {
	_, ts := newTestBroker(t)
	resp, err := http.Get(ts.URL + "/api/whiteboards/no-such-room-0000")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	var body struct {
		Success bool `json:"success"`
	}
	decodeBody(t, resp, &body)
	if body.Success {
		t.Fatalf("404 body must report success=false")
	}
}

func TestJoinPreviewRequiresUsername(t *testing.T) {
	srv, ts := newTestBroker(t)
	sess := srv.Registry().CreateSession("Board")

	resp := postJSON(t, ts.URL+"/api/whiteboards/"+sess.Code+"/join", map[string]string{"username": ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/api/whiteboards/"+sess.Code+"/join", map[string]string{"username": "alice"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestDeleteBoardTearsDownSession(t *testing.T) {
	srv, ts := newTestBroker(t)
	sess := srv.Registry().CreateSession("Board")

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/whiteboards/"+sess.Code, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if _, err := srv.Registry().GetSession(sess.Code); err == nil {
		t.Fatalf("session should be gone after delete")
	}
}

func TestSavedBoardsRequireAStore(t *testing.T) {
	_, ts := newTestBroker(t)
	resp := postJSON(t, ts.URL+"/api/boards", map[string]any{
		"owner": "alice", "name": "sketch", "imageData": []byte("png bytes"),
	})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("memory-only broker must answer 503, got %d", resp.StatusCode)
	}
}

func TestSavedBoardLifecycle(t *testing.T) {
	_, ts := newTestBrokerWithStore(t)

	resp := postJSON(t, ts.URL+"/api/boards", map[string]any{
		"owner":     "alice",
		"roomCode":  "swift-star-0042",
		"name":      "retro sketch",
		"imageData": []byte("png bytes"),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created struct {
		ID int64 `json:"id"`
	}
	decodeBody(t, resp, &created)

	listResp, err := http.Get(ts.URL + "/api/boards/alice")
	if err != nil {
		t.Fatalf("GET saved boards: %v", err)
	}
	defer listResp.Body.Close()
	var listing struct {
		Success     bool            `json:"success"`
		SavedBoards []savedBoardDTO `json:"savedBoards"`
	}
	decodeBody(t, listResp, &listing)
	if len(listing.SavedBoards) != 1 || listing.SavedBoards[0].Name != "retro sketch" {
		t.Fatalf("unexpected saved boards: %+v", listing.SavedBoards)
	}

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/boards/"+strconv.FormatInt(created.ID, 10), nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	defer delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", delResp.StatusCode)
	}
}

func TestChatArchiveEndpoint(t *testing.T) {
	srv, ts := newTestBrokerWithStore(t)
	sess := srv.Registry().CreateSession("Board")

	ctx := context.Background()
	for i := int64(1); i <= 3; i++ {
		if err := srv.store.AppendChat(ctx, sess.Code, "alice", "msg", i); err != nil {
			t.Fatalf("append chat: %v", err)
		}
	}

	resp, err := http.Get(ts.URL + "/api/whiteboards/" + sess.Code + "/chat?limit=2")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Success  bool          `json:"success"`
		Messages []ChatMessage `json:"messages"`
	}
	decodeBody(t, resp, &body)
	if len(body.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(body.Messages))
	}
	if body.Messages[0].Ts != 2 || body.Messages[1].Ts != 3 {
		t.Fatalf("expected the newest messages oldest first, got %+v", body.Messages)
	}
}

func TestHealthReportsMode(t *testing.T) {
	_, ts := newTestBroker(t)
	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
	decodeBody(t, resp, &body)
	if body.Status != "OK" || body.Database != "memory-only" {
		t.Fatalf("unexpected health body: %+v", body)
	}
}
