package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Corphon/BookFlow/internal/auth"
	"github.com/Corphon/BookFlow/internal/config"
	"github.com/Corphon/BookFlow/internal/di"
	"github.com/Corphon/BookFlow/internal/generator"
	"github.com/Corphon/BookFlow/internal/search"
	"github.com/Corphon/BookFlow/internal/services"
	"github.com/Corphon/BookFlow/internal/storage"
	"github.com/Corphon/BookFlow/internal/utils"
	"github.com/Corphon/BookFlow/internal/workflow"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubGenerator struct{}

func (stubGenerator) Generate(ctx context.Context, chapterURL, apiURL string) (*generator.Result, error) {
	return &generator.Result{
		Title:     "Walden Chapter 1",
		Original:  "I went to the woods.",
		AIVersion: "I went into the woods.",
	}, nil
}

type testEnv struct {
	server   *Server
	chapters *services.ChapterService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := utils.NopLogger()
	store := storage.NewMemoryStore()
	idx, err := search.Open("")
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	users, err := auth.NewTable(auth.DefaultCredentials())
	if err != nil {
		t.Fatalf("users: %v", err)
	}
	chapters := services.NewChapterService(store, stubGenerator{}, idx, log)

	container := di.NewContainer()
	container.Register(di.Logger, log)
	container.Register(di.Chapters, chapters)
	container.Register(di.Users, users)
	container.Register(di.Tokens, &auth.TokenConfig{Secret: []byte("test"), Expiration: time.Hour})

	srv, err := SetupRouter(&config.Config{}, container)
	if err != nil {
		t.Fatalf("setup router: %v", err)
	}
	t.Cleanup(func() {
		srv.Close()
		idx.Close()
		store.Close()
	})
	return &testEnv{server: srv, chapters: chapters}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *APIError       `json:"error"`
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.Engine.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode response %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, env
}

func (e *testEnv) login(t *testing.T, username string) string {
	t.Helper()
	code, env := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": username, "password": "123"})
	if code != http.StatusOK {
		t.Fatalf("login %s: status %d %+v", username, code, env.Error)
	}
	var resp loginResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return resp.Token
}

func decodeView(t *testing.T, env envelope) workflow.View {
	t.Helper()
	var v workflow.View
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	return v
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	code, resp := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "writer", "password": "nope"})
	if code != http.StatusUnauthorized || resp.Error == nil || resp.Error.Message != auth.MsgInvalidCredentials {
		t.Fatalf("expected 401 invalid credentials, got %d %+v", code, resp.Error)
	}

	token := env.login(t, "reviewer")
	code, resp = env.do(t, http.MethodGet, "/api/auth/me", token, nil)
	if code != http.StatusOK || !strings.Contains(string(resp.Data), `"role":"reviewer"`) {
		t.Fatalf("unexpected me response %d %s", code, resp.Data)
	}
}

func TestRequiresToken(t *testing.T) {
	env := newTestEnv(t)
	code, resp := env.do(t, http.MethodGet, "/api/queue", "", nil)
	if code != http.StatusUnauthorized || resp.Success {
		t.Fatalf("expected 401, got %d", code)
	}
	code, _ = env.do(t, http.MethodGet, "/api/queue", "not-a-token", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", code)
	}
}

func TestWorkflowOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	reader := env.login(t, "user")
	writer := env.login(t, "writer")
	reviewer := env.login(t, "reviewer")
	editor := env.login(t, "editor")

	code, resp := env.do(t, http.MethodPost, "/api/generate", reader, map[string]string{"url": "https://example.org/walden/1"})
	if code != http.StatusCreated {
		t.Fatalf("generate: %d %+v", code, resp.Error)
	}
	created := decodeView(t, resp)
	if created.Status != "new" || created.Revision != 1 {
		t.Fatalf("unexpected created view %+v", created)
	}

	code, resp = env.do(t, http.MethodGet, "/api/queue", writer, nil)
	if code != http.StatusOK || !strings.Contains(string(resp.Data), created.ID) {
		t.Fatalf("writer queue should list the new chapter: %d %s", code, resp.Data)
	}

	code, resp = env.do(t, http.MethodGet, "/api/chapters/"+created.ID, writer, nil)
	if code != http.StatusOK || !strings.Contains(string(resp.Data), "I went into the woods.") {
		t.Fatalf("writer workspace should be seeded from the AI version: %d %s", code, resp.Data)
	}

	code, resp = env.do(t, http.MethodPut, "/api/chapters/"+created.ID+"/draft", writer, map[string]interface{}{"text": "draft", "revision": 1})
	if code != http.StatusOK {
		t.Fatalf("save draft: %d %+v", code, resp.Error)
	}

	// stale revision
	code, resp = env.do(t, http.MethodPost, "/api/chapters/"+created.ID+"/approve", writer, map[string]interface{}{"revision": 1})
	if code != http.StatusConflict || resp.Error.Code != "REVISION_CONFLICT" {
		t.Fatalf("expected 409 revision conflict, got %d %+v", code, resp.Error)
	}

	code, resp = env.do(t, http.MethodPost, "/api/chapters/"+created.ID+"/approve", writer, map[string]interface{}{"revision": 2})
	if code != http.StatusOK || decodeView(t, resp).Status != "writer_approved" {
		t.Fatalf("approve: %d %+v", code, resp.Error)
	}

	// wrong role for the route
	code, _ = env.do(t, http.MethodPost, "/api/chapters/"+created.ID+"/publish", reviewer, map[string]interface{}{"rating": 5})
	if code != http.StatusForbidden {
		t.Fatalf("reviewer must not publish, got %d", code)
	}

	// right role, wrong state
	code, resp = env.do(t, http.MethodPost, "/api/chapters/"+created.ID+"/publish", editor, map[string]interface{}{"rating": 5})
	if code != http.StatusConflict || resp.Error.Code != "INVALID_TRANSITION" {
		t.Fatalf("expected invalid transition, got %d %+v", code, resp.Error)
	}

	code, resp = env.do(t, http.MethodPost, "/api/chapters/"+created.ID+"/review", reviewer, map[string]interface{}{"version": "reviewed", "feedback": "ok"})
	if code != http.StatusOK {
		t.Fatalf("review: %d %+v", code, resp.Error)
	}

	code, resp = env.do(t, http.MethodPost, "/api/chapters/"+created.ID+"/publish", editor, map[string]interface{}{"final_version": "final", "rating": 9})
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out of range rating, got %d", code)
	}

	code, resp = env.do(t, http.MethodPost, "/api/chapters/"+created.ID+"/publish", editor, map[string]interface{}{"final_version": "final", "rating": 4})
	if code != http.StatusOK || resp.Message != "Chapter published successfully!" {
		t.Fatalf("publish: %d %+v %q", code, resp.Error, resp.Message)
	}

	code, resp = env.do(t, http.MethodGet, "/api/published?q=walden", reader, nil)
	if code != http.StatusOK || !strings.Contains(string(resp.Data), created.ID) {
		t.Fatalf("library search: %d %s", code, resp.Data)
	}
	code, resp = env.do(t, http.MethodGet, "/api/published/"+created.ID, reader, nil)
	if code != http.StatusOK || decodeView(t, resp).Published != "final" {
		t.Fatalf("read published: %d %s", code, resp.Data)
	}
	code, resp = env.do(t, http.MethodGet, "/api/books", reader, nil)
	if code != http.StatusOK || !strings.Contains(string(resp.Data), `"name":"Walden"`) {
		t.Fatalf("books: %d %s", code, resp.Data)
	}
	code, resp = env.do(t, http.MethodGet, "/api/search?q=final&limit=3", reader, nil)
	if code != http.StatusOK || !strings.Contains(string(resp.Data), created.ID) {
		t.Fatalf("full text search: %d %s", code, resp.Data)
	}
	code, _ = env.do(t, http.MethodGet, "/api/search?q=final&limit=-1", reader, nil)
	if code != http.StatusBadRequest {
		t.Fatalf("negative limit should be rejected, got %d", code)
	}
}

func TestGenerateRequiresReaderRole(t *testing.T) {
	env := newTestEnv(t)
	writer := env.login(t, "writer")
	code, _ := env.do(t, http.MethodPost, "/api/generate", writer, map[string]string{"url": "https://example.org/x"})
	if code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestOpenMissingChapter(t *testing.T) {
	env := newTestEnv(t)
	editor := env.login(t, "editor")
	code, resp := env.do(t, http.MethodGet, "/api/chapters/nope", editor, nil)
	if code != http.StatusNotFound || resp.Error.Code != "NOT_FOUND" {
		t.Fatalf("expected 404, got %d %+v", code, resp.Error)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	code, resp := env.do(t, http.MethodGet, "/api/health", "", nil)
	if code != http.StatusOK || !strings.Contains(string(resp.Data), `"status":"ok"`) {
		t.Fatalf("unexpected health %d %s", code, resp.Data)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter()
	defer rl.Stop()
	for i := 0; i < 3; i++ {
		if ok, _, _ := rl.Allow("k", 3, time.Minute); !ok {
			t.Fatalf("request %d should pass", i)
		}
	}
	if ok, remaining, _ := rl.Allow("k", 3, time.Minute); ok || remaining != 0 {
		t.Fatalf("fourth request should be limited")
	}
	if ok, _, _ := rl.Allow("other", 3, time.Minute); !ok {
		t.Fatalf("keys are limited independently")
	}
}

func TestQueueSocketPushesChanges(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "writer")

	ts := httptest.NewServer(env.server.Engine)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/queue?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var msg QueueMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if msg.Type != "queue" || msg.Role != "writer" || len(msg.Chapters) != 0 {
		t.Fatalf("unexpected initial message %+v", msg)
	}

	if _, err := env.chapters.Ingest(context.Background(), "https://example.org/walden/1", ""); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if len(msg.Chapters) != 1 || msg.Chapters[0].Title != "Walden Chapter 1" {
		t.Fatalf("expected the new chapter pushed, got %+v", msg.Chapters)
	}

	if got := env.server.Queues.Status()["writer"]; got != 1 {
		t.Fatalf("expected one writer socket, got %d", got)
	}
}
