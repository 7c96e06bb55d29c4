package stream

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/startup-vision/backend/internal/middleware"
	"github.com/zhouzirui/startup-vision/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/startup-vision/backend/internal/service/chat"
	"github.com/zhouzirui/startup-vision/backend/internal/storage/memory"
)

func setupRouter(chatSvc *chatservice.Service, identity string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithIdentity(req.Context(), identity)))
		})
	})
	New(chatSvc).RegisterRoutes(r)
	return r
}

func readEvents(t *testing.T, body string) []string {
	t.Helper()
	var events []string
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		if name, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
			events = append(events, name)
		}
	}
	return events
}

func TestStreamCreatesSessionAndSends(t *testing.T) {
	chatSvc := chatservice.NewService(chatservice.NewSessionStore(memory.NewStore()), nil, ai.NewFallbackResponder(0))
	r := setupRouter(chatSvc, "S1")

	req := httptest.NewRequest(http.MethodGet, "/stream?message="+url.QueryEscape("my startup idea"), nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	events := readEvents(t, resp.Body.String())
	if strings.Join(events, ",") != "start,message,end" {
		t.Fatalf("unexpected events %v", events)
	}
	if !strings.Contains(resp.Body.String(), "Thank you for sharing your business idea.") {
		t.Fatal("expected the assessment reply in the message event")
	}

	sessions, _ := chatSvc.Sessions(req.Context(), "S1")
	if len(sessions) != 1 || len(sessions[0].Messages) != 2 {
		t.Fatalf("expected one session with two messages, got %+v", sessions)
	}
}

func TestStreamRequiresMessage(t *testing.T) {
	chatSvc := chatservice.NewService(chatservice.NewSessionStore(memory.NewStore()), nil, ai.NewFallbackResponder(0))
	r := setupRouter(chatSvc, "S1")

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/stream", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestStreamWithoutIdentity(t *testing.T) {
	chatSvc := chatservice.NewService(chatservice.NewSessionStore(memory.NewStore()), nil, ai.NewFallbackResponder(0))
	r := setupRouter(chatSvc, "")

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/stream?message=hi", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}
