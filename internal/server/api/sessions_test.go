package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/gestureview/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "gestureview-api-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(tmpDir)
	})

	dbPath := filepath.Join(tmpDir, "test.db")
	s, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func seedSession(t *testing.T, s *store.Store, id string, started time.Time) {
	t.Helper()
	if err := s.Sessions().Create(&store.Session{ID: id, Source: "client", Device: "CPU", StartedAt: started}); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
}

func TestSessionHandler_List(t *testing.T) {
	s := newTestStore(t)
	handler := NewSessionHandler(s)

	now := time.Now()
	seedSession(t, s, "older", now.Add(-time.Minute))
	seedSession(t, s, "newer", now)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response listSessionsResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(response.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(response.Sessions))
	}
	if response.Sessions[0].ID != "newer" {
		t.Errorf("expected newest session first, got %s", response.Sessions[0].ID)
	}
}

func TestSessionHandler_List_Limit(t *testing.T) {
	s := newTestStore(t)
	handler := NewSessionHandler(s)

	now := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		seedSession(t, s, id, now.Add(time.Duration(i)*time.Second))
	}

	tests := []struct {
		query      string
		wantStatus int
		wantCount  int
	}{
		{"?limit=2", http.StatusOK, 2},
		{"?limit=0", http.StatusBadRequest, 0},
		{"?limit=abc", http.StatusBadRequest, 0},
		{"", http.StatusOK, 3},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/sessions"+tt.query, nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var response listSessionsResponse
			json.NewDecoder(rec.Body).Decode(&response)
			if len(response.Sessions) != tt.wantCount {
				t.Errorf("expected %d sessions, got %d", tt.wantCount, len(response.Sessions))
			}
		})
	}
}

func TestSessionHandler_Get(t *testing.T) {
	s := newTestStore(t)
	handler := NewSessionHandler(s)

	seedSession(t, s, "session-1", time.Now())
	if err := s.Predictions().Create(&store.Prediction{
		SessionID: "session-1", Seq: 3, Label: "Swiping Right", Confidence: 0.88, KeyCode: "ArrowRight", FPS: 21.5,
	}); err != nil {
		t.Fatalf("failed to create prediction: %v", err)
	}
	if err := s.Sessions().Finish("session-1", "time limit reached", 300, 2); err != nil {
		t.Fatalf("failed to finish session: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/session-1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response struct {
		ID          string `json:"id"`
		EndedAt     string `json:"ended_at"`
		EndReason   string `json:"end_reason"`
		Frames      int64  `json:"frames"`
		Predictions []struct {
			Seq     uint64 `json:"seq"`
			KeyCode string `json:"keyCode"`
		} `json:"predictions"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.ID != "session-1" || response.EndReason != "time limit reached" || response.Frames != 300 {
		t.Errorf("unexpected session: %+v", response)
	}
	if response.EndedAt == "" {
		t.Error("expected ended_at to be set")
	}
	if len(response.Predictions) != 1 || response.Predictions[0].KeyCode != "ArrowRight" {
		t.Errorf("unexpected predictions: %+v", response.Predictions)
	}
}

func TestSessionHandler_Get_NotFound(t *testing.T) {
	s := newTestStore(t)
	handler := NewSessionHandler(s)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/nonexistent", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}

	var response errorResponse
	json.NewDecoder(rec.Body).Decode(&response)
	if response.Error != "Session not found" {
		t.Errorf("expected error 'Session not found', got %q", response.Error)
	}
}

func TestSessionHandler_Delete(t *testing.T) {
	s := newTestStore(t)
	handler := NewSessionHandler(s)
	seedSession(t, s, "session-1", time.Now())

	req := httptest.NewRequest(http.MethodDelete, "/api/sessions/session-1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}

	// Second delete is a 404
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/sessions/session-1", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestSessionHandler_MethodNotAllowed(t *testing.T) {
	s := newTestStore(t)
	handler := NewSessionHandler(s)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/sessions"},
		{http.MethodDelete, "/api/sessions"},
		{http.MethodPut, "/api/sessions/session-1"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: expected status %d, got %d", tt.method, tt.path, http.StatusMethodNotAllowed, rec.Code)
		}
	}
}
