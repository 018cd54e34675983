package data

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestBoard(t *testing.T, handler http.HandlerFunc) *boardRepo {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewBoardRepo(srv.URL).(*boardRepo)
}

func TestBoardRepo_Status(t *testing.T) {
	board := newTestBoard(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			t.Errorf("Unexpected path %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ok":          true,
			"version":     "1.2.3",
			"uptime":      "3h",
			"deputy_mode": true,
			"tasks":       map[string]int{"open": 4},
		})
	})

	status, err := board.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.OK || status.Version != "1.2.3" || !status.DeputyMode {
		t.Errorf("Unexpected status %+v", status)
	}
	if status.TaskCounts["open"] != 4 {
		t.Errorf("Expected task counts decoded, got %v", status.TaskCounts)
	}
}

func TestBoardRepo_Status_MalformedBodyTolerated(t *testing.T) {
	board := newTestBoard(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json at all"))
	})

	status, err := board.Status(context.Background())
	if err != nil {
		t.Fatalf("Expected malformed 200 tolerated, got %v", err)
	}
	if status.OK {
		t.Error("Expected zero values for a malformed body")
	}
}

func TestBoardRepo_Status_HTTPErrorSurfaces(t *testing.T) {
	board := newTestBoard(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	})

	if _, err := board.Status(context.Background()); err == nil {
		t.Fatal("Expected an error for a 503")
	}
}

func TestBoardRepo_Tasks(t *testing.T) {
	board := newTestBoard(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"tasks": []map[string]string{
				{"id": "t1", "title": "Fix gateway", "status": "open"},
				{"id": "t2", "title": "Rotate keys", "status": "blocked"},
			},
		})
	})

	tasks, err := board.Tasks(context.Background())
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if len(tasks) != 2 || tasks[1].Status != "blocked" {
		t.Errorf("Unexpected tasks %+v", tasks)
	}
}

func TestBoardRepo_SetDeputyMode(t *testing.T) {
	var gotBody map[string]bool
	board := newTestBoard(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/deputy" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	})

	ok, err := board.SetDeputyMode(context.Background(), true)
	if err != nil {
		t.Fatalf("SetDeputyMode: %v", err)
	}
	if !ok {
		t.Error("Expected ok from the board")
	}
	if !gotBody["enabled"] {
		t.Errorf("Expected enabled=true in the payload, got %v", gotBody)
	}
}

func TestBoardRepo_CreateTriage_DeclinedByBoard(t *testing.T) {
	board := newTestBoard(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": false})
	})

	ok, err := board.CreateTriage(context.Background(), "gateway timeout")
	if err != nil {
		t.Fatalf("CreateTriage: %v", err)
	}
	if ok {
		t.Error("Expected ok=false passed through")
	}
}
