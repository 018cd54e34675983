package data

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/taskops/telegram-bridge/internal/biz/repo"
)

// boardRepo implements the Board repository against the task-board's HTTP API.
// Responses are tolerated as possibly absent or malformed: a state-changing
// call only reports the ok flag the board returned.
type boardRepo struct {
	http    *http.Client
	baseURL string
}

// NewBoardRepo creates a new task-board client
func NewBoardRepo(baseURL string) repo.Board {
	return &boardRepo{
		http:    &http.Client{Timeout: 5 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (r *boardRepo) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("board http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out != nil {
		// Malformed JSON is tolerated; the caller sees zero values.
		_ = json.Unmarshal(raw, out)
	}
	return nil
}

func (r *boardRepo) post(ctx context.Context, path string, payload interface{}) (bool, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return false, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, body)
	if err != nil {
		return false, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return false, err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("board http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out struct {
		OK bool `json:"ok"`
	}
	_ = json.Unmarshal(raw, &out)
	return out.OK, nil
}

func (r *boardRepo) Status(ctx context.Context) (*repo.BoardStatus, error) {
	var payload struct {
		OK         bool           `json:"ok"`
		Version    string         `json:"version"`
		Uptime     string         `json:"uptime"`
		DeputyMode bool           `json:"deputy_mode"`
		Tasks      map[string]int `json:"tasks"`
	}
	if err := r.get(ctx, "/api/status", &payload); err != nil {
		return nil, err
	}
	return &repo.BoardStatus{
		OK:         payload.OK,
		Version:    payload.Version,
		Uptime:     payload.Uptime,
		DeputyMode: payload.DeputyMode,
		TaskCounts: payload.Tasks,
	}, nil
}

func (r *boardRepo) Health(ctx context.Context) (*repo.BoardHealth, error) {
	var payload struct {
		OK       bool              `json:"ok"`
		Services map[string]string `json:"services"`
	}
	if err := r.get(ctx, "/api/health", &payload); err != nil {
		return nil, err
	}
	return &repo.BoardHealth{OK: payload.OK, Services: payload.Services}, nil
}

func (r *boardRepo) Tasks(ctx context.Context) ([]repo.BoardTask, error) {
	var payload struct {
		Tasks []struct {
			ID     string `json:"id"`
			Title  string `json:"title"`
			Status string `json:"status"`
		} `json:"tasks"`
	}
	if err := r.get(ctx, "/api/tasks", &payload); err != nil {
		return nil, err
	}
	tasks := make([]repo.BoardTask, 0, len(payload.Tasks))
	for _, t := range payload.Tasks {
		tasks = append(tasks, repo.BoardTask{ID: t.ID, Title: t.Title, Status: t.Status})
	}
	return tasks, nil
}

func (r *boardRepo) TriggerRecovery(ctx context.Context) (bool, error) {
	return r.post(ctx, "/api/recover", nil)
}

func (r *boardRepo) SetDeputyMode(ctx context.Context, enabled bool) (bool, error) {
	return r.post(ctx, "/api/deputy", map[string]bool{"enabled": enabled})
}

func (r *boardRepo) CreateTriage(ctx context.Context, description string) (bool, error) {
	return r.post(ctx, "/api/triage", map[string]string{"description": description})
}
