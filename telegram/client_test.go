package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-token", srv.URL, 1*time.Second)
}

func TestClient_GetUpdates_DecodesBatch(t *testing.T) {
	var gotPath string
	var gotBody getUpdatesRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ok": true,
			"result": []map[string]interface{}{
				{
					"update_id": 101,
					"message": map[string]interface{}{
						"message_id": 7,
						"chat":       map[string]interface{}{"id": 555},
						"from":       map[string]interface{}{"id": 42},
						"text":       "/status",
					},
				},
				{
					"update_id": 102,
					"callback_query": map[string]interface{}{
						"id":      "cb9",
						"data":    "deputy:on",
						"message": map[string]interface{}{"message_id": 8, "chat": map[string]interface{}{"id": 555}},
					},
				},
			},
		})
	})

	updates, err := client.GetUpdates(context.Background(), 100, 30*time.Second)
	if err != nil {
		t.Fatalf("GetUpdates: %v", err)
	}

	if gotPath != "/bottest-token/getUpdates" {
		t.Errorf("Unexpected path %q", gotPath)
	}
	if gotBody.Offset != 100 || gotBody.Timeout != 30 {
		t.Errorf("Unexpected request body offset=%d timeout=%d", gotBody.Offset, gotBody.Timeout)
	}

	if len(updates) != 2 {
		t.Fatalf("Expected 2 updates, got %d", len(updates))
	}
	if updates[0].UpdateID != 101 || updates[0].Message == nil || updates[0].Message.Text != "/status" {
		t.Errorf("Unexpected first update: %+v", updates[0])
	}
	if updates[1].CallbackQuery == nil || updates[1].CallbackQuery.Data != "deputy:on" {
		t.Errorf("Unexpected second update: %+v", updates[1])
	}
}

func TestClient_GetUpdates_Conflict(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ok":          false,
			"error_code":  409,
			"description": "Conflict: terminated by other getUpdates request",
		})
	})

	_, err := client.GetUpdates(context.Background(), 0, 30*time.Second)
	if err == nil {
		t.Fatal("Expected an error for 409")
	}

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("Expected RequestError, got %T", err)
	}
	if reqErr.StatusCode != 409 {
		t.Errorf("Expected status 409, got %d", reqErr.StatusCode)
	}
	if reqErr.ErrorCode != 409 {
		t.Errorf("Expected error_code 409, got %d", reqErr.ErrorCode)
	}
}

func TestClient_GetUpdates_Unauthorized(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ok":          false,
			"error_code":  401,
			"description": "Unauthorized",
		})
	})

	_, err := client.GetUpdates(context.Background(), 0, 30*time.Second)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("Expected RequestError, got %v", err)
	}
	if reqErr.StatusCode != 401 {
		t.Errorf("Expected status 401, got %d", reqErr.StatusCode)
	}
}

func TestClient_OKFalseWith200IsError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ok":          false,
			"error_code":  400,
			"description": "Bad Request: chat not found",
		})
	})

	err := client.SendMessage(context.Background(), 1, "hello", nil)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("Expected RequestError for ok=false, got %v", err)
	}
	if reqErr.Description != "Bad Request: chat not found" {
		t.Errorf("Unexpected description %q", reqErr.Description)
	}
}

func TestClient_NonJSONBodyStillClassified(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>Bad Gateway</html>"))
	})

	_, err := client.GetUpdates(context.Background(), 0, 30*time.Second)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("Expected RequestError for non-JSON body, got %v", err)
	}
	if reqErr.StatusCode != 502 {
		t.Errorf("Expected status 502, got %d", reqErr.StatusCode)
	}
	if reqErr.Body == "" {
		t.Error("Expected raw body preserved for diagnostics")
	}
}

func TestClient_SendMessage_Payload(t *testing.T) {
	var got sendMessageRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "result": map[string]interface{}{}})
	})

	err := client.SendMessage(context.Background(), 555, "done", &SendOptions{ReplyToMessageID: 9})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if got.ChatID != 555 || got.Text != "done" || got.ReplyToMessageID != 9 {
		t.Errorf("Unexpected payload %+v", got)
	}
}

func TestClient_GetMe(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ok":     true,
			"result": map[string]interface{}{"id": 12345, "is_bot": true, "username": "taskboard_bot"},
		})
	})

	me, err := client.GetMe(context.Background())
	if err != nil {
		t.Fatalf("GetMe: %v", err)
	}
	if me.ID != 12345 || me.Username != "taskboard_bot" {
		t.Errorf("Unexpected identity %+v", me)
	}
}
