package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/taskpilot/backend/internal/config"
)

func geminiReply(t *testing.T, text string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"candidates": []map[string]interface{}{
			{"content": map[string]interface{}{"parts": []map[string]string{{"text": text}}}},
		},
	})
	if err != nil {
		t.Fatalf("marshal reply: %v", err)
	}
	return body
}

func testClient(baseURL string, attempts int) *Client {
	return NewClient(config.AnalysisConfig{
		APIKey:      "test-key",
		Model:       "test-model",
		BaseURL:     baseURL,
		Timeout:     5 * time.Second,
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
	}, nil)
}

func TestAnalyzeTextParsesProviderReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("missing api key in query: %s", r.URL.String())
		}
		w.Write(geminiReply(t, `{"tasks":[{"title":"Book flights","priority":"high"}],"context":"travel","priority":"high"}`))
	}))
	defer srv.Close()

	analysis, err := testClient(srv.URL, 1).AnalyzeText(context.Background(), "we need flights")
	if err != nil {
		t.Fatalf("AnalyzeText: %v", err)
	}
	if len(analysis.Tasks) != 1 || analysis.Tasks[0].Title != "Book flights" {
		t.Fatalf("analysis = %+v", analysis)
	}
}

func TestAnalyzeTextRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(geminiReply(t, `{"tasks":[],"context":"","priority":"normal"}`))
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL, 3).AnalyzeText(context.Background(), "hello"); err != nil {
		t.Fatalf("AnalyzeText after retries: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("provider called %d times, want 3", got)
	}
}

func TestAnalyzeTextDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	analysis, err := testClient(srv.URL, 5).AnalyzeText(context.Background(), "hello")
	if err == nil {
		t.Fatal("AnalyzeText returned nil error for a 400 response")
	}
	if analysis == nil || len(analysis.Tasks) != 0 {
		t.Fatalf("failed call should still return the safe default, got %+v", analysis)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("provider called %d times for a 400, want 1", got)
	}
}

func TestAnalyzeTextSafeDefaultOnGarbageReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(geminiReply(t, "I could not produce JSON, sorry!"))
	}))
	defer srv.Close()

	analysis, err := testClient(srv.URL, 1).AnalyzeText(context.Background(), "hello")
	if err != nil {
		t.Fatalf("AnalyzeText: %v", err)
	}
	if len(analysis.Tasks) != 0 {
		t.Fatalf("garbage reply should yield no tasks, got %+v", analysis.Tasks)
	}
}
