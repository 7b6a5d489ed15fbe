package inference

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/thushan/ladle/internal/logger"
)

func testLogger() logger.StyledLogger {
	return logger.NewPlainStyledLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClientGenerate(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("expected /api/generate, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"llama3.2:3b","response":"  Polished prompt.\n","done":true}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, testLogger())
	out, err := client.Generate(context.Background(), "llama3.2:3b", "You polish prompts.", "make me a sandwich")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "Polished prompt." {
		t.Errorf("expected trimmed response, got %q", out)
	}

	if got["model"] != "llama3.2:3b" {
		t.Errorf("model = %v", got["model"])
	}
	if got["system"] != "You polish prompts." {
		t.Errorf("system = %v", got["system"])
	}
	if got["prompt"] != "make me a sandwich" {
		t.Errorf("prompt = %v", got["prompt"])
	}
	if stream, ok := got["stream"].(bool); !ok || stream {
		t.Errorf("stream must be present and false, got %v", got["stream"])
	}
}

func TestClientGenerateOmitsEmptySystem(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"response":"ok"}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, testLogger())
	if _, err := client.Generate(context.Background(), "llama3", "", "hi"); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, present := got["system"]; present {
		t.Errorf("empty system prompt should be omitted from the request body")
	}
}

func TestClientGenerateStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, testLogger())
	_, err := client.Generate(context.Background(), "missing:model", "", "hi")
	if err == nil {
		t.Fatal("expected an error for a 404")
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %T: %v", err, err)
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d", statusErr.StatusCode)
	}
	if statusErr.Op != "generate" {
		t.Errorf("Op = %q", statusErr.Op)
	}
}

func TestClientGenerateTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{"response":"too late"}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, GenerateTimeout: 50 * time.Millisecond}, testLogger())
	_, err := client.Generate(context.Background(), "llama3", "", "hi")
	if err == nil {
		t.Fatal("expected a timeout error")
	}
}

func TestClientEmbed(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("expected /api/embeddings, got %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"embedding":[0.1,0.2,0.3]}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, testLogger())
	vec, err := client.Embed(context.Background(), "nomic-embed-text", "hello world")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 || vec[1] != 0.2 {
		t.Errorf("unexpected vector %v", vec)
	}
	if got["model"] != "nomic-embed-text" || got["prompt"] != "hello world" {
		t.Errorf("unexpected request body %v", got)
	}
}

func TestClientEmbedRejectsEmptyVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embedding":[]}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, testLogger())
	if _, err := client.Embed(context.Background(), "nomic-embed-text", "hello"); err == nil {
		t.Fatal("expected an error for an empty embedding")
	}
}

func TestClientVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/version" {
			t.Errorf("expected GET /api/version, got %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"version":"0.6.2"}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, testLogger())
	v, err := client.Version(context.Background())
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v != "0.6.2" {
		t.Errorf("version = %q", v)
	}
}

func TestClientVersionDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(Config{BaseURL: server.URL}, testLogger())
	if _, err := client.Version(context.Background()); err == nil {
		t.Fatal("expected an error when the service is unreachable")
	}
}
