package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kart-io/docqa/pkg/llm"
)

// 确保 Provider 实现了完整的供应商接口。
var _ llm.Provider = (*Provider)(nil)

func TestProviderChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("expected path /api/chat, got %s", r.URL.Path)
		}

		resp := chatResponse{
			Model:   "deepseek-r1:7b",
			Message: chatMessage{Role: "assistant", Content: "测试响应"},
			Done:    true,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	provider := NewProviderWithConfig(cfg)

	response, err := provider.Chat(context.Background(), []llm.Message{
		{Role: llm.RoleUser, Content: "你好"},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if response != "测试响应" {
		t.Errorf("expected response '测试响应', got '%s'", response)
	}
}

func TestProviderStream(t *testing.T) {
	// Ollama 流式响应为逐行 JSON
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if !req.Stream {
			t.Error("expected stream=true in request")
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		enc := json.NewEncoder(w)
		_ = enc.Encode(chatResponse{Message: chatMessage{Role: "assistant", Content: "你"}})
		_ = enc.Encode(chatResponse{Message: chatMessage{Role: "assistant", Content: "好"}})
		_ = enc.Encode(chatResponse{Done: true})
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	provider := NewProviderWithConfig(cfg)

	deltas, err := provider.Stream(context.Background(), []llm.Message{
		{Role: llm.RoleUser, Content: "你好"},
	})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	var got string
	for d := range deltas {
		if d.Err != nil {
			t.Fatalf("unexpected stream error: %v", d.Err)
		}
		got += d.Text
	}
	if got != "你好" {
		t.Errorf("expected streamed text '你好', got '%s'", got)
	}
}

func TestProviderEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("expected path /api/embed, got %s", r.URL.Path)
		}

		resp := embedResponse{
			Model:      "nomic-embed-text",
			Embeddings: [][]float32{{0.1, 0.2, 0.3}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	provider := NewProviderWithConfig(cfg)

	embeddings, err := provider.Embed(context.Background(), []string{"text"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(embeddings) != 1 || len(embeddings[0]) != 3 {
		t.Errorf("unexpected embeddings shape: %v", embeddings)
	}
}
