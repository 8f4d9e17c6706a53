package huggingface

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kart-io/docqa/pkg/llm"
)

const testAPIKey = "test-key"

// 确保 Provider 实现了完整的供应商接口。
var _ llm.Provider = (*Provider)(nil)

func TestNewProvider(t *testing.T) {
	provider, err := NewProvider(map[string]any{"api_key": testAPIKey})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if provider.Name() != ProviderName {
		t.Errorf("expected provider name %s, got %s", ProviderName, provider.Name())
	}

	if _, err := NewProvider(map[string]any{}); err == nil {
		t.Error("expected error for missing api_key, got nil")
	}
}

func TestProviderChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("expected Authorization Bearer test-key")
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]chatResponse{{GeneratedText: "测试响应"}})
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.APIKey = testAPIKey
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
	// Text Generation Inference 流式响应：data: {"token":{"text":...}}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if !req.Stream {
			t.Error("expected stream=true in request")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(`data:{"token":{"text":"你"},"generated_text":null}` + "\n\n"))
		_, _ = w.Write([]byte(`data:{"token":{"text":"好"},"generated_text":"你好"}` + "\n\n"))
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.APIKey = testAPIKey
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
