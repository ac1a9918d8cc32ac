package llms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relay-agents/relay/pkg/config"
)

func testConfig(endpoint string) *config.AzureOpenAIConfig {
	cfg := &config.AzureOpenAIConfig{
		Endpoint:   endpoint,
		Deployment: "gpt-4o",
		APIVersion: "2024-08-01-preview",
		APIKey:     "test-key",
		MaxRetries: 1,
	}
	cfg.SetDefaults()
	cfg.Endpoint = strings.TrimSuffix(endpoint, "/")
	return cfg
}

func TestNewAzureOpenAIProviderRequiresAuth(t *testing.T) {
	cfg := testConfig("https://example.openai.azure.com")
	cfg.APIKey = ""

	_, err := NewAzureOpenAIProvider(cfg, nil)
	require.Error(t, err)
}

func TestGenerate(t *testing.T) {
	var gotPath, gotKey string
	var gotReq chatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		gotKey = r.Header.Get("api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		content := "Hello from Azure"
		resp := chatResponse{
			Choices: []chatChoice{{
				Message:      chatMessage{Role: "assistant", Content: &content},
				FinishReason: "stop",
			}},
			Usage: Usage{PromptTokens: 10, CompletionTokens: 4, TotalTokens: 14},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider, err := NewAzureOpenAIProvider(testConfig(server.URL), nil)
	require.NoError(t, err)

	text, toolCalls, tokens, err := provider.Generate(context.Background(), []Message{
		{Role: RoleSystem, Content: "Be helpful."},
		{Role: RoleUser, Content: "hi"},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Hello from Azure", text)
	assert.Empty(t, toolCalls)
	assert.Equal(t, 14, tokens)

	assert.Equal(t, "/openai/deployments/gpt-4o/chat/completions?api-version=2024-08-01-preview", gotPath)
	assert.Equal(t, "test-key", gotKey)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.False(t, gotReq.Stream)
}

func TestGenerateToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Tools, 1)
		assert.Equal(t, "function", req.Tools[0].Type)
		assert.Equal(t, "get_weather", req.Tools[0].Function.Name)
		assert.Equal(t, "auto", req.ToolChoice)

		resp := chatResponse{
			Choices: []chatChoice{{
				Message: chatMessage{
					Role:    "assistant",
					Content: nil,
					ToolCalls: []chatToolCall{{
						ID:   "call_abc",
						Type: "function",
						Function: chatFunctionCall{
							Name:      "get_weather",
							Arguments: `{"location":"Paris"}`,
						},
					}},
				},
				FinishReason: "tool_calls",
			}},
			Usage: Usage{TotalTokens: 20},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider, err := NewAzureOpenAIProvider(testConfig(server.URL), nil)
	require.NoError(t, err)

	_, toolCalls, _, err := provider.Generate(context.Background(),
		[]Message{{Role: RoleUser, Content: "weather in Paris?"}},
		[]ToolDefinition{{
			Name:        "get_weather",
			Description: "Get the weather",
			Parameters:  map[string]interface{}{"type": "object"},
		}})
	require.NoError(t, err)

	require.Len(t, toolCalls, 1)
	assert.Equal(t, "call_abc", toolCalls[0].ID)
	assert.Equal(t, "get_weather", toolCalls[0].Name)
	assert.Equal(t, "Paris", toolCalls[0].Args["location"])
}

func TestGenerateAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid api key","type":"auth","code":"401"}}`)
	}))
	defer server.Close()

	provider, err := NewAzureOpenAIProvider(testConfig(server.URL), nil)
	require.NoError(t, err)

	_, _, _, err = provider.Generate(context.Background(),
		[]Message{{Role: RoleUser, Content: "hi"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestGenerateOmitsNameOnToolMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		require.Len(t, req.Messages, 3)
		assert.Equal(t, "assistant", req.Messages[1].Role)
		assert.Equal(t, "helper", req.Messages[1].Name)
		assert.Equal(t, "tool", req.Messages[2].Role)
		assert.Empty(t, req.Messages[2].Name, "tool messages must not carry a name")
		assert.Equal(t, "call_1", req.Messages[2].ToolCallID)

		content := "ok"
		_ = json.NewEncoder(w).Encode(chatResponse{
			Choices: []chatChoice{{Message: chatMessage{Role: "assistant", Content: &content}}},
		})
	}))
	defer server.Close()

	provider, err := NewAzureOpenAIProvider(testConfig(server.URL), nil)
	require.NoError(t, err)

	_, _, _, err = provider.Generate(context.Background(), []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Name: "helper", ToolCalls: []*ToolCall{
			{ID: "call_1", Name: "echo", Args: map[string]interface{}{"text": "x"}},
		}},
		{Role: RoleTool, Name: "echo", Content: "echo: x", ToolCallID: "call_1"},
	}, nil)
	require.NoError(t, err)
}

func TestGenerateStreaming(t *testing.T) {
	frames := []string{
		`{"choices":[{"delta":{"content":"Hel"}}]}`,
		`{"choices":[{"delta":{"content":"lo"}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"id":"call_1","type":"function","function":{"name":"get_weather","arguments":"{\"loc"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"function":{"arguments":"ation\":\"Paris\"}"}}]},"finish_reason":"tool_calls"}]}`,
		`{"choices":[],"usage":{"prompt_tokens":8,"completion_tokens":6,"total_tokens":14}}`,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, frame := range frames {
			fmt.Fprintf(w, "data: %s\n\n", frame)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	provider, err := NewAzureOpenAIProvider(testConfig(server.URL), nil)
	require.NoError(t, err)

	ch, err := provider.GenerateStreaming(context.Background(),
		[]Message{{Role: RoleUser, Content: "hi"}}, nil)
	require.NoError(t, err)

	var text strings.Builder
	var toolCalls []*ToolCall
	tokens := 0
	for chunk := range ch {
		switch chunk.Type {
		case ChunkText:
			text.WriteString(chunk.Text)
		case ChunkToolCall:
			toolCalls = append(toolCalls, chunk.ToolCall)
		case ChunkDone:
			tokens = chunk.Tokens
		case ChunkError:
			t.Fatalf("unexpected error chunk: %v", chunk.Err)
		}
	}

	assert.Equal(t, "Hello", text.String())
	require.Len(t, toolCalls, 1, "argument fragments should be joined into one call")
	assert.Equal(t, "get_weather", toolCalls[0].Name)
	assert.Equal(t, "Paris", toolCalls[0].Args["location"])
	assert.Equal(t, 14, tokens)
}

func TestGenerateStreamingMalformedToolArguments(t *testing.T) {
	frames := []string{
		`{"choices":[{"delta":{"tool_calls":[{"id":"call_1","type":"function","function":{"name":"get_weather","arguments":"{not json"}}]},"finish_reason":"tool_calls"}]}`,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, frame := range frames {
			fmt.Fprintf(w, "data: %s\n\n", frame)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	provider, err := NewAzureOpenAIProvider(testConfig(server.URL), nil)
	require.NoError(t, err)

	ch, err := provider.GenerateStreaming(context.Background(),
		[]Message{{Role: RoleUser, Content: "hi"}}, nil)
	require.NoError(t, err)

	var errChunk *StreamChunk
	for chunk := range ch {
		switch chunk.Type {
		case ChunkToolCall:
			t.Fatal("malformed tool call should not be emitted")
		case ChunkDone:
			t.Fatal("stream must not end cleanly after a malformed tool call")
		case ChunkError:
			c := chunk
			errChunk = &c
		}
	}

	require.NotNil(t, errChunk, "expected an error chunk")
	assert.Contains(t, errChunk.Err.Error(), "tool calls")
}

func TestGenerateStreamingAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limited","type":"throttle","code":"429"}}`)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.MaxRetries = 0
	provider, err := NewAzureOpenAIProvider(cfg, nil)
	require.NoError(t, err)

	ch, err := provider.GenerateStreaming(context.Background(),
		[]Message{{Role: RoleUser, Content: "hi"}}, nil)
	require.NoError(t, err)

	var sawError bool
	for chunk := range ch {
		if chunk.Type == ChunkError {
			sawError = true
			assert.Contains(t, chunk.Err.Error(), "rate limited")
		}
	}
	assert.True(t, sawError)
}

func TestBearerTokenAuth(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		content := "ok"
		_ = json.NewEncoder(w).Encode(chatResponse{
			Choices: []chatChoice{{Message: chatMessage{Role: "assistant", Content: &content}}},
		})
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.APIKey = ""
	provider, err := NewAzureOpenAIProvider(cfg, func(ctx context.Context) (string, error) {
		return "aad-token", nil
	})
	require.NoError(t, err)

	_, _, _, err = provider.Generate(context.Background(),
		[]Message{{Role: RoleUser, Content: "hi"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer aad-token", gotAuth)
}
