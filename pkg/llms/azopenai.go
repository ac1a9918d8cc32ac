package llms

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/relay-agents/relay/pkg/azauth"
	"github.com/relay-agents/relay/pkg/config"
	"github.com/relay-agents/relay/pkg/httpclient"
	"github.com/relay-agents/relay/pkg/observability"
)

// AzureOpenAIProvider talks to the Azure OpenAI chat completions API.
// Authentication is the api-key header when an API key is configured,
// otherwise an Azure AD bearer token from the token provider.
type AzureOpenAIProvider struct {
	config        *config.AzureOpenAIConfig
	httpClient    *httpclient.Client
	tokenProvider azauth.TokenProvider
}

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
	Tools       []chatTool    `json:"tools,omitempty"`
	ToolChoice  string        `json:"tool_choice,omitempty"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    *string        `json:"content"`
	Name       string         `json:"name,omitempty"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type chatTool struct {
	Type     string           `json:"type"`
	Function chatToolFunction `json:"function"`
}

type chatToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type chatToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function chatFunctionCall `json:"function"`
}

type chatFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   Usage        `json:"usage"`
	Error   *apiError    `json:"error,omitempty"`
}

type chatChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatStreamResponse struct {
	Choices []chatStreamChoice `json:"choices"`
	Usage   *Usage             `json:"usage,omitempty"`
	Error   *apiError          `json:"error,omitempty"`
}

type chatStreamChoice struct {
	Delta        chatDelta `json:"delta"`
	FinishReason string    `json:"finish_reason"`
}

type chatDelta struct {
	Content   string         `json:"content,omitempty"`
	ToolCalls []chatToolCall `json:"tool_calls,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// NewAzureOpenAIProvider builds a provider from config. The token provider
// may be nil when an API key is configured.
func NewAzureOpenAIProvider(cfg *config.AzureOpenAIConfig, tokenProvider azauth.TokenProvider) (*AzureOpenAIProvider, error) {
	if cfg.APIKey == "" && tokenProvider == nil {
		return nil, fmt.Errorf("either an API key or a token provider is required")
	}

	httpClient := httpclient.New(
		httpclient.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		}),
		httpclient.WithMaxRetries(cfg.MaxRetries),
		httpclient.WithBaseDelay(time.Duration(cfg.RetryDelay)*time.Second),
		httpclient.WithHeaderParser(httpclient.ParseAzureOpenAIHeaders),
	)

	return &AzureOpenAIProvider{
		config:        cfg,
		httpClient:    httpClient,
		tokenProvider: tokenProvider,
	}, nil
}

func (p *AzureOpenAIProvider) GetModelName() string {
	return p.config.Deployment
}

func (p *AzureOpenAIProvider) Close() error {
	return nil
}

func (p *AzureOpenAIProvider) completionsURL() string {
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		p.config.Endpoint, p.config.Deployment, p.config.APIVersion)
}

// Generate performs a non-streaming chat completion.
func (p *AzureOpenAIProvider) Generate(ctx context.Context, messages []Message, tools []ToolDefinition) (string, []*ToolCall, int, error) {
	startTime := time.Now()

	tracer := observability.GetTracer("relay.llm")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest,
		trace.WithAttributes(
			attribute.String(observability.AttrLLMModel, p.config.Deployment),
			attribute.String("provider", "azure_openai"),
			attribute.Bool("streaming", false),
		),
	)
	defer span.End()

	request := p.buildRequest(messages, false, tools)

	response, err := p.makeRequest(ctx, request)
	duration := time.Since(startTime)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.GetGlobalMetrics().RecordLLMCall(ctx, p.config.Deployment, duration, 0, 0, err)
		return "", nil, 0, err
	}

	if response.Error != nil {
		apiErr := fmt.Errorf("Azure OpenAI API error: %s", response.Error.Message)
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, response.Error.Message)
		observability.GetGlobalMetrics().RecordLLMCall(ctx, p.config.Deployment, duration, 0, 0, apiErr)
		return "", nil, 0, apiErr
	}

	if len(response.Choices) == 0 {
		noChoiceErr := fmt.Errorf("no response choices returned")
		span.RecordError(noChoiceErr)
		span.SetStatus(codes.Error, "no choices")
		observability.GetGlobalMetrics().RecordLLMCall(ctx, p.config.Deployment, duration, 0, 0, noChoiceErr)
		return "", nil, 0, noChoiceErr
	}

	choice := response.Choices[0]
	tokensUsed := response.Usage.TotalTokens

	text := ""
	if choice.Message.Content != nil {
		text = *choice.Message.Content
	}

	var toolCalls []*ToolCall
	if len(choice.Message.ToolCalls) > 0 {
		toolCalls, err = parseToolCalls(choice.Message.ToolCalls)
		if err != nil {
			span.RecordError(err)
			return text, nil, tokensUsed, err
		}
	}

	span.SetAttributes(
		attribute.Int(observability.AttrLLMTokensInput, response.Usage.PromptTokens),
		attribute.Int(observability.AttrLLMTokensOutput, response.Usage.CompletionTokens),
		attribute.Int("llm.tool_calls", len(toolCalls)),
	)
	if observability.CaptureContent() {
		span.SetAttributes(attribute.String(observability.AttrOutputContent, text))
	}
	span.SetStatus(codes.Ok, "success")

	observability.GetGlobalMetrics().RecordLLMCall(ctx, p.config.Deployment, duration,
		response.Usage.PromptTokens, response.Usage.CompletionTokens, nil)

	return text, toolCalls, tokensUsed, nil
}

// GenerateStreaming performs a streaming chat completion.
func (p *AzureOpenAIProvider) GenerateStreaming(ctx context.Context, messages []Message, tools []ToolDefinition) (<-chan StreamChunk, error) {
	request := p.buildRequest(messages, true, tools)

	outputCh := make(chan StreamChunk, 100)

	go func() {
		defer close(outputCh)

		if err := p.makeStreamingRequest(ctx, request, outputCh); err != nil {
			outputCh <- StreamChunk{
				Type: ChunkError,
				Err:  err,
			}
		}
	}()

	return outputCh, nil
}

func (p *AzureOpenAIProvider) buildRequest(messages []Message, stream bool, tools []ToolDefinition) chatRequest {
	chatMessages := make([]chatMessage, 0, len(messages))
	for _, msg := range messages {
		content := msg.Content
		cm := chatMessage{
			Role:       string(msg.Role),
			Content:    &content,
			ToolCallID: msg.ToolCallID,
		}
		// Azure OpenAI rejects "name" on tool-result messages.
		if msg.Role != RoleTool {
			cm.Name = msg.Name
		}

		if len(msg.ToolCalls) > 0 {
			cm.ToolCalls = make([]chatToolCall, len(msg.ToolCalls))
			for j, tc := range msg.ToolCalls {
				argsJSON, _ := json.Marshal(tc.Args)
				cm.ToolCalls[j] = chatToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: chatFunctionCall{
						Name:      tc.Name,
						Arguments: string(argsJSON),
					},
				}
			}
		}

		chatMessages = append(chatMessages, cm)
	}

	temperature := 0.7
	if p.config.Temperature != nil {
		temperature = *p.config.Temperature
	}

	request := chatRequest{
		Messages:    chatMessages,
		Temperature: temperature,
		Stream:      stream,
	}

	if p.config.MaxTokens > 0 {
		maxTokens := p.config.MaxTokens
		request.MaxTokens = &maxTokens
	}

	if len(tools) > 0 {
		request.Tools = make([]chatTool, len(tools))
		for i, tool := range tools {
			request.Tools[i] = chatTool{
				Type:     "function",
				Function: chatToolFunction(tool),
			}
		}
		request.ToolChoice = "auto"
	}

	return request
}

func parseToolCalls(calls []chatToolCall) ([]*ToolCall, error) {
	result := make([]*ToolCall, len(calls))

	for i, tc := range calls {
		var args map[string]interface{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("failed to parse tool arguments for %s: %w", tc.Function.Name, err)
			}
		}

		result[i] = &ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		}
	}

	return result, nil
}

func parseErrorResponse(body []byte) *apiError {
	if len(body) == 0 {
		return nil
	}
	var errorResp struct {
		Error apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
		return &errorResp.Error
	}
	return nil
}

func (p *AzureOpenAIProvider) newHTTPRequest(ctx context.Context, request chatRequest) (*http.Request, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.completionsURL(), bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(requestBody)), nil
	}

	req.Header.Set("Content-Type", "application/json")

	if p.config.APIKey != "" {
		req.Header.Set("api-key", p.config.APIKey)
	} else {
		token, err := p.tokenProvider(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req, nil
}

func responseError(resp *http.Response, err error) error {
	if resp != nil && resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		errorBody := string(body)
		if readErr != nil {
			errorBody = fmt.Sprintf("(failed to read error body: %v)", readErr)
		}
		if apiErr := parseErrorResponse(body); apiErr != nil {
			return fmt.Errorf("API request failed with status %d: %s (type: %s, code: %s)",
				resp.StatusCode, apiErr.Message, apiErr.Type, apiErr.Code)
		}
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, errorBody)
	}

	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}

	if resp == nil {
		return fmt.Errorf("HTTP request failed: no response received")
	}

	return nil
}

func (p *AzureOpenAIProvider) makeRequest(ctx context.Context, request chatRequest) (*chatResponse, error) {
	req, err := p.newHTTPRequest(ctx, request)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if reqErr := responseError(resp, err); reqErr != nil {
		return nil, reqErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response chatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &response, nil
}

func (p *AzureOpenAIProvider) makeStreamingRequest(ctx context.Context, request chatRequest, outputCh chan<- StreamChunk) error {
	req, err := p.newHTTPRequest(ctx, request)
	if err != nil {
		return err
	}

	resp, err := p.httpClient.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if reqErr := responseError(resp, err); reqErr != nil {
		return reqErr
	}

	reader := bufio.NewReader(resp.Body)

	// Tool calls arrive as deltas: an opening delta with an ID, then
	// argument fragments attached to the most recent call.
	var pendingCalls []chatToolCall
	totalTokens := 0

	flushToolCalls := func() error {
		if len(pendingCalls) == 0 {
			return nil
		}
		toolCalls, err := parseToolCalls(pendingCalls)
		if err != nil {
			return fmt.Errorf("failed to parse streamed tool calls: %w", err)
		}
		for _, tc := range toolCalls {
			outputCh <- StreamChunk{
				Type:     ChunkToolCall,
				ToolCall: tc,
			}
		}
		pendingCalls = nil
		return nil
	}

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read stream: %w", err)
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		if !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}
		line = line[6:]

		if bytes.Equal(line, []byte("[DONE]")) {
			break
		}

		var streamResp chatStreamResponse
		if err := json.Unmarshal(line, &streamResp); err != nil {
			continue
		}

		if streamResp.Error != nil {
			return fmt.Errorf("API error: %s", streamResp.Error.Message)
		}

		if streamResp.Usage != nil {
			totalTokens = streamResp.Usage.TotalTokens
		}

		if len(streamResp.Choices) == 0 {
			continue
		}

		choice := streamResp.Choices[0]

		if choice.Delta.Content != "" {
			outputCh <- StreamChunk{
				Type: ChunkText,
				Text: choice.Delta.Content,
			}
		}

		for _, deltaCall := range choice.Delta.ToolCalls {
			if deltaCall.ID != "" {
				pendingCalls = append(pendingCalls, deltaCall)
			} else if len(pendingCalls) > 0 {
				last := &pendingCalls[len(pendingCalls)-1]
				last.Function.Arguments += deltaCall.Function.Arguments
			}
		}

		if choice.FinishReason == "stop" || choice.FinishReason == "tool_calls" {
			if err := flushToolCalls(); err != nil {
				return err
			}
		}
	}

	if err := flushToolCalls(); err != nil {
		return err
	}

	outputCh <- StreamChunk{
		Type:   ChunkDone,
		Tokens: totalTokens,
	}

	return nil
}
