package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/leadflow/agent"
	"github.com/BaSui01/leadflow/types"
)

// maxToolTurns bounds the tool-call loop so a model that keeps requesting
// tools cannot spin an invocation forever.
const maxToolTurns = 8

// Config configures the chat-completions client.
type Config struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Client is an OpenAI-compatible chat-completions invoker with function
// calling: declared tools are offered to the model, requested calls are
// executed locally, and results are fed back until the model answers.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Client. BaseURL and Model are required.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, types.NewError(types.ErrConfiguration, "llm: base_url is required")
	}
	if cfg.Model == "" {
		return nil, types.NewError(types.ErrConfiguration, "llm: model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With(zap.String("component", "llm"), zap.String("model", cfg.Model)),
	}, nil
}

type chatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type toolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function functionCall `json:"function"`
}

type functionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type toolDecl struct {
	Type     string       `json:"type"`
	Function functionDecl `json:"function"`
}

type functionDecl struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Parameters  *types.JSONSchema `json:"parameters,omitempty"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []toolDecl    `json:"tools,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Invoke implements agent.Invoker. The role declaration becomes the system
// message and the assignment becomes the user message; a declared response
// schema is rendered into the prompt so the capability answers in JSON.
// Declared tools are passed on the wire; each round of returned tool calls
// is executed against the request's toolset and appended to the
// conversation before the next completion.
func (c *Client) Invoke(ctx context.Context, req *agent.InvokeRequest) (string, error) {
	messages := []chatMessage{
		{Role: "system", Content: systemPrompt(req)},
		{Role: "user", Content: userPrompt(req)},
	}
	decls, toolset := declareTools(req.Tools)

	for turn := 0; turn < maxToolTurns; turn++ {
		parsed, err := c.complete(ctx, chatRequest{
			Model:       c.cfg.Model,
			Temperature: c.cfg.Temperature,
			MaxTokens:   c.cfg.MaxTokens,
			Messages:    messages,
			Tools:       decls,
		})
		if err != nil {
			return "", err
		}

		msg := parsed.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			return msg.Content, nil
		}

		messages = append(messages, msg)
		for _, call := range msg.ToolCalls {
			result, err := c.executeToolCall(ctx, toolset, call)
			if err != nil {
				return "", err
			}
			messages = append(messages, chatMessage{
				Role:       "tool",
				ToolCallID: call.ID,
				Content:    result,
			})
		}
	}
	return "", types.NewError(types.ErrCapability,
		fmt.Sprintf("llm: tool-call loop exceeded %d turns", maxToolTurns))
}

// complete performs one chat-completions round trip.
func (c *Client) complete(ctx context.Context, body chatRequest) (*chatResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, types.NewError(types.ErrCapability, "llm: encode request").WithCause(err)
	}

	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrCapability, "llm: build request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrCapability, "llm: completion request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, types.NewError(types.ErrCapability,
			fmt.Sprintf("llm: completion returned status %d: %s", resp.StatusCode, string(b)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, types.NewError(types.ErrCapability, "llm: decode response").WithCause(err)
	}
	if parsed.Error != nil {
		return nil, types.NewError(types.ErrCapability, "llm: "+parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, types.NewError(types.ErrCapability, "llm: empty response from provider")
	}

	c.logger.Debug("completion ok",
		zap.Duration("duration", time.Since(start)),
		zap.Int("tool_calls", len(parsed.Choices[0].Message.ToolCalls)),
	)
	return &parsed, nil
}

// executeToolCall runs one requested tool and renders its result as the
// tool message content. Tool failures surface as capability errors.
func (c *Client) executeToolCall(ctx context.Context, toolset map[string]agent.Tool, call toolCall) (string, error) {
	tool, ok := toolset[call.Function.Name]
	if !ok {
		return "", types.NewError(types.ErrCapability,
			"llm: model requested undeclared tool "+call.Function.Name)
	}

	// Providers send arguments either as an object or as a string-encoded
	// JSON document.
	raw := call.Function.Arguments
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", types.NewError(types.ErrCapability,
				"llm: decode arguments for tool "+call.Function.Name).WithCause(err)
		}
		raw = json.RawMessage(s)
	}
	params := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return "", types.NewError(types.ErrCapability,
				"llm: decode arguments for tool "+call.Function.Name).WithCause(err)
		}
	}

	start := time.Now()
	out, err := tool.Execute(ctx, params)
	if err != nil {
		return "", types.NewError(types.ErrCapability,
			"llm: tool "+call.Function.Name+" failed").WithCause(err)
	}
	c.logger.Debug("tool executed",
		zap.String("tool", call.Function.Name),
		zap.Duration("duration", time.Since(start)),
	)

	if s, ok := out.(string); ok {
		return s, nil
	}
	rendered, err := json.Marshal(out)
	if err != nil {
		return "", types.NewError(types.ErrCapability,
			"llm: encode result of tool "+call.Function.Name).WithCause(err)
	}
	return string(rendered), nil
}

// declareTools builds the wire declarations and the name-indexed toolset
// used to dispatch returned calls.
func declareTools(tools []agent.Tool) ([]toolDecl, map[string]agent.Tool) {
	if len(tools) == 0 {
		return nil, nil
	}
	decls := make([]toolDecl, 0, len(tools))
	toolset := make(map[string]agent.Tool, len(tools))
	for _, tool := range tools {
		decls = append(decls, toolDecl{
			Type: "function",
			Function: functionDecl{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  tool.Parameters(),
			},
		})
		toolset[tool.Name()] = tool
	}
	return decls, toolset
}

func systemPrompt(req *agent.InvokeRequest) string {
	var b strings.Builder
	b.WriteString("You are " + req.Role + ".")
	if req.Goal != "" {
		b.WriteString("\nYour goal: " + req.Goal)
	}
	if req.Backstory != "" {
		b.WriteString("\n" + req.Backstory)
	}
	if len(req.Tools) > 0 {
		b.WriteString("\n\nYou have access to these tools:")
		for _, tool := range req.Tools {
			b.WriteString("\n- " + tool.Name() + ": " + tool.Description())
		}
	}
	return b.String()
}

func userPrompt(req *agent.InvokeRequest) string {
	var b strings.Builder
	b.WriteString(req.Instructions)
	if req.Context != "" {
		b.WriteString("\n\n# Context\n" + req.Context)
	}
	if req.ExpectedOutput != "" {
		b.WriteString("\n\n# Expected output\n" + req.ExpectedOutput)
	}
	if req.ResponseSchema != nil {
		schema, err := json.MarshalIndent(req.ResponseSchema, "", "  ")
		if err == nil {
			b.WriteString("\n\nRespond with a single JSON object matching this schema, and nothing else:\n")
			b.Write(schema)
		}
	}
	return b.String()
}
