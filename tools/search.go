package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/leadflow/types"
)

const defaultSerperURL = "https://google.serper.dev/search"

// SearchResult is one organic web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// SearchConfig configures the web search tool.
type SearchConfig struct {
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	MaxResults int           `yaml:"max_results"`
	Timeout    time.Duration `yaml:"timeout"`
	// RatePerSecond throttles outbound requests; 0 means unlimited.
	RatePerSecond float64 `yaml:"rate_per_second"`
}

// SearchTool queries a Serper-compatible web search API.
type SearchTool struct {
	cfg        SearchConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewSearchTool creates the web search tool.
func NewSearchTool(cfg SearchConfig, logger *zap.Logger) *SearchTool {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultSerperURL
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return &SearchTool{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		logger:     logger.With(zap.String("component", "tool"), zap.String("tool", "web_search")),
	}
}

func (t *SearchTool) Name() string { return "web_search" }

func (t *SearchTool) Description() string {
	return "Search the web for current information about a person or company. Params: query (string)."
}

// Parameters declares the argument shape for provider tool calling.
func (t *SearchTool) Parameters() *types.JSONSchema {
	return types.NewObjectSchema().
		AddProperty("query", types.NewStringSchema().WithDescription("The search query.")).
		AddRequired("query")
}

// Execute runs one search. Params: "query" (string, required).
func (t *SearchTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	query, _ := params["query"].(string)
	if query == "" {
		return nil, types.NewError(types.ErrCapability, "web_search: query param is required")
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return nil, types.NewError(types.ErrCapability, "web_search: rate limit wait").WithCause(err)
	}

	payload, err := json.Marshal(map[string]string{"q": query})
	if err != nil {
		return nil, types.NewError(types.ErrCapability, "web_search: encode request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrCapability, "web_search: build request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", t.cfg.APIKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, types.NewError(types.ErrCapability, "web_search: request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, types.NewError(types.ErrCapability,
			fmt.Sprintf("web_search: status %d: %s", resp.StatusCode, string(body)))
	}

	var parsed struct {
		Organic []SearchResult `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, types.NewError(types.ErrCapability, "web_search: decode response").WithCause(err)
	}

	results := parsed.Organic
	if len(results) > t.cfg.MaxResults {
		results = results[:t.cfg.MaxResults]
	}
	t.logger.Debug("search completed", zap.String("query", query), zap.Int("results", len(results)))
	return results, nil
}
