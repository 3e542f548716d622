package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/leadflow/types"
)

// ScrapeConfig configures the page scraping tool.
type ScrapeConfig struct {
	MaxBytes int           `yaml:"max_bytes"`
	Timeout  time.Duration `yaml:"timeout"`
	// RatePerSecond throttles outbound requests; 0 means unlimited.
	RatePerSecond float64 `yaml:"rate_per_second"`
	UserAgent     string  `yaml:"user_agent"`
}

// ScrapeTool fetches a web page and reduces it to readable text.
type ScrapeTool struct {
	cfg        ScrapeConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewScrapeTool creates the scraping tool.
func NewScrapeTool(cfg ScrapeConfig, logger *zap.Logger) *ScrapeTool {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 256 * 1024
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "leadflow/0.1"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return &ScrapeTool{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		logger:     logger.With(zap.String("component", "tool"), zap.String("tool", "scrape_website")),
	}
}

func (t *ScrapeTool) Name() string { return "scrape_website" }

func (t *ScrapeTool) Description() string {
	return "Fetch a web page and return its visible text. Params: url (string)."
}

// Parameters declares the argument shape for provider tool calling.
func (t *ScrapeTool) Parameters() *types.JSONSchema {
	return types.NewObjectSchema().
		AddProperty("url", types.NewStringSchema().WithDescription("The page URL to fetch.")).
		AddRequired("url")
}

var (
	scriptRe = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	tagRe    = regexp.MustCompile(`(?s)<[^>]*>`)
	spaceRe  = regexp.MustCompile(`[ \t]*\n[ \t\n]*`)
)

// Execute fetches one page. Params: "url" (string, required).
func (t *ScrapeTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	url, _ := params["url"].(string)
	if url == "" {
		return nil, types.NewError(types.ErrCapability, "scrape_website: url param is required")
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return nil, types.NewError(types.ErrCapability, "scrape_website: rate limit wait").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, types.NewError(types.ErrCapability, "scrape_website: build request").WithCause(err)
	}
	req.Header.Set("User-Agent", t.cfg.UserAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, types.NewError(types.ErrCapability, "scrape_website: request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, types.NewError(types.ErrCapability,
			fmt.Sprintf("scrape_website: status %d for %s", resp.StatusCode, url))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(t.cfg.MaxBytes)))
	if err != nil {
		return nil, types.NewError(types.ErrCapability, "scrape_website: read body").WithCause(err)
	}

	text := stripHTML(string(body))
	t.logger.Debug("page scraped", zap.String("url", url), zap.Int("bytes", len(text)))
	return text, nil
}

// stripHTML reduces an HTML document to its visible text.
func stripHTML(html string) string {
	text := scriptRe.ReplaceAllString(html, " ")
	text = tagRe.ReplaceAllString(text, " ")
	text = strings.NewReplacer("&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'").Replace(text)
	text = spaceRe.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}
