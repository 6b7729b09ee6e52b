// Package importer drives the paged import loop: build a prompt, call the
// completion provider, extract, normalize and enrich, dedupe, persist, then
// decide whether to continue. One run is one cooperative task; pages are
// sequential on purpose, since each page's prompt depends on the growing
// exclusion list from earlier pages.
package importer

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tabarnam/company-importer/internal/config"
	"github.com/tabarnam/company-importer/internal/llm"
	"github.com/tabarnam/company-importer/internal/model"
	"github.com/tabarnam/company-importer/internal/pipeline"
	"github.com/tabarnam/company-importer/internal/storage"
)

// Per-call timeout bounds. Caller-supplied values are clamped, never trusted.
const (
	MinCallTimeout     = 10 * time.Second
	MaxCallTimeout     = 60 * time.Minute
	DefaultCallTimeout = 5 * time.Minute
)

// pageSize is how many companies one page asks the model for.
const pageSize = 10

// ClampTimeout converts a caller-supplied millisecond value into a bounded
// per-call timeout. Zero or negative means "use the default".
func ClampTimeout(ms int) time.Duration {
	if ms <= 0 {
		return DefaultCallTimeout
	}
	d := time.Duration(ms) * time.Millisecond
	if d < MinCallTimeout {
		return MinCallTimeout
	}
	if d > MaxCallTimeout {
		return MaxCallTimeout
	}
	return d
}

// Options configures one import run.
type Options struct {
	// MaxImports bounds both the accepted record count and the page count.
	MaxImports int
	// TimeoutMs bounds each completion call; clamped via ClampTimeout. Zero
	// falls back to the importer's configured default.
	TimeoutMs int
	Search    model.SearchQuery
	SessionID *string
}

// Importer owns the page loop and its collaborators. Dependencies are
// constructed once at startup and passed in; no lazy singletons.
type Importer struct {
	clients        []llm.Client
	limiter        *rate.Limiter
	defaultTimeout time.Duration
	normalizer     *pipeline.Normalizer
	companyRepo    storage.CompanyRepository
	llmCallRepo    storage.LLMCallRepository
	logger         *zap.Logger
}

// New creates an Importer. clients are tried in order per call: first
// success wins, failures fall through to the next provider. defaultTimeoutMs
// (import.default_timeout_ms) bounds completion calls when a request carries
// no timeout of its own; zero picks DefaultCallTimeout.
func New(
	clients []llm.Client,
	ratePerMinute int,
	defaultTimeoutMs int,
	normalizer *pipeline.Normalizer,
	companyRepo storage.CompanyRepository,
	llmCallRepo storage.LLMCallRepository,
	logger *zap.Logger,
) *Importer {
	if ratePerMinute <= 0 {
		ratePerMinute = 1
	}
	rps := rate.Every(time.Minute / time.Duration(ratePerMinute))

	return &Importer{
		clients:        clients,
		limiter:        rate.NewLimiter(rps, 1),
		defaultTimeout: ClampTimeout(defaultTimeoutMs),
		normalizer:     normalizer,
		companyRepo:    companyRepo,
		llmCallRepo:    llmCallRepo,
		logger:         logger,
	}
}

// ClientsFromConfig builds the ordered completion-client list. With
// llm.stub set it returns only the stub client; otherwise providers appear
// in llm.provider_order, skipping any without an API key.
func ClientsFromConfig(cfg config.LLMConfig) []llm.Client {
	if cfg.Stub {
		return []llm.Client{llm.NewStubClient()}
	}

	var clients []llm.Client
	for _, name := range cfg.ProviderOrder {
		switch name {
		case "anthropic":
			if cfg.Anthropic.APIKey != "" {
				clients = append(clients, llm.NewAnthropicClient(cfg.Anthropic.APIKey, cfg.Anthropic.Model))
			}
		case "openai":
			if cfg.OpenAI.APIKey != "" {
				clients = append(clients, llm.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model))
			}
		}
	}
	return clients
}

// Run executes the paged import loop and returns everything accepted.
// Provider errors advance the page counter rather than aborting, so one bad
// page never halts the whole run. The loop stops early on an empty or
// unparseable page, or on a page that yields nothing novel.
func (imp *Importer) Run(ctx context.Context, opts Options) (*model.ImportResult, error) {
	if len(imp.clients) == 0 {
		return nil, fmt.Errorf("no completion providers configured")
	}
	if opts.MaxImports < 1 {
		return nil, fmt.Errorf("maxImports must be at least 1, got %d", opts.MaxImports)
	}

	timeout := imp.defaultTimeout
	if opts.TimeoutMs > 0 {
		timeout = ClampTimeout(opts.TimeoutMs)
	}
	acc := pipeline.NewAccumulator()
	pages := 0

	for page := 1; page <= opts.MaxImports && acc.Len() < opts.MaxImports; page++ {
		pages = page
		prompt := BuildPrompt(opts.Search, acc.Names(), pageSize)

		text, err := imp.complete(ctx, page, prompt, timeout)
		if err != nil {
			imp.logger.Warn("completion call failed, advancing page",
				zap.Int("page", page),
				zap.Error(err),
			)
			continue
		}

		fragments, reason := pipeline.Extract(text)
		if len(fragments) == 0 {
			imp.logger.Info("no records recoverable, stopping",
				zap.Int("page", page),
				zap.String("reason", reason),
				zap.String("body", truncate(text, 200)),
			)
			break
		}

		novel := imp.processPage(ctx, page, fragments, acc, opts)
		if novel == 0 {
			imp.logger.Info("page yielded no novel records, stopping",
				zap.Int("page", page),
			)
			break
		}
	}

	status := model.StatusExhaustive
	if acc.Len() >= opts.MaxImports {
		status = model.StatusComplete
	}

	return &model.ImportResult{
		Companies: acc.Companies(),
		Status:    status,
		Pages:     pages,
	}, nil
}

// processPage normalizes, dedupes and persists one page of fragments,
// returning how many records were novel. A bad fragment drops only itself;
// a persistence failure is logged and does not block the rest.
func (imp *Importer) processPage(ctx context.Context, page int, fragments []any, acc *pipeline.Accumulator, opts Options) int {
	novel := 0
	for _, raw := range fragments {
		if acc.Len() >= opts.MaxImports {
			break
		}

		c, err := imp.normalizer.Normalize(ctx, raw, opts.SessionID)
		if err != nil {
			imp.logger.Warn("dropping malformed fragment",
				zap.Int("page", page),
				zap.Error(err),
			)
			continue
		}

		if !acc.Add(*c) {
			imp.logger.Debug("dropping duplicate",
				zap.String("company", c.CompanyName),
				zap.String("domain", c.NormalizedDomain),
			)
			continue
		}
		novel++

		if err := imp.companyRepo.Upsert(ctx, c); err != nil {
			imp.logger.Error("persisting company failed",
				zap.Int("page", page),
				zap.String("company", c.CompanyName),
				zap.Error(err),
			)
		}
	}
	return novel
}

// complete calls providers in order under the rate limiter, recording each
// attempt for cost tracking.
func (imp *Importer) complete(ctx context.Context, page int, prompt string, timeout time.Duration) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	for i, client := range imp.clients {
		if err := imp.limiter.Wait(callCtx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}

		start := time.Now()
		text, err := client.Complete(callCtx, prompt)
		imp.recordCall(ctx, page, client, err, time.Since(start).Milliseconds())

		if err == nil {
			return text, nil
		}
		lastErr = err

		if i < len(imp.clients)-1 {
			imp.logger.Warn("completion provider failed, trying next",
				zap.Int("page", page),
				zap.String("provider", client.ProviderName()),
				zap.Error(err),
			)
		}
	}

	return "", fmt.Errorf("all completion providers failed: %w", lastErr)
}

func (imp *Importer) recordCall(ctx context.Context, page int, client llm.Client, callErr error, durationMs int64) {
	call := &model.LLMCall{
		Page:     page,
		Provider: client.ProviderName(),
		Model:    client.ModelName(),
		Success:  callErr == nil,
	}
	call.DurationMs = &durationMs

	if err := imp.llmCallRepo.Create(ctx, call); err != nil {
		imp.logger.Error("recording completion call", zap.Error(err))
	}
}

// truncate shortens s to at most n bytes, backing off to a rune boundary so
// the excerpt stays valid UTF-8 in log output.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
