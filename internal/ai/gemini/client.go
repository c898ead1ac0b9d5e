package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/spigell/locum-chat/internal/util"
)

const (
	defaultModel      = "gemini-2.5-flash"
	defaultMaxRetries = 2
	// defaultRequestsPerMinute keeps the free-tier quota comfortable.
	defaultRequestsPerMinute = 30
	retryBackoff             = 2 * time.Second
	// maxQuotaDelay: when the API asks us to wait longer than this before
	// retrying, give up instead of stalling the request.
	maxQuotaDelay = 15 * time.Second
)

// backoff blocks between retry attempts and honors context cancellation.
var backoff = util.WaitFor

var retryAfterRe = regexp.MustCompile(`retry after (\d+)`)

// models abstracts the genai model surface so tests can queue canned
// responses.
type models interface {
	generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	stream(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

type apiModels struct {
	client *genai.Client
}

func (m apiModels) generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return m.client.Models.GenerateContent(ctx, model, contents, cfg)
}

func (m apiModels) stream(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	return m.client.Models.GenerateContentStream(ctx, model, contents, cfg)
}

// Generator wraps the Google GenAI client for prompt-based batch and
// streaming generation with retries and outbound rate limiting.
type Generator struct {
	models     models
	model      string
	maxRetries int
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewGenerator creates a Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey, model string, maxRetries int, requestsPerMinute float64, logger *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = defaultRequestsPerMinute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{
		models:     apiModels{client: client},
		model:      model,
		maxRetries: maxRetries,
		limiter:    rate.NewLimiter(rate.Limit(requestsPerMinute/60), 1),
		logger:     logger,
	}, nil
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

// GenerateContent sends the prompt to Gemini and returns the textual
// response, retrying temporary failures up to maxRetries attempts.
func (g *Generator) GenerateContent(ctx context.Context, system, prompt string) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("prompt must not be empty")
	}

	cfg := generateConfig(system)

	var lastErr error
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		if err := g.wait(ctx); err != nil {
			return "", err
		}

		resp, err := g.models.generate(ctx, g.model, genai.Text(prompt), cfg)
		if err == nil {
			output := collectText(resp)
			if output == "" {
				return "", errors.New("gemini api returned empty response")
			}
			return output, nil
		}

		lastErr = err
		if !retryable(err) || attempt == g.maxRetries {
			break
		}

		g.logger.Debug("retrying gemini request",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if err := backoff(ctx, retryBackoff); err != nil {
			return "", err
		}
	}

	return "", fmt.Errorf("generate content: %w", lastErr)
}

// StreamContent sends the prompt to Gemini and forwards each textual chunk to
// emit in arrival order. Streamed calls are not retried; a failure mid-stream
// is surfaced to the caller.
func (g *Generator) StreamContent(ctx context.Context, system, prompt string, emit func(chunk string) error) error {
	if g == nil || g.models == nil {
		return errors.New("gemini generator is not initialized")
	}
	if strings.TrimSpace(prompt) == "" {
		return errors.New("prompt must not be empty")
	}

	if err := g.wait(ctx); err != nil {
		return err
	}

	emitted := false
	for resp, err := range g.models.stream(ctx, g.model, genai.Text(prompt), generateConfig(system)) {
		if err != nil {
			return fmt.Errorf("stream content: %w", err)
		}

		chunk := collectText(resp)
		if chunk == "" {
			continue
		}
		emitted = true

		if err := emit(chunk); err != nil {
			return err
		}
	}

	if !emitted {
		return errors.New("gemini api returned empty stream")
	}

	return nil
}

func (g *Generator) wait(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}
	return g.limiter.Wait(ctx)
}

func generateConfig(system string) *genai.GenerateContentConfig {
	system = strings.TrimSpace(system)
	if system == "" {
		return nil
	}
	return &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		},
	}
}

func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	return strings.TrimSpace(builder.String())
}

// retryable reports whether the error is a temporary API failure worth another
// attempt. Quota errors that ask for a delay beyond maxQuotaDelay are treated
// as permanent.
func retryable(err error) bool {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	if apiErr.Code >= http.StatusInternalServerError {
		return true
	}

	if apiErr.Code == http.StatusTooManyRequests {
		if m := retryAfterRe.FindStringSubmatch(strings.ToLower(apiErr.Message)); m != nil {
			if secs, convErr := strconv.Atoi(m[1]); convErr == nil {
				if time.Duration(secs)*time.Second > maxQuotaDelay {
					return false
				}
			}
		}
		return true
	}

	return false
}
