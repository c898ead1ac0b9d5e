package gemini

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/locum-chat/internal/ai"
	"github.com/spigell/locum-chat/internal/logger"
	"github.com/spigell/locum-chat/internal/util"
)

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

// systemInstruction is the grounding contract imposed on the model: it may
// only reference supplied postings and must keep internal identifiers out of
// the reply.
const systemInstruction = `You are a job-search assistant for clinicians. ` +
	`Reference only the postings provided in the MATCHES block of the prompt. ` +
	`Never invent postings, rates or locations and never output internal facility identifiers. ` +
	`When the match list is empty, say so briefly and suggest loosening the search.`

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, prompt string) (string, error)
	StreamContent(ctx context.Context, system, prompt string, emit func(chunk string) error) error
	Model() string
}

// Composer renders chat replies through Gemini, grounded on the supplied
// match list. It implements ai.Composer.
type Composer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewComposer(generator contentGenerator, log *zap.Logger, maxLogLength int) *Composer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Composer{
		generator: generator,
		logger:    logger.WithCommonFields(log, "gemini", generator.Model()),
		maxLogLen: maxLogLength,
	}
}

func (c *Composer) ComposeReply(ctx context.Context, req *ai.Request) (string, error) {
	prompt := buildPrompt(req)
	c.logRequest(prompt, req)

	raw, err := c.generator.GenerateContent(ctx, systemInstruction, prompt)
	if err != nil {
		return "", err
	}

	c.logger.Debug("gemini compose response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", util.TruncateForLog(raw, c.maxLogLen)),
	)

	return strings.TrimSpace(raw), nil
}

func (c *Composer) StreamReply(ctx context.Context, req *ai.Request, emit func(chunk string) error) error {
	prompt := buildPrompt(req)
	c.logRequest(prompt, req)

	return c.generator.StreamContent(ctx, systemInstruction, prompt, emit)
}

func (c *Composer) logRequest(prompt string, req *ai.Request) {
	c.logger.Debug("gemini compose request",
		zap.Int("matches", len(req.Matches)),
		zap.Int("history_turns", len(req.History)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", util.TruncateForLog(prompt, c.maxLogLen)),
	)
}

func buildPrompt(req *ai.Request) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "User message:\n{{MESSAGE}}\n\nMATCHES:\n{{MATCHES}}\n\n{{NOTE}}"
	}

	prompt := strings.ReplaceAll(template, "{{MESSAGE}}", req.Message)
	prompt = strings.ReplaceAll(prompt, "{{HISTORY}}", historyBlock(req))
	prompt = strings.ReplaceAll(prompt, "{{MATCHES}}", matchBlock(req))
	prompt = strings.ReplaceAll(prompt, "{{NOTE}}", noteBlock(req))
	return prompt
}

func historyBlock(req *ai.Request) string {
	if len(req.History) == 0 {
		return "(no earlier messages)"
	}

	var b strings.Builder
	for _, turn := range req.History {
		fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

func matchBlock(req *ai.Request) string {
	if len(req.Matches) == 0 {
		return "(no matching postings)"
	}

	var b strings.Builder
	for i, p := range req.Matches {
		fmt.Fprintf(&b, "%d. %s | %s, %s | %s / %s | $%.0f per %s | %s\n",
			i+1, p.Title, p.City, p.State, p.Profession, p.Specialty,
			p.RateNumeric, p.RateUnit, p.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}

func noteBlock(req *ai.Request) string {
	if req.FallbackNote == "" {
		return ""
	}
	return "Note for the reply: " + req.FallbackNote
}
