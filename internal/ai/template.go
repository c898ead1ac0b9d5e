package ai

import (
	"context"
	"fmt"
	"strings"
)

// Templated is the deterministic composer used when no generative provider is
// configured. It renders a plain summary of the match list so the service
// stays usable offline.
type Templated struct{}

func NewTemplated() *Templated {
	return &Templated{}
}

func (c *Templated) ComposeReply(_ context.Context, req *Request) (string, error) {
	var b strings.Builder

	if len(req.Matches) == 0 {
		b.WriteString("I couldn't find any postings matching your request right now.")
	} else {
		fmt.Fprintf(&b, "I found %d posting(s) for you:\n", len(req.Matches))
		for _, p := range req.Matches {
			fmt.Fprintf(&b, "- %s in %s, %s: $%.0f/%s (%s)\n",
				p.Title, p.City, p.State, p.RateNumeric, p.RateUnit, p.URL)
		}
	}

	if req.FallbackNote != "" {
		b.WriteString("\n")
		b.WriteString(req.FallbackNote)
	}

	return strings.TrimSpace(b.String()), nil
}

func (c *Templated) StreamReply(ctx context.Context, req *Request, emit func(chunk string) error) error {
	text, err := c.ComposeReply(ctx, req)
	if err != nil {
		return err
	}
	return emit(text)
}
