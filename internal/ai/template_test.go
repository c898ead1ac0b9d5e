package ai

import (
	"context"
	"strings"
	"testing"

	"github.com/spigell/locum-chat/internal/catalog"
)

func TestTemplatedComposeReply(t *testing.T) {
	c := NewTemplated()

	req := &Request{
		Message: "CRNA in FL?",
		Matches: []*catalog.Posting{
			{
				JobID: "JO-1", Title: "CRNA", City: "Miami", State: "FL",
				RateNumeric: 200, RateUnit: catalog.UnitHour,
				URL: catalog.FallbackURL("JO-1"),
			},
		},
		FallbackNote: "Relaxed the rate.",
	}

	text, err := c.ComposeReply(context.Background(), req)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !strings.Contains(text, "Miami, FL") {
		t.Fatalf("expected posting location in reply, got %q", text)
	}
	if !strings.Contains(text, "$200/hour") {
		t.Fatalf("expected rate in reply, got %q", text)
	}
	if !strings.Contains(text, "Relaxed the rate.") {
		t.Fatalf("expected fallback note in reply, got %q", text)
	}
}

func TestTemplatedComposeReplyNoMatches(t *testing.T) {
	c := NewTemplated()

	text, err := c.ComposeReply(context.Background(), &Request{Message: "anything?"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(text, "couldn't find") {
		t.Fatalf("expected empty-result phrasing, got %q", text)
	}
}

func TestTemplatedStreamReplyEmitsOnce(t *testing.T) {
	c := NewTemplated()

	var chunks []string
	err := c.StreamReply(context.Background(), &Request{Message: "hi"}, func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected a single chunk, got %d", len(chunks))
	}
}
