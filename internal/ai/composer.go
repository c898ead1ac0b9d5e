package ai

import (
	"context"

	"github.com/spigell/locum-chat/internal/catalog"
	"github.com/spigell/locum-chat/internal/session"
)

// Request carries everything a composer may use to produce the user-facing
// reply: the original message, trimmed conversation history and the match
// result. Composers must never reference postings outside Matches.
type Request struct {
	Message      string
	History      []session.Turn
	Matches      []*catalog.Posting
	FallbackNote string
}

// Composer turns a match result into user-facing text. ComposeReply resolves
// the whole reply at once; StreamReply emits it piecewise through emit as
// chunks become available, preserving order.
type Composer interface {
	ComposeReply(ctx context.Context, req *Request) (string, error)
	StreamReply(ctx context.Context, req *Request, emit func(chunk string) error) error
}
