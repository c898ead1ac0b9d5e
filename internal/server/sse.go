package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/locum-chat/internal/ai"
	"github.com/spigell/locum-chat/internal/catalog"
	"github.com/spigell/locum-chat/internal/logger"
	"github.com/spigell/locum-chat/internal/match"
	"github.com/spigell/locum-chat/internal/session"
)

// sseFrame is one server-sent event payload. Text frames carry a reply chunk;
// the final blocks frame carries the structured match list.
type sseFrame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type jobsBlock struct {
	Type  string             `json:"type"`
	Items []*catalog.Posting `json:"items"`
}

func wantsStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

// streamChat renders the reply as SSE frames: zero or more text frames
// followed by exactly one blocks frame, then the stream closes. Client
// disconnect cancels the in-flight composer call through the request context.
func (s *Server) streamChat(w http.ResponseWriter, r *http.Request, sessionID string, req *ai.Request, result *match.Result) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		// No streaming support on this connection, answer in one shot.
		s.logger.Warn("response writer does not support flushing, falling back to json")
		text, err := s.composer.ComposeReply(r.Context(), req)
		if err != nil {
			text = composeApology
		} else {
			s.sessions.Append(sessionID, session.RoleAssistant, text)
		}
		writeJSON(w, http.StatusOK, chatResponse{
			Text:         text,
			Jobs:         result.Postings,
			FallbackNote: result.FallbackNote,
		})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	var full strings.Builder
	err := s.composer.StreamReply(r.Context(), req, func(chunk string) error {
		full.WriteString(chunk)
		return writeFrame(w, flusher, sseFrame{Type: "text", Data: chunk})
	})

	switch {
	case r.Context().Err() != nil:
		s.logger.Debug("client disconnected mid-stream",
			zap.String(logger.FieldSession, sessionID),
		)
		return
	case err != nil:
		s.logger.Warn("stream reply failed",
			zap.String(logger.FieldSession, sessionID),
			zap.Error(err),
		)
		_ = writeFrame(w, flusher, sseFrame{Type: "text", Data: composeApology})
	default:
		s.sessions.Append(sessionID, session.RoleAssistant, full.String())
	}

	blocks := []jobsBlock{{Type: "jobs", Items: result.Postings}}
	_ = writeFrame(w, flusher, sseFrame{Type: "blocks", Data: blocks})
}

func writeFrame(w io.Writer, flusher http.Flusher, frame sseFrame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}

	flusher.Flush()
	return nil
}
