package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/locum-chat/internal/ai"
	"github.com/spigell/locum-chat/internal/catalog"
	"github.com/spigell/locum-chat/internal/extract"
	"github.com/spigell/locum-chat/internal/logger"
	"github.com/spigell/locum-chat/internal/session"
)

// composeApology is returned when the reply composer fails. The deterministic
// matches are still delivered alongside it.
const composeApology = "Sorry, I had trouble writing a reply just now. " +
	"Here are the postings I found for you."

type chatRequest struct {
	Message   string         `json:"message"`
	SessionID string         `json:"sessionId"`
	Filters   map[string]any `json:"filters"`
}

type chatResponse struct {
	Text         string             `json:"text"`
	Jobs         []*catalog.Posting `json:"jobs"`
	FallbackNote string             `json:"fallbackNote,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "OK")
}

func (s *Server) handleJobs(w http.ResponseWriter, _ *http.Request) {
	jobs := s.catalog.All()
	if jobs == nil {
		jobs = []*catalog.Posting{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	posting, ok := s.catalog.ByID(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "posting not found"})
		return
	}

	writeJSON(w, http.StatusOK, posting)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Search(filtersFromQuery(r)))
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message is required"})
		return
	}

	filters := extract.FromMessage(req.Message).Merge(s.decodeExplicitFilters(req.Filters))
	result := s.engine.Search(filters)

	history := s.sessions.History(req.SessionID)
	s.sessions.Append(req.SessionID, session.RoleUser, req.Message)

	aiReq := &ai.Request{
		Message:      req.Message,
		History:      history,
		Matches:      result.Postings,
		FallbackNote: result.FallbackNote,
	}

	if wantsStream(r) {
		s.streamChat(w, r, req.SessionID, aiReq, result)
		return
	}

	text, err := s.composer.ComposeReply(r.Context(), aiReq)
	if err != nil {
		// The reply text degrades but the match list is still served, and
		// no assistant turn is recorded for the failed reply.
		s.logger.Warn("compose reply failed",
			zap.String(logger.FieldSession, req.SessionID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, chatResponse{
			Text:         composeApology,
			Jobs:         result.Postings,
			FallbackNote: result.FallbackNote,
		})
		return
	}

	s.sessions.Append(req.SessionID, session.RoleAssistant, text)

	writeJSON(w, http.StatusOK, chatResponse{
		Text:         text,
		Jobs:         result.Postings,
		FallbackNote: result.FallbackNote,
	})
}

// decodeExplicitFilters maps the request's filters object onto a FilterSet.
// Unknown keys and type mismatches degrade to an absent field, never a hard
// error.
func (s *Server) decodeExplicitFilters(raw map[string]any) extract.FilterSet {
	var f extract.FilterSet
	if len(raw) == 0 {
		return f
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &f,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return extract.FilterSet{}
	}

	if err := dec.Decode(raw); err != nil {
		s.logger.Debug("ignoring undecodable explicit filters", zap.Error(err))
		return extract.FilterSet{}
	}

	if f.MinRate != nil && *f.MinRate < 0 {
		f.MinRate = nil
	}

	return f
}

func filtersFromQuery(r *http.Request) extract.FilterSet {
	q := r.URL.Query()

	f := extract.FilterSet{
		State:      strings.ToUpper(strings.TrimSpace(q.Get("state"))),
		Profession: strings.TrimSpace(q.Get("profession")),
		Specialty:  strings.TrimSpace(q.Get("specialty")),
	}

	if unit := q.Get("unit"); unit != "" {
		f.Unit = extract.CanonicalUnit(unit)
	}

	if raw := q.Get("minRate"); raw != "" {
		if rate, err := strconv.ParseFloat(raw, 64); err == nil && rate >= 0 {
			f.MinRate = &rate
		}
	}

	return f
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
