package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/spigell/locum-chat/internal/ai"
	"github.com/spigell/locum-chat/internal/catalog"
	"github.com/spigell/locum-chat/internal/match"
	"github.com/spigell/locum-chat/internal/session"
)

type failingComposer struct{}

func (failingComposer) ComposeReply(context.Context, *ai.Request) (string, error) {
	return "", errors.New("provider unavailable")
}

func (failingComposer) StreamReply(context.Context, *ai.Request, func(string) error) error {
	return errors.New("provider unavailable")
}

func testPostings() []*catalog.Posting {
	return []*catalog.Posting{
		{
			JobID: "JO-100", Title: "CRNA", City: "Dallas", State: "TX",
			Profession: "CRNA", Specialty: "Anesthesia",
			RateNumeric: 210, RateUnit: catalog.UnitHour, Priority: catalog.PriorityHigh,
		},
		{
			JobID: "JO-101", Title: "CRNA", City: "Miami", State: "FL",
			Profession: "CRNA", Specialty: "Anesthesia",
			RateNumeric: 190, RateUnit: catalog.UnitHour,
		},
		{
			JobID: "JO-102", Title: "Hospitalist", City: "Austin", State: "TX",
			Profession: "Physician", Specialty: "Hospital Medicine",
			RateNumeric: 2200, RateUnit: catalog.UnitDay,
		},
	}
}

func newTestServer(composer ai.Composer) (*Server, *session.Store) {
	store := catalog.New(testPostings(), zap.NewNop())
	engine := match.New(store, match.DefaultParams(), zap.NewNop())
	sessions := session.NewStore(0)

	srv := New(
		Config{Port: 0, AllowedOrigins: []string{"https://app.example.com"}},
		store, engine, sessions, composer, zap.NewNop(),
	)
	return srv, sessions
}

func doRequest(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(ai.NewTemplated())

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Fatalf("unexpected body: %q", rec.Body.String())
	}
}

func TestListJobs(t *testing.T) {
	srv, _ := newTestServer(ai.NewTemplated())

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var jobs []*catalog.Posting
	if err := json.Unmarshal(rec.Body.Bytes(), &jobs); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 postings, got %d", len(jobs))
	}
}

func TestJobByID(t *testing.T) {
	srv, _ := newTestServer(ai.NewTemplated())

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/jobs/JO-101", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var posting catalog.Posting
	if err := json.Unmarshal(rec.Body.Bytes(), &posting); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if posting.City != "Miami" {
		t.Fatalf("unexpected posting: %+v", posting)
	}

	rec = doRequest(srv, httptest.NewRequest(http.MethodGet, "/jobs/JO-999", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", rec.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	srv, _ := newTestServer(ai.NewTemplated())

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/search?state=tx&profession=CRNA&minRate=200", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var result match.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if result.Tier != match.TierExact {
		t.Fatalf("expected exact tier, got %d", result.Tier)
	}
	if len(result.Postings) != 1 || result.Postings[0].JobID != "JO-100" {
		t.Fatalf("unexpected postings: %+v", result.Postings)
	}
}

func TestChatMatchesAndRecordsSession(t *testing.T) {
	srv, sessions := newTestServer(ai.NewTemplated())

	body := `{"message": "CRNA job in Texas around $200/hr", "sessionId": "s1"}`
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := doRequest(srv, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if resp.Text == "" {
		t.Fatal("expected a reply text")
	}
	if len(resp.Jobs) != 1 || resp.Jobs[0].JobID != "JO-100" {
		t.Fatalf("unexpected jobs: %+v", resp.Jobs)
	}

	if got := sessions.Len("s1"); got != 2 {
		t.Fatalf("expected user and assistant turns recorded, got %d", got)
	}
	history := sessions.History("s1")
	if history[0].Role != session.RoleUser || history[1].Role != session.RoleAssistant {
		t.Fatalf("unexpected history roles: %+v", history)
	}
}

func TestChatExplicitFiltersOverrideText(t *testing.T) {
	srv, _ := newTestServer(ai.NewTemplated())

	body := `{"message": "CRNA job in Texas", "filters": {"state": "FL"}}`
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))

	rec := doRequest(srv, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(resp.Jobs) != 1 || resp.Jobs[0].JobID != "JO-101" {
		t.Fatalf("expected the Florida posting, got %+v", resp.Jobs)
	}
}

func TestChatMissingMessage(t *testing.T) {
	srv, _ := newTestServer(ai.NewTemplated())

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"sessionId": "s1"}`))
	if rec := doRequest(srv, req); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestChatComposerFailureStillDeliversMatches(t *testing.T) {
	srv, sessions := newTestServer(failingComposer{})

	body := `{"message": "CRNA job in Texas around $200/hr", "sessionId": "s2"}`
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))

	rec := doRequest(srv, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if resp.Text != composeApology {
		t.Fatalf("unexpected text: %q", resp.Text)
	}
	if len(resp.Jobs) != 1 {
		t.Fatalf("expected matches despite composer failure, got %+v", resp.Jobs)
	}

	// The failed reply must not leave an assistant turn behind.
	if got := sessions.Len("s2"); got != 1 {
		t.Fatalf("expected only the user turn recorded, got %d", got)
	}
}

func TestChatStreamsEventFrames(t *testing.T) {
	srv, sessions := newTestServer(ai.NewTemplated())

	body := `{"message": "CRNA job in Texas around $200/hr", "sessionId": "s3"}`
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Accept", "text/event-stream")

	rec := doRequest(srv, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type: %q", ct)
	}

	frames := parseFrames(t, rec.Body.String())
	if len(frames) < 2 {
		t.Fatalf("expected text and blocks frames, got %d", len(frames))
	}
	for _, frame := range frames[:len(frames)-1] {
		if frame.Type != "text" {
			t.Fatalf("expected text frame, got %q", frame.Type)
		}
	}

	last := frames[len(frames)-1]
	if last.Type != "blocks" {
		t.Fatalf("expected final blocks frame, got %q", last.Type)
	}

	var blocks []jobsBlock
	if err := json.Unmarshal(last.Data, &blocks); err != nil {
		t.Fatalf("decoding blocks: %v", err)
	}
	if len(blocks) != 1 || blocks[0].Type != "jobs" || len(blocks[0].Items) != 1 {
		t.Fatalf("unexpected blocks: %+v", blocks)
	}

	if got := sessions.Len("s3"); got != 2 {
		t.Fatalf("expected both turns recorded, got %d", got)
	}
}

func TestChatStreamFailureSendsApologyAndBlocks(t *testing.T) {
	srv, sessions := newTestServer(failingComposer{})

	body := `{"message": "CRNA job in Texas", "sessionId": "s4"}`
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Accept", "text/event-stream")

	rec := doRequest(srv, req)
	frames := parseFrames(t, rec.Body.String())
	if len(frames) != 2 {
		t.Fatalf("expected apology and blocks frames, got %d", len(frames))
	}

	var apology string
	if err := json.Unmarshal(frames[0].Data, &apology); err != nil {
		t.Fatalf("decoding apology: %v", err)
	}
	if apology != composeApology {
		t.Fatalf("unexpected apology: %q", apology)
	}
	if frames[1].Type != "blocks" {
		t.Fatalf("expected blocks frame, got %q", frames[1].Type)
	}

	if got := sessions.Len("s4"); got != 1 {
		t.Fatalf("expected only the user turn recorded, got %d", got)
	}
}

func TestCORSAllowList(t *testing.T) {
	srv, _ := newTestServer(ai.NewTemplated())

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "https://app.example.com")

	rec := doRequest(srv, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("unexpected allow-origin header: %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/jobs", nil)
	req.Header.Set("Origin", "https://evil.example.com")

	rec = doRequest(srv, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow-origin header for unknown origin, got %q", got)
	}
}

type rawFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func parseFrames(t *testing.T, body string) []rawFrame {
	t.Helper()

	var frames []rawFrame
	for _, line := range strings.Split(body, "\n\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		payload, found := strings.CutPrefix(line, "data: ")
		if !found {
			t.Fatalf("malformed event line: %q", line)
		}

		var frame rawFrame
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			t.Fatalf("decoding frame %q: %v", payload, err)
		}
		frames = append(frames, frame)
	}
	return frames
}
