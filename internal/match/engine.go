package match

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/locum-chat/internal/catalog"
	"github.com/spigell/locum-chat/internal/extract"
)

// Tier identifiers for the relaxation ladder.
const (
	TierExact = iota
	TierRateRelaxed
	TierAnyState
	TierNeighborStates
	TierBestOverall
)

// Params tunes the relaxation ladder. A single parameterized ladder is the
// only source of truth for fallback behavior.
type Params struct {
	// RateSlack multiplies the requested minimum rate in the rate
	// relaxation tier.
	RateSlack float64
	// NeighborProbes caps how many bordering states are probed.
	NeighborProbes int
	// NeighborCap caps how many postings the neighbor tier accumulates.
	NeighborCap int
	// BestOverallCap caps the catalog-wide fallback result.
	BestOverallCap int
}

// DefaultParams returns the production ladder settings.
func DefaultParams() Params {
	return Params{
		RateSlack:      0.85,
		NeighborProbes: 4,
		NeighborCap:    10,
		BestOverallCap: 6,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.RateSlack <= 0 || p.RateSlack >= 1 {
		p.RateSlack = d.RateSlack
	}
	if p.NeighborProbes <= 0 {
		p.NeighborProbes = d.NeighborProbes
	}
	if p.NeighborCap <= 0 {
		p.NeighborCap = d.NeighborCap
	}
	if p.BestOverallCap <= 0 {
		p.BestOverallCap = d.BestOverallCap
	}
	return p
}

// Result is the ranked outcome of one search. Postings are references into
// the catalog store, never copies.
type Result struct {
	Postings     []*catalog.Posting `json:"jobs"`
	FallbackNote string             `json:"fallbackNote,omitempty"`
	Tier         int                `json:"tier"`
	TriedStates  []string           `json:"triedStates,omitempty"`
}

// Engine runs the tiered search over the catalog. It holds no mutable state
// and is safe for concurrent use.
type Engine struct {
	store  *catalog.Store
	params Params
	logger *zap.Logger
}

func New(store *catalog.Store, params Params, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, params: params.withDefaults(), logger: logger}
}

// Search walks the relaxation ladder and returns the first non-empty tier.
// Absent filter fields impose no constraint, so an empty FilterSet returns
// the whole catalog ranked.
func (e *Engine) Search(f extract.FilterSet) *Result {
	hits := e.collect(f, f.MinRate, false, "")
	e.logTier("exact", TierExact, len(hits))
	if len(hits) > 0 {
		return &Result{Postings: hits, Tier: TierExact}
	}

	if f.MinRate != nil {
		relaxed := math.Round(*f.MinRate * e.params.RateSlack)

		hits = e.collect(f, &relaxed, false, "")
		e.logTier("rate_relaxed", TierRateRelaxed, len(hits))
		if len(hits) > 0 {
			return &Result{
				Postings: hits,
				Tier:     TierRateRelaxed,
				FallbackNote: fmt.Sprintf(
					"No postings at $%.0f and up; showing postings from $%.0f and up instead.",
					*f.MinRate, relaxed,
				),
			}
		}

		hits = e.collect(f, f.MinRate, true, "")
		e.logTier("any_state", TierAnyState, len(hits))
		if len(hits) > 0 {
			return &Result{
				Postings:     hits,
				Tier:         TierAnyState,
				FallbackNote: "No postings matched in the requested state at that rate; showing matches from other states.",
			}
		}
	}

	if f.State != "" {
		if res := e.searchNeighbors(f); len(res.Postings) > 0 {
			return res
		}
	}

	return e.bestOverall()
}

// searchNeighbors probes the bordering states of the requested one, applying
// the full non-state filter set in each, up to the configured probe and
// result caps.
func (e *Engine) searchNeighbors(f extract.FilterSet) *Result {
	res := &Result{Tier: TierNeighborStates}

	neighbors := Neighbors(f.State)
	if len(neighbors) == 0 {
		e.logTier("neighbor_states", TierNeighborStates, 0)
		return res
	}

	probes := min(len(neighbors), e.params.NeighborProbes)
	for _, state := range neighbors[:probes] {
		res.TriedStates = append(res.TriedStates, state)

		for _, p := range e.collect(f, f.MinRate, false, state) {
			if len(res.Postings) >= e.params.NeighborCap {
				break
			}
			res.Postings = append(res.Postings, p)
		}
		if len(res.Postings) >= e.params.NeighborCap {
			break
		}
	}

	e.logTier("neighbor_states", TierNeighborStates, len(res.Postings))

	if len(res.Postings) > 0 {
		res.FallbackNote = fmt.Sprintf(
			"No postings in %s; showing nearby states (%s).",
			f.State, strings.Join(res.TriedStates, ", "),
		)
	}

	return res
}

// bestOverall is the final fallback: the top postings catalog-wide by rate.
// On an empty catalog it returns an empty list, still with the note.
func (e *Engine) bestOverall() *Result {
	all := e.store.All()
	sorted := make([]*catalog.Posting, len(all))
	copy(sorted, all)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RateNumeric > sorted[j].RateNumeric
	})

	if len(sorted) > e.params.BestOverallCap {
		sorted = sorted[:e.params.BestOverallCap]
	}

	e.logTier("best_overall", TierBestOverall, len(sorted))

	return &Result{
		Postings:     sorted,
		Tier:         TierBestOverall,
		FallbackNote: "No close matches found; showing the top-paying postings overall.",
	}
}

// collect scans the catalog in order and returns the ranked postings matching
// the filter set. minRate overrides the set's own threshold, stateOverride
// replaces the requested state and ignoreState drops the state constraint
// entirely.
func (e *Engine) collect(f extract.FilterSet, minRate *float64, ignoreState bool, stateOverride string) []*catalog.Posting {
	state := f.State
	if stateOverride != "" {
		state = stateOverride
	}

	var hits []*catalog.Posting
	for _, p := range e.store.All() {
		if !ignoreState && state != "" && !strings.EqualFold(p.State, state) {
			continue
		}
		if f.Profession != "" && !strings.EqualFold(p.Profession, f.Profession) {
			continue
		}
		if f.Specialty != "" && !strings.EqualFold(p.Specialty, f.Specialty) {
			continue
		}
		if f.Unit != "" && !strings.EqualFold(p.RateUnit, extract.CanonicalUnit(f.Unit)) {
			continue
		}
		if minRate != nil && p.RateNumeric < *minRate {
			continue
		}
		hits = append(hits, p)
	}

	rank(hits)
	return hits
}

// rank orders postings by priority (High first) then rate descending. Exact
// ties keep catalog order.
func rank(postings []*catalog.Posting) {
	sort.SliceStable(postings, func(i, j int) bool {
		hi := postings[i].Priority == catalog.PriorityHigh
		hj := postings[j].Priority == catalog.PriorityHigh
		if hi != hj {
			return hi
		}
		return postings[i].RateNumeric > postings[j].RateNumeric
	})
}

func (e *Engine) logTier(name string, tier, matched int) {
	e.logger.Debug("search tier",
		zap.String("name", name),
		zap.Int("tier", tier),
		zap.Int("matched", matched),
	)
}
