package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestLoadMissingFileServesEmptyCatalog(t *testing.T) {
	store := Load(filepath.Join(t.TempDir(), "nope.yaml"), zap.NewNop())

	if store.Len() != 0 {
		t.Fatalf("expected empty catalog, got %d postings", store.Len())
	}
	if all := store.All(); len(all) != 0 {
		t.Fatalf("expected no postings, got %d", len(all))
	}
}

func TestLoadMalformedFileServesEmptyCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte("{not valid: [yaml"), 0o644); err != nil {
		t.Fatalf("writing catalog: %v", err)
	}

	store := Load(path, zap.NewNop())
	if store.Len() != 0 {
		t.Fatalf("expected empty catalog, got %d postings", store.Len())
	}
}

func TestLoadYAMLCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	src := `
- jobId: JO-1
  title: CRNA
  city: Miami
  state: fl
  profession: CRNA
  specialty: Anesthesia
  rateNumeric: 200
  rateUnit: hour
  priority: High
- jobId: JO-2
  title: CRNA
  city: Tampa
  state: FL
  profession: CRNA
  specialty: Anesthesia
  rateNumeric: 150
  rateUnit: daily
`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("writing catalog: %v", err)
	}

	store := Load(path, zap.NewNop())
	if store.Len() != 2 {
		t.Fatalf("expected 2 postings, got %d", store.Len())
	}

	p, ok := store.ByID("JO-1")
	if !ok {
		t.Fatal("expected JO-1 to be present")
	}
	if p.State != "FL" {
		t.Fatalf("expected state normalized to FL, got %q", p.State)
	}
	if p.URL == "" {
		t.Fatal("expected fallback URL to be derived")
	}

	p2, _ := store.ByID("JO-2")
	if p2.RateUnit != UnitDay {
		t.Fatalf("expected daily normalized to day, got %q", p2.RateUnit)
	}
	if p2.Priority != PriorityStandard {
		t.Fatalf("expected default priority Standard, got %q", p2.Priority)
	}
}

func TestLoadJSONCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	src := `[{"jobId":"JO-9","title":"Radiologist","state":"TX","profession":"Physician","specialty":"Diagnostic Radiology","rateNumeric":320,"rateUnit":"hour","priority":"Standard","url":"https://example.com/jo-9"}]`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("writing catalog: %v", err)
	}

	store := Load(path, zap.NewNop())
	if store.Len() != 1 {
		t.Fatalf("expected 1 posting, got %d", store.Len())
	}

	p, _ := store.ByID("JO-9")
	if p.URL != "https://example.com/jo-9" {
		t.Fatalf("expected source URL preserved, got %q", p.URL)
	}
}

func TestNewDropsInvalidRecords(t *testing.T) {
	store := New([]*Posting{
		{JobID: "JO-1", State: "FL", RateNumeric: 100},
		{JobID: "", State: "GA", RateNumeric: 100},
		{JobID: "JO-1", State: "AL", RateNumeric: 100},
		{JobID: "JO-3", State: "TX", RateNumeric: -5},
		nil,
	}, zap.NewNop())

	if store.Len() != 1 {
		t.Fatalf("expected only one valid posting, got %d", store.Len())
	}
	if _, ok := store.ByID("JO-1"); !ok {
		t.Fatal("expected first JO-1 to win")
	}
}
