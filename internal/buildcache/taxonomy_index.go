package buildcache

import (
	"encoding/json"
	"os"

	"github.com/bengal-ssg/bengal/internal/content"
)

// SaveTaxonomyIndex persists a TaxonomySet to path (conventionally
// .bengal/cache/taxonomy.idx).
func SaveTaxonomyIndex(path string, ts *content.TaxonomySet) error {
	data, err := json.MarshalIndent(ts, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadTaxonomyIndex reads a TaxonomySet from path and verifies invariant 3
// from spec §8 (forward/reverse agreement). On any read error, parse
// error, or sync violation it returns (nil, false) so the caller discards
// and rebuilds, per spec §4.4 "Invariants for two-layer indexes".
func LoadTaxonomyIndex(path string) (*content.TaxonomySet, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	ts := content.NewTaxonomySet()
	if err := json.Unmarshal(data, ts); err != nil {
		return nil, false
	}
	if err := ts.VerifySync(); err != nil {
		return nil, false
	}
	return ts, true
}
