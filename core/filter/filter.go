package filter

import (
	"time"

	"govizu-core/align"
)

// Hours in a Julian year; collection dates are calendar days.
const hoursPerYear = 24 * 365.25

// Config parameterizes the molecular-clock outlier test.
type Config struct {
	ClockRate float64   // substitutions per site per year
	RefLen    int       // reference genome length (sites)
	Origin    time.Time // epidemic origin; elapsed time is measured from here
	Cutoff    float64   // upper-tail significance, e.g. 0.001 for the 99.9% quantile
	Sites     SiteSet   // problematic sites masked before counting
}

// Filter masks problematic sites and rejects records whose edit count
// exceeds the Poisson upper-tail cutoff for their collection date. Both
// operations are deterministic and idempotent.
type Filter struct {
	cfg Config
}

func New(cfg Config) *Filter { return &Filter{cfg: cfg} }

// Mask returns fr with substitutions at problematic sites removed. Masking
// can only shrink the edit list.
func (f *Filter) Mask(fr align.FeatureRecord) align.FeatureRecord {
	if len(f.cfg.Sites) == 0 || len(fr.Diffs) == 0 {
		return fr
	}
	kept := fr.Diffs[:0:0]
	for _, e := range fr.Diffs {
		if e.Op == align.OpSub && f.cfg.Sites.Contains(e.Pos) {
			continue
		}
		kept = append(kept, e)
	}
	fr.Diffs = kept
	return fr
}

// Keep applies the clock test to an already-masked record: the edit count
// must not exceed the Poisson quantile of the expected accumulation
// (rate × genome length × elapsed years).
func (f *Filter) Keep(fr align.FeatureRecord) bool {
	elapsed := fr.CollectionDate.Sub(f.cfg.Origin).Hours() / hoursPerYear
	if elapsed < 0 {
		elapsed = 0
	}
	mu := f.cfg.ClockRate * float64(f.cfg.RefLen) * elapsed
	return len(fr.Diffs) <= upperQuantile(mu, f.cfg.Cutoff)
}

// Apply masks and filters a slice of records, preserving order. The second
// return counts rejected outliers.
func (f *Filter) Apply(recs []align.FeatureRecord) ([]align.FeatureRecord, int) {
	out := recs[:0:0]
	rejected := 0
	for _, fr := range recs {
		fr = f.Mask(fr)
		if !f.Keep(fr) {
			rejected++
			continue
		}
		out = append(out, fr)
	}
	return out, rejected
}
