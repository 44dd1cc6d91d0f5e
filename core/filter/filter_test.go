package filter

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"govizu-core/align"
)

var origin = time.Date(2019, 12, 1, 0, 0, 0, 0, time.UTC)

func fr(date time.Time, nedits int) align.FeatureRecord {
	diffs := make([]align.Edit, nedits)
	for i := range diffs {
		diffs[i] = align.Edit{Op: align.OpSub, Pos: 100 + i, Seq: "T"}
	}
	return align.FeatureRecord{AccessionID: "EPI_1", CollectionDate: date, Diffs: diffs}
}

func clock(sites SiteSet) *Filter {
	return New(Config{
		ClockRate: 8e-4,
		RefLen:    29903,
		Origin:    origin,
		Cutoff:    0.001,
		Sites:     sites,
	})
}

func TestReadSites(t *testing.T) {
	vcf := `##fileformat=VCFv4.3
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO
NC_045512.2	187	.	A	G	.	mask	.
NC_045512.2	1059	.	C	T	.	mask	.
`
	sites, err := ReadSites(strings.NewReader(vcf), "sites.vcf")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(sites) != 2 || !sites.Contains(186) || !sites.Contains(1058) {
		t.Fatalf("sites: %v", sites)
	}
	if sites.Contains(187) {
		t.Fatal("positions must be converted to 0-based")
	}
}

func TestReadSitesRejectsBadRows(t *testing.T) {
	if _, err := ReadSites(strings.NewReader("chr\n"), "x.vcf"); err == nil {
		t.Fatal("short row accepted")
	}
	if _, err := ReadSites(strings.NewReader("chr\tzero\t.\n"), "x.vcf"); err == nil {
		t.Fatal("non-numeric POS accepted")
	}
}

func TestMaskCannotIncreaseEditCount(t *testing.T) {
	f := clock(SiteSet{100: {}, 102: {}})
	rec := fr(origin.AddDate(0, 6, 0), 5)
	masked := f.Mask(rec)
	if len(masked.Diffs) > len(rec.Diffs) {
		t.Fatal("masking increased edit count")
	}
	if len(masked.Diffs) != 3 {
		t.Fatalf("expected 2 masked sites, kept %d edits", len(masked.Diffs))
	}
}

func TestMaskOnlyDropsSubstitutions(t *testing.T) {
	f := clock(SiteSet{50: {}})
	rec := align.FeatureRecord{
		CollectionDate: origin.AddDate(0, 6, 0),
		Diffs: []align.Edit{
			{Op: align.OpSub, Pos: 50, Seq: "T"},
			{Op: align.OpDel, Pos: 50, Len: 3},
		},
	}
	masked := f.Mask(rec)
	if len(masked.Diffs) != 1 || masked.Diffs[0].Op != align.OpDel {
		t.Fatalf("mask: %+v", masked.Diffs)
	}
}

func TestKeepRejectsExcessDivergence(t *testing.T) {
	f := clock(nil)
	sixMonths := origin.AddDate(0, 6, 0)
	// Expected divergence after ~6 months is ~12 edits; 60 is far past the
	// 99.9% quantile.
	if !f.Keep(fr(sixMonths, 10)) {
		t.Fatal("plausible record rejected")
	}
	if f.Keep(fr(sixMonths, 60)) {
		t.Fatal("outlier kept")
	}
}

func TestKeepAtOriginAllowsZeroEditsOnly(t *testing.T) {
	f := clock(nil)
	if !f.Keep(fr(origin, 0)) {
		t.Fatal("clean record at origin rejected")
	}
	if f.Keep(fr(origin, 3)) {
		t.Fatal("divergent record at origin kept")
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	f := clock(SiteSet{101: {}})
	sixMonths := origin.AddDate(0, 6, 0)
	in := []align.FeatureRecord{fr(sixMonths, 8), fr(sixMonths, 60), fr(sixMonths, 2)}

	once, rejected := f.Apply(in)
	if rejected != 1 || len(once) != 2 {
		t.Fatalf("first pass: rejected=%d kept=%d", rejected, len(once))
	}
	twice, rejected2 := f.Apply(once)
	if rejected2 != 0 {
		t.Fatalf("second pass rejected %d records", rejected2)
	}
	if !reflect.DeepEqual(once, twice) {
		t.Fatal("second pass changed the output")
	}
}

func TestUpperQuantileMonotone(t *testing.T) {
	prev := 0
	for _, mu := range []float64{0, 0.5, 2, 8, 24, 100} {
		k := upperQuantile(mu, 0.001)
		if k < prev {
			t.Fatalf("quantile not monotone in mu: mu=%v k=%d prev=%d", mu, k, prev)
		}
		prev = k
	}
	if upperQuantile(0, 0.001) != 0 {
		t.Fatal("zero mean must allow zero edits only")
	}
}
