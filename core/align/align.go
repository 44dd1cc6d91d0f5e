// Package align turns batch alignments against the reference genome into
// compact per-record feature representations.
package align

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"govizu-core/batch"
	"govizu-core/record"
)

// Edit ops, matching the downstream wire encoding.
const (
	OpSub = "~" // substitution: Seq holds the alternate base
	OpIns = "+" // insertion: Seq holds the inserted bases
	OpDel = "-" // deletion: Len holds the deleted reference span
)

// Edit is one divergence from the reference, positioned in 0-based
// reference coordinates.
type Edit struct {
	Op  string
	Pos int
	Seq string
	Len int
}

// MarshalJSON encodes an edit as the [op, pos, val] tuple downstream
// consumers expect, where val is a string for "~"/"+" and a length for "-".
func (e Edit) MarshalJSON() ([]byte, error) {
	if e.Op == OpDel {
		return json.Marshal([3]any{e.Op, e.Pos, e.Len})
	}
	return json.Marshal([3]any{e.Op, e.Pos, e.Seq})
}

// Span is a half-open [Start, End) range of reference positions with no
// unambiguous call (terminal gaps, clipped ends, ambiguous bases).
type Span struct {
	Start, End int
}

func (s Span) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{s.Start, s.End})
}

// FeatureRecord is the terminal per-sequence form flowing into the outlier
// filter and the lineage partition.
type FeatureRecord struct {
	VirusName      string
	AccessionID    string
	Lineage        string
	CollectionDate time.Time
	Diffs          []Edit
	Missing        []Span
	Coverage       float64
}

// MissingTotal is the number of reference positions without an unambiguous
// call.
func (f FeatureRecord) MissingTotal() int {
	n := 0
	for _, s := range f.Missing {
		n += s.End - s.Start
	}
	return n
}

// Alignment is one aligned record as reported by the external tool.
type Alignment struct {
	Header string // raw query header
	RefPos int    // 0-based leftmost reference position
	CIGAR  string
	Seq    string // aligned query sequence
}

// Aligner aligns one batch against the reference. Implementations wrap the
// external tool; tests substitute fakes. A batch either aligns whole or
// fails whole, since coordinates are batch-global.
type Aligner interface {
	Align(ctx context.Context, b batch.Batch) ([]Alignment, error)
}

// AlignmentError reports a batch-level alignment failure. The whole batch
// is discarded; no partial features are emitted.
type AlignmentError struct {
	Msg string
	Err error
}

func (e *AlignmentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("align: %s: %v", e.Msg, e.Err)
	}
	return "align: " + e.Msg
}

func (e *AlignmentError) Unwrap() error { return e.Err }

// Extractor reduces aligned batches to feature records.
type Extractor struct {
	RefLen  int
	MissTol int // max tolerated missing bases per genome; <= 0 disables
}

// Extract aligns b and encodes each member's divergence from the reference.
// The second return counts records dropped for exceeding the missing-base
// tolerance. Any member failing to align fails the whole batch.
func (x Extractor) Extract(ctx context.Context, al Aligner, b batch.Batch) ([]FeatureRecord, int, error) {
	alns, err := al.Align(ctx, b)
	if err != nil {
		return nil, 0, err
	}
	byHeader := make(map[string]Alignment, len(alns))
	for _, a := range alns {
		byHeader[a.Header] = a
	}

	out := make([]FeatureRecord, 0, len(b))
	dropped := 0
	for _, rec := range b {
		hdr := rec.VirusName + "|" + rec.AccessionID + "|" + rec.CollectionDate.Format(record.DateLayout)
		a, ok := byHeader[hdr]
		if !ok {
			return nil, 0, &AlignmentError{Msg: fmt.Sprintf("no alignment reported for %q", hdr)}
		}
		diffs, missing, err := EncodeDiffs(a, x.RefLen)
		if err != nil {
			return nil, 0, &AlignmentError{Msg: fmt.Sprintf("encode %q", hdr), Err: err}
		}
		fr := FeatureRecord{
			VirusName:      rec.VirusName,
			AccessionID:    rec.AccessionID,
			Lineage:        rec.Lineage,
			CollectionDate: rec.CollectionDate,
			Diffs:          diffs,
			Missing:        missing,
		}
		miss := fr.MissingTotal()
		if x.MissTol > 0 && miss > x.MissTol {
			dropped++
			continue
		}
		fr.Coverage = 1 - float64(miss)/float64(x.RefLen)
		out = append(out, fr)
	}
	return out, dropped, nil
}
