// Package record validates raw sequence records into canonical form.
package record

import (
	"fmt"
	"strings"
	"time"

	"govizu-core/fasta"
	"govizu-core/lineage"
)

// DateLayout is the full ISO calendar date accepted for collection dates.
const DateLayout = "2006-01-02"

// Canonical is a fully validated sequence record. Immutable once created.
type Canonical struct {
	VirusName      string
	AccessionID    string
	Sequence       string
	CollectionDate time.Time
	Lineage        string
}

// SkipReason tags records dropped by expected, non-error filters.
type SkipReason int

const (
	SkipNone SkipReason = iota
	SkipTooShort
	SkipIncompleteDate
	SkipDateOutOfRange
)

func (r SkipReason) String() string {
	switch r {
	case SkipTooShort:
		return "too-short"
	case SkipIncompleteDate:
		return "incomplete-date"
	case SkipDateOutOfRange:
		return "date-out-of-range"
	default:
		return "none"
	}
}

// HeaderFormatError reports a header that does not split into the expected
// name|accession|collection_date fields. Fatal: a malformed header in an
// otherwise plausible archive means the wrong file was supplied.
type HeaderFormatError struct {
	Header string
	Fields int
}

func (e *HeaderFormatError) Error() string {
	return fmt.Sprintf("record: header %q has %d fields, want 3 (name|accession|collection_date)", e.Header, e.Fields)
}

// MissingLineageError reports a structurally valid, in-range sequence with
// no lineage assignment. Fatal: it indicates the lineage file and the
// sequence archive are out of sync, and no downstream analysis over an
// inconsistent dataset can be trusted.
type MissingLineageError struct {
	Header string
}

func (e *MissingLineageError) Error() string {
	return fmt.Sprintf("record: no lineage assignment for %q", e.Header)
}

// Normalizer fuses raw records with their lineage entries, enforcing the
// length and collection-date invariants.
type Normalizer struct {
	MinLen  int
	MinDate time.Time
	Table   *lineage.Table

	// Now stubs the upper date bound in tests. Nil means time.Now.
	Now func() time.Time
}

// Normalize validates one raw record. Exactly one of three things happens:
// a Canonical comes back (SkipNone, nil error); the record is filtered with
// a reason (zero Canonical, nil error); or a fatal error is returned.
//
// Lineage lookup is keyed by the raw, unparsed header, matching how the
// classifier writes its taxon column.
func (n *Normalizer) Normalize(raw fasta.Record) (Canonical, SkipReason, error) {
	if len(raw.Seq) < n.MinLen {
		return Canonical{}, SkipTooShort, nil
	}

	fields := strings.Split(raw.Header, "|")
	if len(fields) != 3 {
		return Canonical{}, SkipNone, &HeaderFormatError{Header: raw.Header, Fields: len(fields)}
	}
	name, accn, coldate := fields[0], fields[1], fields[2]

	// Partial dates like "2020-03" are expected noise in raw feeds.
	if strings.Count(coldate, "-") != 2 {
		return Canonical{}, SkipIncompleteDate, nil
	}
	dt, err := time.Parse(DateLayout, coldate)
	if err != nil {
		return Canonical{}, SkipNone, fmt.Errorf("record: parse collection date of %q: %w", raw.Header, err)
	}
	if dt.Before(n.MinDate) || dt.After(n.now()) {
		return Canonical{}, SkipDateOutOfRange, nil
	}

	lin, ok := n.Table.Lookup(raw.Header)
	if !ok {
		return Canonical{}, SkipNone, &MissingLineageError{Header: raw.Header}
	}

	return Canonical{
		VirusName:      name,
		AccessionID:    accn,
		Sequence:       raw.Seq,
		CollectionDate: dt,
		Lineage:        lin,
	}, SkipNone, nil
}

func (n *Normalizer) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}
