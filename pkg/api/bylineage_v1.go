// Package api defines the stable JSON schemas consumed downstream (tree
// building and visualization). Keep fields, names, and types stable; add
// new fields only with ",omitempty".
package api

import (
	"govizu-core/align"
	"govizu-core/record"
)

// FeatureV1 is one genome's feature record inside the by-lineage export.
// Diffs entries encode as [op, pos, val] tuples and Missing entries as
// [start, end) pairs.
type FeatureV1 struct {
	Name           string       `json:"name"`
	Accession      string       `json:"accession"`
	CollectionDate string       `json:"coldate"`
	Diffs          []align.Edit `json:"diffs"`
	Missing        []align.Span `json:"missing"`
	Coverage       float64      `json:"coverage"`
}

// ToFeatureV1 converts a pipeline feature record to its wire form.
func ToFeatureV1(fr align.FeatureRecord) FeatureV1 {
	v := FeatureV1{
		Name:           fr.VirusName,
		Accession:      fr.AccessionID,
		CollectionDate: fr.CollectionDate.Format(record.DateLayout),
		Diffs:          fr.Diffs,
		Missing:        fr.Missing,
		Coverage:       fr.Coverage,
	}
	if v.Diffs == nil {
		v.Diffs = []align.Edit{}
	}
	if v.Missing == nil {
		v.Missing = []align.Span{}
	}
	return v
}

// DBStatsV1 is the run summary written alongside the by-lineage export.
type DBStatsV1 struct {
	LastUpdate string `json:"lastupdate"`
	NoSeqs     int    `json:"noseqs"`
}
