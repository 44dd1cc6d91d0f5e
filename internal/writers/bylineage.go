// Package writers serializes pipeline outputs for downstream consumers.
package writers

import (
	"io"
	"time"

	"govizu-core/partition"
	"govizu/internal/jsonutil"
	"govizu/pkg/api"
)

// WriteByLineage emits the partition as {lineage: [feature, ...]}. Map keys
// sort lexicographically under encoding/json, so output is deterministic.
func WriteByLineage(w io.Writer, p partition.Partition) error {
	out := make(map[string][]api.FeatureV1, len(p))
	for lin, recs := range p {
		fs := make([]api.FeatureV1, 0, len(recs))
		for _, fr := range recs {
			fs = append(fs, api.ToFeatureV1(fr))
		}
		out[lin] = fs
	}
	return jsonutil.Encode(w, out)
}

// WriteByLineageFile writes the by-lineage export to path, creating parent
// directories as needed.
func WriteByLineageFile(path string, p partition.Partition) error {
	return jsonutil.WriteFile(path, func(w io.Writer) error {
		return WriteByLineage(w, p)
	})
}

// WriteDBStats emits the run summary consumed by the frontend.
func WriteDBStats(w io.Writer, lastUpdate time.Time, nseqs int) error {
	return jsonutil.EncodePretty(w, api.DBStatsV1{
		LastUpdate: lastUpdate.Format("2006-01-02"),
		NoSeqs:     nseqs,
	})
}

// WriteDBStatsFile writes the run summary to path.
func WriteDBStatsFile(path string, lastUpdate time.Time, nseqs int) error {
	return jsonutil.WriteFile(path, func(w io.Writer) error {
		return WriteDBStats(w, lastUpdate, nseqs)
	})
}
