// Package pipeline composes the ingestion stages into a single-pass run:
// read → normalize → batch → extract → filter → partition.
//
// Orchestration is sequential; memory is bounded by one batch plus the
// lineage table and the accumulating partition. Parallelism lives inside
// the external aligner only.
package pipeline

import (
	"context"
	"fmt"

	"govizu-core/align"
	"govizu-core/batch"
	"govizu-core/fasta"
	"govizu-core/filter"
	"govizu-core/partition"
	"govizu-core/record"
)

// Stats counts, per filter, how many records each stage dropped. Skips are
// expected, high-frequency events in real feeds; they are counted rather
// than logged per record.
type Stats struct {
	Read           int
	TooShort       int
	IncompleteDate int
	DateOutOfRange int
	LowCoverage    int
	Outliers       int
	Kept           int
}

// Skipped is the total number of records dropped across all filters.
func (s Stats) Skipped() int {
	return s.TooShort + s.IncompleteDate + s.DateOutOfRange + s.LowCoverage + s.Outliers
}

func (s *Stats) skip(r record.SkipReason) {
	switch r {
	case record.SkipTooShort:
		s.TooShort++
	case record.SkipIncompleteDate:
		s.IncompleteDate++
	case record.SkipDateOutOfRange:
		s.DateOutOfRange++
	}
}

// Pipeline wires the stages together. All collaborators are passed by
// reference; nothing here is global.
type Pipeline struct {
	Normalizer *record.Normalizer
	Aligner    align.Aligner
	Extractor  align.Extractor
	Filter     *filter.Filter
	BatchSize  int
}

// Run streams the archive at path through every stage and returns the
// lineage partition. Fatal conditions (schema desync, missing lineage,
// malformed header, batch alignment failure) abort immediately with a
// diagnostic naming the offending file or record; per-record filters only
// increment Stats.
func (p *Pipeline) Run(ctx context.Context, path string) (partition.Partition, Stats, error) {
	var stats Stats
	batcher := batch.New(p.BatchSize)
	out := partition.NewBuilder()

	process := func(b batch.Batch) error {
		features, lowCov, err := p.Extractor.Extract(ctx, p.Aligner, b)
		if err != nil {
			return err
		}
		stats.LowCoverage += lowCov
		kept, rejected := p.Filter.Apply(features)
		stats.Outliers += rejected
		for _, fr := range kept {
			out.Add(fr)
		}
		return nil
	}

	err := fasta.StreamPath(ctx, path, func(raw fasta.Record) error {
		stats.Read++
		rec, skip, err := p.Normalizer.Normalize(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if skip != record.SkipNone {
			stats.skip(skip)
			return nil
		}
		if full, ok := batcher.Add(rec); ok {
			return process(full)
		}
		return nil
	})
	if err != nil {
		return nil, stats, err
	}
	if last := batcher.Flush(); last != nil {
		if err := process(last); err != nil {
			return nil, stats, err
		}
	}

	stats.Kept = out.Total()
	return out.Result(), stats, nil
}
