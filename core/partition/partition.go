// Package partition groups surviving feature records by lineage label.
package partition

import (
	"sort"

	"govizu-core/align"
)

// Partition maps lineage labels to their feature records. The terminal
// output of the pipeline; ownership passes to downstream tree building.
type Partition map[string][]align.FeatureRecord

// Builder accumulates records into a Partition, preserving the relative
// order of records within each lineage group.
type Builder struct {
	p     Partition
	total int
}

func NewBuilder() *Builder {
	return &Builder{p: make(Partition)}
}

// Add files fr under its lineage label. Every record lands in exactly one
// group; lineage is a scalar field.
func (b *Builder) Add(fr align.FeatureRecord) {
	b.p[fr.Lineage] = append(b.p[fr.Lineage], fr)
	b.total++
}

// Total is the number of records added so far.
func (b *Builder) Total() int { return b.total }

// Result hands off the accumulated partition. The builder must not be used
// afterwards.
func (b *Builder) Result() Partition {
	p := b.p
	b.p = nil
	return p
}

// Lineages returns the partition's labels in sorted order, for
// deterministic iteration and reporting.
func (p Partition) Lineages() []string {
	out := make([]string, 0, len(p))
	for l := range p {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Total counts records across all groups.
func (p Partition) Total() int {
	n := 0
	for _, recs := range p {
		n += len(recs)
	}
	return n
}
