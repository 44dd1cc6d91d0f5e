// Package lineage loads the classifier's CSV output into an immutable
// identifier → lineage table.
package lineage

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// ExpectedColumns is the exact header the classifier (Pangolin) writes.
// Anything else almost certainly means the wrong file was supplied, so the
// loader refuses it outright.
var ExpectedColumns = []string{"taxon", "lineage", "probability", "pangoLEARN_version", "status", "note"}

// SchemaError reports a lineage file whose column header does not match
// ExpectedColumns. It is fatal for the whole run.
type SchemaError struct {
	Path string
	Got  []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("lineage: %s: header %q does not match expected %q",
		e.Path, strings.Join(e.Got, ","), strings.Join(ExpectedColumns, ","))
}

// Table maps sequence identifiers to lineage labels. Read-only after Load.
type Table struct {
	m map[string]string
}

// Load reads a lineage CSV from r. name is used in diagnostics only.
//
// Duplicate identifiers follow last-write-wins, matching the upstream
// classifier's own behavior of emitting one row per input and later rows
// superseding earlier ones. Empty lineage values are retained as empty
// strings, not treated as missing.
func Load(r io.Reader, name string) (*Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("lineage: read header of %s: %w", name, err)
	}
	if !equal(header, ExpectedColumns) {
		return nil, &SchemaError{Path: name, Got: header}
	}

	m := make(map[string]string)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("lineage: read %s: %w", name, err)
		}
		m[row[0]] = row[1]
	}
	return &Table{m: m}, nil
}

// Lookup returns the lineage label for id. The second return distinguishes
// a missing entry from a present-but-empty label.
func (t *Table) Lookup(id string) (string, bool) {
	v, ok := t.m[id]
	return v, ok
}

// Len reports the number of distinct identifiers in the table.
func (t *Table) Len() int { return len(t.m) }

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
