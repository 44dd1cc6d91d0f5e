// Package filter removes statistical outliers from feature records after
// masking known-problematic genome sites.
package filter

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// SiteSet holds genome positions (0-based) whose calls are known to be
// systematic sequencing or alignment artifacts.
type SiteSet map[int]struct{}

// Contains reports whether pos is a known-problematic site.
func (s SiteSet) Contains(pos int) bool {
	_, ok := s[pos]
	return ok
}

// ReadSites parses a VCF of problematic sites. Only the POS column is used;
// VCF positions are 1-based and converted to the pipeline's 0-based
// coordinates. name is used in diagnostics only.
func ReadSites(r io.Reader, name string) (SiteSet, error) {
	sites := make(SiteSet)
	sc := bufio.NewScanner(r)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("filter: %s:%d: short VCF row", name, lineno)
		}
		pos, err := strconv.Atoi(fields[1])
		if err != nil || pos < 1 {
			return nil, fmt.Errorf("filter: %s:%d: bad POS %q", name, lineno, fields[1])
		}
		sites[pos-1] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("filter: read %s: %w", name, err)
	}
	return sites, nil
}
