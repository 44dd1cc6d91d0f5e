package align

import (
	"fmt"
	"strconv"
)

// EncodeDiffs walks an alignment's CIGAR and reduces it to edits plus
// missing-site spans in reference coordinates.
//
// The aligner is run with extended CIGAR ops, so mismatches arrive as 'X'
// runs; 'M' runs (if a non-eqx aligner is substituted) are treated as
// matches. Ambiguous query bases (anything outside ACGT) never produce an
// edit; they extend the missing spans instead, as do clipped ends and the
// unaligned flanks of the reference.
func EncodeDiffs(a Alignment, reflen int) ([]Edit, []Span, error) {
	var (
		diffs   []Edit
		missing []Span
		rpos    = a.RefPos
		qpos    int
		seq     = a.Seq
	)
	if rpos > 0 {
		missing = append(missing, Span{0, rpos})
	}

	markMissing := func(p int) {
		if n := len(missing); n > 0 && missing[n-1].End == p {
			missing[n-1].End = p + 1
			return
		}
		missing = append(missing, Span{p, p + 1})
	}

	err := forEachCigarOp(a.CIGAR, func(length int, op byte) error {
		switch op {
		case 'S':
			qpos += length
		case 'H', 'P':
			// not present in the query sequence
		case '=', 'M':
			if qpos+length > len(seq) {
				return fmt.Errorf("cigar overruns query (%d%c at q=%d)", length, op, qpos)
			}
			for i := 0; i < length; i++ {
				if !unambiguous(seq[qpos+i]) {
					markMissing(rpos + i)
				}
			}
			rpos += length
			qpos += length
		case 'X':
			if qpos+length > len(seq) {
				return fmt.Errorf("cigar overruns query (%d%c at q=%d)", length, op, qpos)
			}
			for i := 0; i < length; i++ {
				b := seq[qpos+i]
				if unambiguous(b) {
					diffs = append(diffs, Edit{Op: OpSub, Pos: rpos + i, Seq: string(b)})
				} else {
					markMissing(rpos + i)
				}
			}
			rpos += length
			qpos += length
		case 'I':
			if qpos+length > len(seq) {
				return fmt.Errorf("cigar overruns query (%d%c at q=%d)", length, op, qpos)
			}
			diffs = append(diffs, Edit{Op: OpIns, Pos: rpos, Seq: seq[qpos : qpos+length]})
			qpos += length
		case 'D', 'N':
			diffs = append(diffs, Edit{Op: OpDel, Pos: rpos, Len: length})
			rpos += length
		default:
			return fmt.Errorf("unsupported cigar op %q", string(op))
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("cigar %q: %w", a.CIGAR, err)
	}

	if rpos < reflen {
		missing = append(missing, Span{rpos, reflen})
	} else if rpos > reflen {
		return nil, nil, fmt.Errorf("cigar %q extends past reference end (%d > %d)", a.CIGAR, rpos, reflen)
	}
	return diffs, mergeSpans(missing), nil
}

func forEachCigarOp(cigar string, fn func(length int, op byte) error) error {
	if cigar == "" || cigar == "*" {
		return fmt.Errorf("empty cigar")
	}
	start := 0
	for i := 0; i < len(cigar); i++ {
		c := cigar[i]
		if c >= '0' && c <= '9' {
			continue
		}
		if start == i {
			return fmt.Errorf("op %q without length", string(c))
		}
		n, err := strconv.Atoi(cigar[start:i])
		if err != nil {
			return err
		}
		if err := fn(n, c); err != nil {
			return err
		}
		start = i + 1
	}
	if start != len(cigar) {
		return fmt.Errorf("trailing length %q", cigar[start:])
	}
	return nil
}

func unambiguous(b byte) bool {
	switch b {
	case 'A', 'C', 'G', 'T':
		return true
	}
	return false
}

func mergeSpans(spans []Span) []Span {
	if len(spans) < 2 {
		return spans
	}
	out := spans[:1]
	for _, s := range spans[1:] {
		if last := &out[len(out)-1]; s.Start <= last.End {
			if s.End > last.End {
				last.End = s.End
			}
		} else {
			out = append(out, s)
		}
	}
	return out
}
