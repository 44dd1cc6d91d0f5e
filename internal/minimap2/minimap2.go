// Package minimap2 adapts the minimap2 binary to the pipeline's Aligner
// interface. One subprocess is spawned per batch; the batch is fed as FASTA
// on stdin and the SAM output is parsed back into alignments.
package minimap2

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"govizu-core/align"
	"govizu-core/batch"
	"govizu-core/record"
)

// Runner invokes minimap2 against a fixed reference. Safe for sequential
// reuse across batches; the pipeline never aligns two batches at once.
type Runner struct {
	binary  string
	refPath string
	threads int
	log     *zap.Logger
}

func New(binary, refPath string, threads int, log *zap.Logger) *Runner {
	if threads < 1 {
		threads = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{binary: binary, refPath: refPath, threads: threads, log: log}
}

// Check verifies the binary resolves on PATH. Run this before streaming
// begins: discovering a missing aligner mid-run wastes the whole pass.
func (r *Runner) Check() error {
	if _, err := exec.LookPath(r.binary); err != nil {
		return errors.Wrapf(err, "alignment binary %q not found", r.binary)
	}
	return nil
}

// Align runs one minimap2 invocation over the batch. Any subprocess or
// parse failure fails the batch whole; no retry happens here.
func (r *Runner) Align(ctx context.Context, b batch.Batch) ([]align.Alignment, error) {
	// --eqx splits M into =/X so substitutions are visible in the CIGAR;
	// --sam-hit-only and --secondary=no keep the output one row per query.
	args := []string{
		"-t", strconv.Itoa(r.threads),
		"-a", "--eqx", "--sam-hit-only", "--secondary=no",
		r.refPath, "-",
	}
	cmd := exec.CommandContext(ctx, r.binary, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &align.AlignmentError{Msg: "open stdin pipe", Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &align.AlignmentError{Msg: "open stdout pipe", Err: err}
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, &align.AlignmentError{Msg: "start " + r.binary, Err: err}
	}

	var alns []align.Alignment
	var g errgroup.Group
	g.Go(func() error {
		defer stdin.Close()
		return writeBatchFASTA(stdin, b)
	})
	g.Go(func() error {
		var perr error
		alns, perr = ParseSAM(stdout)
		if perr != nil {
			// Keep draining after a bad row: a child blocked on a full
			// stdout pipe would otherwise hold Wait below forever.
			_, _ = io.Copy(io.Discard, stdout)
		}
		return perr
	})
	gerr := g.Wait()
	werr := cmd.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if werr != nil {
		return nil, &align.AlignmentError{
			Msg: fmt.Sprintf("%s failed: %s", r.binary, tail(stderr.String())),
			Err: werr,
		}
	}
	if gerr != nil {
		return nil, &align.AlignmentError{Msg: "batch i/o", Err: gerr}
	}

	r.log.Debug("aligned batch",
		zap.Int("records", len(b)),
		zap.Int("alignments", len(alns)))
	return alns, nil
}

func writeBatchFASTA(w io.Writer, b batch.Batch) error {
	bw := bufio.NewWriter(w)
	for _, rec := range b {
		// The raw header round-trips through minimap2's query name column.
		if _, err := fmt.Fprintf(bw, ">%s|%s|%s\n%s\n",
			rec.VirusName, rec.AccessionID,
			rec.CollectionDate.Format(record.DateLayout),
			rec.Sequence); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ParseSAM reads minimap2's SAM output, keeping one primary alignment per
// query. Header lines and secondary/supplementary/unmapped rows are
// dropped; a record with no surviving row surfaces later as a batch-level
// extraction failure naming that record.
func ParseSAM(r io.Reader) ([]align.Alignment, error) {
	var out []align.Alignment
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := sc.Text()
		if line == "" || line[0] == '@' {
			continue
		}
		f := strings.Split(line, "\t")
		if len(f) < 11 {
			return nil, errors.Newf("sam line %d: %d fields, want >= 11", lineno, len(f))
		}
		flag, err := strconv.Atoi(f[1])
		if err != nil {
			return nil, errors.Wrapf(err, "sam line %d: flag", lineno)
		}
		if flag&0x4 != 0 || flag&0x900 != 0 {
			continue // unmapped, secondary or supplementary
		}
		pos, err := strconv.Atoi(f[3])
		if err != nil || pos < 1 {
			return nil, errors.Newf("sam line %d: bad position %q", lineno, f[3])
		}
		out = append(out, align.Alignment{
			Header: f[0],
			RefPos: pos - 1,
			CIGAR:  f[5],
			Seq:    f[9],
		})
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read sam")
	}
	return out, nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	if len(s) > 200 {
		s = s[len(s)-200:]
	}
	return s
}
