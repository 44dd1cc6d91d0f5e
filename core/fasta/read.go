// Package fasta streams genome records from FASTA archives.
//
// Headers are kept verbatim (including any '|'-delimited metadata fields);
// interpreting them is the caller's concern. Sequences are uppercased and
// concatenated across wrapped lines.
package fasta

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
)

// Record is one archive entry: the raw header (without the '>' rune) and
// the full uppercased sequence.
type Record struct {
	Header string
	Seq    string
}

// FormatError reports an archive entry that cannot be parsed as a FASTA
// record.
type FormatError struct {
	Path string
	Line int
	Msg  string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("fasta: %s:%d: %s", e.Path, e.Line, e.Msg)
}

// StreamPath opens path and emits each record in archive order. The file
// handle is held only for the duration of the call and released on
// completion or early termination. Return a non-nil error from emit (e.g.
// ctx.Err()) to stop early.
func StreamPath(ctx context.Context, path string, emit func(Record) error) error {
	rc, err := Open(path)
	if err != nil {
		return err
	}
	defer rc.Close()
	return stream(ctx, rc, path, emit)
}

// ReadReference reads a single-record FASTA file, typically the reference
// genome whose length fixes the alignment coordinate system.
func ReadReference(path string) (Record, error) {
	var recs []Record
	err := StreamPath(context.Background(), path, func(r Record) error {
		recs = append(recs, r)
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	if len(recs) != 1 {
		return Record{}, &FormatError{Path: path, Msg: fmt.Sprintf("expected a single reference record, found %d", len(recs))}
	}
	return recs[0], nil
}

func stream(ctx context.Context, r io.Reader, path string, emit func(Record) error) error {
	sc := bufio.NewScanner(r)
	// Whole genomes are sometimes written on a single line.
	const maxLine = 64 * 1024 * 1024
	sc.Buffer(make([]byte, 64*1024), maxLine)

	var (
		header  string
		started bool
		seq     = make([]byte, 0, 1<<15)
		lineno  int
		hdrLine int
	)

	flush := func() error {
		if len(seq) == 0 {
			return &FormatError{Path: path, Line: hdrLine, Msg: fmt.Sprintf("record %q has an empty sequence body", header)}
		}
		return emit(Record{Header: header, Seq: string(seq)})
	}

	for sc.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		lineno++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			if started {
				if err := flush(); err != nil {
					return err
				}
				seq = seq[:0]
			}
			header = string(bytes.TrimSpace(line[1:]))
			hdrLine = lineno
			started = true
			continue
		}
		if !started {
			return &FormatError{Path: path, Line: lineno, Msg: "sequence data before first header"}
		}
		seq = append(seq, bytes.ToUpper(line)...)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("fasta scan %s: %w", path, err)
	}
	if started {
		return flush()
	}
	return nil
}
