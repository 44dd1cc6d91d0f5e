package jsonutil

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
)

// Encode writes v as compact JSON to w.
func Encode(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

// EncodePretty writes v as indented JSON to w.
func EncodePretty(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteFile creates path (and any missing parent directories) and streams
// write(w) into it.
func WriteFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(fh); err != nil {
		_ = fh.Close()
		return err
	}
	return fh.Close()
}
