package util

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// writeAtomic streams into a temp file next to path and renames it into place.
func writeAtomic(path, pattern string, fill func(w io.Writer) error) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), pattern)
	if err != nil {
		return fmt.Errorf("create temp %s: %w", filepath.Base(path), err)
	}
	bw := bufio.NewWriter(tmp)
	if err := fill(bw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("flush %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename temp %s: %w", filepath.Base(path), err)
	}
	return nil
}

func WriteJSONAtomic(path string, v any) error {
	return writeAtomic(path, "tmp-*.json", func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	})
}

// WriteJSONLinesAtomic writes one compact JSON document per line.
func WriteJSONLinesAtomic[T any](path string, rows []T) error {
	return writeAtomic(path, "tmp-*.jsonl", func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for i, row := range rows {
			if err := enc.Encode(row); err != nil {
				return fmt.Errorf("encode row %d: %w", i, err)
			}
		}
		return nil
	})
}

func WriteTextAtomic(path string, content string) error {
	return writeAtomic(path, "tmp-*.txt", func(w io.Writer) error {
		if _, err := io.WriteString(w, content); err != nil {
			return fmt.Errorf("write text: %w", err)
		}
		return nil
	})
}

func WriteBytesAtomic(path string, b []byte) error {
	return writeAtomic(path, "tmp-*"+filepath.Ext(path), func(w io.Writer) error {
		if _, err := w.Write(b); err != nil {
			return fmt.Errorf("write bytes: %w", err)
		}
		return nil
	})
}

// WriteToAtomic hands the temp file to fn, for encoders that own their own writer.
func WriteToAtomic(path string, fn func(w io.Writer) error) error {
	return writeAtomic(path, "tmp-*"+filepath.Ext(path), fn)
}
