// Package fsio centralizes the write-temp-then-rename atomic file
// write discipline spec.md requires of every output artifact (bronze,
// gold, cache, rankings, connectivity), so two runs over unchanged
// input produce byte-identical files (I5/I6) and a crash mid-write
// never leaves a half-written file at the real path.
package fsio

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
)

// WriteAtomic writes data to path by first writing to a sibling temp
// file in the same directory, then renaming it into place. The same-
// directory temp file keeps the rename on one filesystem so it is
// atomic on POSIX systems.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("fsio: creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("fsio: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("fsio: writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsio: syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("fsio: closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("fsio: chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("fsio: renaming temp file into place: %w", err)
	}
	return nil
}

// WriteCSVAtomic marshals rows (a slice of struct pointers or values
// with `csv` tags, per gocarina/gocsv) and writes them atomically.
func WriteCSVAtomic(path string, rows interface{}) error {
	var buf bytes.Buffer
	if err := gocsv.Marshal(rows, &buf); err != nil {
		return fmt.Errorf("fsio: marshaling csv: %w", err)
	}
	return WriteAtomic(path, buf.Bytes(), 0o644)
}

// ReadCSV unmarshals the CSV file at path into rows (a pointer to a
// slice), per gocarina/gocsv conventions.
func ReadCSV(path string, rows interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("fsio: opening %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.UnmarshalFile(f, rows); err != nil {
		return fmt.Errorf("fsio: unmarshaling csv %s: %w", path, err)
	}
	return nil
}

// WriteJSONAtomic marshals v as indented JSON and writes it
// atomically.
func WriteJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("fsio: marshaling json: %w", err)
	}
	return WriteAtomic(path, data, 0o644)
}

// ReadJSON unmarshals the JSON file at path into v. A missing file is
// reported via the returned error; callers that treat "no cache yet"
// as a normal condition should check os.IsNotExist(err).
func ReadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// AppendLine appends a single line (without its own trailing newline)
// to the file at path, creating it if necessary. Used for the
// append-only error log (spec.md §6).
func AppendLine(path string, line []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("fsio: creating directory %s: %w", dir, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("fsio: opening %s for append: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("fsio: appending to %s: %w", path, err)
	}
	return nil
}
