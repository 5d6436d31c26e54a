package dropdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// ErrMalformed marks a drop-directory file that could not be decoded as a
// record. Malformed files are consumed rather than retried forever.
var ErrMalformed = errors.New("dropdir: malformed record")

const processedDir = "processed"

// Store reads and writes transcription records in a drop directory.
type Store struct {
	fs  afero.Fs
	dir string
}

// NewStore creates a Store over dir, creating the directory and its
// processed subdirectory as needed.
func NewStore(fs afero.Fs, dir string) (*Store, error) {
	if err := fs.MkdirAll(filepath.Join(dir, processedDir), 0o755); err != nil {
		return nil, fmt.Errorf("dropdir: creating %s: %w", dir, err)
	}
	return &Store{fs: fs, dir: dir}, nil
}

// Dir returns the drop directory path.
func (s *Store) Dir() string { return s.dir }

// Write serializes the record into the drop directory under its
// timestamp-derived filename.
func (s *Store) Write(rec Record) (string, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("dropdir: encoding record: %w", err)
	}
	path := filepath.Join(s.dir, rec.Filename())
	if err := afero.WriteFile(s.fs, path, data, 0o644); err != nil {
		return "", fmt.Errorf("dropdir: writing %s: %w", path, err)
	}
	return path, nil
}

// Pending lists the unconsumed record filenames in timestamp order.
func (s *Store) Pending() ([]string, error) {
	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, fmt.Errorf("dropdir: listing %s: %w", s.dir, err)
	}
	var names []string
	for _, fi := range infos {
		if fi.IsDir() {
			continue
		}
		name := fi.Name()
		if strings.HasPrefix(name, "transcription_") && strings.HasSuffix(name, ".json") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Read decodes the named record without consuming it.
func (s *Store) Read(name string) (Record, error) {
	path := filepath.Join(s.dir, name)
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return Record{}, fmt.Errorf("dropdir: reading %s: %w", path, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %s: %v", ErrMalformed, name, err)
	}
	return rec, nil
}

// Consume moves the named record into the processed subdirectory. A record is
// consumed exactly once, whether or not handling it succeeded.
func (s *Store) Consume(name string) error {
	src := filepath.Join(s.dir, name)
	dst := filepath.Join(s.dir, processedDir, name)
	if err := s.fs.Rename(src, dst); err != nil {
		return fmt.Errorf("dropdir: consuming %s: %w", name, err)
	}
	return nil
}
