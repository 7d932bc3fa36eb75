// Package checkpoint persists each stage's validated output and drives
// resume. Artifacts are one JSON file per stage under the run's output
// directory; deleting a stage's file forces recomputation of that stage and
// everything after it.
package checkpoint

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bookgen/internal/model"
)

// ErrAbsent reports that no checkpoint exists for the requested stage.
var ErrAbsent = eris.New("checkpoint: absent")

// Store persists and restores per-stage records.
type Store interface {
	// Save persists record keyed by stage, overwriting any prior value.
	Save(stage model.Stage, record any) error
	// Load reads the stage's record into the value pointed to by into.
	// Returns ErrAbsent when no artifact exists.
	Load(stage model.Stage, into any) error
	// Remove deletes a stage's artifact. Removing an absent artifact is
	// not an error.
	Remove(stage model.Stage) error
}

// FileStore keeps one pretty-printed JSON file per stage in a directory.
// Files are hand-editable; the pipeline re-normalizes records on load.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns a FileStore
// rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "checkpoint: create dir %s", dir)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory holding the stage artifacts.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(stage model.Stage) string {
	return filepath.Join(s.dir, string(stage)+".json")
}

// Save writes the record via a temp file and rename so a crashed run never
// leaves a truncated artifact behind.
func (s *FileStore) Save(stage model.Stage, record any) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "checkpoint: marshal %s", stage)
	}

	tmp, err := os.CreateTemp(s.dir, string(stage)+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "checkpoint: temp file for %s", stage)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return eris.Wrapf(err, "checkpoint: write %s", stage)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return eris.Wrapf(err, "checkpoint: close %s", stage)
	}
	if err := os.Rename(tmpName, s.path(stage)); err != nil {
		os.Remove(tmpName)
		return eris.Wrapf(err, "checkpoint: rename %s", stage)
	}
	return nil
}

func (s *FileStore) Load(stage model.Stage, into any) error {
	data, err := os.ReadFile(s.path(stage))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrAbsent
	}
	if err != nil {
		return eris.Wrapf(err, "checkpoint: read %s", stage)
	}
	if err := json.Unmarshal(data, into); err != nil {
		return eris.Wrapf(err, "checkpoint: unmarshal %s", stage)
	}
	return nil
}

func (s *FileStore) Remove(stage model.Stage) error {
	err := os.Remove(s.path(stage))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return eris.Wrapf(err, "checkpoint: remove %s", stage)
	}
	return nil
}
