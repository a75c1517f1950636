package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	util "github.com/slobbe/zap/internal/helpers"
	"github.com/slobbe/zap/internal/logging"
	models "github.com/slobbe/zap/internal/types"
)

const recordExt = ".json"

// Index stores one JSON record per installed app, keyed by executable name.
type Index struct {
	dir string
}

func NewIndex(dir string) *Index {
	return &Index{dir: dir}
}

func (idx *Index) Dir() string {
	return idx.dir
}

func (idx *Index) path(name string) string {
	return filepath.Join(idx.dir, name+recordExt)
}

func validName(name string) error {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid app name %q", name)
	}
	return nil
}

// Exists reports whether a record file is present for name.
func (idx *Index) Exists(name string) bool {
	if validName(name) != nil {
		return false
	}
	info, err := os.Stat(idx.path(name))
	return err == nil && !info.IsDir()
}

// Get loads the record for name.
func (idx *Index) Get(name string) (models.Record, error) {
	if err := validName(name); err != nil {
		return models.Record{}, err
	}

	b, err := os.ReadFile(idx.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.Record{}, &models.NotFoundError{Name: name}
		}
		return models.Record{}, fmt.Errorf("failed to read record for %s: %w", name, err)
	}

	var record models.Record
	if err := json.Unmarshal(b, &record); err != nil {
		return models.Record{}, &models.MalformedRecordError{Name: name, Err: err}
	}
	return record, nil
}

// Add writes the record for name, replacing any existing one. The write goes
// through a temp file so a crash never leaves a truncated record.
func (idx *Index) Add(name string, record models.Record) error {
	if err := validName(name); err != nil {
		return err
	}

	b, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record for %s: %w", name, err)
	}
	if err := os.MkdirAll(idx.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}
	if err := util.WriteFileAtomic(idx.path(name), append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write record for %s: %w", name, err)
	}

	log := logging.GetLogger("index")
	log.Debug().Str("app", name).Str("source", record.Source.Locator()).Msg("record saved")
	return nil
}

// Remove deletes the record for name.
func (idx *Index) Remove(name string) error {
	if err := validName(name); err != nil {
		return err
	}

	if err := os.Remove(idx.path(name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &models.NotFoundError{Name: name}
		}
		return fmt.Errorf("failed to remove record for %s: %w", name, err)
	}
	return nil
}

// List returns the names of every installed app in lexicographic order. A
// missing index directory means nothing is installed.
func (idx *Index) List() ([]string, error) {
	entries, err := os.ReadDir(idx.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read index: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !util.HasExtension(entry.Name(), recordExt) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}
