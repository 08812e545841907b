// Package snapshot reads and writes the persisted dataset: one JSON document
// replaced atomically at the end of a successful run.
package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/christosporios/strategic-investments-gr/internal/model"
)

// Load reads the snapshot at path. A missing file yields an empty snapshot,
// not an error: the first run starts from nothing.
func Load(path string) (*model.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &model.Snapshot{}, nil
		}
		return nil, eris.Wrap(err, "snapshot: read")
	}

	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, eris.Wrap(err, "snapshot: parse")
	}
	return &snap, nil
}

// Save writes the snapshot as a single atomic replace: serialize to a temp
// file in the same directory, fsync, rename over the target. A crash mid-run
// leaves the previous snapshot intact; a partial file is never observable.
func Save(path string, snap *model.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return eris.Wrap(err, "snapshot: marshal")
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrap(err, "snapshot: ensure dir")
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrap(err, "snapshot: create temp")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return eris.Wrap(err, "snapshot: write temp")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return eris.Wrap(err, "snapshot: sync temp")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "snapshot: close temp")
	}

	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrap(err, "snapshot: rename")
	}
	return nil
}
