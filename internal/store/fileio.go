// Package store holds the file plumbing shared by the area and time range
// stores. Both own a single JSON document that is rewritten whole on every
// mutation.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/apperr"
)

// ReadFile returns the file contents, or nil when the file does not exist or
// holds only whitespace.
func ReadFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path) // #nosec G304 -- path comes from config
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.StoreIO(err, "read", path)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, nil
	}
	return b, nil
}

// WriteJSON encodes v and replaces path atomically: the document goes to a
// temp file in the same directory which is synced and renamed over path.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return apperr.StoreIO(err, "encode", path)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return apperr.StoreIO(err, "mkdir", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return apperr.StoreIO(err, "create temp", path)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return apperr.StoreIO(err, "write", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return apperr.StoreIO(err, "sync", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return apperr.StoreIO(err, "close", tmpName)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return apperr.StoreIO(err, "chmod", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return apperr.StoreIO(err, "rename", path)
	}
	return nil
}
