package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ResolveLocalID returns the configured local id, falling back to the id
// persisted in LocalIDFile. With neither, a fresh id is returned and not kept.
func (c *Config) ResolveLocalID() (uuid.UUID, error) {
	if s := strings.TrimSpace(c.LocalID); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid local_id: %w", err)
		}
		return id, nil
	}
	if c.LocalIDFile == "" {
		return uuid.New(), nil
	}
	return LoadOrCreateLocalID(c.LocalIDFile)
}

// LoadOrCreateLocalID reads the id stored at path, creating it on first use so
// the local participant keeps its id across restarts.
func LoadOrCreateLocalID(path string) (uuid.UUID, error) {
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		id, perr := uuid.Parse(strings.TrimSpace(string(b)))
		if perr != nil {
			return uuid.Nil, fmt.Errorf("local id file %s: %w", path, perr)
		}
		return id, nil
	case !errors.Is(err, fs.ErrNotExist):
		return uuid.Nil, fmt.Errorf("read local id: %w", err)
	}

	id := uuid.New()
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return uuid.Nil, fmt.Errorf("create local id dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(id.String()+"\n"), 0o600); err != nil {
		return uuid.Nil, fmt.Errorf("write local id: %w", err)
	}
	return id, nil
}
