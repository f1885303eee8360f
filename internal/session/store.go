// internal/session/store.go
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"

	"github.com/sheasmith19/ezapp/api/schemas"
)

// Store persists the singleton Session record. Writers replace the whole
// record so concurrent readers never observe a half-written session, and
// readers re-read rather than cache so a refresh done by one popup open is
// visible to the next.
type Store interface {
	Load(ctx context.Context) (schemas.Session, error)
	Save(ctx context.Context, s schemas.Session) error
	Clear(ctx context.Context) error
}

const sessionFileName = "session.json"

// FileStore keeps the session as a JSON file on an afero filesystem.
// Production uses the OS fs under the user config dir; tests hand it a
// memory fs.
type FileStore struct {
	fs   afero.Fs
	path string
}

// NewFileStore builds a store rooted at dir. When dir is empty the per-user
// default (~/.config/ezapp) resolved through the home directory is used.
func NewFileStore(fs afero.Fs, dir string) (*FileStore, error) {
	if dir == "" {
		home, err := homedir.Dir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".config", "ezapp")
	}
	if err := fs.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &FileStore{fs: fs, path: filepath.Join(dir, sessionFileName)}, nil
}

// Load reads the current record. A missing file is an empty session, not an
// error.
func (f *FileStore) Load(ctx context.Context) (schemas.Session, error) {
	if err := ctx.Err(); err != nil {
		return schemas.Session{}, err
	}
	raw, err := afero.ReadFile(f.fs, f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return schemas.Session{}, nil
		}
		return schemas.Session{}, fmt.Errorf("failed to read session file: %w", err)
	}
	var s schemas.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		// A corrupt record is treated as no session; the user logs in again.
		return schemas.Session{}, nil
	}
	return s, nil
}

// Save replaces the record. Write-to-temp-then-rename keeps the replacement
// whole even if the process dies mid-write.
func (f *FileStore) Save(ctx context.Context, s schemas.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := afero.WriteFile(f.fs, tmp, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := f.fs.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// Clear discards the record unconditionally.
func (f *FileStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := f.fs.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
