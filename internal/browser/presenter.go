// internal/browser/presenter.go
package browser

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/sheasmith19/ezapp/api/schemas"
)

// FilePresenter is the injector's manual-handling fallback for the CLI: a
// page with nothing to attach to still leaves the user the document on
// disk instead of silently dropping it.
type FilePresenter struct {
	fs  afero.Fs
	dir string
	log *zap.Logger
}

// NewFilePresenter writes presented documents under dir, creating it when
// missing. An empty dir uses the system temp directory.
func NewFilePresenter(fs afero.Fs, dir string, logger *zap.Logger) (*FilePresenter, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "ezapp-presented")
	}
	if err := fs.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create presentation dir: %w", err)
	}
	return &FilePresenter{fs: fs, dir: dir, log: logger.Named("presenter")}, nil
}

// Present writes the decoded document next to its envelope name and logs
// where it went.
func (p *FilePresenter) Present(env schemas.TransferEnvelope, data []byte) error {
	name := filepath.Base(env.Filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "resume.pdf"
	}
	path := filepath.Join(p.dir, name)
	if err := afero.WriteFile(p.fs, path, data, 0o600); err != nil {
		return fmt.Errorf("failed to present document: %w", err)
	}
	p.log.Info("Document saved for manual handling",
		zap.String("path", path),
		zap.String("content_type", env.ContentType))
	return nil
}
