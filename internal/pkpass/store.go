package pkpass

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// FileStore keeps generated archives on the local filesystem, one blob per
// serial number. Blobs are derived artifacts: a rebuild overwrites the
// previous blob in place and last writer wins.
type FileStore struct {
	// PathTemplate is an fmt template with one %s verb for the serial
	// number, for example /var/lib/walletd/passes/%s.pkpass.
	PathTemplate string
}

func NewFileStore(pathTemplate string) *FileStore {
	return &FileStore{PathTemplate: pathTemplate}
}

func (s *FileStore) Path(serialNumber string) string {
	return fmt.Sprintf(s.PathTemplate, serialNumber)
}

// Save writes the archive blob and returns the path it landed at. The write
// is atomic so a concurrent reader never sees a half written archive.
func (s *FileStore) Save(serialNumber string, data []byte) (string, error) {
	path := s.Path(serialNumber)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return "", err
	}
	return path, nil
}

func (s *FileStore) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}
