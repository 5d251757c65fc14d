package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/thotranphuc276/person-detection/internal/logger"
)

const (
	// stampLayout prefixes upload names and suffixes result names.
	stampLayout = "20060102_150405"
	// maxNameAttempts bounds the search for a free file name within one second.
	maxNameAttempts = 1000
)

// FileStore keeps uploaded images and annotated results on local disk.
type FileStore struct {
	uploadDir  string
	resultsDir string
	logger     *logger.Logger
	now        func() time.Time
	mu         sync.Mutex
}

// NewFileStore creates a FileStore rooted at the given directories.
func NewFileStore(uploadDir, resultsDir string, logger *logger.Logger) *FileStore {
	return &FileStore{
		uploadDir:  uploadDir,
		resultsDir: resultsDir,
		logger:     logger,
		now:        time.Now,
	}
}

// EnsureDirs creates the upload and results directories.
func (s *FileStore) EnsureDirs() error {
	for _, dir := range []string{s.uploadDir, s.resultsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating directory %s: %w", dir, err)
		}
	}
	return nil
}

func (s *FileStore) UploadDir() string  { return s.uploadDir }
func (s *FileStore) ResultsDir() string { return s.resultsDir }

// SaveUpload copies r into uploads/<YYYYMMDD_HHMMSS>_<basename> and returns
// the written path. A numeric suffix is added when the name is taken.
func (s *FileStore) SaveUpload(r io.Reader, filename string) (string, error) {
	base := sanitizeName(filename)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	prefix := s.now().Format(stampLayout) + "_" + stem

	f, path, err := s.reserve(s.uploadDir, prefix, ext)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("error saving upload %s: %w", path, err)
	}

	s.logger.Debug("Saved upload %s", path)
	return path, nil
}

// ReserveResult claims results/detection_<YYYYMMDD_HHMMSS>.jpg (with a suffix
// when taken) and returns its path. The file exists but is empty until the
// annotated image is written over it.
func (s *FileStore) ReserveResult() (string, error) {
	f, path, err := s.reserve(s.resultsDir, "detection_"+s.now().Format(stampLayout), ".jpg")
	if err != nil {
		return "", err
	}
	f.Close()
	return path, nil
}

// Remove deletes a stored file, ignoring files that are already gone.
func (s *FileStore) Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warning("Failed to remove %s: %v", path, err)
	}
}

// reserve creates a new file named prefix+ext in dir, or prefix_N+ext when
// that name already exists.
func (s *FileStore) reserve(dir, prefix, ext string) (*os.File, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, "", fmt.Errorf("error creating directory %s: %w", dir, err)
	}

	for i := 0; i < maxNameAttempts; i++ {
		name := prefix + ext
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", prefix, i, ext)
		}
		path := filepath.Join(dir, name)

		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("error creating file %s: %w", path, err)
		}
		return f, path, nil
	}
	return nil, "", fmt.Errorf("no free file name for %s%s in %s", prefix, ext, dir)
}

// sanitizeName keeps only the final path element of a client-supplied name.
func sanitizeName(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || name == "/" {
		return "upload"
	}
	return name
}
