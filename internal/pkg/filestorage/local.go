package filestorage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/geclass/geclass/internal/pkg/logger"
)

// StatusFile marks a report directory that holds no report.
const StatusFile = "STATUS"

// LocalStorage keeps one report directory per course under basePath.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance and ensures basePath exists.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, os.ModePerm); err != nil {
		logger.Error().Err(err).Str("path", basePath).Msg("Failed to create storage directory")
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}
	logger.Debug().Str("path", basePath).Msg("Local storage directory ensured")

	return &LocalStorage{basePath: basePath}, nil
}

// Path returns the final report directory of a course.
func (ls *LocalStorage) Path(identifier string) string {
	return filepath.Join(ls.basePath, filepath.Base(identifier))
}

// Exists reports whether the report directory of a course is already in place.
func (ls *LocalStorage) Exists(identifier string) (bool, error) {
	_, err := os.Stat(ls.Path(identifier))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat report directory: %w", err)
}

// Stage creates a hidden working directory next to the final ones.
func (ls *LocalStorage) Stage() (string, error) {
	dir := filepath.Join(ls.basePath, ".staging-"+uuid.New().String())
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	return dir, nil
}

// Commit moves a staging directory into place as the report of a course.
func (ls *LocalStorage) Commit(stageDir, identifier string) (string, error) {
	final := ls.Path(identifier)
	if err := os.Rename(stageDir, final); err != nil {
		return "", fmt.Errorf("failed to move report into place: %w", err)
	}
	logger.Info().Str("path", final).Msg("Report directory committed")
	return final, nil
}

// Discard removes a staging directory.
func (ls *LocalStorage) Discard(stageDir string) {
	if err := os.RemoveAll(stageDir); err != nil {
		logger.Warn().Err(err).Str("path", stageDir).Msg("Failed to remove staging directory")
	}
}

// MarkTerminal creates the report directory of a course holding only a status file.
func (ls *LocalStorage) MarkTerminal(identifier, status string) error {
	dir, err := ls.Stage()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, StatusFile), []byte(status+"\n"), 0o644); err != nil {
		ls.Discard(dir)
		return fmt.Errorf("failed to write status file: %w", err)
	}
	if _, err := ls.Commit(dir, identifier); err != nil {
		ls.Discard(dir)
		return err
	}
	return nil
}
