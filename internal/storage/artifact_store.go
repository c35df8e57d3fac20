// Package storage owns the on-disk layout of one output directory: QR
// images, filled templates, and final artifacts, all named with a
// collision-free random suffix per pipeline run.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ArtifactStore persists pipeline files under a single configured base
// directory. Paths are generated here so every run gets process-unique
// names and nothing ever writes outside the base directory.
type ArtifactStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewArtifactStore creates the store and its base directory.
func NewArtifactStore(baseDir string, logger *zap.Logger) (*ArtifactStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", baseDir, err)
	}
	return &ArtifactStore{baseDir: baseDir, logger: logger}, nil
}

// BaseDir returns the configured output directory.
func (s *ArtifactStore) BaseDir() string {
	return s.baseDir
}

// QRCodePath returns a fresh path for one run's QR image.
func (s *ArtifactStore) QRCodePath() string {
	return filepath.Join(s.baseDir, fmt.Sprintf("qrcode_%s.png", uuid.New()))
}

// FilledTemplatePath returns a fresh path for one run's filled template.
func (s *ArtifactStore) FilledTemplatePath() string {
	return filepath.Join(s.baseDir, fmt.Sprintf("Filled_Template_%s.docx", uuid.New()))
}

// FinalArtifactPath returns a fresh path for one run's final document.
func (s *ArtifactStore) FinalArtifactPath() string {
	return filepath.Join(s.baseDir, fmt.Sprintf("LPJ_PUM_Output_%s.pdf", uuid.New()))
}

// Save writes content to fullPath, which must resolve inside the base
// directory.
func (s *ArtifactStore) Save(fullPath string, content []byte) error {
	if err := s.validatePath(fullPath); err != nil {
		return err
	}
	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write file",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("failed to write file %s: %w", fullPath, err)
	}
	s.logger.Debug("File saved",
		zap.String("path", fullPath),
		zap.Int("size", len(content)))
	return nil
}

// Remove deletes an intermediate file, best effort. Cleanup must never mask
// the pipeline's primary outcome, so failures are logged and swallowed.
func (s *ArtifactStore) Remove(fullPath string) {
	if fullPath == "" {
		return
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to remove intermediate file",
			zap.String("path", fullPath),
			zap.Error(err))
		return
	}
	s.logger.Debug("Intermediate file removed", zap.String("path", fullPath))
}

// validatePath rejects paths that escape the base directory.
func (s *ArtifactStore) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("path escapes output directory: %s", fullPath)
	}
	return nil
}
