package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// OutputManager handles export file organization and path management
type OutputManager struct {
	BaseOutputDir string
}

// NewOutputManager creates a new output manager
func NewOutputManager(baseOutputDir string) *OutputManager {
	return &OutputManager{
		BaseOutputDir: baseOutputDir,
	}
}

// EnsureOutputDirExists ensures the base output directory exists
func (om *OutputManager) EnsureOutputDirExists() error {
	if err := os.MkdirAll(om.BaseOutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// GetOutputFilePath returns the export path of a stream. The stream name is
// reduced to its base name so it cannot escape the output directory.
func (om *OutputManager) GetOutputFilePath(stream, ext string) string {
	return filepath.Join(om.BaseOutputDir, filepath.Base(stream)+ext)
}

// GetFileSize returns the size of a file in bytes
func (om *OutputManager) GetFileSize(filePath string) (int64, error) {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return 0, err
	}
	return fileInfo.Size(), nil
}
