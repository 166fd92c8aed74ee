// Package dotdir manages the .imagesearch/ and ~/.imagesearch directories.
//
// The dot directory holds the on-disk state the tool keeps between runs:
// the config.toml, the persisted embedding index artifacts, and the
// last-search state used to resume a session from the CLI.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the image search directory.
	dirName = ".imagesearch"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .imagesearch/ directory.
// Order of precedence is as follows:
//  1. Provided override
//  2. Local ./.imagesearch/ dir
//  3. Home ~/.imagesearch/ dir
//  4. If none found, attempt to create ~/.imagesearch/ dir
func (m *Manager) Target(overrideDir string) (string, error) {
	var dir string

	switch {
	case overrideDir != "":
		dir = overrideDir

	case m.localDirExists():
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		dir = filepath.Join(cwd, dirName)

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, dirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating image search directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// IndexDir returns the directory index artifacts are stored in, creating
// it when missing.
func (m *Manager) IndexDir(overrideDir string) (string, error) {
	target, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(target, "index")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating index directory %s: %w", dir, err)
	}
	return dir, nil
}

// localDirExists checks whether a .imagesearch/ directory exists in the
// current working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, dirName))
	return err == nil && info.IsDir()
}
