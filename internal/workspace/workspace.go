// Package workspace removes pipeline artifact directories.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// DefaultDirs are the artifact directories a reset removes
var DefaultDirs = []string{"data", "models", "reports"}

// Outcome is what happened to one directory
type Outcome struct {
	Path    string
	Removed bool
	Err     error
}

// Reset removes every directory with its contents. Paths that do not exist are
// skipped; read-only entries get write permission and are retried. All failures
// are returned together.
func Reset(dirs []string, log logrus.FieldLogger) ([]Outcome, error) {
	var (
		outcomes []Outcome
		result   *multierror.Error
	)
	for _, dir := range dirs {
		o := Outcome{Path: dir}
		if _, err := os.Lstat(dir); errors.Is(err, fs.ErrNotExist) {
			log.WithField("path", dir).Warn("Directory not found")
			outcomes = append(outcomes, o)
			continue
		}

		if err := os.RemoveAll(dir); err != nil {
			log.WithField("path", dir).Debug("Removal failed, clearing read-only bits")
			makeWritable(dir)
			err = os.RemoveAll(dir)
			if err != nil {
				o.Err = err
				result = multierror.Append(result, fmt.Errorf("remove %s: %w", dir, err))
				log.WithError(err).WithField("path", dir).Error("Failed to remove directory")
				outcomes = append(outcomes, o)
				continue
			}
		}
		o.Removed = true
		log.WithField("path", dir).Info("Removed directory")
		outcomes = append(outcomes, o)
	}
	return outcomes, result.ErrorOrNil()
}

// makeWritable adds owner write and execute permission to every directory under root
func makeWritable(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		mode := info.Mode().Perm() | 0o200
		if d.IsDir() {
			mode |= 0o100
		}
		_ = os.Chmod(path, mode)
		return nil
	})
}
