package hls

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"videoflix/internal/logging"
	"videoflix/internal/services"
)

// RemoveReport lists what Remove deleted and what it could not.
type RemoveReport struct {
	Height  int
	Removed []string
	Errors  []error
}

// Err joins the collected failures; nil when every deletion succeeded.
func (r RemoveReport) Err() error {
	return errors.Join(r.Errors...)
}

func (r *RemoveReport) fail(op, path string, err error) {
	r.Errors = append(r.Errors, services.Wrap(services.ErrIO, "hls", op, path, err))
}

// Remove deletes a variant: the manifest, every segment, the directory when
// it is left empty, and any staging or retired leftovers. Missing files are
// skipped. A failing deletion never stops the others.
func (m *Manager) Remove(asset Asset, height int) RemoveReport {
	report := RemoveReport{Height: height}
	dir := m.VariantDir(asset, height)

	if _, err := os.Stat(dir); err == nil {
		m.removeFile(&report, filepath.Join(dir, Manifest))
		m.removeSegments(&report, dir)
		m.removeDirIfEmpty(&report, dir)
	} else if !errors.Is(err, fs.ErrNotExist) {
		report.fail("remove", dir, err)
	}

	for _, leftover := range []string{m.StagingDir(asset, height), m.retiredDir(asset, height)} {
		if _, err := os.Lstat(leftover); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := os.RemoveAll(leftover); err != nil {
			report.fail("remove", leftover, err)
			continue
		}
		report.Removed = append(report.Removed, leftover)
	}

	for _, err := range report.Errors {
		m.logger.Warn("variant file not removed",
			logging.String(logging.FieldAsset, asset.Stem),
			logging.Int(logging.FieldHeight, height),
			logging.Error(err),
			logging.String(logging.FieldEventType, "variant_remove_failed"),
			logging.String(logging.FieldErrorHint, "check permissions on the media directory"),
		)
	}
	return report
}

func (m *Manager) removeFile(report *RemoveReport, path string) {
	err := os.Remove(path)
	switch {
	case err == nil:
		report.Removed = append(report.Removed, path)
	case errors.Is(err, fs.ErrNotExist):
	default:
		report.fail("remove", path, err)
	}
}

func (m *Manager) removeSegments(report *RemoveReport, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			report.fail("list", dir, err)
		}
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ok, err := doublestar.Match(segmentGlob, entry.Name())
		if err != nil {
			report.fail("match", entry.Name(), err)
			return
		}
		if ok {
			m.removeFile(report, filepath.Join(dir, entry.Name()))
		}
	}
}

func (m *Manager) removeDirIfEmpty(report *RemoveReport, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			report.fail("list", dir, err)
		}
		return
	}
	if len(entries) > 0 {
		m.logger.Info("variant directory kept; unrecognised files remain",
			logging.String("path", dir),
			logging.Int("entries", len(entries)),
		)
		return
	}
	if err := os.Remove(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		report.fail("rmdir", dir, fmt.Errorf("remove directory: %w", err))
		return
	}
	report.Removed = append(report.Removed, dir)
}
