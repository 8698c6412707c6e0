package hls

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"videoflix/internal/logging"
	"videoflix/internal/services"
)

const (
	stagingSuffix = ".partial"
	retiredSuffix = ".old"
	segmentGlob   = "segment_*.ts"
	resolveGlob   = "segment_[0-9][0-9][0-9]*.ts"
)

// Manager owns the variant directory tree next to each source file. Encodes
// write into a hidden staging directory that Publish renames into place, so a
// final variant directory is either fully populated or absent.
type Manager struct {
	logger *slog.Logger
}

// NewManager constructs a Manager.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{logger: logging.NewComponentLogger(logger, "hls")}
}

// VariantDir returns <dir>/<stem>_<h>p.
func (m *Manager) VariantDir(asset Asset, height int) string {
	return filepath.Join(asset.Dir, VariantName(asset.Stem, height))
}

// StagingDir returns the hidden working directory an encode writes into.
func (m *Manager) StagingDir(asset Asset, height int) string {
	return filepath.Join(asset.Dir, "."+VariantName(asset.Stem, height)+stagingSuffix)
}

func (m *Manager) retiredDir(asset Asset, height int) string {
	return filepath.Join(asset.Dir, "."+VariantName(asset.Stem, height)+retiredSuffix)
}

// Ensure creates the staging directory for a variant and returns its path.
// It is idempotent and safe to call concurrently.
func (m *Manager) Ensure(asset Asset, height int) (string, error) {
	dir := m.StagingDir(asset, height)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrIO, "hls", "ensure", fmt.Sprintf("create %s", dir), err)
	}
	return dir, nil
}

// Reset discards whatever an interrupted attempt left in the staging
// directory.
func (m *Manager) Reset(asset Asset, height int) error {
	dir := m.StagingDir(asset, height)
	if err := os.RemoveAll(dir); err != nil {
		return services.Wrap(services.ErrIO, "hls", "reset", fmt.Sprintf("remove %s", dir), err)
	}
	return nil
}

// Publish promotes the staging directory to the final variant name. The
// staging directory must contain a manifest. An older final directory is
// replaced.
func (m *Manager) Publish(asset Asset, height int) error {
	staging := m.StagingDir(asset, height)
	final := m.VariantDir(asset, height)

	if _, err := os.Stat(filepath.Join(staging, Manifest)); err != nil {
		return services.Wrap(services.ErrIO, "hls", "publish", fmt.Sprintf("staging %s has no manifest", staging), err)
	}

	retired := ""
	if _, err := os.Stat(final); err == nil {
		retired = m.retiredDir(asset, height)
		if err := os.RemoveAll(retired); err != nil {
			return services.Wrap(services.ErrIO, "hls", "publish", fmt.Sprintf("clear %s", retired), err)
		}
		if err := os.Rename(final, retired); err != nil {
			return services.Wrap(services.ErrIO, "hls", "publish", fmt.Sprintf("retire %s", final), err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrIO, "hls", "publish", fmt.Sprintf("stat %s", final), err)
	}

	if err := os.Rename(staging, final); err != nil {
		if retired != "" {
			_ = os.Rename(retired, final)
		}
		return services.Wrap(services.ErrIO, "hls", "publish", fmt.Sprintf("rename %s", staging), err)
	}
	if retired != "" {
		if err := os.RemoveAll(retired); err != nil {
			m.logger.Warn("retired variant not removed",
				logging.String("path", retired),
				logging.Error(err),
				logging.String(logging.FieldEventType, "variant_retire_failed"),
				logging.String(logging.FieldErrorHint, "delete the hidden .old directory manually"),
			)
		}
	}
	return nil
}

// Complete reports whether the final variant directory holds a manifest.
func (m *Manager) Complete(asset Asset, height int) bool {
	info, err := os.Stat(filepath.Join(m.VariantDir(asset, height), Manifest))
	return err == nil && info.Mode().IsRegular()
}

// Resolve returns the path of a published manifest or segment. Names outside
// the manifest/segment pattern are rejected as not found.
func (m *Manager) Resolve(asset Asset, height int, name string) (string, error) {
	if !servable(name) {
		return "", services.Wrap(services.ErrNotFound, "hls", "resolve", fmt.Sprintf("%q is not a manifest or segment", name), nil)
	}
	path := filepath.Join(m.VariantDir(asset, height), name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", services.Wrap(services.ErrNotFound, "hls", "resolve", fmt.Sprintf("%s %dp/%s", asset.Stem, height, name), err)
	}
	return path, nil
}

func servable(name string) bool {
	if name == Manifest {
		return true
	}
	if name == "" || strings.ContainsAny(name, `/\`) {
		return false
	}
	ok, err := doublestar.Match(resolveGlob, name)
	return err == nil && ok
}

// Variants lists the heights that currently have a final directory for the
// asset, in ascending order.
func (m *Manager) Variants(asset Asset) ([]int, error) {
	entries, err := os.ReadDir(asset.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrIO, "hls", "variants", asset.Dir, err)
	}
	prefix := asset.Stem + "_"
	var heights []int
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		if ok, _ := doublestar.Match("[0-9]*p", rest); !ok {
			continue
		}
		h, err := strconv.Atoi(strings.TrimSuffix(rest, "p"))
		if err != nil {
			continue
		}
		heights = append(heights, h)
	}
	sort.Ints(heights)
	return heights, nil
}
