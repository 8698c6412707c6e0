// Package assetlock serializes directory mutations on a single source asset
// across goroutines and worker processes using advisory file locks.
package assetlock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"videoflix/internal/hls"
	"videoflix/internal/services"
)

const retryDelay = 250 * time.Millisecond

// Locker hands out per-asset locks stored under dir. A disabled Locker
// returns no-op releases.
type Locker struct {
	dir     string
	enabled bool
}

// New constructs a Locker writing lock files into dir.
func New(dir string, enabled bool) *Locker {
	return &Locker{dir: dir, enabled: enabled}
}

// Enabled reports whether locks are taken.
func (l *Locker) Enabled() bool {
	return l != nil && l.enabled
}

// Path returns the lock file used for an asset.
func (l *Locker) Path(asset hls.Asset) string {
	sum := sha256.Sum256([]byte(asset.SourcePath()))
	return filepath.Join(l.dir, asset.Stem+"-"+hex.EncodeToString(sum[:6])+".lock")
}

// Acquire blocks until the asset's lock is held or ctx ends.
func (l *Locker) Acquire(ctx context.Context, asset hls.Asset) (func(), error) {
	if !l.Enabled() {
		return func() {}, nil
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrIO, "assetlock", "prepare", l.dir, err)
	}
	lock := flock.New(l.Path(asset))
	ok, err := lock.TryLockContext(ctx, retryDelay)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "assetlock", "acquire", asset.Stem, err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrTransient, "assetlock", "acquire", fmt.Sprintf("%s still locked", asset.Stem), nil)
	}
	return func() { _ = lock.Unlock() }, nil
}
