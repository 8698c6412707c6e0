package hls_test

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"videoflix/internal/hls"
	"videoflix/internal/logging"
	"videoflix/internal/services"
	"videoflix/internal/testsupport"
)

func newAsset(t *testing.T) hls.Asset {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "videos")
	source := filepath.Join(dir, "clip.mp4")
	testsupport.WriteFile(t, source, 16)
	return hls.AssetFromSource(source)
}

func TestAssetFromSource(t *testing.T) {
	asset := hls.AssetFromSource("/media/videos/1f2e_my-trip.final.mov")
	if asset.Dir != "/media/videos" || asset.Stem != "1f2e_my-trip.final" || asset.Ext != ".mov" {
		t.Fatalf("unexpected asset: %+v", asset)
	}
	if asset.SourcePath() != "/media/videos/1f2e_my-trip.final.mov" {
		t.Fatalf("unexpected source path %q", asset.SourcePath())
	}
	mgr := hls.NewManager(logging.NewNop())
	if got := mgr.VariantDir(asset, 720); got != "/media/videos/1f2e_my-trip.final_720p" {
		t.Fatalf("unexpected variant dir %q", got)
	}
}

func TestEnsureIsIdempotentAndConcurrent(t *testing.T) {
	asset := newAsset(t)
	mgr := hls.NewManager(logging.NewNop())

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := mgr.Ensure(asset, 480); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Ensure: %v", err)
	}

	dir, err := mgr.Ensure(asset, 480)
	if err != nil {
		t.Fatalf("Ensure again: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("expected staging directory at %s", dir)
	}
	if _, err := os.Stat(mgr.VariantDir(asset, 480)); !os.IsNotExist(err) {
		t.Fatal("Ensure must not create the final variant directory")
	}
}

func TestPublishIsAllOrNothing(t *testing.T) {
	asset := newAsset(t)
	mgr := hls.NewManager(logging.NewNop())

	staging, err := mgr.Ensure(asset, 720)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := testsupport.WriteHLSOutput(staging, 3); err != nil {
		t.Fatalf("write output: %v", err)
	}
	if mgr.Complete(asset, 720) {
		t.Fatal("variant must not be visible before publish")
	}
	if _, err := mgr.Resolve(asset, 720, hls.Manifest); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before publish, got %v", err)
	}

	if err := mgr.Publish(asset, 720); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !mgr.Complete(asset, 720) {
		t.Fatal("expected published variant")
	}
	if _, err := os.Stat(staging); !os.IsNotExist(err) {
		t.Fatal("staging directory should be gone after publish")
	}
	names := testsupport.ListDir(t, mgr.VariantDir(asset, 720))
	if len(names) != 4 {
		t.Fatalf("expected manifest and 3 segments, got %v", names)
	}
}

func TestPublishWithoutManifestLeavesVariantAbsent(t *testing.T) {
	asset := newAsset(t)
	mgr := hls.NewManager(logging.NewNop())

	staging, _ := mgr.Ensure(asset, 1080)
	testsupport.WriteFile(t, filepath.Join(staging, "segment_000.ts"), 4)

	err := mgr.Publish(asset, 1080)
	if !errors.Is(err, services.ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
	if _, err := os.Stat(mgr.VariantDir(asset, 1080)); !os.IsNotExist(err) {
		t.Fatal("final directory must stay absent")
	}
	if err := mgr.Reset(asset, 1080); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := os.Stat(staging); !os.IsNotExist(err) {
		t.Fatal("Reset should discard staging output")
	}
	if err := mgr.Reset(asset, 1080); err != nil {
		t.Fatalf("Reset on missing staging: %v", err)
	}
}

func TestPublishReplacesExistingVariant(t *testing.T) {
	asset := newAsset(t)
	mgr := hls.NewManager(logging.NewNop())

	for _, segments := range []int{5, 2} {
		staging, _ := mgr.Ensure(asset, 480)
		if err := testsupport.WriteHLSOutput(staging, segments); err != nil {
			t.Fatal(err)
		}
		if err := mgr.Publish(asset, 480); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	names := testsupport.ListDir(t, mgr.VariantDir(asset, 480))
	if len(names) != 3 {
		t.Fatalf("expected only the newest output, got %v", names)
	}
	for _, name := range testsupport.ListDir(t, asset.Dir) {
		if name != "clip.mp4" && name != "clip_480p" {
			t.Fatalf("unexpected leftover %q", name)
		}
	}
}

func TestRemoveDeletesEverythingAndIsIdempotent(t *testing.T) {
	asset := newAsset(t)
	mgr := hls.NewManager(logging.NewNop())

	staging, _ := mgr.Ensure(asset, 720)
	_ = testsupport.WriteHLSOutput(staging, 4)
	if err := mgr.Publish(asset, 720); err != nil {
		t.Fatal(err)
	}
	leftover, _ := mgr.Ensure(asset, 720)
	testsupport.WriteFile(t, filepath.Join(leftover, "segment_000.ts"), 2)

	report := mgr.Remove(asset, 720)
	if err := report.Err(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(report.Removed) != 7 {
		t.Fatalf("expected manifest, 4 segments, dir and staging removed, got %v", report.Removed)
	}
	if names := testsupport.ListDir(t, asset.Dir); len(names) != 1 || names[0] != "clip.mp4" {
		t.Fatalf("expected only the source to remain, got %v", names)
	}

	again := mgr.Remove(asset, 720)
	if again.Err() != nil || len(again.Removed) != 0 {
		t.Fatalf("second Remove should be a no-op, got %+v", again)
	}
}

func TestRemoveKeepsDirectoryWithForeignFiles(t *testing.T) {
	asset := newAsset(t)
	mgr := hls.NewManager(logging.NewNop())
	dir := mgr.VariantDir(asset, 480)
	if err := testsupport.WriteHLSOutput(dir, 1); err != nil {
		t.Fatal(err)
	}
	testsupport.WriteFile(t, filepath.Join(dir, "notes.txt"), 1)

	report := mgr.Remove(asset, 480)
	if report.Err() != nil {
		t.Fatalf("unexpected error: %v", report.Err())
	}
	if names := testsupport.ListDir(t, dir); len(names) != 1 || names[0] != "notes.txt" {
		t.Fatalf("expected only the foreign file to remain, got %v", names)
	}
}

func TestRemoveCollectsErrorsWithoutStopping(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks are bypassed for root")
	}
	asset := newAsset(t)
	mgr := hls.NewManager(logging.NewNop())

	locked := mgr.VariantDir(asset, 480)
	if err := testsupport.WriteHLSOutput(locked, 2); err != nil {
		t.Fatal(err)
	}
	open := mgr.VariantDir(asset, 720)
	if err := testsupport.WriteHLSOutput(open, 2); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(locked, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	failed := mgr.Remove(asset, 480)
	if !errors.Is(failed.Err(), services.ErrIO) {
		t.Fatalf("expected joined ErrIO, got %v", failed.Err())
	}
	if len(failed.Errors) < 3 {
		t.Fatalf("expected manifest and each segment to be attempted, got %v", failed.Errors)
	}
	if ok := mgr.Remove(asset, 720); ok.Err() != nil {
		t.Fatalf("sibling variant removal failed: %v", ok.Err())
	}
}

func TestResolveRejectsUnexpectedNames(t *testing.T) {
	asset := newAsset(t)
	mgr := hls.NewManager(logging.NewNop())
	if err := testsupport.WriteHLSOutput(mgr.VariantDir(asset, 480), 2); err != nil {
		t.Fatal(err)
	}

	path, err := mgr.Resolve(asset, 480, "segment_001.ts")
	if err != nil {
		t.Fatalf("Resolve segment: %v", err)
	}
	if path != filepath.Join(mgr.VariantDir(asset, 480), "segment_001.ts") {
		t.Fatalf("unexpected path %q", path)
	}
	for _, name := range []string{"../clip.mp4", "segment_x.ts", "segment_009.ts", "notes.txt", ""} {
		if _, err := mgr.Resolve(asset, 480, name); !errors.Is(err, services.ErrNotFound) {
			t.Errorf("Resolve(%q) = %v, want ErrNotFound", name, err)
		}
	}
}

func TestVariantsListsPublishedHeights(t *testing.T) {
	asset := newAsset(t)
	mgr := hls.NewManager(logging.NewNop())
	for _, h := range []int{1080, 480} {
		if err := testsupport.WriteHLSOutput(mgr.VariantDir(asset, h), 1); err != nil {
			t.Fatal(err)
		}
	}
	_, _ = mgr.Ensure(asset, 720)
	testsupport.WriteFile(t, filepath.Join(asset.Dir, "clip_notes", "x"), 1)

	heights, err := mgr.Variants(asset)
	if err != nil {
		t.Fatalf("Variants: %v", err)
	}
	if len(heights) != 2 || heights[0] != 480 || heights[1] != 1080 {
		t.Fatalf("unexpected heights %v", heights)
	}
}
