package preflight

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"videoflix/internal/testsupport"
)

func TestCheckDirectoryAccessOK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccessNotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccessNotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpaceIsAdvisory(t *testing.T) {
	dir := t.TempDir()
	ok := CheckFreeSpace("space", dir, 1)
	if !ok.Passed || !ok.Advisory {
		t.Fatalf("expected advisory pass, got %+v", ok)
	}
	low := CheckFreeSpace("space", dir, ^uint64(0))
	if low.Passed || !low.Advisory || !strings.Contains(low.Detail, "below") {
		t.Fatalf("expected advisory warning, got %+v", low)
	}
	if len(Failed([]Result{low})) != 0 {
		t.Fatal("advisory results must not block")
	}
}

func TestCheckFFmpegMissing(t *testing.T) {
	result := CheckFFmpeg(context.Background(), filepath.Join(t.TempDir(), "ffmpeg"))
	if result.Passed {
		t.Fatal("expected missing binary to fail")
	}
}

func TestRunAllWithStubbedFFmpeg(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("ffmpeg"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), cfg)
	if len(results) != 4 {
		t.Fatalf("expected four checks, got %d", len(results))
	}
	if err := Err(results); err != nil {
		t.Fatalf("expected no blocking failures, got %v", err)
	}
}

func TestErrListsBlockingFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Encoder.FFmpegBinary = filepath.Join(t.TempDir(), "missing-ffmpeg")

	err := Err(RunAll(context.Background(), cfg))
	if err == nil {
		t.Fatal("expected failure")
	}
	for _, want := range []string{"Media root", "FFmpeg"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}
