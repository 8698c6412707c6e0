package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"videoflix/internal/config"
	"videoflix/internal/testsupport"
)

// fakeFFmpegScript answers -version and otherwise writes a one-segment HLS
// output next to the manifest given as the last argument.
const fakeFFmpegScript = `#!/bin/sh
if [ "$1" = "-version" ]; then
  echo "ffmpeg version 0.0-test"
  exit 0
fi
for last; do :; done
printf '#EXTM3U\n' > "$last"
: > "$(dirname "$last")/segment_000.ts"
`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()
	t.Setenv("VIDEOFLIX_MEDIA_ROOT", "")

	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithResolutions(480)}, opts...)...)
	base := testsupport.BaseDir(cfg)

	ffmpeg := filepath.Join(base, "fake-ffmpeg")
	if err := os.WriteFile(ffmpeg, []byte(fakeFFmpegScript), 0o755); err != nil {
		t.Fatalf("write fake ffmpeg: %v", err)
	}
	cfg.Encoder.FFmpegBinary = ffmpeg

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, context.Background(), append([]string{"--config", e.configPath}, args...))
}

func (e *cliTestEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	stdout, stderr, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("videoflix %s: %v\nstdout: %s\nstderr: %s", strings.Join(args, " "), err, stdout, stderr)
	}
	return stdout
}

func (e *cliTestEnv) mustRunJSON(t *testing.T, v any, args ...string) {
	t.Helper()
	out := e.mustRun(t, append([]string{"--json"}, args...)...)
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("decode %q output: %v\n%s", strings.Join(args, " "), err, out)
	}
}

func runCLI(t *testing.T, ctx context.Context, args []string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, got string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(got, want) {
			t.Fatalf("expected output to contain %q\n%s", want, got)
		}
	}
}
