package deps

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// FFmpegVersion runs "<binary> -version" and returns the first line, e.g.
// "ffmpeg version 6.1.1". Failures are reported in the Status detail.
func FFmpegVersion(ctx context.Context, binary string) Status {
	status := Status{Name: "FFmpeg", Command: binary, Description: "Encodes HLS variants"}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", binary)
		return status
	}
	status.Command = resolved

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, resolved, "-version").Output()
	if err != nil {
		status.Detail = fmt.Sprintf("%s -version: %v", binary, err)
		return status
	}
	status.Available = true
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	if scanner.Scan() {
		status.Detail = strings.TrimSpace(scanner.Text())
	}
	return status
}
