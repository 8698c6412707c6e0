package encoding

import (
	"fmt"
	"strings"

	"videoflix/internal/services"
)

// EncodeFailedError reports an ffmpeg run that did not produce a variant.
// It matches services.ErrEncodeFailed.
type EncodeFailedError struct {
	Height   int
	ExitCode int
	Stderr   string
	Err      error
}

func (e *EncodeFailedError) Error() string {
	msg := fmt.Sprintf("encode %dp failed (exit %d)", e.Height, e.ExitCode)
	if line := lastLine(e.Stderr); line != "" {
		msg += ": " + line
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EncodeFailedError) Is(target error) bool {
	return target == services.ErrEncodeFailed
}

func (e *EncodeFailedError) Unwrap() error {
	return e.Err
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[idx+1:])
	}
	return s
}
