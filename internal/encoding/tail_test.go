package encoding

import (
	"strings"
	"testing"
)

func TestTailBufferKeepsLastBytes(t *testing.T) {
	buf := newTailBuffer(8)
	_, _ = buf.Write([]byte("abcdef"))
	_, _ = buf.Write([]byte("ghij"))
	if got := buf.String(); got != "cdefghij" {
		t.Fatalf("got %q", got)
	}
	_, _ = buf.Write([]byte(strings.Repeat("x", 20) + "12345678"))
	if got := buf.String(); got != "12345678" {
		t.Fatalf("got %q", got)
	}
}
