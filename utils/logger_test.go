package utils

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestLogLevels(t *testing.T) {
	var out bytes.Buffer
	SetLogOutput(&out)
	defer SetLogOutput(os.Stdout)

	oldLevel := GlobalLogLevel
	defer func() {
		GlobalLogLevel = oldLevel
	}()

	GlobalLogLevel = LogLevelError | LogLevelInfo

	Logf("CurveTree", "added %d outputs", 3)
	Debugf("CurveTree", "hidden")
	Errorf("KeyImages", "failed: %s", "oops")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), out.String())
	}
	if !strings.HasSuffix(lines[0], "[CurveTree] INFO added 3 outputs") {
		t.Errorf("unexpected line %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "[KeyImages] ERROR failed: oops") {
		t.Errorf("unexpected line %q", lines[1])
	}
}
