package banner

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestStartup_WhenWriterSet_ShouldPrintBannerAndVersion(t *testing.T) {
	var buf bytes.Buffer
	Startup("1.0.15", &StartupOpts{Writer: &buf})
	out := buf.String()
	if !strings.Contains(out, "web chat service") {
		t.Errorf("output should contain 'web chat service', got %q", out)
	}
	if !strings.Contains(out, "v1.0.15") {
		t.Errorf("output should contain 'v1.0.15', got %q", out)
	}
	if !strings.Contains(out, "| |_) |") {
		t.Errorf("output should contain banner art, got %q", out)
	}
}

func TestStartup_WhenOptsNil_ShouldPrintToStdout(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	old := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = old }()

	done := make(chan struct{})
	go func() {
		Startup("1.0.0", nil)
		w.Close()
		close(done)
	}()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	<-done

	out := buf.String()
	if !strings.Contains(out, "web chat service") || !strings.Contains(out, "v1.0.0") {
		t.Errorf("Startup(nil) output should contain banner and version: %q", out)
	}
}
