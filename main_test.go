package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Zachkp/folio/internal/buildinfo"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "none.env")))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != buildinfo.String() {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestStatsCommand(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"totalSolved":3,"easySolved":1,"mediumSolved":1,"hardSolved":1,"ranking":9}`))
	}))
	defer up.Close()
	t.Setenv("STATS_BASE_URL", up.URL)
	t.Setenv("STATS_IDENTITY", "someone")

	out, err := runCLI(t, "stats")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `"totalSolved": 3`) || !strings.Contains(out, `"ranking": 9`) {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestSendCommandRequiresFields(t *testing.T) {
	if _, err := runCLI(t, "send", "--name", "Jane"); err == nil {
		t.Fatalf("expected missing field error")
	}
}

func TestSendCommandWithoutCredentialsFails(t *testing.T) {
	t.Setenv("MAIL_PROVIDER", "emailjs")
	t.Setenv("EMAILJS_PUBLIC_KEY", "")
	t.Setenv("CONTACT_OFFLINE_DEMO", "false")
	t.Setenv("CONNECTIVITY_PROBE", "off")

	out, err := runCLI(t, "send", "--name", "Jane", "--email", "jane@x.com", "--message", "Hi")
	if err == nil {
		t.Fatalf("expected failure without provider credentials, got output %q", out)
	}
	if err.Error() != "Failed to send message. Please try contacting directly via email." {
		t.Fatalf("expected the invalid config message, got %q", err)
	}
}

func TestSendCommandOfflineDemoSimulates(t *testing.T) {
	t.Setenv("CONTACT_OFFLINE_DEMO", "true")
	t.Setenv("CONNECTIVITY_PROBE_ADDR", "127.0.0.1:1")

	out, err := runCLI(t, "send", "--name", "Jane", "--email", "jane@x.com", "--message", "Hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "simulated") {
		t.Fatalf("expected a simulated delivery, got %q", out)
	}
}
