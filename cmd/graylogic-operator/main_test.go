package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-operator/internal/bulkread"
	"github.com/nerrad567/gray-logic-operator/internal/console/browser"
	"github.com/nerrad567/gray-logic-operator/internal/console/consoletest"
)

// fakeOpener hands out one shared fake session and records the configs.
type fakeOpener struct {
	mu   sync.Mutex
	sess bulkread.Session
	cfgs []browser.Config
}

func (f *fakeOpener) open(_ context.Context, cfg browser.Config) (bulkread.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfgs = append(f.cfgs, cfg)
	return f.sess, nil
}

func (f *fakeOpener) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cfgs)
}

// savingSession adds SaveState to the fake for the login command.
type savingSession struct {
	*consoletest.Session
	saved bool
}

func (s *savingSession) SaveState(context.Context) error {
	s.saved = true
	return nil
}

// writeConfig writes an operator config rooted in a temp directory.
func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	content := `
site:
  id: test-site
console:
  base_url: "https://console.example.test/"
  storage_state_path: "` + filepath.Join(dir, "state.json") + `"
  artifacts_dir: "` + filepath.Join(dir, "artifacts") + `"
  timeout_ms: 1000
retry:
  max_attempts: 2
  backoff_seconds: 0
action_log:
  path: "` + filepath.Join(dir, "actions.jsonl") + `"
  sqlite: true
database:
  path: "` + filepath.Join(dir, "operator.db") + `"
  wal_mode: true
  busy_timeout: 5
logging:
  level: error
  format: text
  output: stderr
`
	path := filepath.Join(dir, "operator.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path, dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

// runCLI executes args and returns the exit code and captured output.
func runCLI(t *testing.T, opener *fakeOpener, stdin string, args ...string) (int, string, string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var stdout, stderr bytes.Buffer
	code := execute(ctx, args, strings.NewReader(stdin), &stdout, &stderr, opener.open)
	return code, stdout.String(), stderr.String()
}

func TestExecute_Read(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	opener := &fakeOpener{sess: consoletest.New().AddPoint("360.005-RT40", "21,5")}

	code, stdout, stderr := runCLI(t, opener, "", "--config", cfgPath, "read", "--point", "360.005-RT40")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "360.005-RT40 = 21.5") {
		t.Errorf("stdout missing value line:\n%s", stdout)
	}
	if got := opener.cfgs[0].BaseURL; got != "https://console.example.test/" {
		t.Errorf("BaseURL = %q", got)
	}
}

func TestExecute_ForceFailureExitsOne(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	opener := &fakeOpener{sess: consoletest.New()}

	code, stdout, _ := runCLI(t, opener, "", "--config", cfgPath, "force", "--point", "360.005-JV40_Pos", "--value", "45")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stdout, "FAILED") || !strings.Contains(stdout, "(attempt 2)") {
		t.Errorf("stdout = %q", stdout)
	}
	if !strings.Contains(stdout, "diagnostic: memory://JV40_Pos/") {
		t.Errorf("stdout missing diagnostic reference: %q", stdout)
	}
}

func TestExecute_ConfigErrorsBeforeSession(t *testing.T) {
	cfgPath, dir := writeConfig(t)
	batchFile := writeFile(t, dir, "batch.yaml", "operations:\n  - point: 360.005-JV40_Pos\n    value: 45\n")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"non-numeric value", []string{"force", "--point", "360.005-JV40_Pos", "--value", "abc"}, "value"},
		{"missing value", []string{"force", "--point", "360.005-JV40_Pos"}, "value"},
		{"missing point", []string{"read"}, "point"},
		{"zero retries", []string{"batch", "--file", batchFile, "--retries", "0"}, "retries"},
		{"negative backoff", []string{"unforce", "--point", "360.005-JV40_Pos", "--backoff-seconds", "-1"}, "backoff"},
		{"missing batch file", []string{"batch", "--file", filepath.Join(dir, "nope.json")}, "nope.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opener := &fakeOpener{sess: consoletest.New()}
			code, _, stderr := runCLI(t, opener, "", append([]string{"--config", cfgPath}, tt.args...)...)
			if code != 1 {
				t.Fatalf("exit code = %d, want 1", code)
			}
			if !strings.Contains(stderr, tt.want) {
				t.Errorf("stderr = %q, want it to mention %q", stderr, tt.want)
			}
			if opener.calls() != 0 {
				t.Errorf("session opened %d times, want 0", opener.calls())
			}
		})
	}
}

func TestExecute_BatchPartialFailure(t *testing.T) {
	cfgPath, dir := writeConfig(t)
	batchFile := writeFile(t, dir, "batch.json", `{"operations": [
		{"point": "360.005-JV40_Pos", "action": "force", "value": 45},
		{"point": "360.005-JV99_Pos", "action": "force", "value": "12,5"}
	]}`)
	sess := consoletest.New().AddPoint("360.005-JV40_Pos", "10")
	opener := &fakeOpener{sess: sess}

	code, stdout, _ := runCLI(t, opener, "", "--config", cfgPath, "batch", "--file", batchFile)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stdout, "2 operations: 1 succeeded, 1 failed") {
		t.Errorf("stdout = %q", stdout)
	}
	if got := sess.Value("360.005-JV40_Pos"); got != "45" {
		t.Errorf("JV40_Pos = %q, want 45", got)
	}
}

func TestExecute_BatchDryRun(t *testing.T) {
	cfgPath, dir := writeConfig(t)
	batchFile := writeFile(t, dir, "batch.yaml", "- point: 360.005-JV40_Pos\n  value: 45\n")
	sess := consoletest.New().AddPoint("360.005-JV40_Pos", "10")

	code, stdout, stderr := runCLI(t, &fakeOpener{sess: sess}, "", "--config", cfgPath, "batch", "--file", batchFile, "--dry-run")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "dry-run") {
		t.Errorf("stdout = %q", stdout)
	}
	if got := sess.Value("360.005-JV40_Pos"); got != "10" {
		t.Errorf("dry run committed a value: %q", got)
	}
}

func TestExecute_History(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	opener := &fakeOpener{sess: consoletest.New().AddPoint("360.005-JV40_Pos", "10")}

	if code, _, stderr := runCLI(t, opener, "", "--config", cfgPath, "force", "--point", "360.005-JV40_Pos", "--value", "55"); code != 0 {
		t.Fatalf("force exit code = %d, stderr: %s", code, stderr)
	}

	code, stdout, stderr := runCLI(t, opener, "", "--config", cfgPath, "history", "--point", "360.005-JV40_Pos", "--action", "force")
	if code != 0 {
		t.Fatalf("history exit code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "force") || !strings.Contains(stdout, "55") {
		t.Errorf("history output = %q", stdout)
	}
	if !strings.Contains(stdout, "1 of 1 records") {
		t.Errorf("history footer missing: %q", stdout)
	}
}

func TestExecute_AutoOnce(t *testing.T) {
	cfgPath, dir := writeConfig(t)
	ctrlFile := writeFile(t, dir, "controller.yaml", `
rules:
  - name: humid
    metric: relative_humidity
    comparison: ">="
    threshold: 60
    point: 360.005-JV40_Pos
    action: force
    value: 80
sensors:
  source: points
  points:
    relative_humidity: 360.005-RH40
retry:
  max_attempts: 1
`)
	sess := consoletest.New().
		AddPoint("360.005-RH40", "65").
		AddPoint("360.005-JV40_Pos", "10")

	code, _, stderr := runCLI(t, &fakeOpener{sess: sess}, "", "--config", cfgPath, "auto", "--file", ctrlFile, "--once")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr)
	}
	if got := sess.Value("360.005-JV40_Pos"); got != "80" {
		t.Errorf("JV40_Pos = %q, want 80", got)
	}
}

func TestExecute_AutoOnceSensingFailure(t *testing.T) {
	cfgPath, dir := writeConfig(t)
	ctrlFile := writeFile(t, dir, "controller.yaml", `
rules:
  - metric: relative_humidity
    comparison: ">="
    threshold: 60
    point: 360.005-JV40_Pos
    value: 80
sensors:
  points:
    relative_humidity: 360.005-RH40
retry:
  max_attempts: 1
`)

	code, _, stderr := runCLI(t, &fakeOpener{sess: consoletest.New()}, "", "--config", cfgPath, "auto", "--file", ctrlFile, "--once")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "sensing") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestExecute_SchedulerOneCycle(t *testing.T) {
	cfgPath, dir := writeConfig(t)
	out := filepath.Join(dir, "snapshots.jsonl")
	sess := consoletest.New().AddPoint("360.005-RT40", "21").AddPoint("360.005-RH40", "40")

	code, _, stderr := runCLI(t, &fakeOpener{sess: sess}, "",
		"--config", cfgPath, "scheduler", "--cycles", "1", "--workers", "1", "--output-file", out)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading snapshots: %v", err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 1 {
		t.Errorf("snapshot lines = %d, want 1", lines)
	}
	if !sess.Closed() {
		t.Error("worker session not closed")
	}
}

func TestExecute_Login(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	sess := &savingSession{Session: consoletest.New()}
	opener := &fakeOpener{sess: sess}

	code, stdout, stderr := runCLI(t, opener, "\n", "--config", cfgPath, "login")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr)
	}
	if !sess.saved {
		t.Error("session state not saved")
	}
	if opener.cfgs[0].Headless {
		t.Error("login must open a visible browser")
	}
	if !strings.Contains(stdout, "Session state saved") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestExecute_LoginWithoutStateSupport(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	code, _, stderr := runCLI(t, &fakeOpener{sess: consoletest.New()}, "\n", "--config", cfgPath, "login")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "cannot save") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestExecute_InvalidConfig(t *testing.T) {
	code, _, stderr := runCLI(t, &fakeOpener{sess: consoletest.New()}, "",
		"--config", "/nonexistent/path/operator.yaml", "read", "--point", "360.005-RT40")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "loading config") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestExecute_DBStatusAndDown(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	opener := &fakeOpener{sess: consoletest.New()}

	code, stdout, stderr := runCLI(t, opener, "", "--config", cfgPath, "db", "status")
	if code != 0 {
		t.Fatalf("status exit code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "applied  20261014_090000") {
		t.Errorf("status output = %q", stdout)
	}
	if strings.Contains(stdout, "pending") {
		t.Errorf("unexpected pending migration: %q", stdout)
	}

	code, stdout, stderr = runCLI(t, opener, "", "--config", cfgPath, "db", "down")
	if code != 0 {
		t.Fatalf("down exit code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "rolled back") {
		t.Errorf("down output = %q", stdout)
	}
	if opener.calls() != 0 {
		t.Errorf("db commands opened %d console sessions", opener.calls())
	}
}

func TestHealthCheck_DisabledSinks(t *testing.T) {
	a := &app{}
	if err := a.healthCheck(context.Background()); err != nil {
		t.Errorf("healthCheck() with no sinks = %v, want nil", err)
	}
}
