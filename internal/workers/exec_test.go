package workers

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

type captureEmitter struct {
	msgs chan any
	errs chan error
}

func newCaptureEmitter() *captureEmitter {
	return &captureEmitter{msgs: make(chan any, 16), errs: make(chan error, 16)}
}

func (c *captureEmitter) Message(data any) { c.msgs <- data }
func (c *captureEmitter) Error(err error)  { c.errs <- err }

func writeScript(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "job.sh")
	if err := os.WriteFile(p, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return p
}

func TestExecRunnerMessages(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts")
	}
	t.Parallel()
	script := writeScript(t, "#!/bin/sh\necho plain line\necho '{\"level\":5}'\n")

	emit := newCaptureEmitter()
	proc, err := NewExecRunner().Start(Spec{Job: "echoer", Path: script}, emit)
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	select {
	case <-proc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not exit")
	}
	if proc.Err() != nil {
		t.Fatalf("exit err: %v", proc.Err())
	}

	if got := <-emit.msgs; got != "plain line" {
		t.Fatalf("first message = %v", got)
	}
	// JSON lines arrive decoded.
	got, ok := (<-emit.msgs).(map[string]any)
	if !ok || got["level"] != float64(5) {
		t.Fatalf("second message = %v", got)
	}
}

func TestExecRunnerEnvironment(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts")
	}
	t.Parallel()
	script := writeScript(t, "#!/bin/sh\necho \"$WARDEN_JOB $WARDEN_WORKER_DATA\"\n")

	emit := newCaptureEmitter()
	proc, err := NewExecRunner().Start(Spec{Job: "envy", Path: script, Data: []byte(`{"k":1}`)}, emit)
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	<-proc.Done()
	if got := <-emit.msgs; got != `envy {"k":1}` {
		t.Fatalf("message = %v", got)
	}
}

func TestExecRunnerExitError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts")
	}
	t.Parallel()
	script := writeScript(t, "#!/bin/sh\necho doomed >&2\nexit 3\n")

	proc, err := NewExecRunner().Start(Spec{Job: "failing", Path: script}, newCaptureEmitter())
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	select {
	case <-proc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not exit")
	}
	err = proc.Err()
	if err == nil {
		t.Fatal("expected exit error")
	}
	// The stderr tail rides along for diagnosis.
	if got := err.Error(); !strings.Contains(got, "doomed") || !strings.Contains(got, "failing") {
		t.Fatalf("err = %q", got)
	}
}

func TestExecRunnerNoPath(t *testing.T) {
	t.Parallel()
	if _, err := NewExecRunner().Start(Spec{Job: "pathless"}, newCaptureEmitter()); err == nil {
		t.Fatal("expected error for missing path")
	}
}
