package workers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
)

// Environment variables a subprocess worker receives.
const (
	EnvJobName    = "WARDEN_JOB"
	EnvWorkerData = "WARDEN_WORKER_DATA"
)

// ExecRunner executes job files as subprocesses. Each stdout line is
// forwarded as a worker message (decoded as JSON when it parses, raw
// string otherwise); a non-zero exit is the worker's error outcome, with
// the stderr tail attached for context.
type ExecRunner struct {
	// Interpreters maps a file extension to the argv prefix used to run
	// it, e.g. ".py" -> ["python3"]. Extensions not listed run directly.
	Interpreters map[string][]string
}

// NewExecRunner returns a runner with interpreters for the default
// accepted extensions.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Interpreters: map[string][]string{
		".sh": {"/bin/sh"},
		".js": {"node"},
		".py": {"python3"},
	}}
}

func (r *ExecRunner) Start(spec Spec, emit Emitter) (Proc, error) {
	if strings.TrimSpace(spec.Path) == "" {
		return nil, fmt.Errorf("job %q has no path to execute", spec.Job)
	}

	argv := []string{spec.Path}
	if prefix, ok := r.Interpreters[strings.ToLower(filepath.Ext(spec.Path))]; ok && len(prefix) > 0 {
		argv = append(append([]string(nil), prefix...), spec.Path)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(),
		EnvJobName+"="+spec.Job,
		EnvWorkerData+"="+string(spec.Data),
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn %q: %w", spec.Path, err)
	}

	p := &execProc{cmd: cmd, done: make(chan struct{})}

	lines := make(chan struct{})
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(stdout)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			emit.Message(decodeLine(sc.Text()))
		}
	}()

	errTail := make(chan string, 1)
	go func() {
		// Keep only the last few stderr lines; enough for an exit error.
		const keep = 10
		var tail []string
		sc := bufio.NewScanner(stderr)
		for sc.Scan() {
			tail = append(tail, sc.Text())
			if len(tail) > keep {
				tail = tail[1:]
			}
		}
		errTail <- strings.Join(tail, "\n")
	}()

	go func() {
		defer close(p.done)
		<-lines
		tail := <-errTail
		err := cmd.Wait()
		if err != nil {
			if tail != "" {
				err = fmt.Errorf("%w\nstderr:\n%s", err, tail)
			}
			p.err = fmt.Errorf("job %q worker: %w", spec.Job, err)
		}
	}()
	return p, nil
}

// decodeLine prefers structured messages: a line that parses as JSON is
// forwarded decoded, anything else as the raw string.
func decodeLine(line string) any {
	t := strings.TrimSpace(line)
	if len(t) > 0 && (t[0] == '{' || t[0] == '[' || t[0] == '"') {
		var v any
		if err := json.Unmarshal([]byte(t), &v); err == nil {
			return v
		}
	}
	return line
}

type execProc struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

func (p *execProc) Terminate() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Signal(syscall.SIGTERM)
}

func (p *execProc) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

func (p *execProc) Done() <-chan struct{} { return p.done }
func (p *execProc) Err() error            { return p.err }
