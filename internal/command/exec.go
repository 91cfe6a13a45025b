package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Compile-time check that ExecRunner implements Runner.
var _ Runner = (*ExecRunner)(nil)

// execLogger is the minimal logging interface required by ExecRunner.
// It accepts a message and structured key-value pairs.
type execLogger interface {
	Debug(msg string, keyvals ...interface{})
}

// ExecRunner runs commands as real subprocesses via os/exec. Each command
// runs in its own process group so that cancellation kills the whole tree
// (docker CLI children, test sub-processes) rather than only the direct
// child.
type ExecRunner struct {
	logger execLogger
}

// NewExecRunner creates an ExecRunner. The logger may be nil, in which case
// debug messages are silently discarded.
func NewExecRunner(logger execLogger) *ExecRunner {
	return &ExecRunner{logger: logger}
}

// Run executes the command described by spec and returns the captured
// output, exit code, and duration. The ctx parameter is used for
// cancellation; spec.Timeout, when set, additionally bounds the run.
func (e *ExecRunner) Run(ctx context.Context, spec Spec) (*Result, error) {
	if spec.Name == "" {
		return nil, errors.New("command: empty executable name")
	}

	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	start := time.Now()

	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...)
	if spec.WorkDir != "" {
		cmd.Dir = spec.WorkDir
	}
	cmd.Env = append(os.Environ(), spec.Env...)
	setProcGroup(cmd)

	if e.logger != nil {
		e.logger.Debug("running command",
			"command", spec.Name,
			"args", strings.Join(spec.Args, " "),
			"work_dir", spec.WorkDir,
		)
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}

	var (
		stdoutBuf bytes.Buffer
		stderrBuf bytes.Buffer
		wg        sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = stdoutBuf.ReadFrom(stdoutPipe)
	}()
	go func() {
		defer wg.Done()
		_, _ = stderrBuf.ReadFrom(stderrPipe)
	}()

	if err := cmd.Start(); err != nil {
		// Drain goroutines: Go closes the write ends of the pipes on Start
		// failure, so ReadFrom will return EOF and the goroutines will exit.
		wg.Wait()
		return nil, fmt.Errorf("starting %s: %w", spec.Name, err)
	}

	// Wait for all output to be drained before calling Wait.
	wg.Wait()

	waitErr := cmd.Wait()
	duration := time.Since(start)

	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			// Non-exit error (e.g. the process was killed by a signal
			// without an ExitError). Output collected so far is discarded.
			return nil, fmt.Errorf("waiting for %s: %w", spec.Name, waitErr)
		}
	}

	return &Result{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		ExitCode: exitCode,
		Duration: duration,
	}, nil
}

// String returns the command line that spec describes, for dry-run output
// and logging.
func (s Spec) String() string {
	if len(s.Args) == 0 {
		return s.Name
	}
	return s.Name + " " + strings.Join(s.Args, " ")
}
