package runner

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

// ErrBusy is returned when a run is requested while one is in flight.
var ErrBusy = errors.New("recovery already running")

// DefaultKillTimeout is the hard external kill deadline for the script,
// independent of whatever the script does internally.
const DefaultKillTimeout = 120 * time.Second

// defaultTailLimit bounds the captured output. The goal is a useful tail for
// the completion summary, not a full transcript.
const defaultTailLimit = 8 * 1024

// waitDelay bounds how long Wait keeps the output pipe open after the shell
// exits. Without it a background child inheriting the pipe would stall the
// completion summary indefinitely.
const waitDelay = 5 * time.Second

// scriptRelPath is where the recovery script lives inside a workspace root.
const scriptRelPath = "scripts/recovery.sh"

// Result is the outcome of one recovery run.
type Result struct {
	Mode       string
	ExitCode   int
	Elapsed    time.Duration
	OutputTail string
	Killed     bool
	StartedAt  time.Time
}

// Runner supervises the single allowed in-flight recovery script run. The
// in-flight flag is released on every path: normal exit, spawn error, or
// forced kill.
type Runner struct {
	workspaceRoot string // explicit override; searched first
	killTimeout   time.Duration
	tailLimit     int

	mu       sync.Mutex
	inFlight bool

	onComplete func(Result)
	wg         sync.WaitGroup
}

// New creates a runner. workspaceRoot may be empty; then only the default
// candidate roots are searched.
func New(workspaceRoot string) *Runner {
	return &Runner{
		workspaceRoot: workspaceRoot,
		killTimeout:   DefaultKillTimeout,
		tailLimit:     defaultTailLimit,
	}
}

// SetKillTimeout overrides the hard kill deadline (tests use short ones).
func (r *Runner) SetKillTimeout(d time.Duration) {
	r.killTimeout = d
}

// SetOnComplete sets the completion callback. It fires exactly once per
// started run, including killed runs.
func (r *Runner) SetOnComplete(fn func(Result)) {
	r.onComplete = fn
}

// InFlight reports whether a run is currently executing.
func (r *Runner) InFlight() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight
}

// Wait blocks until any in-flight run has completed. Used on shutdown and in
// tests.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Start launches the recovery script in the given mode. It returns ErrBusy
// if a run is already in flight, or an error if the workspace or script
// cannot be found or spawned. On success the run continues in the
// background and reports through the completion callback.
func (r *Runner) Start(mode string) error {
	r.mu.Lock()
	if r.inFlight {
		r.mu.Unlock()
		return ErrBusy
	}
	r.inFlight = true
	r.mu.Unlock()

	release := func() {
		r.mu.Lock()
		r.inFlight = false
		r.mu.Unlock()
	}

	workspace, err := r.findWorkspace()
	if err != nil {
		release()
		return err
	}

	script := filepath.Join(workspace, scriptRelPath)
	cmd := exec.Command("bash", script)
	cmd.Dir = workspace
	cmd.Env = append(os.Environ(), modeEnv(mode)...)
	// Own process group so the kill reaches everything the script spawned,
	// not just the shell.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.WaitDelay = waitDelay

	tail := newTailBuffer(r.tailLimit)
	cmd.Stdout = tail
	cmd.Stderr = tail

	startedAt := time.Now()
	if err := cmd.Start(); err != nil {
		release()
		return fmt.Errorf("failed to start recovery script: %w", err)
	}

	fmt.Printf("[Runner] Started %s (mode=%s, dir=%s)\n", scriptRelPath, mode, workspace)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer release()

		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()

		killed := false
		var waitErr error
		select {
		case waitErr = <-done:
		case <-time.After(r.killTimeout):
			killed = true
			killGroup(cmd)
			waitErr = <-done
		}

		result := Result{
			Mode:       mode,
			ExitCode:   exitCode(waitErr, killed),
			Elapsed:    time.Since(startedAt),
			OutputTail: tail.String(),
			Killed:     killed,
			StartedAt:  startedAt,
		}

		if killed {
			fmt.Printf("[Runner] Killed after %v (mode=%s)\n", r.killTimeout, mode)
		} else {
			fmt.Printf("[Runner] Exited with code %d after %v (mode=%s)\n", result.ExitCode, result.Elapsed.Round(time.Second), mode)
		}

		if r.onComplete != nil {
			r.onComplete(result)
		}
	}()

	return nil
}

// findWorkspace searches the candidate roots for the recovery script.
func (r *Runner) findWorkspace() (string, error) {
	var candidates []string
	if r.workspaceRoot != "" {
		candidates = append(candidates, r.workspaceRoot)
	}
	candidates = append(candidates, ".", "..")
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, "taskboard"))
	}

	for _, root := range candidates {
		if _, err := os.Stat(filepath.Join(root, scriptRelPath)); err == nil {
			abs, _ := filepath.Abs(root)
			return abs, nil
		}
	}
	return "", fmt.Errorf("workspace not found: no %s under candidate roots", scriptRelPath)
}

// modeEnv returns the mode-specific environment overrides merged onto the
// current process environment.
func modeEnv(mode string) []string {
	env := []string{"BRIDGE_MODE=" + mode}
	if mode == "cleanup" {
		env = append(env, "CLEANUP=true")
	}
	return env
}

// killGroup terminates the script and everything it spawned. Killing only
// the shell would leave children holding the output pipe, and Wait would
// block on them.
func killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if pgid, err := syscall.Getpgid(cmd.Process.Pid); err == nil {
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
		return
	}
	_ = cmd.Process.Kill()
}

func exitCode(waitErr error, killed bool) int {
	if killed {
		return -1
	}
	if waitErr == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	if errors.Is(waitErr, exec.ErrWaitDelay) {
		// The shell exited cleanly; a leftover child just kept the output
		// pipe open past the grace period.
		return 0
	}
	return -1
}

// tailBuffer keeps the last limit bytes written to it. Oldest content is
// evicted once the ceiling is exceeded.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if len(b.buf) > b.limit {
		b.buf = b.buf[len(b.buf)-b.limit:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
