package katago

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	apperrors "go_analysis/internal/errors"
)

// ReadyBanner is what KataGo prints on stderr once the model is loaded.
const ReadyBanner = "Started, ready to begin handling requests"

// defaultAnalysisConfig is written when the configured file does not exist.
const defaultAnalysisConfig = "logToStderr = true\nnumAnalysisThreads = 8\nnumSearchThreadsPerAnalysisThread = 1\n"

type State int32

const (
	StateNotStarted State = iota
	StateStarting
	StateReady
	StateRunning
	StateCrashed
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateCrashed:
		return "crashed"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Process supervises one KataGo subprocess.
type Process struct {
	cfg Config
	log *zap.SugaredLogger

	state  atomic.Int32
	cmd    *exec.Cmd
	exited chan struct{}
	exit   error

	stdin  io.WriteCloser
	stdout *os.File
	stderr *os.File
}

func NewProcess(cfg Config, log *zap.SugaredLogger) *Process {
	return &Process{cfg: cfg, log: log, exited: make(chan struct{})}
}

func (p *Process) State() State { return State(p.state.Load()) }

// command is `<path> analysis -config <cfg> -model <model>` unless Args overrides it.
func (p *Process) command() *exec.Cmd {
	args := p.cfg.Args
	if args == nil {
		args = []string{"analysis", "-config", p.cfg.ConfigPath, "-model", p.cfg.ModelPath}
	}
	cmd := exec.Command(p.cfg.Path, args...)
	if len(p.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), p.cfg.Env...)
	}
	return cmd
}

func (p *Process) ensureConfigFile() {
	if p.cfg.ConfigPath == "" {
		return
	}
	if _, err := os.Stat(p.cfg.ConfigPath); err == nil {
		return
	}
	p.log.Warnw("katago config not found, writing default", "path", p.cfg.ConfigPath)
	if err := os.WriteFile(p.cfg.ConfigPath, []byte(defaultAnalysisConfig), 0o644); err != nil {
		p.log.Warnw("could not write default katago config", "path", p.cfg.ConfigPath, "error", err)
	}
}

// Launch starts the subprocess with all three streams attached. Output streams are plain
// pipes so that reads drain everything the process wrote even after it exited.
func (p *Process) Launch() error {
	if !p.state.CompareAndSwap(int32(StateNotStarted), int32(StateStarting)) {
		return fmt.Errorf("katago process already launched (state %s)", p.State())
	}
	p.ensureConfigFile()

	cmd := p.command()
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return p.launchFailed(err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return p.launchFailed(err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return p.launchFailed(err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	p.log.Infow("starting katago process", "path", cmd.Path, "args", cmd.Args[1:])
	err = cmd.Start()
	stdoutW.Close()
	stderrW.Close()
	if err != nil {
		stdoutR.Close()
		stderrR.Close()
		return p.launchFailed(err)
	}

	p.cmd = cmd
	p.stdin = stdin
	p.stdout = stdoutR
	p.stderr = stderrR

	go p.wait()
	return nil
}

func (p *Process) launchFailed(err error) error {
	p.state.Store(int32(StateCrashed))
	close(p.exited)
	return &apperrors.StartupError{Reason: fmt.Sprintf("launch %s: %v", p.cfg.Path, err)}
}

func (p *Process) wait() {
	err := p.cmd.Wait()
	p.exit = err
	for {
		cur := p.state.Load()
		if State(cur) == StateStopped {
			break
		}
		if p.state.CompareAndSwap(cur, int32(StateCrashed)) {
			p.log.Errorw("katago process exited", "previous_state", State(cur).String(), "error", err)
			break
		}
	}
	close(p.exited)
}

// WaitReady blocks until ready is closed, the process exits, the startup window passes or
// ctx is done. diagnostics is called to attach captured stderr to a failure.
func (p *Process) WaitReady(ctx context.Context, ready <-chan struct{}, stderrDone <-chan struct{}, diagnostics func() []string) error {
	timer := time.NewTimer(p.cfg.StartupTimeout)
	defer timer.Stop()

	fail := func(reason string) error {
		return &apperrors.StartupError{Reason: reason, Stderr: diagnostics()}
	}

	select {
	case <-ready:
		if p.state.CompareAndSwap(int32(StateStarting), int32(StateReady)) {
			p.log.Infow("katago ready")
			return nil
		}
		return fail(fmt.Sprintf("process left startup as %s", p.State()))
	case <-p.exited:
		// let the stderr loop drain what the process wrote before dying
		select {
		case <-stderrDone:
		case <-time.After(time.Second):
		}
		return fail(fmt.Sprintf("process exited during initialization: %v", p.exit))
	case <-timer.C:
		return fail(fmt.Sprintf("no readiness banner within %s", p.cfg.StartupTimeout))
	case <-ctx.Done():
		return fail(fmt.Sprintf("startup aborted: %v", ctx.Err()))
	}
}

// IsRunning reports process liveness only, not protocol health.
func (p *Process) IsRunning() bool {
	s := p.State()
	return s == StateReady || s == StateRunning
}

// MarkBusy moves between Ready and Running while sessions are in flight.
func (p *Process) MarkBusy(busy bool) {
	if busy {
		p.state.CompareAndSwap(int32(StateReady), int32(StateRunning))
	} else {
		p.state.CompareAndSwap(int32(StateRunning), int32(StateReady))
	}
}

// Exited is closed once the process is gone.
func (p *Process) Exited() <-chan struct{} { return p.exited }

// Stop asks the process to terminate and kills it after StopTimeout.
func (p *Process) Stop() error {
	prev := State(p.state.Swap(int32(StateStopped)))
	if p.cmd == nil || prev == StateNotStarted {
		return nil
	}
	if prev == StateCrashed {
		<-p.exited
		return nil
	}

	_ = p.stdin.Close()
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.log.Warnw("failed to signal katago", "error", err)
	}

	select {
	case <-p.exited:
	case <-time.After(p.cfg.StopTimeout):
		p.log.Warnw("katago did not exit in time, killing", "timeout", p.cfg.StopTimeout)
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("kill katago: %w", err)
		}
		<-p.exited
	}
	p.log.Infow("katago process stopped")
	return nil
}
