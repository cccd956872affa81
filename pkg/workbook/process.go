package workbook

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"
)

// DefaultQuitTimeout bounds how long Stop waits after asking the process to exit
const DefaultQuitTimeout = 10 * time.Second

// Process manages one external application process
type Process struct {
	cmd         *exec.Cmd
	quitTimeout time.Duration
	done        chan struct{}
	waitErr     error
	mu          sync.Mutex
	stopped     bool
}

// StartProcess spawns argv in its own process group. The process outlives
// ctx; only Stop ends it.
func StartProcess(ctx context.Context, argv []string, quitTimeout time.Duration) (*Process, error) {
	if len(argv) == 0 {
		return nil, &WorkbookError{Code: ErrCodeLaunch, Message: "empty application command"}
	}
	if err := ctx.Err(); err != nil {
		return nil, &WorkbookError{Code: ErrCodeLaunch, Message: "launch cancelled", Err: err}
	}
	if quitTimeout <= 0 {
		quitTimeout = DefaultQuitTimeout
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return nil, &WorkbookError{
			Code:    ErrCodeLaunch,
			Message: fmt.Sprintf("failed to start %s", argv[0]),
			Err:     err,
		}
	}

	p := &Process{
		cmd:         cmd,
		quitTimeout: quitTimeout,
		done:        make(chan struct{}),
	}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()

	return p, nil
}

// PID returns the operating system process id
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Running checks if the process has not exited yet
func (p *Process) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Done is closed once the process has exited
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Stop asks the process group to terminate and kills it after the quit
// timeout or when ctx ends. Calling Stop on an exited process is a no-op.
func (p *Process) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		<-p.done
		return nil
	}
	p.stopped = true
	p.mu.Unlock()

	if !p.Running() {
		return nil
	}

	if err := terminateGroup(p.cmd); err != nil && p.Running() {
		_ = killGroup(p.cmd)
	}

	timer := time.NewTimer(p.quitTimeout)
	defer timer.Stop()

	select {
	case <-p.done:
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}

	if err := killGroup(p.cmd); err != nil && p.Running() {
		return &WorkbookError{
			Code:    ErrCodeQuit,
			Message: fmt.Sprintf("failed to kill process %d", p.PID()),
			Err:     err,
		}
	}
	<-p.done
	return nil
}
