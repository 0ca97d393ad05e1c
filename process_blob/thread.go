package process_blob

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ippc/process"
)

// StillActive is the exit code reported for a thread that has not finished.
const StillActive = 259

// CreateThread runs the function registered at start on its own goroutine.
func (p *ProcessDump) CreateThread(start process.ProcessMemoryAddress, arg process.ProcessMemoryAddress) (process.Thread, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, process.ErrProcessNotOpen
	}
	fn, ok := p.functions[start]
	if !ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: no code at %s", process.ErrThreadCreation, start.ToString())
	}
	p.nextTID += 4
	tid := p.nextTID
	p.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	t := &simThread{
		id:       tid,
		done:     make(chan struct{}),
		cancel:   cancel,
		exitCode: StillActive,
	}

	p.log.Debugln("thread", tid, "start", start.ToString(), "arg", arg.ToString())
	go func() {
		code := fn(ctx, p, arg)
		t.finish(code)
	}()

	return t, nil
}

type simThread struct {
	id     uint32
	done   chan struct{}
	cancel context.CancelFunc

	mu       sync.Mutex
	exitCode uint32
	finished bool
	closed   bool
}

var _ process.Thread = (*simThread)(nil)

// finish records the exit code once; a result arriving after Terminate is dropped.
func (t *simThread) finish(code uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return false
	}
	t.finished = true
	t.exitCode = code
	close(t.done)
	return true
}

func (t *simThread) ID() uint32 {
	return t.id
}

func (t *simThread) Wait(timeout time.Duration) error {
	if t.isClosed() {
		return fmt.Errorf("%w: thread handle closed", process.ErrWait)
	}

	if timeout <= 0 {
		select {
		case <-t.done:
			return nil
		default:
			return process.ErrTimeout
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-t.done:
		return nil
	case <-timer.C:
		return process.ErrTimeout
	}
}

func (t *simThread) ExitCode() (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, fmt.Errorf("thread handle closed")
	}
	return t.exitCode, nil
}

func (t *simThread) Terminate(exitCode uint32) error {
	t.cancel()
	if !t.finish(exitCode) {
		return fmt.Errorf("thread %d already exited", t.id)
	}
	return nil
}

func (t *simThread) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *simThread) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
