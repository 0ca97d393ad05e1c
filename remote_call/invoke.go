// Package remote_call runs functions inside a target on a fresh thread and
// turns the thread's exit code into a typed outcome.
package remote_call

import (
	"errors"
	"fmt"
	"time"

	"ippc/coloransi"
	"ippc/process"

	"github.com/Moonlight-Companies/gologger/logger"
)

var log = logger.NewLogger(coloransi.Color(coloransi.Cyan, coloransi.ColorOrange, "remote-call"))

// ThreadResult is the raw 32-bit exit code of a remote thread.
type ThreadResult uint32

// DefaultTerminateExitCode is the exit code given to a thread killed on timeout.
const DefaultTerminateExitCode = 0xFFFFFFFF

// DefaultTerminateWait bounds the wait for a terminated thread to be gone.
// TerminateThread only starts the termination.
const DefaultTerminateWait = time.Second

type TimeoutPolicy int

const (
	// TerminateOnTimeout kills the thread and closes its handle.
	TerminateOnTimeout TimeoutPolicy = iota
	// AbandonOnTimeout leaves the thread running and hands it to the caller.
	AbandonOnTimeout
)

func (p TimeoutPolicy) String() string {
	if p == AbandonOnTimeout {
		return "abandon"
	}
	return "terminate"
}

type invokeConfig struct {
	Policy            TimeoutPolicy
	TerminateExitCode uint32
	TerminateWait     time.Duration
}

// Option configures Invoke
type Option func(*invokeConfig)

func WithAbandonOnTimeout() Option {
	return func(c *invokeConfig) {
		c.Policy = AbandonOnTimeout
	}
}

func WithTimeoutPolicy(policy TimeoutPolicy) Option {
	return func(c *invokeConfig) {
		c.Policy = policy
	}
}

func WithTerminateExitCode(code uint32) Option {
	return func(c *invokeConfig) {
		c.TerminateExitCode = code
	}
}

func WithTerminateWait(d time.Duration) Option {
	return func(c *invokeConfig) {
		c.TerminateWait = d
	}
}

func newInvokeConfig(opts []Option) invokeConfig {
	cfg := invokeConfig{
		Policy:            TerminateOnTimeout,
		TerminateExitCode: DefaultTerminateExitCode,
		TerminateWait:     DefaultTerminateWait,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// TimeoutError reports a remote call that did not finish in time. It
// matches process.ErrTimeout.
type TimeoutError struct {
	Timeout  time.Duration
	ThreadID uint32

	// Terminated is set once the thread was killed and seen to exit.
	// TerminateErr holds the reason if that failed; the call is then
	// abandoned.
	Terminated   bool
	TerminateErr error

	// Thread is the possibly still running thread when the call was
	// abandoned. The caller owns it and must Close it.
	Thread process.Thread

	// Retained lists allocations that were left in place because an
	// abandoned thread may still use them.
	Retained []process.RemoteAllocation
}

func (e *TimeoutError) Error() string {
	switch {
	case e.Thread != nil && e.TerminateErr != nil:
		return fmt.Sprintf("remote thread %d timed out after %s, terminate failed (%v), abandoned with %d allocation(s) retained", e.ThreadID, e.Timeout, e.TerminateErr, len(e.Retained))
	case e.Thread != nil:
		return fmt.Sprintf("remote thread %d timed out after %s, abandoned with %d allocation(s) retained", e.ThreadID, e.Timeout, len(e.Retained))
	default:
		return fmt.Sprintf("remote thread %d timed out after %s, terminated", e.ThreadID, e.Timeout)
	}
}

func (e *TimeoutError) Unwrap() []error {
	if e.TerminateErr != nil {
		return []error{process.ErrTimeout, e.TerminateErr}
	}
	return []error{process.ErrTimeout}
}

// Invoke starts fn in the target with arg as its parameter and waits up to
// timeout for it to exit. A zero timeout only polls once. When the wait
// expires the result is never read; the thread is handled per the timeout
// policy and a *TimeoutError is returned. A thread that cannot be
// terminated, or does not exit within the terminate wait, is abandoned.
func Invoke(p process.ThreadRunner, fn, arg process.ProcessMemoryAddress, timeout time.Duration, opts ...Option) (ThreadResult, error) {
	if p == nil || fn == 0 {
		return 0, process.ErrInvalidHandle
	}
	cfg := newInvokeConfig(opts)

	t, err := p.CreateThread(fn, arg)
	if err != nil {
		if errors.Is(err, process.ErrThreadCreation) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %w", process.ErrThreadCreation, err)
	}

	abandoned := false
	defer func() {
		if !abandoned {
			t.Close()
		}
	}()

	tag := coloransi.Foreground(coloransi.ColorFrom(uint64(t.ID())), fmt.Sprintf("thread-%d", t.ID()))
	log.Debugln(tag, "started at", fn.ToString(), "arg", arg.ToString())

	err = t.Wait(timeout)
	switch {
	case err == nil:
	case errors.Is(err, process.ErrTimeout):
		te := &TimeoutError{Timeout: timeout, ThreadID: t.ID()}
		if cfg.Policy == AbandonOnTimeout {
			abandoned = true
			te.Thread = t
			log.Warn("abandoning remote thread: ", te)
			return 0, te
		}
		if terr := terminate(t, cfg); terr != nil {
			abandoned = true
			te.TerminateErr = terr
			te.Thread = t
		} else {
			te.Terminated = true
		}
		log.Warn("remote call timed out: ", te)
		return 0, te
	case errors.Is(err, process.ErrWait):
		return 0, err
	default:
		return 0, fmt.Errorf("%w: %w", process.ErrWait, err)
	}

	code, err := t.ExitCode()
	if err != nil {
		return 0, fmt.Errorf("%w: exit code: %w", process.ErrWait, err)
	}

	log.Debugln(tag, "exited with", fmt.Sprintf("0x%X", code))
	return ThreadResult(code), nil
}

// terminate kills t and waits for it to be gone.
func terminate(t process.Thread, cfg invokeConfig) error {
	if err := t.Terminate(cfg.TerminateExitCode); err != nil {
		return err
	}
	if err := t.Wait(cfg.TerminateWait); err != nil {
		return fmt.Errorf("wait after terminate: %w", err)
	}
	return nil
}
