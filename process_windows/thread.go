//go:build windows

package process_windows

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"ippc/process"

	"golang.org/x/sys/windows"
)

const (
	waitObject0 = 0x00000000
	waitTimeout = 0x00000102
)

type windowsThread struct {
	mu     sync.Mutex
	handle windows.Handle
	id     uint32
}

var _ process.Thread = (*windowsThread)(nil)

func (t *windowsThread) ID() uint32 {
	return t.id
}

func (t *windowsThread) getHandle() (windows.Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.handle == 0 {
		return 0, fmt.Errorf("thread %d: handle closed", t.id)
	}
	return t.handle, nil
}

func toMilliseconds(d time.Duration) uint32 {
	switch {
	case d <= 0:
		return 0
	case d >= time.Duration(windows.INFINITE-1)*time.Millisecond:
		return windows.INFINITE - 1
	}
	return uint32(d / time.Millisecond)
}

func (t *windowsThread) Wait(timeout time.Duration) error {
	h, err := t.getHandle()
	if err != nil {
		return fmt.Errorf("%w: %w", process.ErrWait, err)
	}

	event, err := windows.WaitForSingleObject(h, toMilliseconds(timeout))
	switch {
	case err != nil:
		return fmt.Errorf("%w: WaitForSingleObject: %w", process.ErrWait, err)
	case event == waitObject0:
		return nil
	case event == waitTimeout:
		return process.ErrTimeout
	}
	return fmt.Errorf("%w: WaitForSingleObject returned 0x%X", process.ErrWait, event)
}

func (t *windowsThread) ExitCode() (uint32, error) {
	h, err := t.getHandle()
	if err != nil {
		return 0, err
	}

	var code uint32
	ret, _, callErr := procGetExitCodeThread.Call(uintptr(h), uintptr(unsafe.Pointer(&code)))
	if ret == 0 {
		return 0, fmt.Errorf("GetExitCodeThread: %w", callErr)
	}
	return code, nil
}

func (t *windowsThread) Terminate(exitCode uint32) error {
	h, err := t.getHandle()
	if err != nil {
		return err
	}

	ret, _, callErr := procTerminateThread.Call(uintptr(h), uintptr(exitCode))
	if ret == 0 {
		return fmt.Errorf("TerminateThread: %w", callErr)
	}
	return nil
}

func (t *windowsThread) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.handle == 0 {
		return nil
	}
	err := windows.CloseHandle(t.handle)
	t.handle = 0
	return err
}
