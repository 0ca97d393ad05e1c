//go:build windows

package process_windows

import (
	"fmt"
	"sync"
	"unsafe"

	"ippc/coloransi"
	"ippc/process"
	"ippc/process/memory_map"

	"github.com/Moonlight-Companies/gologger/logger"
	"golang.org/x/sys/windows"
)

var (
	modkernel32            = windows.NewLazySystemDLL("kernel32.dll")
	procVirtualAllocEx     = modkernel32.NewProc("VirtualAllocEx")
	procVirtualFreeEx      = modkernel32.NewProc("VirtualFreeEx")
	procCreateRemoteThread = modkernel32.NewProc("CreateRemoteThread")
	procGetExitCodeThread  = modkernel32.NewProc("GetExitCodeThread")
	procTerminateThread    = modkernel32.NewProc("TerminateThread")
)

const processAccess = windows.PROCESS_CREATE_THREAD |
	windows.PROCESS_QUERY_INFORMATION |
	windows.PROCESS_VM_OPERATION |
	windows.PROCESS_VM_READ |
	windows.PROCESS_VM_WRITE

// WindowsProcess implements process.Process on top of kernel32.
type WindowsProcess struct {
	pid    process.ProcessID
	handle windows.Handle
	// borrowed handles belong to the caller and are never closed here
	borrowed bool
	log      *logger.Logger
	mm       []memory_map.MemoryMapItem
	ledger   *memory_map.Ledger
	mu       sync.Mutex
}

var _ process.Process = (*WindowsProcess)(nil)

// New creates a new WindowsProcess instance
func New() *WindowsProcess {
	return &WindowsProcess{
		log:    logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open")),
		ledger: memory_map.NewLedger(),
	}
}

// NewWithPID creates a new WindowsProcess instance and opens it with the given PID
func NewWithPID(pid process.ProcessID) (*WindowsProcess, error) {
	p := New()
	if err := p.Open(pid); err != nil {
		return nil, err
	}
	return p, nil
}

// NewFromHandle wraps a process handle owned by the caller. It needs
// PROCESS_VM_OPERATION, PROCESS_VM_READ, PROCESS_VM_WRITE,
// PROCESS_CREATE_THREAD and PROCESS_QUERY_INFORMATION access.
func NewFromHandle(handle windows.Handle) (*WindowsProcess, error) {
	if handle == 0 || handle == windows.InvalidHandle {
		return nil, process.ErrInvalidHandle
	}
	pid, err := windows.GetProcessId(handle)
	if err != nil {
		return nil, fmt.Errorf("GetProcessId: %w", err)
	}

	p := New()
	p.attach(process.ProcessID(pid), handle, true)
	return p, nil
}

func (p *WindowsProcess) Open(pid process.ProcessID) error {
	handle, err := windows.OpenProcess(processAccess, false, uint32(pid))
	if err != nil {
		return fmt.Errorf("OpenProcess(%d): %w", pid, err)
	}

	p.attach(pid, handle, false)
	return nil
}

func (p *WindowsProcess) attach(pid process.ProcessID, handle windows.Handle, borrowed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pid = pid
	p.handle = handle
	p.borrowed = borrowed
	p.log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid)))

	if err := p.updateMemoryMapInternal(); err != nil {
		p.log.Warn("Failed to initialize memory map: ", err)
	}

	p.log.Infoln("Process opened")
}

// Close releases the handle if this instance opened it. Allocations that
// were never freed stay in the target and are reported.
func (p *WindowsProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := p.ledger.Len(); n > 0 {
		p.log.Warn("closing with live allocations: ", n)
	}

	if p.handle != 0 && !p.borrowed {
		if err := windows.CloseHandle(p.handle); err != nil {
			return fmt.Errorf("CloseHandle: %w", err)
		}
	}

	p.handle = 0
	p.pid = 0
	p.mm = nil
	p.log = logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open"))
	p.log.Infoln("Process closed")

	return nil
}

func (p *WindowsProcess) GetPID() process.ProcessID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

// Handle returns the underlying process handle.
func (p *WindowsProcess) Handle() windows.Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handle
}

func (p *WindowsProcess) getHandle() (windows.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == 0 {
		return 0, process.ErrProcessNotOpen
	}
	return p.handle, nil
}

func (p *WindowsProcess) UpdateMemoryMap() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.updateMemoryMapInternal()
}

func (p *WindowsProcess) updateMemoryMapInternal() error {
	if p.handle == 0 {
		return process.ErrProcessNotOpen
	}

	mm, err := memory_map.NewWindowsMemoryMap(p.handle).ReadMemoryMap(int(p.pid))
	if err != nil {
		return err
	}
	p.mm = mm
	return nil
}

func (p *WindowsProcess) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return memory_map.IsValidAddress(uint64(addr), p.mm)
}

func (p *WindowsProcess) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == 0 {
		return nil, process.ErrProcessNotOpen
	}
	result := make([]memory_map.MemoryMapItem, len(p.mm))
	copy(result, p.mm)
	return result, nil
}

func (p *WindowsProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}

	handle, err := p.getHandle()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, size)
	var bytesRead uintptr
	err = windows.ReadProcessMemory(handle, uintptr(addr), &buf[0], uintptr(size), &bytesRead)
	if err != nil {
		return nil, process.NewMemoryAccessError("ReadProcessMemory", addr, size, process.ProcessMemorySize(bytesRead), err)
	}
	if bytesRead != uintptr(size) {
		return nil, process.NewMemoryAccessError("ReadProcessMemory", addr, size, process.ProcessMemorySize(bytesRead), nil)
	}

	return buf, nil
}

func (p *WindowsProcess) WriteMemory(addr process.ProcessMemoryAddress, data []byte) (process.ProcessMemorySize, error) {
	size := process.ProcessMemorySize(len(data))
	if size == 0 {
		return 0, nil
	}

	handle, err := p.getHandle()
	if err != nil {
		return 0, err
	}

	var written uintptr
	err = windows.WriteProcessMemory(handle, uintptr(addr), &data[0], uintptr(size), &written)
	if err != nil {
		return process.ProcessMemorySize(written), process.NewMemoryAccessError("WriteProcessMemory", addr, size, process.ProcessMemorySize(written), err)
	}
	if written != uintptr(size) {
		return process.ProcessMemorySize(written), process.NewMemoryAccessError("WriteProcessMemory", addr, size, process.ProcessMemorySize(written), nil)
	}

	return size, nil
}

// AllocateMemory commits read/write pages in the target with VirtualAllocEx.
func (p *WindowsProcess) AllocateMemory(size process.ProcessMemorySize) (process.RemoteAllocation, error) {
	if size == 0 {
		return process.RemoteAllocation{}, fmt.Errorf("%w: zero size", process.ErrAllocation)
	}

	handle, err := p.getHandle()
	if err != nil {
		return process.RemoteAllocation{}, err
	}

	addr, _, callErr := procVirtualAllocEx.Call(
		uintptr(handle),
		0,
		uintptr(size),
		uintptr(windows.MEM_COMMIT|windows.MEM_RESERVE),
		uintptr(windows.PAGE_READWRITE),
	)
	if addr == 0 {
		return process.RemoteAllocation{}, fmt.Errorf("%w: VirtualAllocEx(%d): %v", process.ErrAllocation, size, callErr)
	}

	p.ledger.Insert(uint64(addr), uint(size))
	p.log.Debugln("allocated", size, "bytes at", fmt.Sprintf("0x%x", addr))
	return process.RemoteAllocation{Address: process.ProcessMemoryAddress(addr), Size: size}, nil
}

// FreeMemory releases an allocation with VirtualFreeEx(MEM_RELEASE).
// Addresses not in the ledger are refused without calling into the OS.
func (p *WindowsProcess) FreeMemory(addr process.ProcessMemoryAddress) error {
	handle, err := p.getHandle()
	if err != nil {
		return err
	}

	item, ok := p.ledger.Remove(uint64(addr))
	if !ok {
		return fmt.Errorf("free %s: %w", addr.ToString(), process.ErrNotAllocated)
	}

	ret, _, callErr := procVirtualFreeEx.Call(uintptr(handle), uintptr(addr), 0, uintptr(windows.MEM_RELEASE))
	if ret == 0 {
		// still allocated, keep tracking it
		p.ledger.Insert(item.Address, item.Size)
		return fmt.Errorf("VirtualFreeEx(%s): %w", addr.ToString(), callErr)
	}

	p.log.Debugln("freed", addr.ToString())
	return nil
}

func (p *WindowsProcess) AdoptMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) process.RemoteAllocation {
	p.ledger.Insert(uint64(addr), uint(size))
	return process.RemoteAllocation{Address: addr, Size: size}
}

// CreateThread starts a remote thread at start with arg as its parameter.
func (p *WindowsProcess) CreateThread(start process.ProcessMemoryAddress, arg process.ProcessMemoryAddress) (process.Thread, error) {
	handle, err := p.getHandle()
	if err != nil {
		return nil, err
	}

	var tid uint32
	th, _, callErr := procCreateRemoteThread.Call(
		uintptr(handle),
		0,
		0,
		uintptr(start),
		uintptr(arg),
		0,
		uintptr(unsafe.Pointer(&tid)),
	)
	if th == 0 {
		return nil, fmt.Errorf("%w: CreateRemoteThread(%s): %v", process.ErrThreadCreation, start.ToString(), callErr)
	}

	p.log.Debugln("remote thread", tid, "at", start.ToString())
	return &windowsThread{handle: windows.Handle(th), id: tid}, nil
}
