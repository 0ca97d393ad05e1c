package process

import (
	"time"

	"ippc/process/memory_map"
)

// MemoryReader reads raw bytes out of a target.
type MemoryReader interface {
	// ReadMemory reads exactly size bytes at addr. Anything less is a *MemoryAccessError.
	ReadMemory(addr ProcessMemoryAddress, size ProcessMemorySize) ([]byte, error)
}

// MemoryWriter writes raw bytes into a target.
type MemoryWriter interface {
	// WriteMemory writes data at addr and returns the number of bytes written.
	// A short write is reported as a *MemoryAccessError together with the count.
	WriteMemory(addr ProcessMemoryAddress, data []byte) (ProcessMemorySize, error)
}

// MemoryChannel is the read/write half of the remote memory channel.
type MemoryChannel interface {
	MemoryReader
	MemoryWriter
}

// MemoryAllocator owns remote allocations.
type MemoryAllocator interface {
	// AllocateMemory commits size bytes of read/write memory in the target.
	// The caller owns the result and must free it.
	AllocateMemory(size ProcessMemorySize) (RemoteAllocation, error)

	// FreeMemory releases an allocation. Freeing an address that is not a live
	// allocation, including freeing twice, returns ErrNotAllocated and leaves
	// the target untouched.
	FreeMemory(addr ProcessMemoryAddress) error

	// AdoptMemory registers a block the target allocated on its own (for
	// example a result record) so it can later be released with FreeMemory.
	AdoptMemory(addr ProcessMemoryAddress, size ProcessMemorySize) RemoteAllocation
}

// Thread is a thread of control started inside the target.
type Thread interface {
	// ID returns the target-side thread id.
	ID() uint32

	// Wait blocks until the thread terminates or timeout elapses.
	// It returns ErrTimeout on expiry and never touches the thread itself.
	Wait(timeout time.Duration) error

	// ExitCode returns the thread's exit code. Only meaningful after Wait succeeded.
	ExitCode() (uint32, error)

	// Terminate forcibly ends the thread with the given exit code.
	Terminate(exitCode uint32) error

	// Close releases the local handle. The remote thread is unaffected.
	Close() error
}

// ThreadRunner starts threads inside the target.
type ThreadRunner interface {
	// CreateThread starts a thread at start with arg as its only parameter.
	// It does not wait for the thread.
	CreateThread(start ProcessMemoryAddress, arg ProcessMemoryAddress) (Thread, error)
}

// Target is a process that can be opened and read from or written to.
type Target interface {
	// Open opens a process with the given PID for memory operations
	Open(pid ProcessID) error

	// Close closes the process and releases resources
	Close() error

	// GetPID returns the process ID
	GetPID() ProcessID

	// UpdateMemoryMap refreshes the memory map for the process
	UpdateMemoryMap() error

	// IsValidAddress checks if the given memory address is valid and readable
	IsValidAddress(addr ProcessMemoryAddress) bool

	// GetMemoryMap returns a copy of the current memory map
	GetMemoryMap() ([]memory_map.MemoryMapItem, error)

	MemoryChannel
}

// Process is a target that additionally supports remote allocation and
// remote thread creation, everything a remote procedure call needs.
type Process interface {
	Target
	MemoryAllocator
	ThreadRunner
}
