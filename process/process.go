// Package process defines the remote memory channel: the contract every
// target backend implements, the error kinds it reports and the helpers
// built on top of raw reads and writes.
package process

import (
	"errors"
	"fmt"
)

// This file keeps the error taxonomy in one place.
// The rest of the package is split up as:
// - types.go: ProcessID, ProcessInfo
// - memory_types.go: ProcessMemoryAddress, ProcessMemorySize, RemoteAllocation
// - process_interface.go: Process, Target and the narrow channel interfaces
// - process_finder.go: ProcessFinder, ModuleFinder
// - channel.go: ReadCString, WriteBuffer and array reads

var (
	// ErrAddressNotMapped is returned when a memory address is not found within any mapped region of a process.
	ErrAddressNotMapped = errors.New("address not mapped")

	// ErrProcessNotOpen is returned when an operation requiring an open process is attempted
	// before the process has been successfully opened or after it has been closed.
	ErrProcessNotOpen = errors.New("process not open")

	// ErrInvalidHandle is returned for a nil process or a zero base address.
	ErrInvalidHandle = errors.New("invalid handle")

	// ErrMemoryAccess matches every *MemoryAccessError.
	ErrMemoryAccess = errors.New("memory access failure")

	ErrAllocation     = errors.New("allocation failure")
	ErrThreadCreation = errors.New("thread creation failure")
	ErrWait           = errors.New("wait failure")
	ErrTimeout        = errors.New("wait timed out")

	// ErrNotAllocated is returned by FreeMemory for an address that is not a live
	// allocation of this process. A second free of the same allocation lands here.
	ErrNotAllocated = errors.New("address is not a live allocation")

	// ErrStringTooLong is returned when no NUL terminator is found within the read limit.
	ErrStringTooLong = errors.New("string exceeds maximum length")

	ErrNotSupported = errors.New("operation not supported by this backend")

	// ErrProcessNotFound and ErrModuleNotFound are returned by the finders.
	ErrProcessNotFound = errors.New("process not found")
	ErrModuleNotFound  = errors.New("module not found")
)

// MemoryAccessError describes a cross-process read or write that did not
// transfer exactly the requested number of bytes. Err holds the OS error if
// the call itself failed, and is nil for a short transfer the OS reported as
// a success.
type MemoryAccessError struct {
	Op          string
	Address     ProcessMemoryAddress
	Requested   ProcessMemorySize
	Transferred ProcessMemorySize
	Err         error
}

func (e *MemoryAccessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %d bytes at %s: %v", e.Op, e.Requested, e.Address.ToString(), e.Err)
	}
	return fmt.Sprintf("%s at %s: transferred %d of %d bytes", e.Op, e.Address.ToString(), e.Transferred, e.Requested)
}

func (e *MemoryAccessError) Unwrap() error {
	return e.Err
}

func (e *MemoryAccessError) Is(target error) bool {
	return target == ErrMemoryAccess
}

// NewMemoryAccessError builds the error for a failed or short transfer.
func NewMemoryAccessError(op string, addr ProcessMemoryAddress, requested, transferred ProcessMemorySize, err error) error {
	return &MemoryAccessError{
		Op:          op,
		Address:     addr,
		Requested:   requested,
		Transferred: transferred,
		Err:         err,
	}
}
