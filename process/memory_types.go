package process

import (
	"fmt"
)

// ProcessMemoryAddress represents a memory address within a process.
// It is only meaningful together with the Process it was obtained from.
type ProcessMemoryAddress uint64

func (pma ProcessMemoryAddress) ToString() string {
	return fmt.Sprintf("0x%X", uint64(pma))
}

// Add offsets the address by an RVA or a byte count.
func (pma ProcessMemoryAddress) Add(offset uint32) ProcessMemoryAddress {
	return pma + ProcessMemoryAddress(offset)
}

// ProcessMemorySize represents a size of memory region
type ProcessMemorySize uint

func (pms ProcessMemorySize) ToString() string {
	return fmt.Sprintf("%d bytes", uint(pms))
}

// RemoteAllocation is a range of memory owned in the target process.
//
// Whoever holds a RemoteAllocation must release it with FreeMemory once
// neither side needs it anymore. Dropping it leaks memory in the target,
// not in the caller, and nothing will notice.
type RemoteAllocation struct {
	Address ProcessMemoryAddress
	Size    ProcessMemorySize
}

func (ra RemoteAllocation) String() string {
	return fmt.Sprintf("%s (%s)", ra.Address.ToString(), ra.Size.ToString())
}

// IsZero reports whether the allocation refers to nothing.
func (ra RemoteAllocation) IsZero() bool {
	return ra.Address == 0
}
