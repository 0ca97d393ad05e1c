package pod

import (
	"bytes"
	"fmt"

	"ippc/process"
)

// WriteValue allocates the record's size in the target and writes its
// encoding there. Pointer fields must already hold addresses in that same
// target. The caller owns the returned allocation.
func WriteValue(p process.Process, rec Record) (process.RemoteAllocation, error) {
	data, err := Encode(rec)
	if err != nil {
		return process.RemoteAllocation{}, err
	}
	alloc, err := process.WriteBuffer(p, data)
	if err != nil {
		return process.RemoteAllocation{}, fmt.Errorf("write %s: %w", rec.Layout().Name, err)
	}
	return alloc, nil
}

// ReadValue fills rec with a single read of its layout size at addr.
func ReadValue(r process.MemoryReader, addr process.ProcessMemoryAddress, rec Record) error {
	if r == nil {
		return process.ErrInvalidHandle
	}
	if rec == nil {
		return fmt.Errorf("%w: nil record", ErrLayout)
	}
	size := SizeOf(rec)
	data, err := r.ReadMemory(addr, size)
	if err != nil {
		return fmt.Errorf("read %s at %s: %w", rec.Layout().Name, addr.ToString(), err)
	}
	if process.ProcessMemorySize(len(data)) != size {
		return process.NewMemoryAccessError("read", addr, size, process.ProcessMemorySize(len(data)), nil)
	}
	return Decode(data, rec)
}

// RemoteString is a string that was copied into the target.
type RemoteString struct {
	Allocation process.RemoteAllocation
	// Length excludes the NUL terminator.
	Length int
}

func (s RemoteString) Pointer() process.ProcessMemoryAddress {
	return s.Allocation.Address
}

// WriteString copies s plus a NUL terminator into a fresh allocation.
func WriteString(p process.Process, s string) (RemoteString, error) {
	data := make([]byte, len(s)+1)
	copy(data, s)
	alloc, err := process.WriteBuffer(p, data)
	if err != nil {
		return RemoteString{}, fmt.Errorf("write string: %w", err)
	}
	return RemoteString{Allocation: alloc, Length: len(s)}, nil
}

// ReadString reads a NUL-terminated string at ptr. A zero ptr is an error,
// not an empty string.
func ReadString(r process.MemoryReader, ptr process.ProcessMemoryAddress, maxLength process.ProcessMemorySize) (string, error) {
	if ptr == 0 {
		return "", fmt.Errorf("read string: %w: null pointer", process.ErrAddressNotMapped)
	}
	return process.ReadCString(r, ptr, maxLength)
}

// ReadFixedString reads a string of known length with a single read. The
// result stops early at an embedded NUL.
func ReadFixedString(r process.MemoryReader, ptr process.ProcessMemoryAddress, length process.ProcessMemorySize) (string, error) {
	if r == nil {
		return "", process.ErrInvalidHandle
	}
	if ptr == 0 {
		return "", fmt.Errorf("read string: %w: null pointer", process.ErrAddressNotMapped)
	}
	if length == 0 {
		return "", nil
	}
	data, err := r.ReadMemory(ptr, length)
	if err != nil {
		return "", fmt.Errorf("read %d byte string at %s: %w", length, ptr.ToString(), err)
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return string(data), nil
}
