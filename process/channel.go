package process

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// DefaultMaxStringLength bounds ReadCString when the caller passes no limit.
const DefaultMaxStringLength ProcessMemorySize = 4096

// ReadCString reads a NUL-terminated string one byte at a time starting at
// addr. The terminator is not part of the result. If maxLength bytes are read
// without finding a terminator it fails with ErrStringTooLong; a zero
// maxLength means DefaultMaxStringLength.
func ReadCString(r MemoryReader, addr ProcessMemoryAddress, maxLength ProcessMemorySize) (string, error) {
	if r == nil {
		return "", ErrInvalidHandle
	}
	if maxLength == 0 {
		maxLength = DefaultMaxStringLength
	}

	buf := make([]byte, 0, 32)
	for i := ProcessMemorySize(0); i < maxLength; i++ {
		b, err := r.ReadMemory(addr+ProcessMemoryAddress(i), 1)
		if err != nil {
			return "", fmt.Errorf("read string byte %d at %s: %w", i, addr.ToString(), err)
		}
		if len(b) != 1 {
			return "", NewMemoryAccessError("read", addr+ProcessMemoryAddress(i), 1, ProcessMemorySize(len(b)), nil)
		}
		if b[0] == 0 {
			return string(buf), nil
		}
		buf = append(buf, b[0])
	}

	return "", fmt.Errorf("%w: no terminator within %d bytes at %s", ErrStringTooLong, maxLength, addr.ToString())
}

// WriteBytes writes data at addr and fails unless every byte was written.
func WriteBytes(w MemoryWriter, addr ProcessMemoryAddress, data []byte) error {
	if w == nil {
		return ErrInvalidHandle
	}
	n, err := w.WriteMemory(addr, data)
	if err != nil {
		return err
	}
	if n != ProcessMemorySize(len(data)) {
		return NewMemoryAccessError("write", addr, ProcessMemorySize(len(data)), n, nil)
	}
	return nil
}

// WriteBuffer allocates exactly len(data) bytes in the target and copies data
// there. The caller owns the returned allocation. If the write fails the
// allocation is released again before returning.
func WriteBuffer(p Process, data []byte) (RemoteAllocation, error) {
	if p == nil {
		return RemoteAllocation{}, ErrInvalidHandle
	}
	if len(data) == 0 {
		return RemoteAllocation{}, fmt.Errorf("%w: empty buffer", ErrAllocation)
	}

	alloc, err := p.AllocateMemory(ProcessMemorySize(len(data)))
	if err != nil {
		return RemoteAllocation{}, err
	}

	if err := WriteBytes(p, alloc.Address, data); err != nil {
		if ferr := p.FreeMemory(alloc.Address); ferr != nil {
			err = errors.Join(err, ferr)
		}
		return RemoteAllocation{}, err
	}

	return alloc, nil
}

// ReadUint32Array reads count little-endian 32-bit values with a single read.
func ReadUint32Array(r MemoryReader, addr ProcessMemoryAddress, count uint32) ([]uint32, error) {
	if count == 0 {
		return []uint32{}, nil
	}
	size := ProcessMemorySize(count) * 4
	data, err := r.ReadMemory(addr, size)
	if err != nil {
		return nil, err
	}
	if ProcessMemorySize(len(data)) != size {
		return nil, NewMemoryAccessError("read", addr, size, ProcessMemorySize(len(data)), nil)
	}

	out := make([]uint32, count)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(data[i*4 : i*4+4])
	}
	return out, nil
}

// ReadUint16Array reads count little-endian 16-bit values with a single read.
func ReadUint16Array(r MemoryReader, addr ProcessMemoryAddress, count uint32) ([]uint16, error) {
	if count == 0 {
		return []uint16{}, nil
	}
	size := ProcessMemorySize(count) * 2
	data, err := r.ReadMemory(addr, size)
	if err != nil {
		return nil, err
	}
	if ProcessMemorySize(len(data)) != size {
		return nil, NewMemoryAccessError("read", addr, size, ProcessMemorySize(len(data)), nil)
	}

	out := make([]uint16, count)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(data[i*2 : i*2+2])
	}
	return out, nil
}
