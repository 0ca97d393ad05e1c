package process_blob

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"ippc/process"
)

var ErrOutOfBounds = errors.New("offset out of bounds")

// ProcessBlob is a bounds-checked little-endian view over bytes that were
// read from a target at baseaddress. Offsets are relative to the start of
// the blob, so remote addresses never have to be turned into local pointers.
type ProcessBlob struct {
	baseaddress process.ProcessMemoryAddress
	data        []byte
}

var (
	_ process.MemoryReader = (*ProcessBlob)(nil)
	_ io.ReaderAt          = (*ProcessBlob)(nil)
)

func NewProcessBlob(baseAddress process.ProcessMemoryAddress, data []byte) *ProcessBlob {
	return &ProcessBlob{
		baseaddress: baseAddress,
		data:        data,
	}
}

// ReadBlob reads size bytes at addr and wraps them in a ProcessBlob.
func ReadBlob(r process.MemoryReader, addr process.ProcessMemoryAddress, size process.ProcessMemorySize) (*ProcessBlob, error) {
	data, err := r.ReadMemory(addr, size)
	if err != nil {
		return nil, err
	}
	if process.ProcessMemorySize(len(data)) != size {
		return nil, process.NewMemoryAccessError("read", addr, size, process.ProcessMemorySize(len(data)), nil)
	}
	return NewProcessBlob(addr, data), nil
}

func (p *ProcessBlob) Data() []byte {
	return p.data
}

func (p *ProcessBlob) Len() int {
	return len(p.data)
}

func (p *ProcessBlob) BaseAddress() process.ProcessMemoryAddress {
	return p.baseaddress
}

// ReadMemory serves reads from the blob using absolute addresses
func (p *ProcessBlob) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if addr < p.baseaddress {
		return nil, process.ErrAddressNotMapped
	}
	out, err := p.BytesAt(uint64(addr-p.baseaddress), uint64(size))
	if err != nil {
		return nil, process.NewMemoryAccessError("read", addr, size, 0, err)
	}
	return out, nil
}

// ReadAt reads at an offset into the blob so image parsers can work on it.
func (p *ProcessBlob) ReadAt(b []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(p.data)) {
		return 0, io.EOF
	}
	n := copy(b, p.data[off:])
	if n < len(b) {
		return n, io.EOF
	}
	return n, nil
}

// BytesAt returns a copy of n bytes at offset
func (p *ProcessBlob) BytesAt(offset, n uint64) ([]byte, error) {
	end := offset + n
	if end < offset || end > uint64(len(p.data)) {
		return nil, fmt.Errorf("%w: [%#x, %#x) of %#x", ErrOutOfBounds, offset, end, len(p.data))
	}
	out := make([]byte, n)
	copy(out, p.data[offset:end])
	return out, nil
}

func (p *ProcessBlob) Uint16At(offset uint64) (uint16, error) {
	if offset+2 < offset || offset+2 > uint64(len(p.data)) {
		return 0, fmt.Errorf("%w: %#x+2 of %#x", ErrOutOfBounds, offset, len(p.data))
	}
	return binary.LittleEndian.Uint16(p.data[offset:]), nil
}

func (p *ProcessBlob) Uint32At(offset uint64) (uint32, error) {
	if offset+4 < offset || offset+4 > uint64(len(p.data)) {
		return 0, fmt.Errorf("%w: %#x+4 of %#x", ErrOutOfBounds, offset, len(p.data))
	}
	return binary.LittleEndian.Uint32(p.data[offset:]), nil
}

// U16 and U32 are for fixed layouts whose size was checked when the blob was
// read. An offset outside the blob yields zero.
func (p *ProcessBlob) U16(offset uint64) uint16 {
	v, _ := p.Uint16At(offset)
	return v
}

func (p *ProcessBlob) U32(offset uint64) uint32 {
	v, _ := p.Uint32At(offset)
	return v
}
