//go:build linux

package process_linux

import (
	"fmt"

	"ippc/process"

	"golang.org/x/sys/unix"
)

// ReadMemory reads memory from the process at the specified address
func (p *LinuxProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}

	pid, region, err := p.region(addr)
	if err != nil {
		if pid == 0 {
			return nil, err
		}
		return nil, process.NewMemoryAccessError("process_vm_readv", addr, size, 0, err)
	}
	if !region.IsReadable() {
		return nil, process.NewMemoryAccessError("process_vm_readv", addr, size, 0, fmt.Errorf("region %x is %s", region.Address, region.Perms))
	}

	buf := make([]byte, size)
	local := []unix.Iovec{{Base: &buf[0]}}
	local[0].SetLen(int(size))
	remote := []unix.RemoteIovec{{Base: uintptr(addr), Len: int(size)}}

	n, err := unix.ProcessVMReadv(int(pid), local, remote, 0)
	if err != nil {
		return nil, process.NewMemoryAccessError("process_vm_readv", addr, size, 0, err)
	}
	if n != int(size) {
		return nil, process.NewMemoryAccessError("process_vm_readv", addr, size, process.ProcessMemorySize(n), nil)
	}

	return buf, nil
}

// WriteMemory writes data to the process memory at the specified address
func (p *LinuxProcess) WriteMemory(addr process.ProcessMemoryAddress, data []byte) (process.ProcessMemorySize, error) {
	size := process.ProcessMemorySize(len(data))
	if size == 0 {
		return 0, nil
	}

	pid, region, err := p.region(addr)
	if err != nil {
		if pid == 0 {
			return 0, err
		}
		return 0, process.NewMemoryAccessError("process_vm_writev", addr, size, 0, err)
	}
	if !region.IsWritable() {
		return 0, process.NewMemoryAccessError("process_vm_writev", addr, size, 0, fmt.Errorf("region %x is %s", region.Address, region.Perms))
	}

	local := []unix.Iovec{{Base: &data[0]}}
	local[0].SetLen(len(data))
	remote := []unix.RemoteIovec{{Base: uintptr(addr), Len: len(data)}}

	n, err := unix.ProcessVMWritev(int(pid), local, remote, 0)
	if err != nil {
		return 0, process.NewMemoryAccessError("process_vm_writev", addr, size, 0, err)
	}
	if n != len(data) {
		return process.ProcessMemorySize(n), process.NewMemoryAccessError("process_vm_writev", addr, size, process.ProcessMemorySize(n), nil)
	}

	return size, nil
}
