//go:build linux

package process_linux

import (
	"os"
	"testing"
	"unsafe"

	"ippc/process"
	"ippc/process/memory_map"

	"github.com/stretchr/testify/require"
)

func TestFindModuleInMap(t *testing.T) {
	mm := []memory_map.MemoryMapItem{
		{Address: 0x00010000, Size: 0x1000, Perms: "r--p"},
		{Address: 0x00400000, Size: 0x1000, Perms: "r--p", Path: "/home/u/.wine/drive_c/ippp_example.exe"},
		{Address: 0x00401000, Size: 0x3000, Perms: "r-xp", Path: "/home/u/.wine/drive_c/ippp_example.exe"},
		{Address: 0x7b000000, Size: 0x1000, Perms: "r--p", Path: "/opt/wine/lib/kernel32.dll"},
	}

	m, err := findModuleInMap(mm, "IPPP_EXAMPLE.EXE", 7)
	require.NoError(t, err)
	require.Equal(t, process.ProcessMemoryAddress(0x00400000), m.Base)
	require.Equal(t, process.ProcessMemorySize(0x4000), m.Size)
	require.Equal(t, "ippp_example.exe", m.Name)

	_, err = findModuleInMap(mm, "user32.dll", 7)
	require.ErrorIs(t, err, process.ErrModuleNotFound)
}

func TestFindProcessByNameSkipsSelf(t *testing.T) {
	self, err := os.Executable()
	require.NoError(t, err)

	found, err := Finder{}.FindProcessByName(self)
	require.NoError(t, err)
	for _, p := range found {
		require.NotEqual(t, process.ProcessID(os.Getpid()), p.PID)
	}

	_, err = Finder{}.FindProcessByName("")
	require.Error(t, err)
}

var marker = [8]byte{'i', 'p', 'p', 'c', 0, 1, 2, 3}

func TestReadOwnMemory(t *testing.T) {
	p, err := NewWithPID(process.ProcessID(os.Getpid()))
	require.NoError(t, err)
	defer p.Close()

	mm, err := p.GetMemoryMap()
	require.NoError(t, err)
	require.NotEmpty(t, mm)

	addr := process.ProcessMemoryAddress(uintptr(unsafe.Pointer(&marker[0])))
	require.True(t, p.IsValidAddress(addr))

	s, err := process.ReadCString(p, addr, 16)
	require.NoError(t, err)
	require.Equal(t, "ippc", s)

	_, err = p.ReadMemory(0x10, 4)
	require.ErrorIs(t, err, process.ErrMemoryAccess)
}
