package process_blob

import (
	"context"
	"io"
	"testing"
	"time"

	"ippc/process"

	"github.com/stretchr/testify/require"
)

func TestAllocateWriteRead(t *testing.T) {
	p := NewProcessDump()

	alloc, err := p.AllocateMemory(10)
	require.NoError(t, err)
	require.False(t, alloc.IsZero())
	require.Equal(t, process.ProcessMemorySize(10), alloc.Size)
	require.True(t, p.IsValidAddress(alloc.Address))

	n, err := p.WriteMemory(alloc.Address, []byte("0123456789"))
	require.NoError(t, err)
	require.Equal(t, process.ProcessMemorySize(10), n)

	data, err := p.ReadMemory(alloc.Address+2, 3)
	require.NoError(t, err)
	require.Equal(t, []byte("234"), data)

	second, err := p.AllocateMemory(1)
	require.NoError(t, err)
	require.NotEqual(t, alloc.Address, second.Address)
	require.Zero(t, uint64(second.Address)%pageSize)
}

func TestFreeIsNotIdempotent(t *testing.T) {
	p := NewProcessDump()

	alloc, err := p.AllocateMemory(16)
	require.NoError(t, err)

	require.NoError(t, p.FreeMemory(alloc.Address))
	require.ErrorIs(t, p.FreeMemory(alloc.Address), process.ErrNotAllocated)
	require.ErrorIs(t, p.FreeMemory(0x1234), process.ErrNotAllocated)
	require.False(t, p.IsValidAddress(alloc.Address))
}

func TestAdoptMemory(t *testing.T) {
	p := NewProcessDump()
	p.Map(0x00500000, make([]byte, 32), "rw-p")

	// not ours until adopted
	require.ErrorIs(t, p.FreeMemory(0x00500000), process.ErrNotAllocated)

	p.AdoptMemory(0x00500000, 32)
	require.Len(t, p.Allocations(), 1)
	require.NoError(t, p.FreeMemory(0x00500000))
	require.Empty(t, p.Allocations())
}

func TestPartialRead(t *testing.T) {
	p := NewProcessDump()
	p.Map(0x1000, []byte{1, 2, 3, 4}, "r--p")

	_, err := p.ReadMemory(0x1002, 4)
	require.ErrorIs(t, err, process.ErrMemoryAccess)

	var mae *process.MemoryAccessError
	require.ErrorAs(t, err, &mae)
	require.Equal(t, process.ProcessMemorySize(4), mae.Requested)
	require.Equal(t, process.ProcessMemorySize(2), mae.Transferred)
}

func TestReadOnlyRegion(t *testing.T) {
	p := NewProcessDump()
	p.Map(0x1000, []byte{1, 2, 3, 4}, "r--p")

	_, err := p.WriteMemory(0x1000, []byte{9})
	require.ErrorIs(t, err, process.ErrMemoryAccess)

	_, err = p.ReadMemory(0x9000, 1)
	require.ErrorIs(t, err, process.ErrAddressNotMapped)
}

func TestReadCString(t *testing.T) {
	p := NewProcessDump()
	p.Map(0x1000, []byte("abc\x00def"), "r--p")

	s, err := process.ReadCString(p, 0x1000, 0)
	require.NoError(t, err)
	require.Equal(t, "abc", s)

	s, err = process.ReadCString(p, 0x1003, 0)
	require.NoError(t, err)
	require.Equal(t, "", s)

	// runs off the end of the region before a terminator
	_, err = process.ReadCString(p, 0x1004, 0)
	require.ErrorIs(t, err, process.ErrMemoryAccess)

	_, err = process.ReadCString(p, 0x1000, 2)
	require.ErrorIs(t, err, process.ErrStringTooLong)
}

func TestThreadCompletes(t *testing.T) {
	p := NewProcessDump()
	p.RegisterFunction(0x401000, func(ctx context.Context, p *ProcessDump, arg process.ProcessMemoryAddress) uint32 {
		return uint32(arg) * 2
	})

	th, err := p.CreateThread(0x401000, 21)
	require.NoError(t, err)
	defer th.Close()

	require.NoError(t, th.Wait(time.Second))
	code, err := th.ExitCode()
	require.NoError(t, err)
	require.Equal(t, uint32(42), code)
	require.Error(t, th.Terminate(0))
}

func TestThreadTimeoutAndTerminate(t *testing.T) {
	p := NewProcessDump()
	p.RegisterFunction(0x401000, func(ctx context.Context, p *ProcessDump, arg process.ProcessMemoryAddress) uint32 {
		<-ctx.Done()
		return 1
	})

	th, err := p.CreateThread(0x401000, 0)
	require.NoError(t, err)

	require.ErrorIs(t, th.Wait(0), process.ErrTimeout)
	require.ErrorIs(t, th.Wait(5*time.Millisecond), process.ErrTimeout)

	require.NoError(t, th.Terminate(99))
	require.NoError(t, th.Wait(0))
	code, err := th.ExitCode()
	require.NoError(t, err)
	require.Equal(t, uint32(99), code)
	require.NoError(t, th.Close())
}

func TestCreateThreadUnknownStart(t *testing.T) {
	_, err := NewProcessDump().CreateThread(0x401000, 0)
	require.ErrorIs(t, err, process.ErrThreadCreation)
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()

	p := NewProcessDump()
	p.PID = 4242
	p.Name = "ippp_example.exe"
	p.Map(0x00400000, []byte("MZ image bytes"), "r-xp")
	p.Map(0x00600000, []byte{0xde, 0xad}, "rw-p")
	require.NoError(t, p.Save(dir))

	loaded := NewProcessDump()
	require.NoError(t, loaded.Load(dir))
	require.Equal(t, process.ProcessID(4242), loaded.GetPID())
	require.Equal(t, "ippp_example.exe", loaded.Name)

	mm, err := loaded.GetMemoryMap()
	require.NoError(t, err)
	require.Len(t, mm, 2)

	data, err := loaded.ReadMemory(0x00400000, 2)
	require.NoError(t, err)
	require.Equal(t, []byte("MZ"), data)
}

func TestBlobAccessors(t *testing.T) {
	b := NewProcessBlob(0x1000, []byte{0x4d, 0x5a, 0x00, 0x00, 0x50, 0x45, 0x00, 0x00})

	require.Equal(t, uint16(0x5A4D), b.U16(0))
	require.Equal(t, uint32(0x00004550), b.U32(4))
	require.Zero(t, b.U32(6))

	_, err := b.Uint32At(6)
	require.ErrorIs(t, err, ErrOutOfBounds)

	data, err := b.ReadMemory(0x1004, 2)
	require.NoError(t, err)
	require.Equal(t, []byte{0x50, 0x45}, data)
}

func TestBlobReadAt(t *testing.T) {
	blob := NewProcessBlob(0x1000, []byte("MZ\x90\x00"))

	buf := make([]byte, 2)
	n, err := blob.ReadAt(buf, 2)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []byte{0x90, 0x00}, buf)

	n, err = blob.ReadAt(make([]byte, 4), 3)
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, 1, n)

	_, err = blob.ReadAt(buf, 4)
	require.ErrorIs(t, err, io.EOF)
}
