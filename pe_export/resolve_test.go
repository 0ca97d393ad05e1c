package pe_export

import (
	"encoding/binary"
	"errors"
	"testing"

	"ippc/process"
	"ippc/process_blob"

	"github.com/stretchr/testify/require"
)

const testBase process.ProcessMemoryAddress = 0x10000000

func mapImage(t *testing.T, b *ImageBuilder) *process_blob.ProcessDump {
	t.Helper()
	dump := process_blob.NewProcessDump()
	dump.Map(testBase, b.Build(), "r--p")
	return dump
}

type countingReader struct {
	r     process.MemoryReader
	reads int
}

func (c *countingReader) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	c.reads++
	return c.r.ReadMemory(addr, size)
}

type failingReader struct {
	r      process.MemoryReader
	failAt process.ProcessMemoryAddress
}

func (f *failingReader) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if addr == f.failAt {
		return nil, process.NewMemoryAccessError("read", addr, size, 0, errors.New("access denied"))
	}
	return f.r.ReadMemory(addr, size)
}

func TestResolveUsesOrdinalIndirection(t *testing.T) {
	b := NewImageBuilder("alpha.dll")
	b.Functions = []uint32{0x100, 0x200, 0x300}
	b.Names = []string{"Alpha", "Beta", "Gamma"}
	b.Ordinals = []uint16{2, 0, 1}
	dump := mapImage(t, b)

	e, err := Resolve(dump, testBase, "Beta")
	require.NoError(t, err)
	require.Equal(t, testBase+0x100, e.Address)
	require.Equal(t, uint32(0x100), e.RVA)
	require.Equal(t, "Beta", e.Name)
	require.Equal(t, uint32(1), e.Ordinal)

	e, err = Resolve(dump, testBase, "Alpha")
	require.NoError(t, err)
	require.Equal(t, testBase+0x300, e.Address)
}

func TestResolveLargeOrdinalBase(t *testing.T) {
	b := NewImageBuilder("wide.dll").AddExport("First", 0x100).AddExport("Second", 0x200)
	b.OrdinalBase = 0xFFFF
	dump := mapImage(t, b)

	e, err := Resolve(dump, testBase, "Second")
	require.NoError(t, err)
	require.Equal(t, uint32(0x10000), e.Ordinal)
}

func TestResolveIsCaseSensitive(t *testing.T) {
	dump := mapImage(t, NewImageBuilder("x.dll").AddExport("PrintInfo", 0x1100))

	_, err := Resolve(dump, testBase, "printinfo")
	require.ErrorIs(t, err, ErrExportNotFound)
}

func TestResolveFirstMatchWins(t *testing.T) {
	b := NewImageBuilder("dup.dll").AddExport("Twice", 0x2000).AddExport("Twice", 0x3000)
	dump := mapImage(t, b)

	e, err := Resolve(dump, testBase, "Twice")
	require.NoError(t, err)
	require.Equal(t, testBase+0x2000, e.Address)
}

func TestResolveNotFound(t *testing.T) {
	dump := mapImage(t, NewImageBuilder("x.dll").AddExport("PrintInfo", 0x1100))

	_, err := Resolve(dump, testBase, "Missing")
	require.ErrorIs(t, err, ErrExportNotFound)
	require.NotErrorIs(t, err, ErrMalformedImage)
}

func TestResolveEmptyExportTable(t *testing.T) {
	dump := mapImage(t, NewImageBuilder("empty.dll"))

	_, err := Resolve(dump, testBase, "Anything")
	require.ErrorIs(t, err, ErrExportNotFound)
}

func TestBadDOSMagicReadsOnce(t *testing.T) {
	img := NewImageBuilder("x.dll").AddExport("A", 0x1100).Build()
	img[0], img[1] = 'Z', 'M'
	dump := process_blob.NewProcessDump()
	dump.Map(testBase, img, "r--p")

	counter := &countingReader{r: dump}
	_, err := Resolve(counter, testBase, "A")
	require.ErrorIs(t, err, ErrBadImageSignature)
	require.Equal(t, 1, counter.reads)
}

func TestBadNTSignature(t *testing.T) {
	img := NewImageBuilder("x.dll").AddExport("A", 0x1100).Build()
	binary.LittleEndian.PutUint32(img[0x80:], 0x00004551)
	dump := process_blob.NewProcessDump()
	dump.Map(testBase, img, "r--p")

	counter := &countingReader{r: dump}
	_, err := ReadHeaders(counter, testBase)
	require.ErrorIs(t, err, ErrBadImageSignature)
	require.Equal(t, 2, counter.reads)
}

func TestNoExportDirectory(t *testing.T) {
	b := NewImageBuilder("x.dll").AddExport("A", 0x1100)
	b.NoDataDirectories = true
	_, err := Resolve(mapImage(t, b), testBase, "A")
	require.ErrorIs(t, err, ErrNoExportDirectory)

	b = NewImageBuilder("x.dll").AddExport("A", 0x1100)
	b.OmitExportDirectory = true
	_, err = Resolve(mapImage(t, b), testBase, "A")
	require.ErrorIs(t, err, ErrNoExportDirectory)
}

func TestPE32PlusRejected(t *testing.T) {
	b := NewImageBuilder("x64.dll").AddExport("A", 0x1100)
	b.Magic = OptionalHeaderMagicPE32Plus

	_, err := Resolve(mapImage(t, b), testBase, "A")
	require.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestReadFailurePropagates(t *testing.T) {
	dump := mapImage(t, NewImageBuilder("x.dll").AddExport("A", 0x1100))
	r := &failingReader{r: dump, failAt: testBase + ExportDirectoryRVA}

	_, err := Resolve(r, testBase, "A")
	require.ErrorIs(t, err, process.ErrMemoryAccess)
	require.NotErrorIs(t, err, ErrExportNotFound)

	var mae *process.MemoryAccessError
	require.ErrorAs(t, err, &mae)
	require.Equal(t, testBase+ExportDirectoryRVA, mae.Address)
}

func TestUnmappedBase(t *testing.T) {
	dump := process_blob.NewProcessDump()

	_, err := Resolve(dump, testBase, "A")
	require.ErrorIs(t, err, process.ErrMemoryAccess)
}

func TestInvalidHandle(t *testing.T) {
	_, err := Resolve(nil, testBase, "A")
	require.ErrorIs(t, err, process.ErrInvalidHandle)

	_, err = Resolve(process_blob.NewProcessDump(), 0, "A")
	require.ErrorIs(t, err, process.ErrInvalidHandle)
}

func TestOrdinalOutOfRange(t *testing.T) {
	b := NewImageBuilder("bad.dll")
	b.Functions = []uint32{0x100}
	b.Names = []string{"Broken"}
	b.Ordinals = []uint16{7}

	_, err := Resolve(mapImage(t, b), testBase, "Broken")
	require.ErrorIs(t, err, ErrMalformedImage)
}

func TestForwardedExport(t *testing.T) {
	b := NewImageBuilder("fwd.dll").AddExport("Local", 0x2000).AddForwarder("Remote", "OTHER.Remote")
	dump := mapImage(t, b)

	_, err := Resolve(dump, testBase, "Remote")
	require.ErrorIs(t, err, ErrForwardedExport)

	entries, err := Exports(dump, testBase)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "Local", entries[0].Name)
}

func TestExportsListsTableOrder(t *testing.T) {
	b := NewImageBuilder("ippp_example.exe").
		AddExport("PrintInfo", 0x1100).
		AddExport("GetInformation", 0x1200)
	dump := mapImage(t, b)

	entries, err := Exports(dump, testBase)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "PrintInfo", entries[0].Name)
	require.Equal(t, testBase+0x1100, entries[0].Address)
	require.Equal(t, "GetInformation", entries[1].Name)
	require.Equal(t, uint32(2), entries[1].Ordinal)

	h, err := ReadHeaders(dump, testBase)
	require.NoError(t, err)
	name, err := h.ModuleName(dump)
	require.NoError(t, err)
	require.Equal(t, "ippp_example.exe", name)
}
