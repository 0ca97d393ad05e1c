package pe_export

import (
	"encoding/binary"
)

// ExportDirectoryRVA is where ImageBuilder places the export directory.
const ExportDirectoryRVA = 0x1000

// ImageBuilder assembles a minimal in-memory PE32 image with an export
// table. Images built this way are mapped into simulated targets.
type ImageBuilder struct {
	ModuleName string

	// Functions holds function RVAs, Names the exported names and Ordinals
	// the function index for each name.
	Functions []uint32
	Names     []string
	Ordinals  []uint16

	OrdinalBase         uint32
	Magic               uint16 // 0 means PE32
	NoDataDirectories   bool
	OmitExportDirectory bool

	forwarders map[int]string
}

func NewImageBuilder(moduleName string) *ImageBuilder {
	return &ImageBuilder{ModuleName: moduleName, OrdinalBase: 1}
}

// AddExport appends a function at rva exported under name.
func (b *ImageBuilder) AddExport(name string, rva uint32) *ImageBuilder {
	b.Ordinals = append(b.Ordinals, uint16(len(b.Functions)))
	b.Functions = append(b.Functions, rva)
	b.Names = append(b.Names, name)
	return b
}

// AddForwarder appends an export whose function entry points at a
// forwarder string such as "OTHER.Function".
func (b *ImageBuilder) AddForwarder(name, target string) *ImageBuilder {
	if b.forwarders == nil {
		b.forwarders = make(map[int]string)
	}
	b.forwarders[len(b.Functions)] = target
	return b.AddExport(name, 0)
}

func align(v, a uint32) uint32 {
	return (v + a - 1) &^ (a - 1)
}

// Build lays out headers at 0, the export directory with its arrays and
// strings at ExportDirectoryRVA, and sizes the image to cover every function.
func (b *ImageBuilder) Build() []byte {
	const (
		lfanew  = 0x80
		fileOff = lfanew + 4
		optOff  = fileOff + FileHeaderSize
	)

	nFunctions := uint32(len(b.Functions))
	nNames := uint32(len(b.Names))

	functionsRVA := uint32(ExportDirectoryRVA + ExportDirectorySize)
	namesRVA := functionsRVA + 4*nFunctions
	ordinalsRVA := namesRVA + 4*nNames
	stringsRVA := align(ordinalsRVA+2*nNames, 4)

	// strings: module name, export names, forwarders
	var strs []byte
	addString := func(s string) uint32 {
		rva := stringsRVA + uint32(len(strs))
		strs = append(strs, s...)
		strs = append(strs, 0)
		return rva
	}
	moduleNameRVA := addString(b.ModuleName)
	nameRVAs := make([]uint32, nNames)
	for i, n := range b.Names {
		nameRVAs[i] = addString(n)
	}
	functions := append([]uint32(nil), b.Functions...)
	for i, target := range b.forwarders {
		functions[i] = addString(target)
	}

	dirEnd := stringsRVA + uint32(len(strs))
	size := dirEnd
	for _, rva := range functions {
		if rva+0x10 > size {
			size = rva + 0x10
		}
	}
	img := make([]byte, align(size, 0x1000))
	le := binary.LittleEndian

	le.PutUint16(img[0:], DOSMagic)
	le.PutUint32(img[offsetLfanew:], lfanew)
	le.PutUint32(img[lfanew:], NTSignature)

	le.PutUint16(img[fileOff:], 0x14C) // i386
	le.PutUint16(img[fileOff+offsetSizeOfOptionalHeader:], OptionalHeader32Size)
	le.PutUint16(img[fileOff+offsetCharacteristics:], 0x2102) // DLL | 32BIT | EXECUTABLE

	magic := b.Magic
	if magic == 0 {
		magic = OptionalHeaderMagicPE32
	}
	le.PutUint16(img[optOff+offsetOptMagic:], magic)
	le.PutUint32(img[optOff+offsetImageBase:], 0x10000000)
	le.PutUint32(img[optOff+offsetSizeOfImage:], uint32(len(img)))
	if !b.NoDataDirectories {
		le.PutUint32(img[optOff+offsetNumberOfRvaAndSizes:], 16)
		if !b.OmitExportDirectory {
			le.PutUint32(img[optOff+offsetDataDirectory:], ExportDirectoryRVA)
			le.PutUint32(img[optOff+offsetDataDirectory+4:], dirEnd-ExportDirectoryRVA)
		}
	}

	dir := img[ExportDirectoryRVA:]
	le.PutUint32(dir[offsetExportName:], moduleNameRVA)
	le.PutUint32(dir[offsetExportBase:], b.OrdinalBase)
	le.PutUint32(dir[offsetNumberOfFunctions:], nFunctions)
	le.PutUint32(dir[offsetNumberOfNames:], nNames)
	le.PutUint32(dir[offsetAddressOfFunctions:], functionsRVA)
	le.PutUint32(dir[offsetAddressOfNames:], namesRVA)
	le.PutUint32(dir[offsetAddressOfOrdinals:], ordinalsRVA)

	for i, rva := range functions {
		le.PutUint32(img[functionsRVA+4*uint32(i):], rva)
	}
	for i, rva := range nameRVAs {
		le.PutUint32(img[namesRVA+4*uint32(i):], rva)
	}
	for i, ord := range b.Ordinals {
		le.PutUint16(img[ordinalsRVA+2*uint32(i):], ord)
	}
	copy(img[stringsRVA:], strs)

	return img
}
