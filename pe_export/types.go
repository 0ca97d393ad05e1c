// Package pe_export locates exported functions of a PE32 image that is
// already loaded in another process, by walking its headers and export
// table through remote reads. The file on disk is never consulted.
package pe_export

import (
	"errors"
	"fmt"

	"ippc/process"
)

const (
	DOSMagic    = 0x5A4D     // "MZ"
	NTSignature = 0x00004550 // "PE\0\0"

	OptionalHeaderMagicPE32     = 0x10B
	OptionalHeaderMagicPE32Plus = 0x20B

	DOSHeaderSize        = 64
	FileHeaderSize       = 20
	OptionalHeader32Size = 224
	ExportDirectorySize  = 40

	offsetLfanew = 0x3C

	// file header
	offsetNumberOfSections     = 2
	offsetSizeOfOptionalHeader = 16
	offsetCharacteristics      = 18

	// optional header (PE32)
	offsetOptMagic            = 0
	offsetAddressOfEntryPoint = 16
	offsetImageBase           = 28
	offsetSizeOfImage         = 56
	offsetNumberOfRvaAndSizes = 92
	offsetDataDirectory       = 96

	// export directory
	offsetExportName         = 12
	offsetExportBase         = 16
	offsetNumberOfFunctions  = 20
	offsetNumberOfNames      = 24
	offsetAddressOfFunctions = 28
	offsetAddressOfNames     = 32
	offsetAddressOfOrdinals  = 36

	// no sane image exports more than this
	maxExportCount = 0x10000

	maxExportNameLength process.ProcessMemorySize = 512
)

var (
	ErrBadImageSignature = errors.New("bad image signature")
	ErrNoExportDirectory = errors.New("image has no export directory")
	ErrUnsupportedImage  = errors.New("unsupported image format")
	ErrExportNotFound    = errors.New("export not found")
	ErrMalformedImage    = errors.New("malformed export table")
	ErrForwardedExport   = errors.New("export is forwarded")
)

// DataDirectory is one IMAGE_DATA_DIRECTORY entry.
type DataDirectory struct {
	VirtualAddress uint32
	Size           uint32
}

// Contains reports whether rva falls inside the directory.
func (d DataDirectory) Contains(rva uint32) bool {
	return rva >= d.VirtualAddress && uint64(rva) < uint64(d.VirtualAddress)+uint64(d.Size)
}

type FileHeader struct {
	Machine              uint16
	NumberOfSections     uint16
	SizeOfOptionalHeader uint16
	Characteristics      uint16
}

// OptionalHeader holds the PE32 optional header fields this package uses.
type OptionalHeader struct {
	Magic               uint16
	AddressOfEntryPoint uint32
	ImageBase           uint32
	SizeOfImage         uint32
	NumberOfRvaAndSizes uint32
	ExportDirectory     DataDirectory
}

// ExportDirectory is IMAGE_EXPORT_DIRECTORY. All addresses are RVAs.
type ExportDirectory struct {
	NameRVA               uint32
	Base                  uint32
	NumberOfFunctions     uint32
	NumberOfNames         uint32
	AddressOfFunctions    uint32
	AddressOfNames        uint32
	AddressOfNameOrdinals uint32
}

// ImageHeaders is everything read on the way from the DOS header to the
// export directory of one image.
type ImageHeaders struct {
	Base      process.ProcessMemoryAddress
	Lfanew    uint32
	File      FileHeader
	Optional  OptionalHeader
	Directory DataDirectory
	Exports   ExportDirectory
}

// ExportEntry is a resolved named export.
type ExportEntry struct {
	Name    string
	RVA     uint32
	Address process.ProcessMemoryAddress
	Ordinal uint32 // biased by the export directory Base
}

func (e ExportEntry) String() string {
	return fmt.Sprintf("%s @ %s (rva 0x%X, ordinal %d)", e.Name, e.Address.ToString(), e.RVA, e.Ordinal)
}
