package pe_export

import (
	"fmt"

	"ippc/coloransi"
	"ippc/process"
	"ippc/process_blob"

	"github.com/Moonlight-Companies/gologger/logger"
)

var log = logger.NewLogger(coloransi.Color(coloransi.ColorIndigo, coloransi.ColorOrange, "pe-export"))

// ReadHeaders walks DOS header, NT signature, file header, optional header
// and export directory of the image at base. It stops at the first failing
// step; a bad DOS magic means nothing past the DOS header is read.
func ReadHeaders(r process.MemoryReader, base process.ProcessMemoryAddress) (*ImageHeaders, error) {
	if r == nil || base == 0 {
		return nil, process.ErrInvalidHandle
	}

	h := &ImageHeaders{Base: base}

	dos, err := process_blob.ReadBlob(r, base, DOSHeaderSize)
	if err != nil {
		return nil, fmt.Errorf("read dos header: %w", err)
	}
	if magic := dos.U16(0); magic != DOSMagic {
		return nil, fmt.Errorf("%w: dos magic 0x%04X at %s", ErrBadImageSignature, magic, base.ToString())
	}
	h.Lfanew = dos.U32(offsetLfanew)

	ntAddr := base.Add(h.Lfanew)
	sig, err := process_blob.ReadBlob(r, ntAddr, 4)
	if err != nil {
		return nil, fmt.Errorf("read nt signature: %w", err)
	}
	if v := sig.U32(0); v != NTSignature {
		return nil, fmt.Errorf("%w: nt signature 0x%08X at %s", ErrBadImageSignature, v, ntAddr.ToString())
	}

	fileAddr := ntAddr.Add(4)
	fh, err := process_blob.ReadBlob(r, fileAddr, FileHeaderSize)
	if err != nil {
		return nil, fmt.Errorf("read file header: %w", err)
	}
	h.File = FileHeader{
		Machine:              fh.U16(0),
		NumberOfSections:     fh.U16(offsetNumberOfSections),
		SizeOfOptionalHeader: fh.U16(offsetSizeOfOptionalHeader),
		Characteristics:      fh.U16(offsetCharacteristics),
	}

	optAddr := fileAddr.Add(FileHeaderSize)
	opt, err := process_blob.ReadBlob(r, optAddr, OptionalHeader32Size)
	if err != nil {
		return nil, fmt.Errorf("read optional header: %w", err)
	}
	h.Optional = OptionalHeader{
		Magic:               opt.U16(offsetOptMagic),
		AddressOfEntryPoint: opt.U32(offsetAddressOfEntryPoint),
		ImageBase:           opt.U32(offsetImageBase),
		SizeOfImage:         opt.U32(offsetSizeOfImage),
		NumberOfRvaAndSizes: opt.U32(offsetNumberOfRvaAndSizes),
	}
	if h.Optional.Magic != OptionalHeaderMagicPE32 {
		return nil, fmt.Errorf("%w: optional header magic 0x%X", ErrUnsupportedImage, h.Optional.Magic)
	}

	if h.Optional.NumberOfRvaAndSizes < 1 {
		return nil, fmt.Errorf("%w: NumberOfRvaAndSizes is 0", ErrNoExportDirectory)
	}
	h.Directory = DataDirectory{
		VirtualAddress: opt.U32(offsetDataDirectory),
		Size:           opt.U32(offsetDataDirectory + 4),
	}
	h.Optional.ExportDirectory = h.Directory
	if h.Directory.VirtualAddress == 0 {
		return nil, fmt.Errorf("%w: export directory rva is 0", ErrNoExportDirectory)
	}

	exp, err := process_blob.ReadBlob(r, base.Add(h.Directory.VirtualAddress), ExportDirectorySize)
	if err != nil {
		return nil, fmt.Errorf("read export directory: %w", err)
	}
	h.Exports = ExportDirectory{
		NameRVA:               exp.U32(offsetExportName),
		Base:                  exp.U32(offsetExportBase),
		NumberOfFunctions:     exp.U32(offsetNumberOfFunctions),
		NumberOfNames:         exp.U32(offsetNumberOfNames),
		AddressOfFunctions:    exp.U32(offsetAddressOfFunctions),
		AddressOfNames:        exp.U32(offsetAddressOfNames),
		AddressOfNameOrdinals: exp.U32(offsetAddressOfOrdinals),
	}

	log.Debugln("export directory at", base.Add(h.Directory.VirtualAddress).ToString(),
		"functions", h.Exports.NumberOfFunctions, "names", h.Exports.NumberOfNames)
	return h, nil
}

// ModuleName reads the image's own name from the export directory.
func (h *ImageHeaders) ModuleName(r process.MemoryReader) (string, error) {
	if h.Exports.NameRVA == 0 {
		return "", nil
	}
	return process.ReadCString(r, h.Base.Add(h.Exports.NameRVA), maxExportNameLength)
}
