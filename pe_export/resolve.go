package pe_export

import (
	"errors"
	"fmt"

	"ippc/process"
)

// exportTable holds the three parallel arrays of one export directory.
type exportTable struct {
	headers   *ImageHeaders
	functions []uint32
	names     []uint32
	ordinals  []uint16
}

func readExportTable(r process.MemoryReader, base process.ProcessMemoryAddress) (*exportTable, error) {
	h, err := ReadHeaders(r, base)
	if err != nil {
		return nil, err
	}

	dir := h.Exports
	if dir.NumberOfFunctions > maxExportCount || dir.NumberOfNames > maxExportCount {
		return nil, fmt.Errorf("%w: %d functions, %d names", ErrMalformedImage, dir.NumberOfFunctions, dir.NumberOfNames)
	}

	t := &exportTable{headers: h}
	if t.functions, err = process.ReadUint32Array(r, base.Add(dir.AddressOfFunctions), dir.NumberOfFunctions); err != nil {
		return nil, fmt.Errorf("read AddressOfFunctions: %w", err)
	}
	if t.names, err = process.ReadUint32Array(r, base.Add(dir.AddressOfNames), dir.NumberOfNames); err != nil {
		return nil, fmt.Errorf("read AddressOfNames: %w", err)
	}
	if t.ordinals, err = process.ReadUint16Array(r, base.Add(dir.AddressOfNameOrdinals), dir.NumberOfNames); err != nil {
		return nil, fmt.Errorf("read AddressOfNameOrdinals: %w", err)
	}
	return t, nil
}

// entry builds the ExportEntry for name index i.
func (t *exportTable) entry(i int, name string) (ExportEntry, error) {
	index := t.ordinals[i]
	if int(index) >= len(t.functions) {
		return ExportEntry{}, fmt.Errorf("%w: %s has ordinal index %d of %d functions", ErrMalformedImage, name, index, len(t.functions))
	}

	rva := t.functions[index]
	if t.headers.Directory.Contains(rva) {
		return ExportEntry{}, fmt.Errorf("%w: %s", ErrForwardedExport, name)
	}

	return ExportEntry{
		Name:    name,
		RVA:     rva,
		Address: t.headers.Base.Add(rva),
		Ordinal: t.headers.Exports.Base + uint32(index),
	}, nil
}

// Resolve finds the export called name in the image loaded at base and
// returns its address in the target. Names are compared exactly and the
// first match in table order wins. Nothing is cached between calls.
func Resolve(r process.MemoryReader, base process.ProcessMemoryAddress, name string) (ExportEntry, error) {
	t, err := readExportTable(r, base)
	if err != nil {
		return ExportEntry{}, err
	}

	for i, nameRVA := range t.names {
		candidate, err := process.ReadCString(r, base.Add(nameRVA), maxExportNameLength)
		if err != nil {
			return ExportEntry{}, fmt.Errorf("read export name %d: %w", i, err)
		}
		if candidate != name {
			continue
		}

		e, err := t.entry(i, candidate)
		if err != nil {
			return ExportEntry{}, err
		}
		log.Debugln("resolved", e.String())
		return e, nil
	}

	return ExportEntry{}, fmt.Errorf("%w: %q in image at %s", ErrExportNotFound, name, base.ToString())
}

// Exports lists every named export in table order. Forwarded entries are
// skipped since they have no code address.
func Exports(r process.MemoryReader, base process.ProcessMemoryAddress) ([]ExportEntry, error) {
	t, err := readExportTable(r, base)
	if err != nil {
		return nil, err
	}

	entries := make([]ExportEntry, 0, len(t.names))
	for i, nameRVA := range t.names {
		name, err := process.ReadCString(r, base.Add(nameRVA), maxExportNameLength)
		if err != nil {
			return nil, fmt.Errorf("read export name %d: %w", i, err)
		}

		e, err := t.entry(i, name)
		if err != nil {
			if errors.Is(err, ErrForwardedExport) {
				continue
			}
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}
