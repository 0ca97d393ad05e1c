package pe_export

import (
	"fmt"
	"sort"

	"ippc/process"
	"ippc/process_blob"

	"github.com/Binject/debug/pe"
)

// Mismatch is a named export whose RVA in the target differs from a
// reference image, or that only one side has.
type Mismatch struct {
	Name      string
	Live      uint32
	Reference uint32
	// LiveOnly and ReferenceOnly mark exports missing on the other side.
	LiveOnly      bool
	ReferenceOnly bool
}

func (m Mismatch) String() string {
	switch {
	case m.LiveOnly:
		return fmt.Sprintf("%s: rva 0x%X only in target", m.Name, m.Live)
	case m.ReferenceOnly:
		return fmt.Sprintf("%s: rva 0x%X only in reference", m.Name, m.Reference)
	}
	return fmt.Sprintf("%s: target rva 0x%X, reference rva 0x%X", m.Name, m.Live, m.Reference)
}

// ReferenceExports parses the exports of an image file on disk.
func ReferenceExports(path string) ([]pe.Export, error) {
	f, err := pe.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	exports, err := f.Exports()
	if err != nil {
		return nil, fmt.Errorf("exports of %s: %w", path, err)
	}
	return exports, nil
}

// MappedExports copies the whole mapped image at h.Base out of the target
// and parses its exports in memory layout.
func MappedExports(r process.MemoryReader, h *ImageHeaders) ([]pe.Export, error) {
	if h.Optional.SizeOfImage == 0 {
		return nil, fmt.Errorf("%w: SizeOfImage is zero", ErrMalformedImage)
	}
	blob, err := process_blob.ReadBlob(r, h.Base, process.ProcessMemorySize(h.Optional.SizeOfImage))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	f, err := pe.NewFileFromMemory(blob)
	if err != nil {
		return nil, fmt.Errorf("parse image at %s: %w", h.Base.ToString(), err)
	}
	defer f.Close()

	return f.Exports()
}

// CompareExports matches live entries with reference exports by name.
// Unnamed reference exports are ignored. The result is sorted by name.
func CompareExports(live []ExportEntry, reference []pe.Export) []Mismatch {
	want := make(map[string]uint32, len(reference))
	for _, e := range reference {
		if e.Name != "" {
			want[e.Name] = e.VirtualAddress
		}
	}

	var out []Mismatch
	seen := make(map[string]bool, len(live))
	for _, e := range live {
		seen[e.Name] = true
		rva, ok := want[e.Name]
		switch {
		case !ok:
			out = append(out, Mismatch{Name: e.Name, Live: e.RVA, LiveOnly: true})
		case rva != e.RVA:
			out = append(out, Mismatch{Name: e.Name, Live: e.RVA, Reference: rva})
		}
	}
	for name, rva := range want {
		if !seen[name] {
			out = append(out, Mismatch{Name: name, Reference: rva, ReferenceOnly: true})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
