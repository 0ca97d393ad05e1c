package pod

import (
	"fmt"
	"io"

	"ippc/coloransi"
	"ippc/process"
)

// formatField renders the value behind a field pointer.
func formatField(f Field, ptr any) string {
	switch p := ptr.(type) {
	case *uint8:
		return fmt.Sprintf("%d (0x%X)", *p, *p)
	case *uint16:
		return fmt.Sprintf("%d (0x%X)", *p, *p)
	case *uint32:
		if f.Kind == Pointer32 {
			return fmt.Sprintf("0x%08X", *p)
		}
		return fmt.Sprintf("%d (0x%X)", *p, *p)
	case *int32:
		return fmt.Sprintf("%d (0x%X)", *p, uint32(*p))
	case *uint64:
		return fmt.Sprintf("%d (0x%X)", *p, *p)
	case *process.ProcessMemoryAddress:
		return fmt.Sprintf("0x%08X", uint64(*p))
	}
	return fmt.Sprintf("%v", ptr)
}

// PrintRecord writes a field table for rec. When v is not nil pointer
// fields are checked against its memory map.
func PrintRecord(v process.Target, rec Record, w io.Writer) {
	layout, ptrs, err := checkRecord(rec)
	if err != nil {
		fmt.Fprintln(w, "PrintRecord:", err)
		return
	}

	fmt.Fprintf(w, "=== %s ===\n", layout.Name)
	fmt.Fprintf(w, "Size: 0x%X (%d bytes)\n\n", layout.Size, layout.Size)

	table := NewTable(
		ColumnSpec{Header: "Field", MinWidth: 8},
		ColumnSpec{Header: "Offset", MinWidth: 6},
		ColumnSpec{Header: "Kind", MinWidth: 6},
		ColumnSpec{
			Header:   "Value",
			MinWidth: 6,
			FormatFunc: func(s string) string {
				if s == "0 (0x0)" || s == "0x00000000" {
					return coloransi.Foreground(coloransi.CreateRGB(64, 64, 64), s)
				}
				return coloransi.Foreground(coloransi.ColorLimeGreen, s)
			},
		},
		ColumnSpec{Header: "AsPtr", MinWidth: 5, FormatFunc: PointerFormatter},
	)

	for i, f := range layout.Fields {
		asPtr := ""
		if f.Kind == Pointer32 && v != nil {
			var addr process.ProcessMemoryAddress
			switch p := ptrs[i].(type) {
			case *uint32:
				addr = process.ProcessMemoryAddress(*p)
			case *process.ProcessMemoryAddress:
				addr = *p
			}
			switch {
			case addr == 0:
				asPtr = "0x0"
			case v.IsValidAddress(addr):
				asPtr = "✓"
			default:
				asPtr = "×"
			}
		}
		table.AddRow(f.Name, fmt.Sprintf("+0x%02X", f.Offset), f.Kind.String(), formatField(f, ptrs[i]), asPtr)
	}

	table.Render(w)
	fmt.Fprintln(w)
}
