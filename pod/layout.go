// Package pod moves plain-old-data records between this process and a
// target. Every record declares its byte layout explicitly, so the wire
// image never depends on Go struct packing or on the host pointer width.
package pod

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrLayout       = errors.New("invalid record layout")
	ErrPointerWidth = errors.New("pointer does not fit the target pointer width")
)

// Kind is the wire type of a single field.
type Kind int

const (
	Uint8 Kind = iota
	Uint16
	Uint32
	Int32
	Uint64
	// Pointer32 is an address in the target, stored in 4 bytes.
	Pointer32
)

func (k Kind) Size() uint32 {
	switch k {
	case Uint8:
		return 1
	case Uint16:
		return 2
	case Uint32, Int32, Pointer32:
		return 4
	case Uint64:
		return 8
	}
	return 0
}

func (k Kind) String() string {
	switch k {
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Uint32:
		return "uint32"
	case Int32:
		return "int32"
	case Uint64:
		return "uint64"
	case Pointer32:
		return "ptr32"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

type Field struct {
	Name   string
	Offset uint32
	Kind   Kind
}

func (f Field) End() uint32 {
	return f.Offset + f.Kind.Size()
}

// Layout is the byte image of a record in the target.
type Layout struct {
	Name   string
	Size   uint32
	Fields []Field
}

// Validate checks that every field has a known kind, is naturally aligned,
// lies inside Size and does not overlap another field.
func (l *Layout) Validate() error {
	if l == nil {
		return fmt.Errorf("%w: nil layout", ErrLayout)
	}
	if l.Size == 0 {
		return fmt.Errorf("%w: %s has zero size", ErrLayout, l.Name)
	}

	fields := make([]Field, len(l.Fields))
	copy(fields, l.Fields)
	sort.Slice(fields, func(i, j int) bool { return fields[i].Offset < fields[j].Offset })

	for i, f := range fields {
		size := f.Kind.Size()
		if size == 0 {
			return fmt.Errorf("%w: %s.%s has unknown kind %d", ErrLayout, l.Name, f.Name, int(f.Kind))
		}
		if f.Offset%size != 0 {
			return fmt.Errorf("%w: %s.%s at offset %d is not %d-byte aligned", ErrLayout, l.Name, f.Name, f.Offset, size)
		}
		if f.End() > l.Size {
			return fmt.Errorf("%w: %s.%s ends at %d past size %d", ErrLayout, l.Name, f.Name, f.End(), l.Size)
		}
		if i > 0 && fields[i-1].End() > f.Offset {
			return fmt.Errorf("%w: %s.%s overlaps %s", ErrLayout, l.Name, f.Name, fields[i-1].Name)
		}
	}
	return nil
}

// Record is a Go value with a declared layout. Fields returns pointers to the
// Go fields in the same order as Layout().Fields.
type Record interface {
	Layout() *Layout
	Fields() []any
}
