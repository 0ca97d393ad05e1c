package pod

import (
	"fmt"

	"ippc/process"

	"golang.org/x/exp/constraints"
)

const maxPointer32 = 0xFFFFFFFF

func putLE[T constraints.Integer](b []byte, size uint32, v T) {
	u := uint64(v)
	for i := uint32(0); i < size; i++ {
		b[i] = byte(u >> (8 * i))
	}
}

func getLE[T constraints.Integer](b []byte, size uint32) T {
	var u uint64
	for i := uint32(0); i < size; i++ {
		u |= uint64(b[i]) << (8 * i)
	}
	return T(u)
}

func SizeOf(rec Record) process.ProcessMemorySize {
	return process.ProcessMemorySize(rec.Layout().Size)
}

func checkRecord(rec Record) (*Layout, []any, error) {
	if rec == nil {
		return nil, nil, fmt.Errorf("%w: nil record", ErrLayout)
	}
	layout := rec.Layout()
	if err := layout.Validate(); err != nil {
		return nil, nil, err
	}
	ptrs := rec.Fields()
	if len(ptrs) != len(layout.Fields) {
		return nil, nil, fmt.Errorf("%w: %s declares %d fields but exposes %d", ErrLayout, layout.Name, len(layout.Fields), len(ptrs))
	}
	return layout, ptrs, nil
}

func mismatch(layout *Layout, f Field, ptr any) error {
	return fmt.Errorf("%w: %s.%s is %s but bound to %T", ErrLayout, layout.Name, f.Name, f.Kind, ptr)
}

// Encode renders rec into its little-endian byte image. Bytes not covered by
// a field are zero.
func Encode(rec Record) ([]byte, error) {
	layout, ptrs, err := checkRecord(rec)
	if err != nil {
		return nil, err
	}

	out := make([]byte, layout.Size)
	for i, f := range layout.Fields {
		b := out[f.Offset:f.End()]
		size := f.Kind.Size()

		switch p := ptrs[i].(type) {
		case *uint8:
			if f.Kind != Uint8 {
				return nil, mismatch(layout, f, p)
			}
			putLE(b, size, *p)
		case *uint16:
			if f.Kind != Uint16 {
				return nil, mismatch(layout, f, p)
			}
			putLE(b, size, *p)
		case *uint32:
			if f.Kind != Uint32 && f.Kind != Pointer32 {
				return nil, mismatch(layout, f, p)
			}
			putLE(b, size, *p)
		case *int32:
			if f.Kind != Int32 {
				return nil, mismatch(layout, f, p)
			}
			putLE(b, size, *p)
		case *uint64:
			if f.Kind != Uint64 {
				return nil, mismatch(layout, f, p)
			}
			putLE(b, size, *p)
		case *process.ProcessMemoryAddress:
			if f.Kind != Pointer32 {
				return nil, mismatch(layout, f, p)
			}
			if *p > maxPointer32 {
				return nil, fmt.Errorf("%w: %s.%s = %s", ErrPointerWidth, layout.Name, f.Name, p.ToString())
			}
			putLE(b, size, uint64(*p))
		default:
			return nil, mismatch(layout, f, p)
		}
	}
	return out, nil
}

// Decode fills rec from data, which must hold at least the layout size.
func Decode(data []byte, rec Record) error {
	layout, ptrs, err := checkRecord(rec)
	if err != nil {
		return err
	}
	if uint32(len(data)) < layout.Size {
		return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrLayout, layout.Name, layout.Size, len(data))
	}

	for i, f := range layout.Fields {
		b := data[f.Offset:f.End()]
		size := f.Kind.Size()

		switch p := ptrs[i].(type) {
		case *uint8:
			if f.Kind != Uint8 {
				return mismatch(layout, f, p)
			}
			*p = getLE[uint8](b, size)
		case *uint16:
			if f.Kind != Uint16 {
				return mismatch(layout, f, p)
			}
			*p = getLE[uint16](b, size)
		case *uint32:
			if f.Kind != Uint32 && f.Kind != Pointer32 {
				return mismatch(layout, f, p)
			}
			*p = getLE[uint32](b, size)
		case *int32:
			if f.Kind != Int32 {
				return mismatch(layout, f, p)
			}
			*p = getLE[int32](b, size)
		case *uint64:
			if f.Kind != Uint64 {
				return mismatch(layout, f, p)
			}
			*p = getLE[uint64](b, size)
		case *process.ProcessMemoryAddress:
			if f.Kind != Pointer32 {
				return mismatch(layout, f, p)
			}
			*p = getLE[process.ProcessMemoryAddress](b, size)
		default:
			return mismatch(layout, f, p)
		}
	}
	return nil
}
