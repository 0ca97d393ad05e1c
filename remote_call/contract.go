package remote_call

import (
	"fmt"

	"ippc/process"
)

// Contract says how an export's 32-bit result is to be read.
type Contract int

const (
	// BooleanResult: zero is failure, anything else success.
	BooleanResult Contract = iota
	// PointerResult: zero means no result, anything else is an address in the target.
	PointerResult
	// ValueResult: the word itself, zero included.
	ValueResult
)

func (c Contract) String() string {
	switch c {
	case BooleanResult:
		return "boolean"
	case PointerResult:
		return "pointer"
	case ValueResult:
		return "value"
	}
	return fmt.Sprintf("contract(%d)", int(c))
}

// Outcome is a ThreadResult read through a Contract.
type Outcome struct {
	Contract Contract
	Raw      ThreadResult

	// OK is success for BooleanResult, a present pointer for PointerResult
	// and always true for ValueResult.
	OK bool

	Pointer process.ProcessMemoryAddress
	Value   uint32
}

func (c Contract) Interpret(r ThreadResult) Outcome {
	o := Outcome{Contract: c, Raw: r}
	switch c {
	case BooleanResult:
		o.OK = r != 0
	case PointerResult:
		o.OK = r != 0
		o.Pointer = process.ProcessMemoryAddress(r)
	default:
		o.OK = true
		o.Value = uint32(r)
	}
	return o
}

func (o Outcome) String() string {
	switch o.Contract {
	case BooleanResult:
		return fmt.Sprintf("%v", o.OK)
	case PointerResult:
		if !o.OK {
			return "null"
		}
		return o.Pointer.ToString()
	}
	return fmt.Sprintf("%d (0x%X)", o.Value, o.Value)
}
