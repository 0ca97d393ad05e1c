package remote_call

import (
	"errors"
	"fmt"
	"time"

	"ippc/pe_export"
	"ippc/pod"
	"ippc/process"
)

// Caller calls exports of one image loaded in one target.
type Caller struct {
	proc    process.Process
	image   process.ProcessMemoryAddress
	timeout time.Duration
	opts    []Option
}

func NewCaller(p process.Process, image process.ProcessMemoryAddress, timeout time.Duration, opts ...Option) *Caller {
	return &Caller{
		proc:    p,
		image:   image,
		timeout: timeout,
		opts:    opts,
	}
}

func (c *Caller) Process() process.Process {
	return c.proc
}

// Resolve looks the export up again on every call.
func (c *Caller) Resolve(export string) (pe_export.ExportEntry, error) {
	if c.proc == nil {
		return pe_export.ExportEntry{}, process.ErrInvalidHandle
	}
	return pe_export.Resolve(c.proc, c.image, export)
}

// Call runs export with a raw argument word.
func (c *Caller) Call(export string, arg process.ProcessMemoryAddress, contract Contract) (Outcome, error) {
	entry, err := c.Resolve(export)
	if err != nil {
		return Outcome{}, err
	}

	result, err := Invoke(c.proc, entry.Address, arg, c.timeout, c.opts...)
	if err != nil {
		return Outcome{}, fmt.Errorf("%s: %w", export, err)
	}
	return contract.Interpret(result), nil
}

// CallWithRecord writes rec into the target and runs export with its address
// as the argument. owned lists further allocations rec points at, such as
// strings. All of them are freed once the thread has exited or was
// terminated. If the call is abandoned, by policy or because the thread
// could not be terminated, they stay allocated and are listed in the
// TimeoutError.
func (c *Caller) CallWithRecord(export string, rec pod.Record, contract Contract, owned ...process.RemoteAllocation) (Outcome, error) {
	entry, err := c.Resolve(export)
	if err != nil {
		return Outcome{}, c.release(err, owned)
	}

	arg, err := pod.WriteValue(c.proc, rec)
	if err != nil {
		return Outcome{}, c.release(err, owned)
	}
	owned = append([]process.RemoteAllocation{arg}, owned...)

	result, err := Invoke(c.proc, entry.Address, arg.Address, c.timeout, c.opts...)
	if err != nil {
		var te *TimeoutError
		if errors.As(err, &te) && te.Thread != nil {
			te.Retained = append(te.Retained, owned...)
			return Outcome{}, fmt.Errorf("%s: %w", export, err)
		}
		return Outcome{}, c.release(fmt.Errorf("%s: %w", export, err), owned)
	}

	if err := c.release(nil, owned); err != nil {
		return contract.Interpret(result), err
	}
	return contract.Interpret(result), nil
}

// release frees every allocation and joins any failure onto err.
func (c *Caller) release(err error, allocs []process.RemoteAllocation) error {
	for _, a := range allocs {
		if a.IsZero() {
			continue
		}
		if ferr := c.proc.FreeMemory(a.Address); ferr != nil {
			err = errors.Join(err, ferr)
		}
	}
	return err
}
