//go:build !windows

package main

import (
	"fmt"

	"ippc/process"
)

func attach(name string, pid process.ProcessID, module string) (process.Process, process.ModuleInfo, error) {
	return nil, process.ModuleInfo{}, fmt.Errorf("%w: remote threads need a Windows target", process.ErrNotSupported)
}
