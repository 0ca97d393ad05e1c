//go:build !linux && !windows

package main

import (
	"fmt"

	"ippc/process"
)

func openLive(name string, pid process.ProcessID, module string) (process.Target, process.ModuleInfo, error) {
	return nil, process.ModuleInfo{}, fmt.Errorf("%w: no live backend on this platform, use -dump", process.ErrNotSupported)
}
