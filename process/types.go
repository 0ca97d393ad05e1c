package process

// ProcessID represents a unique identifier for a process
type ProcessID int

// ProcessInfo contains basic information about a process
type ProcessInfo struct {
	PID  ProcessID // Process ID
	PPID ProcessID // Parent Process ID, zero when the backend does not know it
	Name string    // Executable name
	Exe  string    // Path to the executable, if available
}

// ModuleInfo describes an image loaded into a process
type ModuleInfo struct {
	Name string               // Module file name, e.g. "ippp_example.exe"
	Path string               // Full path, if available
	Base ProcessMemoryAddress // Address the image was mapped at
	Size ProcessMemorySize    // Size of the mapped image
}
