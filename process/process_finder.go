package process

// ProcessFinder locates processes so a handle can be opened on them
type ProcessFinder interface {
	// FindProcessByName finds processes by their name (exact match)
	FindProcessByName(name string) ([]ProcessInfo, error)
}

// ModuleFinder locates images loaded into a process
type ModuleFinder interface {
	// FindModule returns the loaded image with the given file name.
	// Matching is case-insensitive, the way the loader treats module names.
	FindModule(pid ProcessID, name string) (ModuleInfo, error)
}
