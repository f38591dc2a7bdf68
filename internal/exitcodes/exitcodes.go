package exitcodes

// Exit codes for dupe-sweep
// These codes form the contract with scripts that wrap the tool
const (
	Success      = 0 // Run completed (individual deletion failures included)
	InvalidUsage = 2 // Missing flag or configuration file invalid
	InvalidPath  = 3 // --directory is missing, not found, or not a directory
	RuntimeError = 4 // Runtime error during execution
)
