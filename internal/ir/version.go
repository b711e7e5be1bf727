package ir

// Version constants for the compiled output format.
const (
	// FormatVersion is bumped whenever the function-form shape of a compiled
	// tree changes in a way that invalidates stored fingerprints.
	FormatVersion = "1"

	// CompilerVersion is the event filter compiler version.
	CompilerVersion = "0.1.0"
)
