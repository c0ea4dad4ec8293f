package ir

// Version constants for the IR schema and the reference engine.
const (
	// IRVersion is the stream graph schema version.
	IRVersion = "1"

	// EngineVersion is the reference engine version.
	EngineVersion = "0.1.0"
)
