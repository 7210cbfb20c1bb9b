package ir

// Version constants for the option model and the bridge.
const (
	// OptionsVersion is the option model schema version.
	OptionsVersion = "1"

	// BridgeVersion is the vizbridge release version.
	BridgeVersion = "0.1.0"
)
