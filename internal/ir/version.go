package ir

// Version constants for record schema and ledger.
const (
	// SchemaVersion is the record schema version.
	SchemaVersion = "1"

	// LedgerVersion is the task ledger version.
	LedgerVersion = "0.1.0"
)
