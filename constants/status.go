package constants

// RunStatus is the canonical status for rows in plate_runs.
type RunStatus string

// Stable values (store these exact strings in DB).
const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusDone      RunStatus = "DONE"
	RunStatusNoPlates  RunStatus = "NO_PLATES"  // image decoded, nothing recognized
	RunStatusLoadError RunStatus = "LOAD_ERROR" // missing or undecodable image
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusSkipped   RunStatus = "SKIPPED" // same content already processed
)

// Terminal reports whether no further transition is expected.
func (s RunStatus) Terminal() bool {
	return s != RunStatusRunning
}
