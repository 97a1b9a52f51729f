package constants

// RunStatus is the canonical status for rows in the run ledger.
type RunStatus string

// Stable values (store these exact strings in DB).
const (
	RunStatusRunning   RunStatus = "RUNNING"   // invocation in progress
	RunStatusSucceeded RunStatus = "SUCCEEDED" // report persisted
	RunStatusRejected  RunStatus = "REJECTED"  // input refused (4xx)
	RunStatusFailed    RunStatus = "FAILED"    // terminal failure (5xx)
)

// RunStatusForCode maps an invocation status code onto a ledger status.
func RunStatusForCode(code int) RunStatus {
	switch {
	case code >= 200 && code < 300:
		return RunStatusSucceeded
	case code >= 400 && code < 500:
		return RunStatusRejected
	default:
		return RunStatusFailed
	}
}
