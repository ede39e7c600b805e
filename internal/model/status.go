package model

// ReaperState represents the current phase of the retention reaper loop
type ReaperState string

const (
	// ReaperStateSleeping means the reaper waits for the next interval
	ReaperStateSleeping ReaperState = "Sleeping"

	// ReaperStateScanning means the reaper is enumerating the download directory
	ReaperStateScanning ReaperState = "Scanning"

	// ReaperStateEvaluating means the reaper is checking a single file's age
	ReaperStateEvaluating ReaperState = "Evaluating"

	// ReaperStateDeleting means an expired file is being removed
	ReaperStateDeleting ReaperState = "Deleting"

	// ReaperStateSkipping means a file was found younger than the max age
	ReaperStateSkipping ReaperState = "Skipping"

	// ReaperStateStopped means the loop was cancelled
	ReaperStateStopped ReaperState = "Stopped"
)

// String returns the string representation of ReaperState
func (rs ReaperState) String() string {
	return string(rs)
}

// IsActive returns true while a scan cycle is in progress
func (rs ReaperState) IsActive() bool {
	return rs == ReaperStateScanning || rs == ReaperStateEvaluating ||
		rs == ReaperStateDeleting || rs == ReaperStateSkipping
}

// IsFinished returns true once the loop has stopped for good
func (rs ReaperState) IsFinished() bool {
	return rs == ReaperStateStopped
}
