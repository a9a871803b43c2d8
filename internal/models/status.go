package models

// Status is the shared lifecycle state of a tracked account or media.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusError    Status = "error"
	StatusDeleted  Status = "deleted"
)

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusError, StatusDeleted:
		return true
	}
	return false
}

// TriggerStatus is the run-state machine of a trigger. A trigger is
// either idle or actively running; SUCCESS and FAILED describe the
// last finished run and fold back to IDLE for guard purposes.
type TriggerStatus string

const (
	TriggerIdle    TriggerStatus = "idle"
	TriggerRunning TriggerStatus = "running"
	TriggerSuccess TriggerStatus = "success"
	TriggerFailed  TriggerStatus = "failed"
)
