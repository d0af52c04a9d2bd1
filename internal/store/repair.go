package store

import "fmt"

// RepairKind classifies a recovered record.
type RepairKind string

const (
	// RepairCorrupt: part of the record was lost; the valid prefix was kept.
	RepairCorrupt RepairKind = "corrupt"
	// RepairUnreadable: nothing was recoverable; the original was backed up
	// and a fresh record started.
	RepairUnreadable RepairKind = "unreadable"
)

// RepairError is a notice that a stored record was repaired on load. It is
// delivered to Options.OnRepair and never returned from Load or Append.
type RepairError struct {
	Kind       RepairKind
	ID         string
	Recovered  int
	BackupPath string
	Err        error
}

func (e *RepairError) Error() string {
	if e.Kind == RepairUnreadable {
		return fmt.Sprintf("conversation %s could not be read; the original was saved to %s", e.ID, e.BackupPath)
	}
	return fmt.Sprintf("conversation %s was damaged; recovered %d messages", e.ID, e.Recovered)
}

func (e *RepairError) Unwrap() error { return e.Err }
