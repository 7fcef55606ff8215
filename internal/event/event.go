package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	SnapshotStarted Type = iota + 1
	DirCreated
	FileCopied
	FileLinked
	SymlinkCreated
	SpecialCreated
	EntryExcluded
	EntryFailed
	VerifyStarted
	VerifyOK
	VerifyFailed
)

var typeNames = [...]string{
	SnapshotStarted: "SnapshotStarted",
	DirCreated:      "DirCreated",
	FileCopied:      "FileCopied",
	FileLinked:      "FileLinked",
	SymlinkCreated:  "SymlinkCreated",
	SpecialCreated:  "SpecialCreated",
	EntryExcluded:   "EntryExcluded",
	EntryFailed:     "EntryFailed",
	VerifyStarted:   "VerifyStarted",
	VerifyOK:        "VerifyOK",
	VerifyFailed:    "VerifyFailed",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Event reports one step of a snapshot run.
type Event struct {
	Timestamp time.Time
	Error     error
	Type      Type
	Path      string // source path as walked
	Dest      string // path inside the new snapshot
	Target    string // link target for FileLinked and SymlinkCreated
	Size      int64
}
