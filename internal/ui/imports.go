package ui

import "github.com/bamsammich/isnapshot/internal/event"

// Event is the walker event consumed by presenters.
type Event = event.Event

// Re-export event types for convenience.
const (
	SnapshotStarted = event.SnapshotStarted
	DirCreated      = event.DirCreated
	FileCopied      = event.FileCopied
	FileLinked      = event.FileLinked
	SymlinkCreated  = event.SymlinkCreated
	SpecialCreated  = event.SpecialCreated
	EntryExcluded   = event.EntryExcluded
	EntryFailed     = event.EntryFailed
	VerifyStarted   = event.VerifyStarted
	VerifyOK        = event.VerifyOK
	VerifyFailed    = event.VerifyFailed
)
