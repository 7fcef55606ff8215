package engine

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed filesystem operation.
type ErrorKind int

const (
	KindIO          ErrorKind = iota + 1 // stat, open, read, write, readdir
	KindPermission                       // ownership or mode restoration
	KindExists                           // destination already present
	KindUnsupported                      // entry type outside the recognized set
)

func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindPermission:
		return "permission"
	case KindExists:
		return "exists"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

var (
	// ErrSnapshotExists is returned when the new snapshot directory is
	// already present under the backup root.
	ErrSnapshotExists = errors.New("snapshot already exists")
	// ErrUnsupportedType is returned for entries that are not a directory,
	// regular file, symlink, fifo, device or socket.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrSourceEscapes is returned for a source whose path would map
	// outside the snapshot root.
	ErrSourceEscapes = errors.New("source path escapes snapshot root")
	// ErrDestinationInSource is returned when the new snapshot would be
	// created inside one of the trees being backed up.
	ErrDestinationInSource = errors.New("destination is inside a source tree")
	// ErrNoSources is returned when Run is given nothing to back up.
	ErrNoSources = errors.New("no sources given")
)

// OpError records a failed operation on a single path.
type OpError struct {
	Err  error
	Op   string
	Path string
	Kind ErrorKind
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

func ioErr(op, path string, err error) error {
	return &OpError{Kind: KindIO, Op: op, Path: path, Err: err}
}

func permErr(op, path string, err error) error {
	return &OpError{Kind: KindPermission, Op: op, Path: path, Err: err}
}

// IsKind reports whether any OpError in err's chain, including errors
// combined with errors.Join, has the given kind.
func IsKind(err error, kind ErrorKind) bool {
	if op, ok := err.(*OpError); ok && op.Kind == kind { //nolint:errorlint // chain walked below
		return true
	}
	switch e := err.(type) { //nolint:errorlint // walking the tree by hand
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if IsKind(inner, kind) {
				return true
			}
		}
	case interface{ Unwrap() error }:
		return IsKind(e.Unwrap(), kind)
	}
	return false
}
