// Package errs names the error taxonomy used throughout the file system.
// Internal layers return one of these sentinels, wrapped with context via
// fmt.Errorf("%w: ...", ...); callers test with errors.Is.
package errs

import "fmt"

var (
	// ErrNoSpace means the free bitmap cannot satisfy an allocation.
	ErrNoSpace = fmt.Errorf("no space left on device")
	// ErrNotFound means path resolution failed to find a component.
	ErrNotFound = fmt.Errorf("not found")
	// ErrExists means create/mkdir found the name already present in the parent.
	ErrExists = fmt.Errorf("already exists")
	// ErrPathTooLong means the path's byte length reached PathNameMaxLen,
	// or one of its components is longer than FileNameMaxLen.
	ErrPathTooLong = fmt.Errorf("path too long")
	// ErrDirFull means the parent directory has no free entry slot.
	ErrDirFull = fmt.Errorf("directory full")
	// ErrTooLarge means the requested file size exceeds MaxSize[LevelLimit-1].
	ErrTooLarge = fmt.Errorf("file too large")
	// ErrBadHandle means an open-file id was out of range or unused.
	ErrBadHandle = fmt.Errorf("bad file handle")
	// ErrTooManyOpen means the open-file table has no free slot.
	ErrTooManyOpen = fmt.Errorf("too many open files")
	// ErrInvalidPath means a path is malformed (empty component, not rooted).
	ErrInvalidPath = fmt.Errorf("invalid path")
)
