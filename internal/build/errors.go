package build

import (
	"errors"
	"fmt"
)

var (
	// ErrBadArchiveName indicates the archive argument matches none of
	// the recognized naming schemes.
	ErrBadArchiveName = errors.New("unrecognized structure for the archive name")

	// ErrArchiveNotFound indicates no matching archive in the repository.
	ErrArchiveNotFound = errors.New("unable to find the Gaussian archive file")

	// ErrAmbiguousArchive indicates several repository archives match.
	ErrAmbiguousArchive = errors.New("too many matching archives")

	// ErrUnknownMode indicates an unsupported build mode.
	ErrUnknownMode = errors.New("unrecognized build mode")

	// ErrUnknownCompiler indicates a compiler with no environment recipe.
	ErrUnknownCompiler = errors.New("unrecognized compiler")

	// ErrMissingInstall indicates the base Gaussian installation a
	// working tree builds on is absent.
	ErrMissingInstall = errors.New("gaussian installation directory does not exist")

	// ErrUnsupportedArchive indicates a compression format this tool
	// cannot read.
	ErrUnsupportedArchive = errors.New("unsupported type of archive")
)

// TreeError reports a failed filesystem operation while laying out an
// installation or working tree.
type TreeError struct {
	Op   string
	Path string
	Err  error
}

func (e *TreeError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err)
}

func (e *TreeError) Unwrap() error {
	return e.Err
}

func treeErr(op, path string, err error) *TreeError {
	return &TreeError{Op: op, Path: path, Err: err}
}
