package queue

import (
	"errors"
	"fmt"
)

// Resolution error kinds. Each failure mode is a distinct sentinel so
// callers can match with errors.Is and map kinds to exit codes; none is
// ever coerced into another.
var (
	// ErrMalformedSpec indicates a virtual queue spec with too many fields.
	ErrMalformedSpec = errors.New("malformed virtual queue specification")

	// ErrUnknownQueue indicates the queue name is not in the catalog.
	ErrUnknownQueue = errors.New("unsupported queue")

	// ErrInvalidCpuSpec indicates an unrecognized processing-unit token.
	ErrInvalidCpuSpec = errors.New("unsupported definition of processors")

	// ErrTooManyCores indicates a request above the node capacity.
	ErrTooManyCores = errors.New("too many processing units requested")

	// ErrHardLimitExceeded indicates a request above the administrative cap.
	ErrHardLimitExceeded = errors.New("number of processing units exceeds hard limit")

	// ErrNoLimit indicates no default core count can be derived.
	ErrNoLimit = errors.New("no limit on number of processors")

	// ErrNoMemoryLimit indicates no memory cap can be derived.
	ErrNoMemoryLimit = errors.New("no memory limit")

	// ErrInvalidNodeID indicates a node id outside [0, nodeCount) or not
	// parsable as an integer.
	ErrInvalidNodeID = errors.New("invalid node id")

	// ErrConflictingNodeSelection indicates the virtual queue spec and the
	// node option select different nodes.
	ErrConflictingNodeSelection = errors.New("different nodes selected through virtual queue and option")

	// ErrGroupNotAuthorized indicates the chosen group may not use the nodes.
	ErrGroupNotAuthorized = errors.New("chosen group not authorized to use this node")

	// ErrInvalidWalltimeFormat indicates a walltime not of the form H:MM:SS.
	ErrInvalidWalltimeFormat = errors.New("wrong format for the walltime")

	// ErrMissingWalltime indicates a required walltime could not be derived.
	ErrMissingWalltime = errors.New("missing walltime")

	// ErrInvalidStorageSize indicates an unparsable scratch space request.
	ErrInvalidStorageSize = errors.New("incorrect format for the storage space")

	// ErrNoScratchSpecification indicates no scratch directory is known for
	// the nodes and none was given.
	ErrNoScratchSpecification = errors.New("no local storage specification")
)

// ResolveError wraps a resolution failure with the request context needed
// to diagnose it without re-running.
type ResolveError struct {
	Queue  string // user-facing queue name, if known at failure time
	Detail string // offending value or limit violated
	Err    error  // sentinel kind
}

func (e *ResolveError) Error() string {
	switch {
	case e.Queue != "" && e.Detail != "":
		return fmt.Sprintf("queue %s: %v (%s)", e.Queue, e.Err, e.Detail)
	case e.Queue != "":
		return fmt.Sprintf("queue %s: %v", e.Queue, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%v (%s)", e.Err, e.Detail)
	}
	return e.Err.Error()
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

func newError(kind error, queue, format string, args ...interface{}) *ResolveError {
	return &ResolveError{
		Queue:  queue,
		Detail: fmt.Sprintf(format, args...),
		Err:    kind,
	}
}
