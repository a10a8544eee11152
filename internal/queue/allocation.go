// Package queue resolves virtual queue specifications against the node
// catalog into concrete resource allocations for job submission.
package queue

import (
	"fmt"

	"github.com/jbloino/gxxtools/internal/hpc"
)

// Extras keys carried alongside the allocation for scheduler directives.
const (
	ExtraQueueName = "qname"    // user-facing queue name
	ExtraQueueBase = "qbase"    // queue's raw scheduler name
	ExtraHost      = "host"     // specific node, when one was selected
	ExtraGroup     = "group"    // accounting group
	ExtraDiskMem   = "diskmem"  // scratch space request, central clusters
	ExtraWalltime  = "walltime" // resolved walltime
)

// CPUAllocation is the resolved processing-unit request. Base is the
// concrete count to request; Soft and Hard mirror the family caps, with
// Hard defaulted to the available capacity.
type CPUAllocation struct {
	Soft *int
	Hard int
	Base int
}

// MemAllocation is the resolved memory request, in bytes, after the safety
// factor has been applied to the family caps.
type MemAllocation struct {
	Soft *int64
	Hard int64
	Base int64
}

// Allocation is the resolver output consumed by the job script composer.
// It is built fresh per submission request and never persisted.
type Allocation struct {
	Queue  string // user-facing queue name ("" on single-entry clusters)
	Family *hpc.NodeFamily

	CPU CPUAllocation
	Mem MemAllocation

	// Extras holds scheduler-specific side-channel directives.
	Extras map[string]string

	// ScratchPath is the resolved temporary directory. Values beginning
	// with "$" are shell variables resolved at job runtime and carry no
	// job-unique suffix.
	ScratchPath string

	// Advisories are non-fatal conditions the caller should report.
	Advisories []string
}

// Request carries the per-submission inputs of a resolution.
type Request struct {
	// Spec is the virtual queue specification, queue[:cpuSpec[:nodeId]].
	// Empty on clusters with a single merged queueing entry.
	Spec string

	NodeID   *int   // node selected through an option, outside the spec
	Group    string // accounting group choice
	Walltime string // explicit walltime request

	TmpSpace string // scratch space request, central clusters only
	TmpDir   string // scratch directory override, may hold {username}

	JobID string // job-unique token for the scratch subdirectory
	User  string

	// CountLogical enables logical-core counting. Operator policy, not a
	// user choice; physical-only counting is the default.
	CountLogical bool

	// Central marks centrally dispatched clusters, which carry a scratch
	// space request instead of named queues.
	Central bool

	Policy *hpc.WalltimePolicy
}

func (a *Allocation) addAdvisory(format string, args ...interface{}) {
	a.Advisories = append(a.Advisories, fmt.Sprintf(format, args...))
}
