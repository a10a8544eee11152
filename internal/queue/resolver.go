package queue

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jbloino/gxxtools/internal/hpc"
)

// memSafetyFactor caps requests at 90% of the node memory. Gaussian manages
// its own memory well, but some is allocated statically outside %Mem.
const memSafetyFactor = 0.9

// scratchPrefix names the per-job subdirectory created under the scratch
// root.
const scratchPrefix = "gaurun"

// Resolve turns a virtual queue specification into a concrete resource
// allocation against the catalog. Clusters with a single merged queueing
// entry leave Spec empty and resolve against the generic node family; both
// paths otherwise share the same rules.
func Resolve(catalog *hpc.Catalog, req Request) (*Allocation, error) {
	spec, err := parseSpec(req.Spec)
	if err != nil {
		return nil, err
	}

	var family *hpc.NodeFamily
	if spec.queue == "" {
		f, ok := catalog.GenericFamily()
		if !ok {
			return nil, newError(ErrUnknownQueue, "", "cannot find the generic specifications")
		}
		family = f
	} else {
		f, ok := catalog.FamilyForQueue(spec.queue)
		if !ok {
			return nil, newError(ErrUnknownQueue, spec.queue, "known queues: %s",
				strings.Join(catalog.QueueNames(), ", "))
		}
		family = f
	}

	alloc := &Allocation{
		Queue:  spec.queue,
		Family: family,
		Extras: make(map[string]string),
	}
	if spec.queue != "" {
		alloc.Extras[ExtraQueueName] = spec.queue
	}
	alloc.Extras[ExtraQueueBase] = family.QueueName

	if err := resolveCPU(alloc, family, spec, req); err != nil {
		return nil, err
	}
	if err := resolveMemory(alloc, family); err != nil {
		return nil, err
	}
	if err := resolveNode(alloc, family, spec, req); err != nil {
		return nil, err
	}
	if err := resolveGroup(alloc, family, req); err != nil {
		return nil, err
	}
	if err := resolveWalltime(alloc, family, spec, req); err != nil {
		return nil, err
	}
	if req.Central {
		if _, err := hpc.ParseStorage(req.TmpSpace); err != nil {
			return nil, newError(ErrInvalidStorageSize, spec.queue, "%q", req.TmpSpace)
		}
		alloc.Extras[ExtraDiskMem] = req.TmpSpace
	}
	if err := resolveScratch(alloc, family, req); err != nil {
		return nil, err
	}
	return alloc, nil
}

// virtualSpec is the parsed form of queue[:cpuSpec[:nodeId]].
type virtualSpec struct {
	queue  string
	nprocs string // "" when absent
	nodeID string // "" when absent
}

// parseSpec splits the virtual queue specification. It performs no catalog
// lookup, so a malformed spec fails before any queue is touched.
func parseSpec(raw string) (virtualSpec, error) {
	if raw == "" {
		return virtualSpec{}, nil
	}
	fields := strings.Split(raw, ":")
	if len(fields) > 3 {
		return virtualSpec{}, newError(ErrMalformedSpec, "",
			"too many sections in %q", raw)
	}
	spec := virtualSpec{queue: fields[0]}
	if len(fields) > 1 {
		spec.nprocs = strings.TrimSpace(fields[1])
	}
	if len(fields) > 2 {
		spec.nodeID = strings.TrimSpace(fields[2])
	}
	return spec, nil
}

func resolveCPU(alloc *Allocation, family *hpc.NodeFamily, spec virtualSpec, req Request) error {
	avail := family.NProcs(req.CountLogical)
	factor := family.CoreFactor(req.CountLogical)

	var base int
	switch {
	case spec.nprocs == "":
		switch {
		case family.CPULimits.Soft != nil:
			base = *family.CPULimits.Soft
		case family.CPULimits.Hard != nil:
			base = *family.CPULimits.Hard
		default:
			return newError(ErrNoLimit, spec.queue, "family %s", family.Name)
		}
	case spec.nprocs == "H":
		// Half of the node's core count.
		base = int(float64(family.PhysicalCores())*factor) / 2
	case spec.nprocs == "S":
		// A single physical core.
		base = int(1 * factor)
	case spec.nprocs == "0":
		// Auto: the full machine.
		base = avail
	default:
		value, err := strconv.Atoi(spec.nprocs)
		if err != nil || value == 0 {
			return newError(ErrInvalidCpuSpec, spec.queue, "%q", spec.nprocs)
		}
		if value < 0 {
			// N full CPUs' worth of cores.
			base = -value * int(float64(family.CoresPerCPU)*factor)
		} else {
			base = value
		}
	}

	if base > avail {
		return newError(ErrTooManyCores, spec.queue, "requested %d, %d available", base, avail)
	}
	if family.CPULimits.Hard != nil && base > *family.CPULimits.Hard {
		return newError(ErrHardLimitExceeded, spec.queue, "requested %d, hard limit %d",
			base, *family.CPULimits.Hard)
	}
	if spec.nprocs != "" && family.CPULimits.Soft != nil && base > *family.CPULimits.Soft {
		alloc.addAdvisory("requested %d processing units, above the default of %d",
			base, *family.CPULimits.Soft)
	}

	alloc.CPU.Base = base
	alloc.CPU.Soft = family.CPULimits.Soft
	if family.CPULimits.Hard != nil {
		alloc.CPU.Hard = *family.CPULimits.Hard
	} else {
		alloc.CPU.Hard = avail
	}
	return nil
}

func resolveMemory(alloc *Allocation, family *hpc.NodeFamily) error {
	scale := func(v int64) int64 {
		return int64(math.Floor(float64(v) * memSafetyFactor))
	}
	if family.MemLimits.Soft != nil {
		soft := scale(*family.MemLimits.Soft)
		alloc.Mem.Soft = &soft
	}
	switch {
	case family.MemLimits.Hard != nil:
		alloc.Mem.Hard = scale(*family.MemLimits.Hard)
	case family.TotalMemory > 0:
		alloc.Mem.Hard = scale(family.TotalMemory)
	}
	switch {
	case alloc.Mem.Soft != nil:
		alloc.Mem.Base = *alloc.Mem.Soft
	case alloc.Mem.Hard > 0:
		alloc.Mem.Base = alloc.Mem.Hard
	default:
		return newError(ErrNoMemoryLimit, alloc.Queue, "family %s", family.Name)
	}
	return nil
}

func resolveNode(alloc *Allocation, family *hpc.NodeFamily, spec virtualSpec, req Request) error {
	var nodeID *int
	if spec.nodeID != "" {
		value, err := strconv.Atoi(spec.nodeID)
		if err != nil {
			return newError(ErrInvalidNodeID, spec.queue, "%q", spec.nodeID)
		}
		nodeID = &value
	}
	if req.NodeID != nil {
		if nodeID != nil && *nodeID != *req.NodeID {
			return newError(ErrConflictingNodeSelection, spec.queue,
				"%d in spec, %d from option", *nodeID, *req.NodeID)
		}
		nodeID = req.NodeID
	}
	if nodeID == nil {
		return nil
	}
	if *nodeID < 0 || *nodeID >= family.NodeCount {
		return newError(ErrInvalidNodeID, spec.queue, "%d not in [0, %d)",
			*nodeID, family.NodeCount)
	}
	width := len(strconv.Itoa(family.NodeCount - 1))
	alloc.Extras[ExtraHost] = fmt.Sprintf("%s%0*d", family.QueueName, width, *nodeID)
	return nil
}

func resolveGroup(alloc *Allocation, family *hpc.NodeFamily, req Request) error {
	if family.UserGroups == nil {
		return nil
	}
	group := req.Group
	if group != "" {
		if !contains(family.UserGroups, group) {
			return newError(ErrGroupNotAuthorized, alloc.Queue, "group %q, authorized: %s",
				group, strings.Join(family.UserGroups, ","))
		}
	} else {
		group = family.UserGroups[0]
		alloc.addAdvisory("these nodes are only accessible to members of: %s",
			strings.Join(family.UserGroups, ","))
		if len(family.UserGroups) > 1 {
			alloc.addAdvisory("multiple groups authorized, %q chosen", group)
		}
	}
	alloc.Extras[ExtraGroup] = group
	return nil
}

// resolveWalltime picks the job walltime when the cluster requires one.
// The default lookup matches policy keys as substrings of the queue suffix,
// which can collide when queue type names share characters; an explicit
// walltime always bypasses the lookup.
func resolveWalltime(alloc *Allocation, family *hpc.NodeFamily, spec virtualSpec, req Request) error {
	if req.Walltime != "" {
		if !hpc.ValidWalltime(req.Walltime) {
			return newError(ErrInvalidWalltimeFormat, spec.queue, "%q", req.Walltime)
		}
		alloc.Extras[ExtraWalltime] = req.Walltime
		return nil
	}
	if req.Policy == nil {
		return nil
	}
	suffix := strings.TrimPrefix(spec.queue, family.QueueName)
	wtime, ok := req.Policy.Lookup(suffix)
	if !ok {
		return newError(ErrMissingWalltime, spec.queue, "queue suffix %q", suffix)
	}
	alloc.Extras[ExtraWalltime] = wtime
	return nil
}

func resolveScratch(alloc *Allocation, family *hpc.NodeFamily, req Request) error {
	var path string
	switch {
	case req.TmpDir != "":
		path = strings.ReplaceAll(req.TmpDir, "{username}", req.User)
	case family.TmpDirPath != "":
		path = strings.ReplaceAll(family.TmpDirPath, "{username}", req.User)
	default:
		return newError(ErrNoScratchSpecification, alloc.Queue, "family %s", family.Name)
	}
	if !strings.HasPrefix(path, "$") {
		path += "/" + scratchPrefix + "-" + req.JobID
	}
	alloc.ScratchPath = path
	return nil
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}
