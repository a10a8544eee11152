package queue

// CombineSerial merges per-job allocations for sub-jobs that run one after
// the other: the combined request is the maximum over CPUs and memory.
func CombineSerial(allocs ...*Allocation) *Allocation {
	return combine(allocs, func(acc, v int64) int64 {
		if v > acc {
			return v
		}
		return acc
	})
}

// CombineParallel merges per-job allocations for sub-jobs launched as
// concurrent background processes: CPUs and memory add up.
func CombineParallel(allocs ...*Allocation) *Allocation {
	return combine(allocs, func(acc, v int64) int64 {
		return acc + v
	})
}

func combine(allocs []*Allocation, merge func(acc, v int64) int64) *Allocation {
	if len(allocs) == 0 {
		return nil
	}
	out := *allocs[0]
	cpu := int64(allocs[0].CPU.Base)
	mem := allocs[0].Mem.Base
	for _, a := range allocs[1:] {
		cpu = merge(cpu, int64(a.CPU.Base))
		mem = merge(mem, a.Mem.Base)
	}
	out.CPU.Base = int(cpu)
	out.Mem.Base = mem
	return &out
}
