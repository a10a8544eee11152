// Package hpc describes the compute-node inventory of a cluster: node
// families, their hardware capacity and administrative limits, and the
// scheduler queues attached to them.
package hpc

import (
	"fmt"
	"sort"
	"strings"
)

// IntLimits holds administrative caps on an integer resource.
// Soft is the default request level when the user gives no explicit value;
// Hard is the absolute ceiling. A nil pointer means "not set".
type IntLimits struct {
	Soft *int
	Hard *int
}

// ByteLimits holds administrative caps on a byte-counted resource.
type ByteLimits struct {
	Soft *int64
	Hard *int64
}

// NodeFamily describes a homogeneous pool of compute nodes sharing hardware
// specifications and a scheduler queue name.
type NodeFamily struct {
	Name      string // catalog key
	QueueName string // raw scheduler queue/partition base name

	NumCPUs     int // sockets per node
	CoresPerCPU int // physical cores per socket
	// LogicalCores is the total logical core count per node (>= physical).
	// Zero means no hyperthreading (logical == physical).
	LogicalCores int

	TotalMemory int64 // usable memory per node, in bytes

	CPULimits IntLimits
	MemLimits ByteLimits

	NodeCount int    // number of physical nodes in the family
	CPUArch   string // micro-architecture tag (e.g. "skylake")

	// Queues lists the user-facing queue names served by this family.
	// Empty means the family is addressed by its base QueueName only.
	Queues []string

	// UserGroups, when non-nil, restricts submission to the listed groups.
	UserGroups []string

	// TmpDirPath is the scratch directory template on this family's nodes.
	// May contain a "{username}" placeholder or start with "$" for a
	// runtime-resolved shell variable.
	TmpDirPath string
}

// PhysicalCores returns the total physical core count per node.
func (f *NodeFamily) PhysicalCores() int {
	return f.NumCPUs * f.CoresPerCPU
}

// NProcs returns the number of processing units per node. With countAll,
// logical cores are counted; otherwise only physical cores.
func (f *NodeFamily) NProcs(countAll bool) int {
	if countAll && f.LogicalCores > 0 {
		return f.LogicalCores
	}
	return f.PhysicalCores()
}

// CoreFactor returns the logical-to-physical scaling ratio to apply to
// per-core token counts. It is 1 unless logical counting is enabled and the
// family exposes more logical than physical cores.
func (f *NodeFamily) CoreFactor(countAll bool) float64 {
	return float64(f.NProcs(countAll)) / float64(f.NProcs(false))
}

// Len returns the number of nodes in the family.
func (f *NodeFamily) Len() int {
	return f.NodeCount
}

// QueueList returns the user-facing queue names of the family, falling back
// to the raw queue name when none are declared.
func (f *NodeFamily) QueueList() []string {
	if len(f.Queues) > 0 {
		return f.Queues
	}
	return []string{f.QueueName}
}

// String renders a human-readable technical summary, used by catalog queries.
func (f *NodeFamily) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n", f.Name)
	fmt.Fprintf(&b, "  queue:   %s (%d nodes)\n", f.QueueName, f.NodeCount)
	fmt.Fprintf(&b, "  cpu:     %d x %d cores (%s)", f.NumCPUs, f.CoresPerCPU, f.CPUArch)
	if f.LogicalCores > f.PhysicalCores() {
		fmt.Fprintf(&b, ", %d logical", f.LogicalCores)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "  memory:  %s\n", FormatStorage(f.TotalMemory, 0, "G"))
	if f.CPULimits.Soft != nil || f.CPULimits.Hard != nil {
		b.WriteString("  cpu limits:")
		if f.CPULimits.Soft != nil {
			fmt.Fprintf(&b, " soft=%d", *f.CPULimits.Soft)
		}
		if f.CPULimits.Hard != nil {
			fmt.Fprintf(&b, " hard=%d", *f.CPULimits.Hard)
		}
		b.WriteString("\n")
	}
	if len(f.UserGroups) > 0 {
		fmt.Fprintf(&b, "  groups:  %s\n", strings.Join(f.UserGroups, ", "))
	}
	return b.String()
}

// Catalog is the read-only inventory of node families, indexed by family
// name and by user-facing queue name. Built once at startup.
type Catalog struct {
	Families map[string]*NodeFamily

	queueIndex map[string]string // queue name -> family name
}

// NewCatalog indexes the given families by name and by queue name.
// Duplicate queue names across families are a configuration error.
func NewCatalog(families []*NodeFamily) (*Catalog, error) {
	c := &Catalog{
		Families:   make(map[string]*NodeFamily, len(families)),
		queueIndex: make(map[string]string),
	}
	for _, f := range families {
		if _, ok := c.Families[f.Name]; ok {
			return nil, &CatalogError{Section: f.Name, Reason: "duplicate node family"}
		}
		c.Families[f.Name] = f
		for _, q := range f.QueueList() {
			if prev, ok := c.queueIndex[q]; ok {
				return nil, &CatalogError{
					Section: f.Name,
					Key:     "Queues",
					Reason:  fmt.Sprintf("queue %q already served by family %q", q, prev),
				}
			}
			c.queueIndex[q] = f.Name
		}
	}
	return c, nil
}

// FamilyForQueue returns the node family serving the given user-facing
// queue name.
func (c *Catalog) FamilyForQueue(queue string) (*NodeFamily, bool) {
	name, ok := c.queueIndex[queue]
	if !ok {
		return nil, false
	}
	return c.Families[name], true
}

// Family returns the node family with the given catalog name, matched
// case-insensitively the way the original configuration lookups do.
func (c *Catalog) Family(name string) (*NodeFamily, bool) {
	if f, ok := c.Families[name]; ok {
		return f, true
	}
	for key, f := range c.Families {
		if strings.EqualFold(key, name) {
			return f, true
		}
	}
	return nil, false
}

// QueueNames returns all user-facing queue names, sorted.
func (c *Catalog) QueueNames() []string {
	names := make([]string, 0, len(c.queueIndex))
	for q := range c.queueIndex {
		names = append(names, q)
	}
	sort.Strings(names)
	return names
}

// FamilyNames returns all family names, sorted.
func (c *Catalog) FamilyNames() []string {
	names := make([]string, 0, len(c.Families))
	for n := range c.Families {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// GenericFamily returns the family used by clusters with a single merged
// queueing entry. The lookup tries the conventional names in order.
func (c *Catalog) GenericFamily() (*NodeFamily, bool) {
	for _, name := range []string{"basic", "base", "generic", "general"} {
		if f, ok := c.Family(name); ok {
			return f, true
		}
	}
	return nil, false
}
