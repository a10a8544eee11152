package gaussian

// archFlags maps the processor architecture tags used in the node catalog
// to the machine directories Gaussian installations are built for. The
// naming convention follows the cluster-side tags.
var archFlags = map[string]string{
	"nehalem":     "intel64-nehalem",
	"westmere":    "intel64-nehalem",
	"sandybridge": "intel64-sandybridge",
	"ivybridge":   "intel64-sandybridge",
	"skylake":     "intel64-haswell",
	"cascadelake": "intel64-haswell",
	"bulldozer":   "amd64-istanbul",
	"naples":      "intel64-haswell",
	"rome":        "intel64-haswell",
	"milan":       "intel64-haswell",
	"zen1":        "intel64-haswell",
	"zen2":        "intel64-haswell",
	"zen3":        "intel64-haswell",
}

// ArchFlag returns the Gaussian machine directory for a node architecture
// tag.
func ArchFlag(cpuArch string) (string, bool) {
	flag, ok := archFlags[cpuArch]
	return flag, ok
}
