package hpc

import (
	"strings"

	"gopkg.in/ini.v1"
)

// LoadCatalog reads a node catalog INI file. Every section describes one
// node family. Defects in the file abort the load immediately rather than
// surfacing later during job resolution.
func LoadCatalog(path string) (*Catalog, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	return buildCatalog(file)
}

// LoadCatalogData parses catalog content held in memory, used by tests and
// by remote-fetched catalogs.
func LoadCatalogData(data []byte) (*Catalog, error) {
	file, err := ini.Load(data)
	if err != nil {
		return nil, err
	}
	return buildCatalog(file)
}

func buildCatalog(file *ini.File) (*Catalog, error) {
	var families []*NodeFamily
	for _, sec := range file.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		f, err := parseFamily(sec)
		if err != nil {
			return nil, err
		}
		families = append(families, f)
	}
	if len(families) == 0 {
		return nil, &CatalogError{Section: "-", Reason: "no node families defined"}
	}
	return NewCatalog(families)
}

func parseFamily(sec *ini.Section) (*NodeFamily, error) {
	name := sec.Name()
	f := &NodeFamily{
		Name:        name,
		NumCPUs:     1,
		CoresPerCPU: 1,
		NodeCount:   1,
	}

	reqString := func(key string) (string, error) {
		if !sec.HasKey(key) {
			return "", &CatalogError{Section: name, Key: key, Reason: "missing required key"}
		}
		return sec.Key(key).String(), nil
	}
	optInt := func(key string, dst *int) error {
		if !sec.HasKey(key) {
			return nil
		}
		v, err := sec.Key(key).Int()
		if err != nil {
			return &CatalogError{Section: name, Key: key, Reason: "not an integer"}
		}
		if v <= 0 {
			return &CatalogError{Section: name, Key: key, Reason: "must be positive"}
		}
		*dst = v
		return nil
	}
	optBytes := func(key string, dst *int64) error {
		if !sec.HasKey(key) {
			return nil
		}
		v, err := ParseStorage(sec.Key(key).String())
		if err != nil {
			return &CatalogError{Section: name, Key: key, Reason: err.Error()}
		}
		*dst = v
		return nil
	}

	var err error
	if f.QueueName, err = reqString("QueueName"); err != nil {
		return nil, err
	}
	if err := optInt("NumCPUs", &f.NumCPUs); err != nil {
		return nil, err
	}
	if err := optInt("CoresPerCPU", &f.CoresPerCPU); err != nil {
		return nil, err
	}
	if err := optInt("LogicalCores", &f.LogicalCores); err != nil {
		return nil, err
	}
	if f.LogicalCores > 0 && f.LogicalCores < f.PhysicalCores() {
		return nil, &CatalogError{Section: name, Key: "LogicalCores",
			Reason: "fewer logical than physical cores"}
	}
	if err := optBytes("Memory", &f.TotalMemory); err != nil {
		return nil, err
	}
	if f.TotalMemory == 0 {
		return nil, &CatalogError{Section: name, Key: "Memory", Reason: "missing required key"}
	}
	if err := optInt("NodeCount", &f.NodeCount); err != nil {
		return nil, err
	}

	if sec.HasKey("SoftCPULimit") {
		v := 0
		if err := optInt("SoftCPULimit", &v); err != nil {
			return nil, err
		}
		f.CPULimits.Soft = &v
	}
	if sec.HasKey("HardCPULimit") {
		v := 0
		if err := optInt("HardCPULimit", &v); err != nil {
			return nil, err
		}
		f.CPULimits.Hard = &v
	}
	if sec.HasKey("SoftMemLimit") {
		var v int64
		if err := optBytes("SoftMemLimit", &v); err != nil {
			return nil, err
		}
		f.MemLimits.Soft = &v
	}
	if sec.HasKey("HardMemLimit") {
		var v int64
		if err := optBytes("HardMemLimit", &v); err != nil {
			return nil, err
		}
		f.MemLimits.Hard = &v
	}

	f.CPUArch = strings.ToLower(sec.Key("CPUArch").String())
	f.TmpDirPath = sec.Key("TmpDir").String()
	if sec.HasKey("Queues") {
		f.Queues = splitList(sec.Key("Queues").String())
	}
	if sec.HasKey("UserGroups") {
		f.UserGroups = splitList(sec.Key("UserGroups").String())
	}
	return f, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
