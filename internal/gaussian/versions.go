// Package gaussian knows the Gaussian installations of a cluster: the
// version catalog, working trees layered on top of installed versions, and
// the rewriting of input files at submission time.
package gaussian

import (
	"errors"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/ini.v1"
)

// versionKeyRe recognizes installed-version sections, gXX[.]ABB[p/+] with
// "dv" accepted as the development line.
var versionKeyRe = regexp.MustCompile(`(?i)^g(dv|\d{2})\.?\w\d{2}[p+]?`)

// archComponentRe strips the {arch} path component when deriving the base
// directory of a working tree.
var archComponentRe = regexp.MustCompile(`/?\{arch\}`)

// aliasLen is the number of leading characters forming a version alias
// ("g16" for "g16c01").
const aliasLen = 3

// Version describes one installed Gaussian version.
type Version struct {
	Key     string // normalized id, e.g. "g16c01"
	Section string // catalog section as written
	Name    string
	Date    string
	GDir    string // final directory and executable name, e.g. "g16"

	// Path is the installation path template, possibly holding an {arch}
	// placeholder. Mutually exclusive with Module.
	Path   string
	Module string

	Machs    []string // supported machine directories; nil means any
	Pub      []string // allowed users; nil means public
	Workings []string // supported working tags
}

// AllowedFor reports whether user may run this version.
func (v *Version) AllowedFor(user string) bool {
	return v.Pub == nil || containsString(v.Pub, user)
}

// DocEntry is a documentation or changelog location with the formats it is
// available in.
type DocEntry struct {
	Path    string
	Formats []string
}

// Working describes a site-local working tree layered on an installed
// version.
type Working struct {
	Key     string // tag+rev for gdv, tag+gxx+rev otherwise
	Section string
	Ref     string // key of the base Version

	Name     string
	Revision string
	Date     string

	Path     string // path template, possibly holding {arch}
	BasePath string // Path with the {arch} component removed

	Machs []string
	Pub   []string

	Author string
	Mail   string

	Changelog []DocEntry
	Docs      map[string][]DocEntry
}

// AllowedFor reports whether user may run this working tree.
func (w *Working) AllowedFor(user string) bool {
	return w.Pub == nil || containsString(w.Pub, user)
}

// workAuthor is the contact information attached to a working tag.
type workAuthor struct {
	Name string
	Mail string
}

// workDefaults carries the working-tree reference data from the catalog's
// default section.
type workDefaults struct {
	Tags  []string
	Info  map[string]workAuthor
	Roots map[string]string
}

// Catalog is the parsed version catalog, read-only after load.
type Catalog struct {
	Versions map[string]*Version
	Workings map[string]*Working
	Aliases  map[string]string
	Default  string
}

// LoadCatalog reads one or more gxxversions.ini files; later files override
// earlier ones key by key. defaultVersion must name an installed version.
func LoadCatalog(defaultVersion string, path string, extra ...string) (*Catalog, error) {
	sources := make([]interface{}, len(extra))
	for i, p := range extra {
		sources[i] = p
	}
	file, err := ini.Load(path, sources...)
	if err != nil {
		return nil, err
	}
	return buildCatalog(file, defaultVersion)
}

// LoadCatalogData parses catalog content held in memory.
func LoadCatalogData(defaultVersion string, data []byte) (*Catalog, error) {
	file, err := ini.Load(data)
	if err != nil {
		return nil, err
	}
	return buildCatalog(file, defaultVersion)
}

func buildCatalog(file *ini.File, defaultVersion string) (*Catalog, error) {
	defaults, err := parseWorkDefaults(file.Section(ini.DefaultSection))
	if err != nil {
		return nil, err
	}

	cat := &Catalog{
		Versions: make(map[string]*Version),
		Workings: make(map[string]*Working),
		Aliases:  make(map[string]string),
		Default:  normalizeKey(defaultVersion),
	}

	names := make([]string, 0, len(file.Sections()))
	for _, sec := range file.Sections() {
		if sec.Name() != ini.DefaultSection {
			names = append(names, sec.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if !versionKeyRe.MatchString(name) {
			continue
		}
		v, err := parseVersion(file.Section(name))
		if err != nil {
			return nil, err
		}
		cat.Versions[v.Key] = v
		for _, tag := range v.Workings {
			if !containsString(defaults.Tags, tag) {
				defaults.Tags = append(defaults.Tags, tag)
			}
		}
	}

	if cat.Default != "" {
		if _, ok := cat.Versions[cat.Default]; !ok {
			return nil, &VersionCatalogError{Section: defaultVersion,
				Reason: "default version not present in catalog"}
		}
	}

	for _, name := range names {
		if versionKeyRe.MatchString(name) {
			continue
		}
		w, err := parseWorking(file.Section(name), cat.Versions, defaults)
		if err != nil {
			return nil, err
		}
		if w == nil {
			continue
		}
		cat.Workings[w.Key] = w
	}

	// Keyword aliases: the first characters of each version id; versions
	// later in sort order win, so the alias points at the newest revision.
	keys := make([]string, 0, len(cat.Versions))
	for key := range cat.Versions {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if len(key) >= aliasLen {
			cat.Aliases[key[:aliasLen]] = key
		}
	}

	return cat, nil
}

// normalizeKey folds a version section name into its catalog key:
// lowercase, dots removed, "+" treated as the patch marker.
func normalizeKey(section string) string {
	key := strings.ToLower(section)
	key = strings.ReplaceAll(key, ".", "")
	return strings.ReplaceAll(key, "+", "p")
}

func parseVersion(sec *ini.Section) (*Version, error) {
	name := sec.Name()
	v := &Version{
		Key:     normalizeKey(name),
		Section: name,
	}

	hasPathKeys := sec.HasKey("FullPath") || sec.HasKey("RootPath") || sec.HasKey("BaseDir")
	if sec.HasKey("ModuleName") && hasPathKeys {
		return nil, &AmbiguousInstallError{Section: name}
	}

	pathFmt := strings.ToLower(sec.Key("GxxPathFmt").MustString("{rootpath}/{basedir}/{arch}/{gxx}"))
	switch {
	case sec.HasKey("FullPath"):
		full := sec.Key("FullPath").String()
		if strings.Contains(pathFmt, "{fullpath}") {
			pathFmt = strings.ReplaceAll(pathFmt, "{fullpath}", full)
		} else if strings.Contains(pathFmt, "{rootpath}/{basedir}") {
			pathFmt = strings.ReplaceAll(pathFmt, "{rootpath}/{basedir}", full)
		}
		if strings.Contains(pathFmt, "{rootpath}") || strings.Contains(pathFmt, "{basedir}") {
			return nil, &VersionCatalogError{Section: name,
				Reason: "overspecification in installation root path"}
		}
		v.Path = pathFmt
	case sec.HasKey("ModuleName"):
		v.Module = sec.Key("ModuleName").String()
	default:
		if strings.Contains(pathFmt, "{rootpath}") {
			if !sec.HasKey("RootPath") {
				return nil, &VersionCatalogError{Section: name,
					Reason: "missing Gaussian root installation dir"}
			}
			pathFmt = strings.ReplaceAll(pathFmt, "{rootpath}", sec.Key("RootPath").String())
		}
		if strings.Contains(pathFmt, "{basedir}") {
			if !sec.HasKey("BaseDir") {
				return nil, &VersionCatalogError{Section: name,
					Reason: "missing BaseDir component"}
			}
			pathFmt = strings.ReplaceAll(pathFmt, "{basedir}", sec.Key("BaseDir").String())
		}
		v.Path = pathFmt
	}

	v.GDir = sec.Key("GDir").MustString(strings.ToLower(strings.SplitN(name, ".", 2)[0]))
	v.Path = strings.ReplaceAll(v.Path, "{gxx}", v.GDir)

	v.Machs = listOrNil(sec.Key("Machs").String())
	var err error
	if v.Name, err = displayName(sec); err != nil {
		return nil, err
	}
	v.Date = sec.Key("Date").String()
	v.Pub = shareList(sec.Key("Shared").String())
	if sec.HasKey("Workings") {
		v.Workings = splitTrim(sec.Key("Workings").String())
	}
	return v, nil
}

func parseWorking(sec *ini.Section, versions map[string]*Version, defaults *workDefaults) (*Working, error) {
	name := sec.Name()
	parts := strings.Split(strings.ReplaceAll(strings.ToLower(name), "+", "p"), ".")
	if len(parts) != 3 {
		// Not a working-tree section; ignored like any unrecognized section.
		return nil, nil
	}
	tag, gxx, rev := parts[0], parts[1], parts[2]

	displayed, err := displayName(sec)
	if err != nil {
		return nil, err
	}

	// Locate the base version, first by id, then by display name.
	refKey := ""
	if _, ok := versions[gxx+rev]; ok {
		refKey = gxx + rev
	} else {
		for key, v := range versions {
			if v.Name == displayed {
				refKey = key
				break
			}
		}
	}
	if refKey == "" {
		return nil, &VersionCatalogError{Section: name,
			Reason: "reference Gaussian version not found"}
	}

	key := tag + rev
	if gxx != "gdv" {
		// Production revisions can collide across versions, so the key
		// keeps the version part; gdv revisions are unique.
		key = tag + gxx + rev
	}

	w := &Working{
		Key:      key,
		Section:  name,
		Ref:      refKey,
		Name:     displayed,
		Revision: sec.Key("Version").String(),
		Date:     sec.Key("Date").String(),
	}

	pathFmt := strings.ToLower(sec.Key("WorkPathFmt").MustString("{workpath}/{basedir}/{arch}"))
	if sec.HasKey("FullPath") {
		full := sec.Key("FullPath").String()
		if strings.Contains(pathFmt, "{fullpath}") {
			pathFmt = strings.ReplaceAll(pathFmt, "{fullpath}", full)
		} else if strings.Contains(pathFmt, "{workpath}/{basedir}") {
			pathFmt = strings.ReplaceAll(pathFmt, "{workpath}/{basedir}", full)
		}
		if strings.Contains(pathFmt, "{workpath}") || strings.Contains(pathFmt, "{basedir}") {
			return nil, &VersionCatalogError{Section: name,
				Reason: "overspecification in working root path"}
		}
	} else {
		if strings.Contains(pathFmt, "{workpath}") {
			root := sec.Key("WorkPath").String()
			if root == "" {
				root = defaults.Roots[tag]
			}
			if root == "" {
				return nil, &VersionCatalogError{Section: name,
					Reason: "missing working root directory for tag " + tag}
			}
			pathFmt = strings.ReplaceAll(pathFmt, "{workpath}", root)
		}
		if strings.Contains(pathFmt, "{basedir}") {
			if !sec.HasKey("BaseDir") {
				return nil, &VersionCatalogError{Section: name,
					Reason: "missing BaseDir component"}
			}
			pathFmt = strings.ReplaceAll(pathFmt, "{basedir}", sec.Key("BaseDir").String())
		}
	}
	w.Path = pathFmt

	base := strings.TrimRight(pathFmt, "/")
	if strings.Contains(base, "{arch}") {
		base = archComponentRe.ReplaceAllString(base, "")
	}
	w.BasePath = base

	w.Machs = listOrNil(sec.Key("Machs").String())
	w.Pub = shareList(sec.Key("Shared").String())
	if author, ok := defaults.Info[tag]; ok {
		w.Author = author.Name
		w.Mail = author.Mail
	}

	if sec.HasKey("changelog") {
		entries, err := parseDocEntries(sec.Key("changelog").String(), w.BasePath)
		if err != nil {
			return nil, &VersionCatalogError{Section: name, Reason: err.Error()}
		}
		w.Changelog = entries
	}
	if sec.HasKey("docs") {
		w.Docs = make(map[string][]DocEntry)
		for _, line := range strings.Split(sec.Key("docs").String(), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			docType, paths, found := strings.Cut(line, ":")
			if !found {
				return nil, &VersionCatalogError{Section: name,
					Reason: "docs format should be DOCTYPE:path[:format][,[altpath]ext[:format]]"}
			}
			entries, err := parseDocEntries(paths, w.BasePath)
			if err != nil {
				return nil, &VersionCatalogError{Section: name, Reason: err.Error()}
			}
			w.Docs[docType] = entries
		}
	}

	return w, nil
}

// parseDocEntries reads a "path[:format]" comma list. Items written as a
// bare extension (".html") add an alternative format to the previous entry.
func parseDocEntries(raw, basePath string) ([]DocEntry, error) {
	var entries []DocEntry
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		path, format, found := strings.Cut(item, ":")
		path = strings.TrimSpace(path)
		if found {
			format = strings.TrimSpace(format)
		} else {
			format = strings.ToUpper(strings.TrimPrefix(filepath.Ext(path), "."))
			if format == "" {
				format = strings.ToUpper(strings.TrimPrefix(path, "."))
			}
		}
		if strings.HasPrefix(path, ".") && strings.Count(path, ".") == 1 {
			if len(entries) == 0 {
				return nil, errors.New("alternative format given before any main entry")
			}
			last := &entries[len(entries)-1]
			last.Formats = append(last.Formats, format)
			continue
		}
		path = strings.ReplaceAll(path, "{fullpath}", basePath)
		entries = append(entries, DocEntry{Path: path, Formats: []string{format}})
	}
	return entries, nil
}

func parseWorkDefaults(sec *ini.Section) (*workDefaults, error) {
	d := &workDefaults{
		Info:  map[string]workAuthor{"def": {Name: "System", Mail: "N/A"}},
		Roots: make(map[string]string),
	}
	if sec.HasKey("WorkInfo") {
		d.Info = make(map[string]workAuthor)
		for _, item := range strings.Split(sec.Key("WorkInfo").String(), ",") {
			fields := strings.SplitN(item, ":", 3)
			if len(fields) != 3 {
				return nil, &VersionCatalogError{Section: ini.DefaultSection,
					Reason: "WorkInfo format must contain 2 \":\""}
			}
			tag := strings.TrimSpace(fields[0])
			if tag == "" {
				tag = "def"
			}
			if _, ok := d.Info[tag]; ok {
				return nil, &VersionCatalogError{Section: ini.DefaultSection,
					Reason: "duplicate WorkInfo tag " + tag}
			}
			author := workAuthor{
				Name: strings.TrimSpace(fields[1]),
				Mail: strings.TrimSpace(fields[2]),
			}
			if author.Name == "" {
				author.Name = "System"
			}
			if author.Mail == "" {
				author.Mail = "N/A"
			}
			d.Info[tag] = author
			d.Tags = append(d.Tags, tag)
		}
	}
	if sec.HasKey("WorkPath") {
		for _, item := range strings.Split(sec.Key("WorkPath").String(), ",") {
			tag, path, found := strings.Cut(item, ":")
			if !found {
				return nil, &VersionCatalogError{Section: ini.DefaultSection,
					Reason: "WorkPath format must contain 1 \":\""}
			}
			tag = strings.TrimSpace(tag)
			if tag == "" {
				tag = "def"
			}
			if _, ok := d.Roots[tag]; ok {
				return nil, &VersionCatalogError{Section: ini.DefaultSection,
					Reason: "duplicate WorkPath tag " + tag}
			}
			d.Roots[tag] = strings.TrimSpace(path)
		}
	}
	return d, nil
}

func displayName(sec *ini.Section) (string, error) {
	if sec.HasKey("Name") {
		return sec.Key("Name").String(), nil
	}
	if !sec.HasKey("Gaussian") || !sec.HasKey("Revision") {
		return "", &VersionCatalogError{Section: sec.Name(),
			Reason: "Gaussian/Revision or Name must be provided"}
	}
	return sec.Key("Gaussian").String() + " Rev. " + sec.Key("Revision").String(), nil
}

func listOrNil(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return splitTrim(raw)
}

// shareList parses a Shared allow-list; "any" or "all" anywhere in the list
// makes the entry public (nil).
func shareList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	items := splitTrim(raw)
	for _, item := range items {
		switch strings.ToLower(item) {
		case "any", "all":
			return nil
		}
	}
	return items
}

func splitTrim(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func containsString(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}

