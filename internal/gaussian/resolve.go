package gaussian

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Binding says how a resolved version is made available on the compute
// node: through an environment module or through an installation root.
type Binding struct {
	Module string // module name, when the version is module-provided
	Root   string // installation root, when path-provided
}

// Spec is the execution setup handed to the job script composer.
type Spec struct {
	Exe         string   // Gaussian executable name, e.g. "g16"
	Binding     Binding
	EnvCommands []string // shell commands preparing the environment
	ExeDirFlag  string   // -exedir option when working trees are involved
	WorkPaths   []string // resolved working tree roots, in search order
}

// ResolveOptions carries the per-request context of a version resolution.
type ResolveOptions struct {
	User     string
	CPUArch  string   // node architecture tag from the catalog
	WorkDirs []string // extra user-supplied working tree directories

	// Permissive accepts tokens as filesystem paths without checking
	// they exist, for dry runs on machines without the installation.
	Permissive bool
}

// ResolveVersion turns a version token (catalog id, alias, working tag, or
// filesystem path) into the execution setup for the job script.
func (c *Catalog) ResolveVersion(token string, opts ResolveOptions) (*Spec, error) {
	if alias, ok := c.Aliases[token]; ok {
		token = alias
	}

	var (
		version *Version
		working *Working
		root    string
		exe     string
	)
	switch {
	case c.Workings[token] != nil:
		working = c.Workings[token]
		version = c.Versions[working.Ref]
	case c.Versions[token] != nil:
		version = c.Versions[token]
	default:
		info, err := os.Stat(token)
		if err != nil && !opts.Permissive {
			return nil, fmt.Errorf("%w: %q", ErrUnknownVersion, token)
		}
		if err == nil && !info.IsDir() {
			root = filepath.Dir(token)
			exe = filepath.Base(token)
		} else {
			root = token
		}
	}

	if version != nil && !version.AllowedFor(opts.User) {
		return nil, fmt.Errorf("%w: version %s, user %s", ErrAccessDenied,
			version.Key, opts.User)
	}
	if working != nil && !working.AllowedFor(opts.User) {
		return nil, fmt.Errorf("%w: working %s, user %s", ErrAccessDenied,
			working.Key, opts.User)
	}

	spec := &Spec{}
	if exe != "" {
		spec.Exe = exe
	} else if version != nil {
		spec.Exe = version.GDir
	} else if def, ok := c.Versions[c.Default]; ok {
		// Arbitrary installation root: assume the default version's
		// executable name.
		spec.Exe = def.GDir
	} else {
		spec.Exe = "g16"
	}

	if version != nil && version.Module != "" {
		spec.Binding.Module = version.Module
		spec.EnvCommands = append(spec.EnvCommands, "module add "+version.Module)
	} else {
		if version != nil {
			resolved, err := resolveInstallPath(version.Path, version.Machs, opts.CPUArch, version.Key)
			if err != nil {
				return nil, err
			}
			root = strings.ReplaceAll(resolved, "{gxx}", version.GDir)
			if strings.Contains(root, "{arch}") {
				return nil, fmt.Errorf("%w: %s", ErrUnresolvedPath, root)
			}
		}
		spec.Binding.Root = root
		exedir := strings.Join([]string{
			filepath.Join(root, "bsd"),
			filepath.Join(root, "local"),
			filepath.Join(root, "extras"),
			root,
		}, ":")
		spec.EnvCommands = append(spec.EnvCommands,
			fmt.Sprintf("export GAUSS_EXEDIR=\"%s\"", exedir),
			fmt.Sprintf("export GAUSS_ARCHDIR=\"%s\"", filepath.Join(root, "arch")),
			fmt.Sprintf("export PATH=\"%s:${PATH}\"", exedir),
			fmt.Sprintf("export LD_LIBRARY_PATH=\"%s:${LD_LIBRARY_PATH}\"", exedir),
		)
	}

	if working != nil {
		path, err := resolveInstallPath(working.Path, working.Machs, opts.CPUArch, working.Key)
		if err != nil {
			return nil, err
		}
		if strings.Contains(path, "{arch}") {
			return nil, fmt.Errorf("%w: %s", ErrUnresolvedPath, path)
		}
		spec.WorkPaths = append(spec.WorkPaths, path)
	}
	for _, dir := range opts.WorkDirs {
		if _, err := os.Stat(dir); err != nil && !opts.Permissive {
			return nil, fmt.Errorf("%w: %q", ErrMissingWorkDir, dir)
		}
		spec.WorkPaths = append(spec.WorkPaths, dir)
	}

	if len(spec.WorkPaths) > 0 {
		var b strings.Builder
		b.WriteString(" -exedir=")
		for _, w := range spec.WorkPaths {
			fmt.Fprintf(&b, "%s/l1:%s/exe-dir:", w, w)
		}
		b.WriteString("$GAUSS_EXEDIR")
		spec.ExeDirFlag = b.String()
	}

	return spec, nil
}

// resolveInstallPath substitutes the {arch} placeholder after checking the
// installation supports the node architecture. Entries with no Machs list
// run anywhere and keep their path untouched.
func resolveInstallPath(path string, machs []string, cpuArch, key string) (string, error) {
	if machs == nil {
		return path, nil
	}
	flag, ok := ArchFlag(cpuArch)
	if !ok {
		return "", fmt.Errorf("%w: unknown architecture tag %q", ErrUnsupportedArch, cpuArch)
	}
	if !containsString(machs, flag) {
		return "", fmt.Errorf("%w: %s not built for %s", ErrUnsupportedArch, key, flag)
	}
	return strings.ReplaceAll(path, "{arch}", flag), nil
}
