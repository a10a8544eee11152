package hpc

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// walltimeRe accepts scheduler walltime values of the form H...H:MM:SS.
var walltimeRe = regexp.MustCompile(`^\d+:\d\d:\d\d$`)

// ValidWalltime reports whether s is an acceptable walltime value.
func ValidWalltime(s string) bool {
	return walltimeRe.MatchString(s)
}

// WalltimePolicy controls how a job walltime is chosen when the user gives
// none. Required policies refuse to guess; otherwise Defaults maps queue
// suffix fragments to walltime values, with "" as the catch-all entry.
type WalltimePolicy struct {
	Required bool
	Defaults map[string]string
}

// ParseWalltimePolicy builds a policy from its configuration value.
// Accepted forms:
//
//	""            no walltime handling
//	"true"        the user must always give a walltime
//	"24:00:00"    fixed default for every queue
//	"short=6:00:00, long=96:00:00, =24:00:00"
//	              per-queue-suffix defaults with an optional catch-all
func ParseWalltimePolicy(raw string) (*WalltimePolicy, error) {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "", "false", "no":
		return nil, nil
	case "true", "yes":
		return &WalltimePolicy{Required: true}, nil
	}
	p := &WalltimePolicy{Defaults: make(map[string]string)}
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key, value, found := strings.Cut(item, "=")
		if !found {
			value, key = key, ""
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if !ValidWalltime(value) {
			return nil, fmt.Errorf("walltime policy: %w: %q", ErrInvalidWalltime, value)
		}
		if _, ok := p.Defaults[key]; ok {
			return nil, fmt.Errorf("walltime policy: duplicate entry for %q", key)
		}
		p.Defaults[key] = value
	}
	return p, nil
}

// Lookup resolves the default walltime for a queue suffix. Substring keys
// are tried longest first, the empty catch-all key last.
func (p *WalltimePolicy) Lookup(suffix string) (string, bool) {
	if p == nil || p.Required || len(p.Defaults) == 0 {
		return "", false
	}
	keys := make([]string, 0, len(p.Defaults))
	for k := range p.Defaults {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		if strings.Contains(suffix, k) {
			return p.Defaults[k], true
		}
	}
	if v, ok := p.Defaults[""]; ok {
		return v, true
	}
	return "", false
}
