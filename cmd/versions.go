package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jbloino/gxxtools/internal/gaussian"
)

var versionsCmd = &cobra.Command{
	Use:          "versions",
	Short:        "Print the Gaussian versions and working trees installed on the cluster",
	SilenceUsage: true,
	RunE:         runVersions,
}

func init() {
	rootCmd.AddCommand(versionsCmd)
}

func runVersions(cmd *cobra.Command, args []string) error {
	st, err := loadSite()
	if err != nil {
		return err
	}
	cat := st.Versions

	for _, key := range mapKeys(cat.Versions) {
		v := cat.Versions[key]
		date := v.Date
		if date == "" {
			date = "N/A"
		}
		info := ""
		if key == cat.Default {
			info = " - default"
		}
		fmt.Printf("+ %-8s: %-22s (%s)%s\n", key, v.Name, date, info)
	}

	aliases := make([]string, 0, len(cat.Aliases))
	for alias := range cat.Aliases {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		fmt.Printf("+ %-8s: Alias for %q\n", alias, cat.Aliases[alias])
	}

	for _, key := range mapKeys(cat.Workings) {
		w := cat.Workings[key]
		date := w.Date
		if date == "" {
			date = "N/A"
		}
		author := w.Author
		if author == "" {
			author = "<Unknown>"
		}
		fmt.Printf("+ %-8s: Working by %s for %s (updated: %s)\n", key, author, w.Name, date)
		printDocs(w)
	}
	return nil
}

// printDocs lists the changelog and documentation locations of a working
// tree, with the doc types aligned on the colons.
func printDocs(w *gaussian.Working) {
	width := 0
	if len(w.Changelog) > 0 {
		width = len("CHANGELOG")
	}
	docTypes := make([]string, 0, len(w.Docs))
	for dtype := range w.Docs {
		docTypes = append(docTypes, dtype)
		if len(dtype) > width {
			width = len(dtype)
		}
	}
	sort.Strings(docTypes)
	if width == 0 {
		return
	}

	printEntries := func(dtype string, entries []gaussian.DocEntry) {
		for _, entry := range entries {
			extra := ""
			if len(entry.Formats) > 0 {
				extra = fmt.Sprintf(" (%s available)", strings.Join(entry.Formats, ", "))
			}
			fmt.Printf("    %-*s: %s%s\n", width, dtype, entry.Path, extra)
		}
	}
	printEntries("CHANGELOG", w.Changelog)
	for _, dtype := range docTypes {
		printEntries(dtype, w.Docs[dtype])
	}
}

// mapKeys returns the sorted keys of a catalog map.
func mapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
