package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jbloino/gxxtools/internal/utils"
)

var queuesCmd = &cobra.Command{
	Use:          "queues",
	Aliases:      []string{"mach"},
	Short:        "Print technical information on the cluster nodes",
	SilenceUsage: true,
	RunE:         runQueues,
}

func init() {
	rootCmd.AddCommand(queuesCmd)
}

func runQueues(cmd *cobra.Command, args []string) error {
	st, err := loadSite()
	if err != nil {
		return err
	}

	fmt.Println(utils.StyleTitle("List of available HPC Nodes"))
	fmt.Println("---------------------------")
	fmt.Println()

	names := st.Nodes.FamilyNames()
	sort.Strings(names)
	for _, name := range names {
		family, _ := st.Nodes.Family(name)
		fmt.Println(family)
	}
	return nil
}
