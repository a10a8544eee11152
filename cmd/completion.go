package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// detectShell auto-detects the current shell from environment
func detectShell() string {
	shell := strings.ToLower(os.Getenv("SHELL"))

	if strings.Contains(shell, "fish") {
		return "fish"
	}
	if strings.Contains(shell, "zsh") {
		return "zsh"
	}
	if strings.Contains(shell, "tcsh") || strings.Contains(shell, "csh") {
		// cobra has no csh generator; bash completions work under
		// bashcompinit-style wrappers, which is the closest fit.
		return "bash"
	}
	return "bash"
}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish]",
	Short: "Generate shell completion script",
	Long: func() string {
		detected := detectShell()
		return `Generate shell completion script for gxxtools.

If no shell is specified, ` + detected + ` will be used (auto-detected from $SHELL).

To load completions:

Bash:
  $ source <(gxxtools completion bash)

  # To load completions for each session, execute once:
  $ gxxtools completion bash > /etc/bash_completion.d/gxxtools

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it.  You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ gxxtools completion zsh > "${fpath[1]}/_gxxtools"

Fish:
  $ gxxtools completion fish | source

  # To load completions for each session, execute once:
  $ gxxtools completion fish > ~/.config/fish/completions/gxxtools.fish
`
	}(),
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish"},
	Args:                  cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	Run: func(cmd *cobra.Command, args []string) {
		shell := detectShell()
		if len(args) > 0 {
			shell = args[0]
		}

		// Completion lists only the long spellings; the shorthands stay
		// usable but would double every entry in the menus.
		saved := stripShortFlagShorthands(cmd.Root())
		defer restoreShortFlagShorthands(cmd.Root(), saved)

		switch shell {
		case "bash":
			cmd.Root().GenBashCompletionV2(os.Stdout, true)
		case "zsh":
			cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			cmd.Root().GenFishCompletion(os.Stdout, true)
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

// stripShortFlagShorthands walks the command tree and clears the Shorthand
// field for any flag that has one, returning a map of saved values so they
// can be restored later.
func stripShortFlagShorthands(root *cobra.Command) map[string]string {
	saved := make(map[string]string)

	stripFlag := func(f *pflag.Flag) {
		if f.Shorthand != "" {
			saved[f.Name] = f.Shorthand
			f.Shorthand = ""
		}
	}

	var walk func(c *cobra.Command)
	walk = func(c *cobra.Command) {
		c.LocalFlags().VisitAll(stripFlag)
		c.PersistentFlags().VisitAll(stripFlag)
		c.InheritedFlags().VisitAll(stripFlag)

		for _, child := range c.Commands() {
			walk(child)
		}
	}
	walk(root)
	return saved
}

// restoreShortFlagShorthands restores previously-saved shorthand values.
func restoreShortFlagShorthands(root *cobra.Command, saved map[string]string) {
	restoreFlag := func(f *pflag.Flag) {
		if old, ok := saved[f.Name]; ok {
			f.Shorthand = old
		}
	}

	var walk func(c *cobra.Command)
	walk = func(c *cobra.Command) {
		c.LocalFlags().VisitAll(restoreFlag)
		c.PersistentFlags().VisitAll(restoreFlag)
		c.InheritedFlags().VisitAll(restoreFlag)

		for _, child := range c.Commands() {
			walk(child)
		}
	}
	walk(root)
}
