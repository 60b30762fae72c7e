package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doc-harvest/harvest/internal/ui"
)

func init() {
	rootCmd.SetHelpFunc(colorHelpFunc)
}

// colorHelpFunc renders help with the same ANSI styling as the run output.
func colorHelpFunc(cmd *cobra.Command, _ []string) {
	out := os.Stdout

	fmt.Fprintf(out, "\n%s%s%s\n", ui.ColorBold+ui.ColorCyan, strings.ToUpper(cmd.Name()), ui.ColorReset)
	if cmd.Short != "" {
		fmt.Fprintf(out, "%s\n", cmd.Short)
	}
	if cmd.Long != "" && cmd.Long != cmd.Short {
		fmt.Fprintf(out, "\n%s\n", cmd.Long)
	}

	fmt.Fprintf(out, "\n%sUsage%s\n", ui.ColorBold+ui.ColorWhite, ui.ColorReset)
	if cmd.Runnable() {
		fmt.Fprintf(out, "  %s%s%s\n", ui.ColorCyan, cmd.UseLine(), ui.ColorReset)
	}
	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(out, "  %s%s%s %s<command>%s %s[flags]%s\n",
			ui.ColorCyan, cmd.CommandPath(), ui.ColorReset,
			ui.ColorYellow, ui.ColorReset,
			ui.ColorDim, ui.ColorReset)
	}

	if cmd.HasExample() {
		fmt.Fprintf(out, "\n%sExamples%s\n", ui.ColorBold+ui.ColorWhite, ui.ColorReset)
		for _, line := range strings.Split(cmd.Example, "\n") {
			trimmed := strings.TrimSpace(line)
			switch {
			case trimmed == "":
			case strings.HasPrefix(trimmed, "#"):
				fmt.Fprintf(out, "  %s%s%s\n", ui.ColorDim, trimmed, ui.ColorReset)
			default:
				fmt.Fprintf(out, "  %s$ %s%s\n", ui.ColorGreen, trimmed, ui.ColorReset)
			}
		}
	}

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(out, "\n%sCommands%s\n", ui.ColorBold+ui.ColorWhite, ui.ColorReset)
		for _, c := range cmd.Commands() {
			if !c.IsAvailableCommand() || c.Name() == "help" {
				continue
			}
			fmt.Fprintf(out, "  %s%-10s%s %s\n", ui.ColorCyan, c.Name(), ui.ColorReset, c.Short)
		}
	}

	if flags := cmd.Flags().FlagUsages(); flags != "" {
		fmt.Fprintf(out, "\n%sFlags%s\n%s", ui.ColorBold+ui.ColorWhite, ui.ColorReset, flags)
	}
	if inherited := cmd.InheritedFlags().FlagUsages(); inherited != "" {
		fmt.Fprintf(out, "\n%sGlobal Flags%s\n%s", ui.ColorBold+ui.ColorWhite, ui.ColorReset, inherited)
	}
	fmt.Fprintln(out)
}
