package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/portsage/portsage/internal/version"
)

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE:  runVersion,
	}

	cmd.Flags().Bool("short", false, "Print the short version only")
	cmd.Flags().Bool("json", false, "Output JSON")

	return cmd
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := version.Current()

	if short, _ := cmd.Flags().GetBool("short"); short {
		fmt.Println(info.Short())
		return nil
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(info)
	}

	fmt.Println(info.String())
	return nil
}
