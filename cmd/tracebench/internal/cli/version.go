package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"tracebench/internal/version"
)

// addVersionCommand adds the version command
func (app *App) addVersionCommand(rootCmd *cobra.Command) {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the version of tracebench with build information.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := version.ValidateVersion(); err != nil {
				return err
			}
			detailed, _ := cmd.Flags().GetBool("detailed")
			if detailed {
				fmt.Fprintln(app.Stdout, version.GetDetailedVersion())
			} else {
				fmt.Fprintln(app.Stdout, version.GetFormattedVersion())
			}
			return nil
		},
	}

	versionCmd.Flags().Bool("detailed", false, "Show detailed version information")
	rootCmd.AddCommand(versionCmd)
}
