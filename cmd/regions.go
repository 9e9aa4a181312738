package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/models"
)

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List the regions covered by the catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		view, err := a.loadCatalog(commandContext(cmd))
		if err != nil {
			return err
		}
		rendered, err := a.formatter.FormatRegions(models.Regions(view.Records))
		if err != nil {
			return err
		}
		return finish(cmd, view, rendered)
	},
}

func init() {
	rootCmd.AddCommand(regionsCmd)
}
