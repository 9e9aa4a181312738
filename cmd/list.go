package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/models"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/output"
)

type listFlagValues struct {
	region     string
	status     string
	checkFiles bool
}

var listFlags listFlagValues

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List datasets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := models.Filter{Region: strings.TrimSpace(listFlags.region)}
		if raw := strings.TrimSpace(listFlags.status); raw != "" {
			status := models.DatasetStatus(raw)
			if !status.Valid() {
				return fmt.Errorf("invalid --status: %q (supported: active|inactive|coming-soon)", raw)
			}
			filter.Status = status
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := commandContext(cmd)
		view, err := a.loadCatalog(ctx)
		if err != nil {
			return err
		}
		records := models.FilterRecords(view.Records, filter)

		var status models.FileExistenceStatus
		if listFlags.checkFiles {
			status = a.resolver.CheckAll(ctx, models.SampleFileNames(records))
		}

		rendered, err := a.formatter.FormatDatasets(output.Rows(records, status))
		if err != nil {
			return err
		}
		return finish(cmd, view, rendered)
	},
}

func init() {
	listCmd.Flags().StringVar(&listFlags.region, "region", "", "Only datasets in this region (case-insensitive)")
	listCmd.Flags().StringVar(&listFlags.status, "status", "", "Only datasets with this status: active|inactive|coming-soon")
	listCmd.Flags().BoolVar(&listFlags.checkFiles, "check-files", false, "Probe whether each sample file is available")

	rootCmd.AddCommand(listCmd)
}
