package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/models"
)

var checkCmd = &cobra.Command{
	Use:   "check [dataset-id...]",
	Short: "Check which sample files are available",
	RunE: func(cmd *cobra.Command, args []string) error {
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
		records, err := selectRecords(view.Records, args, false)
		if err != nil {
			return err
		}

		status := a.resolver.CheckAll(ctx, models.SampleFileNames(records))
		rendered, err := a.formatter.FormatFileStatus(status)
		if err != nil {
			return err
		}
		return finish(cmd, view, rendered)
	},
}

// selectRecords picks records by id in argument order. With no ids it returns
// all records, or only the active ones when activeOnly is set.
func selectRecords(records []models.DatasetRecord, ids []string, activeOnly bool) ([]models.DatasetRecord, error) {
	if len(ids) == 0 {
		if !activeOnly {
			return records, nil
		}
		return models.FilterRecords(records, models.Filter{Status: models.DatasetStatusActive}), nil
	}
	out := make([]models.DatasetRecord, 0, len(ids))
	for _, id := range ids {
		rec, ok := models.FindByID(records, id)
		if !ok {
			return nil, fmt.Errorf("unknown dataset id %q", id)
		}
		out = append(out, rec)
	}
	return out, nil
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
