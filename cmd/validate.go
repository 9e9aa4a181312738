package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	internalerrors "github.com/dhgavali-gis/get-postalcode-datacenter/internal/errors"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/loader"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/output"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/schema"
)

var validateCmd = &cobra.Command{
	Use:   "validate [collection-url-or-path]",
	Short: "Validate a collection document without loading it",
	Long:  `Validate a collection document and report collection errors, rejected datasets and warnings. Exits non-zero when the collection is unusable.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		location := a.cfg.CollectionURL
		if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
			location = strings.TrimSpace(args[0])
		}
		source, err := loader.NewSource(location, nil)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(commandContext(cmd), a.cfg.FetchTimeout)
		defer cancel()
		data, err := source.Fetch(ctx)
		if err != nil {
			return loader.Classify(err)
		}

		raw, err := schema.DecodeDocument(data)
		if err != nil {
			return internalerrors.New(internalerrors.ErrParse, "collection is not valid JSON", err)
		}

		report := output.ValidationReport{
			Source:     source.String(),
			Collection: schema.ValidateCollection(raw),
		}
		parts := schema.PartitionRecords(schema.Entries(raw))
		report.Valid = len(parts.Valid)
		report.Rejected = parts.Rejected
		report.Warnings = parts.Warnings

		rendered, err := a.formatter.FormatValidation(report)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), rendered); err != nil {
			return err
		}
		if !report.OK() {
			return fmt.Errorf("collection %s is not usable", source.String())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
