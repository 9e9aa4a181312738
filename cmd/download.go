package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/models"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/output"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/samplecsv"
)

type downloadFlagValues struct {
	all       bool
	dir       string
	overwrite bool
	verify    bool
}

var downloadFlags downloadFlagValues

var downloadCmd = &cobra.Command{
	Use:   "download [dataset-id...]",
	Short: "Download sample files",
	Long:  `Download the sample CSV of the given datasets, or of every active dataset with --all.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && !downloadFlags.all {
			return fmt.Errorf("pass dataset ids or --all")
		}
		if len(args) > 0 && downloadFlags.all {
			return fmt.Errorf("dataset ids and --all are mutually exclusive")
		}
		dir := strings.TrimSpace(downloadFlags.dir)
		if dir == "" {
			return fmt.Errorf("--dir is required")
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
		if view.LoadErr != nil {
			return fmt.Errorf("load catalog: %w", view.LoadErr)
		}
		records, err := selectRecords(view.Records, args, true)
		if err != nil {
			return err
		}

		names := models.SampleFileNames(records)
		available, missing := splitByAvailability(names, a.resolver.CheckAll(ctx, names))
		files, err := a.resolver.DownloadAll(ctx, available, dir, downloadFlags.overwrite)
		if err != nil {
			return err
		}
		if downloadFlags.verify {
			for _, f := range files {
				if err := verifySample(f); err != nil {
					return err
				}
			}
		}

		rendered, err := a.formatter.FormatDownloads(output.DownloadResult{Files: files, Missing: missing})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), rendered); err != nil {
			return err
		}
		// --all reports unavailable samples; requested ids must all exist.
		if len(missing) > 0 && len(args) > 0 {
			return fmt.Errorf("sample files not available: %s", strings.Join(missing, ", "))
		}
		return nil
	},
}

// splitByAvailability keeps the first occurrence of each name, in order.
func splitByAvailability(names []string, status models.FileExistenceStatus) (available, missing []string) {
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		if status.Available(name) {
			available = append(available, name)
		} else {
			missing = append(missing, name)
		}
	}
	return available, missing
}

func verifySample(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open sample failed: %w", err)
	}
	defer f.Close()
	if _, err := samplecsv.Parse(f); err != nil {
		return fmt.Errorf("verify %s: %w", path, err)
	}
	return nil
}

func init() {
	downloadCmd.Flags().BoolVar(&downloadFlags.all, "all", false, "Download the samples of all active datasets")
	downloadCmd.Flags().StringVar(&downloadFlags.dir, "dir", ".", "Output directory")
	downloadCmd.Flags().BoolVar(&downloadFlags.overwrite, "overwrite", false, "Overwrite existing files")
	downloadCmd.Flags().BoolVar(&downloadFlags.verify, "verify", false, "Check downloaded files against the sample CSV format")

	rootCmd.AddCommand(downloadCmd)
}
