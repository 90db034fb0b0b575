package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"varexplorer/adapters/excel"
	"varexplorer/app"
	"varexplorer/domain/core"
	"varexplorer/domain/variant"
	"varexplorer/internal/charts"
	"varexplorer/internal/config"
	"varexplorer/internal/container"
)

// loader builds the dependency container for a command
type loader func() (*container.Container, error)

func loadContainer() (*container.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return container.New(cfg)
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using system environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(loadContainer).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(load loader) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "varexplorer-cli",
		Short:         "Fetch Ensembl variant annotations and render population charts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newRegionCmd(load),
		newAnnotateCmd(load),
		newPlotCmd(load),
	)
	return rootCmd
}

func newRegionCmd(load loader) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "region [preset|chrom:start-end]",
		Short: "List the variants overlapping a region",
		Long: `List the variants Ensembl reports overlapping a region.

The region is a preset name or coordinates. Without one the first preset is used.

Example: varexplorer-cli region 11:5227002-5229002`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := load()
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			region, err := resolveRegion(c.Presets, args)
			if err != nil {
				return err
			}
			variants, err := c.Source.RegionVariants(cmd.Context(), region)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, variants)
			}
			fmt.Fprintf(out, "%d variants in %s\n", len(variants), region.Label())
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "rsID\tType\tStart\tEnd\tConsequence")
			for _, v := range variants {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", v.RsID, v.VariantType, v.Start, v.End, v.Consequence)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newAnnotateCmd(load loader) *cobra.Command {
	var input string
	var populations []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "annotate [rsid...]",
		Short: "Annotate variants with clinical significance and allele frequencies",
		Long: `Annotate rsIDs through the Ensembl VEP endpoint.

Identifiers come from the arguments and from --input, a CSV or XLSX file whose
rsID column is detected by its header. Identifiers without data are skipped.

Example: varexplorer-cli annotate rs334 rs33930165 --populations SAS,AFR`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := collectRsIDs(args, input)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				return fmt.Errorf("%s", app.MsgNoRsIDs)
			}
			pops, err := parsePopulationFlag(populations)
			if err != nil {
				return err
			}

			c, err := load()
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			errOut := cmd.ErrOrStderr()
			batch, err := c.Source.Annotate(cmd.Context(), ids, func(done, total int, id variant.RsID) {
				fmt.Fprintf(errOut, "\r[%d/%d] %s", done, total, id)
				if done == total {
					fmt.Fprintln(errOut)
				}
			})
			if err != nil && batch == nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if jsonErr := writeJSON(out, batch); jsonErr != nil {
					return jsonErr
				}
			} else if werr := writeAnnotationTable(out, batch.Annotations, pops); werr != nil {
				return werr
			}
			for _, s := range batch.Skipped {
				fmt.Fprintf(errOut, "skipped %s: %s\n", s.RsID, s.Reason)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "CSV or XLSX file with an rsID column")
	cmd.Flags().StringSliceVar(&populations, "populations", defaultPopulationFlag(), "Populations to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newPlotCmd(load loader) *cobra.Command {
	var regionArg string
	var input string
	var populations []string
	var focus string
	var outDir string
	var xlsxPath string

	cmd := &cobra.Command{
		Use:   "plot [rsid...]",
		Short: "Run a full analysis and write the charts as PNG files",
		Long: `Run the dashboard analysis from the command line.

With rsIDs (arguments or --input) those identifiers are annotated; otherwise
the variants of --region are used, defaulting to the first preset.

Example: varexplorer-cli plot --region HBB --populations SAS,AFR,EUR --out plots --xlsx hbb.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := collectRsIDs(args, input)
			if err != nil {
				return err
			}
			pops, err := parsePopulationFlag(populations)
			if err != nil {
				return err
			}

			c, err := load()
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			req := app.AnalysisRequest{Populations: pops}
			if focus != "" {
				if req.Focus, err = variant.ParsePopulation(focus); err != nil {
					return err
				}
			}
			if len(ids) > 0 {
				req.Mode = app.ModeRsIDs
				req.RsIDs = ids
			} else {
				var regionArgs []string
				if regionArg != "" {
					regionArgs = []string{regionArg}
				}
				if req.Region, err = resolveRegion(c.Presets, regionArgs); err != nil {
					return err
				}
				req.Mode = app.ModeRegion
			}
			if err := req.Normalize(); err != nil {
				return err
			}

			errOut := cmd.ErrOrStderr()
			result, err := c.Service.Run(cmd.Context(), core.NewRunID(), req, func(fraction float64, message string) {
				fmt.Fprintf(errOut, "[%3.0f%%] %s\n", fraction*100, message)
			})
			if err != nil {
				return err
			}

			if outDir == "" {
				outDir = c.Config.Analysis.PlotsDir
			}
			paths, err := charts.WriteDir(outDir, result.Charts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range paths {
				fmt.Fprintf(out, "wrote %s\n", p)
			}
			if xlsxPath != "" {
				if err := result.Workbook().SaveAs(xlsxPath); err != nil {
					return err
				}
				fmt.Fprintf(out, "wrote %s\n", xlsxPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&regionArg, "region", "", "Preset name or chrom:start-end")
	cmd.Flags().StringVar(&input, "input", "", "CSV or XLSX file with an rsID column")
	cmd.Flags().StringSliceVar(&populations, "populations", defaultPopulationFlag(), "Populations to compare")
	cmd.Flags().StringVar(&focus, "focus", "", "Population for the top variants table (default SAS when selected)")
	cmd.Flags().StringVar(&outDir, "out", "", "Directory for chart images (default PLOTS_DIR)")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Also write the results to this XLSX file")
	return cmd
}

func resolveRegion(presets *config.PresetStore, args []string) (variant.Region, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		regions := presets.Regions()
		if len(regions) == 0 {
			return variant.Region{}, fmt.Errorf("no region given and no presets configured")
		}
		return regions[0], nil
	}
	return presets.ResolveRegion(args[0])
}

// collectRsIDs merges identifiers from arguments and an input file
func collectRsIDs(args []string, input string) ([]variant.RsID, error) {
	ids := variant.ParseRsIDList(strings.Join(args, " "))
	if input != "" {
		fromFile, err := excel.NewDataReader(input).ReadRsIDs()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", input, err)
		}
		ids = append(ids, fromFile...)
	}
	return variant.Dedupe(ids), nil
}

func defaultPopulationFlag() []string {
	values := make([]string, len(variant.DefaultPopulations))
	for i, p := range variant.DefaultPopulations {
		values[i] = string(p)
	}
	return values
}

func parsePopulationFlag(values []string) ([]variant.Population, error) {
	pops, err := variant.ParsePopulations(values)
	if err != nil {
		return nil, err
	}
	if len(pops) == 0 {
		return nil, fmt.Errorf("%s", app.MsgNoPopulations)
	}
	return pops, nil
}

func writeAnnotationTable(w io.Writer, anns []variant.Annotation, pops []variant.Population) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := []string{"rsID", "Gene", "Consequence", "Clinical Significance"}
	for _, p := range pops {
		header = append(header, string(p))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, a := range anns {
		row := []string{string(a.RsID), a.GeneSymbol, a.MostSevereConsequence, a.ClinicalSignificanceText()}
		for _, p := range pops {
			row = append(row, a.FrequencyText(p))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
