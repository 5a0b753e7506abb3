package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ChrisMcGann/msanalyzer/pkg/calibration"
	"github.com/ChrisMcGann/msanalyzer/pkg/config"
	"github.com/ChrisMcGann/msanalyzer/pkg/correction"
	"github.com/ChrisMcGann/msanalyzer/pkg/experiment"
	"github.com/ChrisMcGann/msanalyzer/pkg/filter"
	"github.com/ChrisMcGann/msanalyzer/pkg/reader/table"
	"github.com/ChrisMcGann/msanalyzer/pkg/reader/template"
	"github.com/ChrisMcGann/msanalyzer/pkg/writer/csv"
	"github.com/ChrisMcGann/msanalyzer/pkg/writer/plot"
	"github.com/ChrisMcGann/msanalyzer/pkg/writer/sqlite"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Correct, fit and quantify an experiment",
	Long: `Ingest a data table and its template, correct labeled MIDs for natural
abundance, fit the standard curves and quantify every sample.

Examples:
  # Unlabeled run with the default configuration
  msanalyzer analyze --data data.csv --map map.csv --standards standards.csv --csv-dir results

  # Labeled run stored in a database with figures
  msanalyzer analyze -c labeled.yaml -d data.csv -m map.csv -s standards.csv --out runs.db --plots figures

  # Refit the standard curves with curated masks
  msanalyzer analyze -d data.csv -m map.csv -s standards.csv --masks masks.csv --use-mask --csv-dir results`,
	RunE: runAnalyze,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate experiment input files",
	Long: `Read the data table and template, pair the samples and resolve the ion
clusters without computing anything. Prints a summary of the experiment.`,
	RunE: runValidate,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	in, err := loadInput(cfg, logger)
	if err != nil {
		return err
	}

	exp, err := experiment.New(cmd.Context(), in)
	if err != nil {
		return fmt.Errorf("failed to analyze experiment: %w", err)
	}
	files, err := writeOutputs(cmd.Context(), exp.Results())
	if err != nil {
		return err
	}

	printSummary(cmd.OutOrStdout(), exp)
	for _, f := range files {
		fmt.Fprintf(cmd.OutOrStdout(), "Output: %s\n", f)
	}
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	in, err := loadInput(cfg, logger)
	if err != nil {
		return err
	}

	exp, err := experiment.Ingest(in)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	printSummary(cmd.OutOrStdout(), exp)
	fmt.Fprintln(cmd.OutOrStdout(), "Input is valid")
	return nil
}

// loadConfig reads the configuration file and applies the flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Lookup("method") != nil && flags.Changed("method") {
		m, err := correction.ParseMethod(method)
		if err != nil {
			return nil, err
		}
		cfg.Correction.Method = string(m)
	}
	if flags.Lookup("reference") != nil && flags.Changed("reference") {
		cfg.InternalReference = reference
	}
	if flags.Lookup("workers") != nil && flags.Changed("workers") {
		cfg.Correction.Workers = workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadInput reads every input file named on the command line.
func loadInput(cfg *config.Config, logger *zap.Logger) (experiment.Input, error) {
	enc := cfg.Input.Encoding
	in := experiment.Input{
		Params: experiment.ParamsFromConfig(cfg),
		Logger: logger,
	}
	in.Params.UseMask = useMask

	delta, err := cfg.Derivatization()
	if err != nil {
		return in, err
	}
	in.Derivatization = delta

	err = readFile(dataFile, func(r io.Reader) (err error) {
		in.Data, err = table.ReadAll(r, enc)
		return err
	})
	if err != nil {
		return in, err
	}
	err = readFile(mapFile, func(r io.Reader) (err error) {
		in.Map, err = template.ReadMap(r, enc)
		return err
	})
	if err != nil {
		return in, err
	}
	if standardsFile != "" {
		err = readFile(standardsFile, func(r io.Reader) (err error) {
			in.Standards, err = template.ReadStandards(r, enc)
			return err
		})
		if err != nil {
			return in, err
		}
	} else {
		in.Standards = []calibration.StandardSpec{}
	}
	if masksFile != "" {
		err = readFile(masksFile, func(r io.Reader) (err error) {
			in.Masks, err = template.ReadMasks(r, enc)
			return err
		})
		if err != nil {
			return in, err
		}
	} else if useMask {
		logger.Warn("--use-mask without --masks, fits use the default masks")
	}
	return in, nil
}

func readFile(path string, fn func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()
	if err := fn(f); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

// writeOutputs writes the results with every configured writer and returns
// the files written.
func writeOutputs(ctx context.Context, res *experiment.Results) ([]string, error) {
	var files []string

	if outputFile != "" {
		writer, err := sqlite.NewWriter(outputFile)
		if err != nil {
			return files, fmt.Errorf("failed to create output database: %w", err)
		}
		if _, err := writer.WriteResults(ctx, res, description); err != nil {
			writer.Close()
			return files, fmt.Errorf("failed to store results: %w", err)
		}
		if err := writer.Finalize(); err != nil {
			return files, fmt.Errorf("failed to finalize database: %w", err)
		}
		files = append(files, outputFile)
	}

	if csvDir != "" {
		writer, err := csv.NewWriter(csvDir)
		if err != nil {
			return files, err
		}
		written, err := writer.WriteResults(res)
		files = append(files, written...)
		if err != nil {
			return files, err
		}
	}

	if plotDir != "" {
		writer, err := plot.NewWriter(plotDir, plotFormat)
		if err != nil {
			return files, err
		}
		written, err := writer.WriteResults(res)
		files = append(files, written...)
		if err != nil {
			return files, err
		}
	}
	return files, nil
}

func printSummary(w io.Writer, exp *experiment.Experiment) {
	set := exp.Clusters()
	counts := map[filter.Kind]int{}
	for _, s := range exp.Samples() {
		counts[s.Kind]++
	}

	fmt.Fprintf(w, "Assay: %s\n", exp.Profile().Name())
	if set.Labeled {
		fmt.Fprintln(w, "Experiment: labeled")
	} else {
		fmt.Fprintln(w, "Experiment: not labeled")
	}
	fmt.Fprintf(w, "Samples: %d (standards %d, blanks %d)\n",
		counts[filter.Sample], counts[filter.Standard], counts[filter.Blank])
	fmt.Fprintf(w, "Clusters: %d\n", len(set.Clusters))
	for _, c := range set.Clusters {
		fmt.Fprintf(w, "  %s: %d ions\n", c.Name, len(c.Working()))
	}

	res := exp.Results()
	if res == nil {
		return
	}
	if len(res.Curves) > 0 {
		fmt.Fprintf(w, "Standard curves: %d\n", len(res.Curves))
	}
}
