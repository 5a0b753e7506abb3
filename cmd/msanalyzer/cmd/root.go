// Package cmd provides CLI command implementations
package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	configFile string
	verbose    bool
	quiet      bool

	// Flags for analyze, validate and watch
	dataFile      string
	mapFile       string
	standardsFile string
	masksFile     string
	outputFile    string
	csvDir        string
	plotDir       string
	plotFormat    string
	description   string
	useMask       bool
	method        string
	reference     string
	workers       int

	// Flags for formula, matrix and correct
	derivatization string
	cholesterol    bool
	tracer         string
	purity         []float64
)

var rootCmd = &cobra.Command{
	Use:   "msanalyzer",
	Short: "msAnalyzer - isotope correction and quantification of MS experiments",
	Long: `msAnalyzer corrects mass isotopomer distributions for natural isotope
abundance and tracer impurity, and quantifies fatty acids and cholesterol
against standard curves.

Results are written to:
- a SQLite database (one run per analysis)
- CSV tables and a parameter log
- standard-curve figures (PDF, PNG or SVG)`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug messages")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Log errors only")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(formulaCmd)
	rootCmd.AddCommand(matrixCmd)
	rootCmd.AddCommand(correctCmd)
	rootCmd.AddCommand(watchCmd)

	for _, c := range []*cobra.Command{analyzeCmd, validateCmd, watchCmd} {
		c.Flags().StringVarP(&dataFile, "data", "d", "", "Data table CSV (required)")
		c.Flags().StringVarP(&mapFile, "map", "m", "", "Template sample map CSV (required)")
		c.Flags().StringVarP(&standardsFile, "standards", "s", "", "Template standards CSV")
		c.Flags().StringVar(&masksFile, "masks", "", "Curated standard-curve masks CSV")
		c.MarkFlagRequired("data")
		c.MarkFlagRequired("map")
	}
	for _, c := range []*cobra.Command{analyzeCmd, watchCmd} {
		c.Flags().StringVarP(&outputFile, "out", "o", "", "Output SQLite database")
		c.Flags().StringVar(&csvDir, "csv-dir", "", "Directory for CSV result tables")
		c.Flags().StringVar(&plotDir, "plots", "", "Directory for standard-curve figures")
		c.Flags().StringVar(&plotFormat, "plot-format", "pdf", "Figure format: pdf, png or svg")
		c.Flags().StringVar(&description, "description", "", "Run description stored with the results")
		c.Flags().BoolVar(&useMask, "use-mask", false, "Fit standard curves with the curated masks")
		c.Flags().StringVar(&method, "method", "", "Correction method: SMC or LSC (overrides config)")
		c.Flags().StringVar(&reference, "reference", "", "Internal reference cluster (overrides config)")
		c.Flags().IntVar(&workers, "workers", 0, "LSC worker count (overrides config)")
	}

	formulaCmd.Flags().StringVar(&derivatization, "derivatization", "", "Derivatization name (default from config)")
	formulaCmd.Flags().BoolVar(&cholesterol, "cholesterol", false, "Use the cholesterol assay composition")

	for _, c := range []*cobra.Command{matrixCmd, correctCmd} {
		c.Flags().StringVar(&derivatization, "derivatization", "", "Derivatization name (default from config)")
		c.Flags().BoolVar(&cholesterol, "cholesterol", false, "Use the cholesterol assay composition")
		c.Flags().StringVar(&tracer, "tracer", "", "Tracer element (default from config)")
		c.Flags().Float64SliceVar(&purity, "purity", nil, "Tracer purity vector, e.g. 0.01,0.99 (default from config)")
	}
	correctCmd.Flags().StringVar(&method, "method", "", "Correction method: SMC or LSC (default from config)")
}

// newLogger builds the console logger on stderr. Warnings are shown by
// default.
func newLogger() (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	switch {
	case verbose:
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case quiet:
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	return cfg.Build()
}
