package cmd

import (
	"fmt"
	"strconv"

	"github.com/ChrisMcGann/msanalyzer/pkg/config"
	"github.com/ChrisMcGann/msanalyzer/pkg/core"
	"github.com/ChrisMcGann/msanalyzer/pkg/correction"
	"github.com/ChrisMcGann/msanalyzer/pkg/quant"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

var formulaCmd = &cobra.Command{
	Use:   "formula <chain>",
	Short: "Print the elemental composition of a chain",
	Long: `Print the elemental composition of a fatty-acid chain ("C16:0", "C18:1")
with the configured derivatization, or of derivatized cholesterol.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		comp, err := composition(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), comp)
		return nil
	},
}

var matrixCmd = &cobra.Command{
	Use:   "matrix <chain>",
	Short: "Print the correction matrix of a chain",
	Long: `Print the natural-abundance correction matrix of a chain for a tracer
element and purity. Column i is the mass distribution of the molecule
carrying i tracer atoms.

Examples:
  msanalyzer matrix C16:0 --tracer C --purity 0.01,0.99`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, _, err := correctionMatrix(cmd, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Tracer: %s (%d atoms)\n", m.Tracer, m.TracerAtoms)
		fmt.Fprintf(out, "%v\n", mat.Formatted(m.Dense, mat.Squeeze()))
		return nil
	},
}

var correctCmd = &cobra.Command{
	Use:   "correct <chain> <intensities...>",
	Short: "Correct one measured MID",
	Long: `Correct one measured mass isotopomer distribution (M+0, M+1, ...) of a
chain and print the corrected distribution and the labeled proportion.

Examples:
  msanalyzer correct C16:0 1000 180 40 --tracer C --purity 0.01,0.99 --method SMC`,
	Args: cobra.MinimumNArgs(2),
	RunE: runCorrect,
}

func runCorrect(cmd *cobra.Command, args []string) error {
	observed := make([]float64, len(args)-1)
	for i, s := range args[1:] {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid intensity '%s': %w", s, err)
		}
		observed[i] = v
	}

	m, cfg, err := correctionMatrix(cmd, args[0])
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	c := &correction.Corrector{
		Method:   cfg.Method(),
		Policy:   cfg.SizePolicy(),
		Settings: cfg.CorrectionSettings(),
		Logger:   logger,
	}
	corrected, err := c.Correct(cmd.Context(), mat.NewDense(1, len(observed), observed), m)
	if err != nil {
		return fmt.Errorf("failed to correct MID: %w", err)
	}

	mid := mat.Row(nil, 0, corrected)
	out := cmd.OutOrStdout()
	for i, v := range mid {
		fmt.Fprintf(out, "M+%d\t%.6f\n", i, v)
	}
	fmt.Fprintf(out, "Labeled proportion: %.6f\n", quant.LabeledProportion(mid))
	return nil
}

// composition resolves a chain with the configured or flagged
// derivatization.
func composition(chain string) (core.Composition, error) {
	if cholesterol {
		return core.CholesterolProfile{}.Composition(chain)
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if derivatization != "" {
		cfg.Assay.Derivatization = derivatization
	}
	delta, err := cfg.Derivatization()
	if err != nil {
		return nil, err
	}
	return core.FattyAcidProfile{Derivatization: delta}.Composition(chain)
}

// correctionMatrix builds the matrix of a chain from the configuration and
// the tracer flags.
func correctionMatrix(cmd *cobra.Command, chain string) (*correction.Matrix, *config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("tracer") {
		cfg.Tracer.Element = tracer
	}
	if flags.Changed("purity") {
		cfg.Tracer.Purity = purity
	}
	if flags.Lookup("method") != nil && flags.Changed("method") {
		cfg.Correction.Method = method
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	comp, err := composition(chain)
	if err != nil {
		return nil, nil, err
	}
	m, err := correction.BuildMatrix(comp, cfg.Tracer.Element, cfg.Tracer.Purity)
	if err != nil {
		return nil, nil, err
	}
	return m, cfg, nil
}
