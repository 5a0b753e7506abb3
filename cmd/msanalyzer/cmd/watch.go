package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ChrisMcGann/msanalyzer/pkg/experiment"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const watchDebounceDelay = 500 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run the analysis when its inputs change",
	Long: `Run analyze, then watch the configuration and input files. A change of
the configuration recomputes the experiment with the new parameters; a change
of an input file ingests the experiment again. Bursts of changes are
coalesced. Stop with Ctrl-C.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exp, err := ingest(ctx, cmd, logger)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watched := make(map[string]bool)
	for _, path := range []string{configFile, dataFile, mapFile, standardsFile, masksFile} {
		if path == "" {
			continue
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		watched[abs] = true
		// Editors replace files, so the directory is watched.
		if err := watcher.Add(filepath.Dir(abs)); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		logger.Debug("watching file", zap.String("path", abs))
	}
	configAbs, _ := filepath.Abs(configFile)

	runCh := make(chan struct{}, 1)
	debouncer := experiment.NewDebouncer(watchDebounceDelay, func() {
		select {
		case runCh <- struct{}{}:
		default:
		}
	})
	defer debouncer.Stop()

	fmt.Fprintln(cmd.OutOrStdout(), "Watching for changes...")
	dataChanged := false
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !watched[abs] {
				continue
			}
			logger.Info("input changed",
				zap.String("file", abs),
				zap.String("operation", event.Op.String()))
			if configFile == "" || abs != configAbs {
				dataChanged = true
			}
			debouncer.Trigger()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("file watcher error", zap.Error(err))

		case <-runCh:
			if dataChanged {
				next, err := ingest(ctx, cmd, logger)
				if err != nil {
					logger.Error("analysis failed", zap.Error(err))
					continue
				}
				exp = next
				dataChanged = false
				continue
			}
			if err := reconfigure(ctx, cmd, exp); err != nil {
				logger.Error("analysis failed", zap.Error(err))
			}

		case <-ctx.Done():
			logger.Info("stopping watcher")
			return nil
		}
	}
}

// ingest runs a full analysis and writes its outputs.
func ingest(ctx context.Context, cmd *cobra.Command, logger *zap.Logger) (*experiment.Experiment, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	in, err := loadInput(cfg, logger)
	if err != nil {
		return nil, err
	}
	exp, err := experiment.New(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze experiment: %w", err)
	}
	return exp, report(ctx, cmd, exp)
}

// reconfigure applies a reloaded configuration to an ingested experiment and
// recomputes it. The previous results are kept when it fails.
func reconfigure(ctx context.Context, cmd *cobra.Command, exp *experiment.Experiment) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	p := experiment.ParamsFromConfig(cfg)

	exp.SetInternalRef(p.InternalReference)
	if err := exp.SetTracer(p.Tracer); err != nil {
		return err
	}
	if err := exp.SetTracerPurity(p.Purity); err != nil {
		return err
	}
	exp.SetMethod(p.Method)
	exp.SetSizePolicy(p.SizePolicy)
	exp.SetWorkers(p.Workers)
	exp.SetCorrectionSettings(p.Settings)
	exp.SetNormalization(p.Normalization)
	exp.SetStandards(p.MixForPrep, p.MixTotal, p.StandardVolumes)
	exp.SetSampleVolumes(p.DilutionVolume, p.SoupVolume, p.DilutionColumn, p.SoupColumn)
	exp.SetUseMask(useMask)

	generation := exp.Generation()
	if err := exp.Recompute(ctx); err != nil {
		return fmt.Errorf("failed to recompute experiment: %w", err)
	}
	if exp.Generation() == generation {
		return nil
	}
	return report(ctx, cmd, exp)
}

func report(ctx context.Context, cmd *cobra.Command, exp *experiment.Experiment) error {
	files, err := writeOutputs(ctx, exp.Results())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "[%s] analysis %d complete\n", time.Now().Format(time.TimeOnly), exp.Generation())
	for _, f := range files {
		fmt.Fprintf(out, "Output: %s\n", f)
	}
	return nil
}
