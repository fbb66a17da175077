// Command productprep prepares the product catalogue: it loads the raw
// dataset, cleans and enriches it, synthesizes sales, exports CSV files and
// loads everything into a relational database.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"productprep/internal/config"
	"productprep/internal/enricher"
	"productprep/internal/logging"
	csvio "productprep/internal/parser/csv"
	"productprep/internal/pipeline"
	"productprep/internal/probe"

	// register all backends with the storage factory.
	_ "productprep/internal/storage/all"
)

type pipelineRunner interface {
	Run(ctx context.Context, cfg config.Pipeline) (pipeline.Result, error)
}

// app carries the process-wide state shared by the subcommands.
type app struct {
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string

	// NewRunner is the seam tests use to replace the pipeline.
	NewRunner func(stdout io.Writer, logger *zap.Logger) pipelineRunner

	verbose        bool
	envFile        string
	metricsBackend string
	pushGatewayURL string

	logger *zap.Logger
}

func defaultApp() *app {
	return &app{
		stdout: os.Stdout,
		stderr: os.Stderr,
		getenv: os.Getenv,
		NewRunner: func(stdout io.Writer, logger *zap.Logger) pipelineRunner {
			r := pipeline.NewDefaultRunner(logger)
			r.Stdout = stdout
			return r
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(defaultApp()).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "productprep",
		Short:         "Prepare the product catalogue for analysis",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnvFile(a.envFile); err != nil {
				return err
			}
			logger, err := logging.New(a.verbose)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			a.logger = logger
			zap.ReplaceGlobals(logger)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Sync(a.logger)
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	pf := root.PersistentFlags()
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose logs")
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the config (missing is fine)")
	pf.StringVar(&a.metricsBackend, "metrics-backend", "", "metrics backend: pushgateway, datadog or none (overrides env METRICS_BACKEND)")
	pf.StringVar(&a.pushGatewayURL, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")

	root.AddCommand(newRunCmd(a), newValidateCmd(a), newClassifyCmd(a), newProbeCmd(a))
	return root
}

func newRunCmd(a *app) *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.loadValid(cfgPath)
			if err != nil {
				return err
			}

			cleanup := a.setupMetrics(cmd.Context(), p.Job)
			defer cleanup()

			a.logger.Debug("pipeline",
				zap.String("source", p.Source.Kind),
				zap.String("parser", p.Parser.Kind),
				zap.String("storage", p.Storage.Kind))

			start := time.Now()
			res, err := a.NewRunner(a.stdout, a.logger).Run(cmd.Context(), p)
			if err != nil {
				return err
			}
			a.logger.Info("pipeline completed",
				zap.Duration("took", time.Since(start).Truncate(time.Millisecond)),
				zap.Strings("files", res.Files),
				zap.Any("loaded", res.Loaded))
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "configs/pipeline.yaml", "pipeline config path (.yaml, .yml or .json)")
	return cmd
}

func newValidateCmd(a *app) *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a pipeline config and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.loadValid(cfgPath); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Configuration is valid: %s\n", cfgPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "configs/pipeline.yaml", "pipeline config path (.yaml, .yml or .json)")
	return cmd
}

func newClassifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <product name>...",
		Short: "Print the category, sub-category and practice of product names",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range args {
				l := enricher.Classify(name)
				if _, err := fmt.Fprintf(a.stdout, "%s\t%s\t%s\t%s\n", name, l.Category, l.SubCategory, l.Practice); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newProbeCmd(a *app) *cobra.Command {
	var (
		sampleBytes int
		suggest     bool
	)
	cmd := &cobra.Command{
		Use:   "probe <csv file>",
		Short: "Sample a raw dataset and suggest the clean and enrich settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := probe.Probe(cmd.Context(), f, probe.Options{
				SampleBytes: sampleBytes,
				Reader:      csvio.OptionsFrom(nil),
			})
			if err != nil {
				return err
			}
			a.logger.Debug("probe", zap.String("file", args[0]), zap.Int("rows", res.Rows), zap.Bool("truncated", res.Truncated))

			if err := probe.WriteReport(a.stdout, res); err != nil {
				return err
			}
			if !suggest {
				return nil
			}
			fmt.Fprintln(a.stdout)
			return probe.WriteSuggestion(a.stdout, res)
		},
	}
	cmd.Flags().IntVar(&sampleBytes, "sample-bytes", probe.DefaultSampleBytes, "bytes read from the start of the file")
	cmd.Flags().BoolVar(&suggest, "suggest", true, "print suggested clean/enrich config as YAML")
	return cmd
}

var errInvalidConfig = errors.New("configuration is invalid")

// loadValid loads the config at path and prints every validation issue to
// stderr. Error-severity issues fail the load.
func (a *app) loadValid(path string) (config.Pipeline, error) {
	p, err := config.Load(path)
	if err != nil {
		return config.Pipeline{}, err
	}
	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintln(a.stderr, iss.String())
	}
	if config.HasErrors(issues) {
		return config.Pipeline{}, fmt.Errorf("%s: %w", path, errInvalidConfig)
	}
	return p, nil
}
