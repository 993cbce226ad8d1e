// Command mfbo runs a single multi-fidelity Bayesian optimization task
// against a target configuration space, per spec.md §6's CLI contract.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wuhaolei455/mfbo-go/observability"
)

var (
	version = "dev"
	cfgFile string
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "mfbo",
		Short:   "Multi-fidelity Bayesian optimization engine",
		Long:    "mfbo tunes an expensive target workload by iteratively sampling, evaluating, and refining a surrogate model over a declared configuration space, optionally transferring knowledge from prior tasks.",
		Version: version,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (none is read unless this flag is set)")
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newResumeCmd())
	return cmd
}

func initViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("MFBO")
	v.AutomaticEnv()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", cfgFile, err)
		}
	}
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}
	return v, nil
}

// newLogger configures the process-wide default logger via
// observability.ConfigureLogging and returns it. traceContext wraps the
// handler so log lines carry trace_id/span_id when tracing is active.
func newLogger(verbose, structured, traceContext bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	observability.ConfigureLogging(level, structured, traceContext)
	if traceContext {
		return observability.GetLoggerWithTrace()
	}
	return slog.Default()
}
