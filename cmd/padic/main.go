package main

import (
	"fmt"
	"os"
	"time"

	"padiclattice/internal/config"
	"padiclattice/internal/exact"
	"padiclattice/internal/logging"
	"padiclattice/internal/padic"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose    bool
	configPath string
	domainName string
	timeout    time.Duration

	cfg    = config.DefaultConfig()
	logger = zap.NewNop()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "padic",
	Short: "p-adic arithmetic with lattice precision",
	Long: `padic computes with p-adic numbers whose precision is tracked by a shared
precision lattice. Correlated values can be known to more digits than each of
them is individually ("diffused digits").

Domains (prime, ring or field, capped or floating policy, caps) are read from
a YAML config file; see --config.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			loaded.Logging.Level = "debug"
			loaded.Logging.DebugMode = true
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		if err := logging.Initialize(loaded.Logging); err != nil {
			return err
		}
		cfg = loaded
		logger = logging.Get(logging.CategoryCLI)
		logger.Debug("config loaded", zap.String("path", configPath), zap.Int("domains", len(cfg.Domains)))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "padic.yaml", "Config file")
	rootCmd.PersistentFlags().StringVarP(&domainName, "domain", "d", "", "Domain to compute in (default: the config default)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", time.Minute, "Evaluation timeout")

	expandCmd.Flags().IntVarP(&expandPrec, "prec", "p", 0, "Absolute precision (default: the domain cap)")
	evalCmd.Flags().IntVarP(&evalJobs, "jobs", "j", 4, "Expressions evaluated concurrently")

	demoCmd.AddCommand(demoDiffusedCmd)

	rootCmd.AddCommand(expandCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(evalCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openDomain builds the selected domain in a fresh context, so its tracker is
// not shared with any other command or expression.
func openDomain() (*padic.Domain, error) {
	dc, err := cfg.Domain(domainName)
	if err != nil {
		return nil, err
	}
	ctx := padic.NewContext(logging.Get(logging.CategoryDomain),
		padic.WithTrackerLogger(logging.Get(logging.CategoryTracker)))
	d, err := ctx.FromConfig(dc)
	if err != nil {
		return nil, fmt.Errorf("domain %q: %w", dc.Name, err)
	}
	return d, nil
}

func formatPrec(n int) string {
	if n == exact.Infinity {
		return "exact"
	}
	return fmt.Sprint(n)
}
