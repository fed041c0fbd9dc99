package main

import (
	"context"
	"fmt"

	"padiclattice/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var evalJobs int

// evalCmd evaluates postfix expressions
var evalCmd = &cobra.Command{
	Use:   "eval [expression]...",
	Short: "Evaluate postfix expressions with lattice precision",
	Long: `Evaluates each argument as a postfix (RPN) expression in the selected domain.
Every expression gets its own precision tracker, so independent expressions
run concurrently.

Tokens:
  3  -7/2  1@10           literal, optionally with absolute precision (@N)
  + - * /                 arithmetic
  neg inv unit dup        negation, inverse, unit part, correlated copy
  <<N >>N ^N              shifts by p^N, power
  bigoh@N                 lower the precision to N
  lift  lift@N            independent lift (to the cap, or to N)
  infer@N                 lift keeping correlations (changes related values)
  >name  $name            store / recall a value

Example (diffused digits):
  padic eval '1@10 >x 1@5 >y $x $y + $x $y - +'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEval,
}

func runEval(cmd *cobra.Command, args []string) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	timer := logging.StartTimer(logging.CategoryCLI, "eval")
	defer timer.Stop()

	results := make([]string, len(args))
	g, gctx := errgroup.WithContext(ctx)
	if evalJobs > 0 {
		g.SetLimit(evalJobs)
	}
	for i, expr := range args {
		g.Go(func() error {
			d, err := openDomain()
			if err != nil {
				return err
			}
			e, err := evalRPN(gctx, d, expr)
			if err != nil {
				return fmt.Errorf("expression %d (%q): %w", i+1, expr, err)
			}
			results[i] = fmt.Sprintf("%s = %s  [precision %s]", expr, e, formatPrec(e.AbsolutePrecision()))
			logger.Debug("evaluated expression",
				zap.Int("index", i),
				zap.Int("precision", e.AbsolutePrecision()))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, r := range results {
		fmt.Fprintln(out, r)
	}
	return nil
}
