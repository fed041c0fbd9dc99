package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var expandPrec int

// expandCmd prints the p-adic expansion of a rational
var expandCmd = &cobra.Command{
	Use:   "expand [value]",
	Short: "Print the p-adic digits of a rational number",
	Long: `Creates the value in the selected domain and prints its digit expansion,
valuation and precision. The value may be an integer, a fraction a/b or a
decimal, optionally with an explicit precision: 1/3@12.

Example:
  padic expand -d z7 123456878908`,
	Args: cobra.ExactArgs(1),
	RunE: runExpand,
}

func runExpand(cmd *cobra.Command, args []string) error {
	if expandPrec > maxArg {
		return fmt.Errorf("--prec %d out of range [0, %d]", expandPrec, maxArg)
	}
	d, err := openDomain()
	if err != nil {
		return err
	}
	e, err := parseLiteral(d, args[0])
	if err != nil {
		return err
	}
	if expandPrec > 0 {
		if e, err = e.LiftToPrecision(expandPrec); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "domain:     %s\n", d)
	fmt.Fprintf(out, "series:     %s\n", e)
	fmt.Fprintf(out, "valuation:  %s\n", formatPrec(e.Valuation()))
	fmt.Fprintf(out, "precision:  %s\n", formatPrec(e.AbsolutePrecision()))
	fmt.Fprintf(out, "digits:     %v\n", e.Expansion())
	return nil
}
