package main

import (
	"fmt"

	"padiclattice/internal/exact"
	"padiclattice/internal/padic"

	"github.com/spf13/cobra"
)

// demoCmd groups worked examples
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Worked examples of lattice precision",
}

var demoDiffusedCmd = &cobra.Command{
	Use:   "diffused",
	Short: "Show precision gained by combining correlated values",
	Long: `Takes x = 1 + O(p^10) and y = 1 + O(p^5), forms u = x+y and v = x-y and
shows that u+v = 2x is known to more digits than u or v, while the gain
disappears once u is lifted independently.`,
	Args: cobra.NoArgs,
	RunE: runDemoDiffused,
}

func runDemoDiffused(cmd *cobra.Command, args []string) error {
	d, err := openDomain()
	if err != nil {
		return err
	}
	x, err := d.Int(1, padic.WithPrecision(10))
	if err != nil {
		return err
	}
	y, err := d.Int(1, padic.WithPrecision(5))
	if err != nil {
		return err
	}
	u, err := x.Add(y)
	if err != nil {
		return err
	}
	v, err := x.Sub(y)
	if err != nil {
		return err
	}
	w, err := u.Add(v)
	if err != nil {
		return err
	}
	diffused, err := padic.DiffusedDigits(u, v)
	if err != nil {
		return err
	}
	lu, err := u.LiftToPrecision(exact.Infinity)
	if err != nil {
		return err
	}
	lw, err := lu.Add(v)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "domain: %s\n", d)
	for _, row := range []struct {
		name string
		e    *padic.Element
	}{
		{"x", x}, {"y", y}, {"u = x+y", u}, {"v = x-y", v}, {"u+v", w}, {"lift(u)+v", lw},
	} {
		fmt.Fprintf(out, "%-10s %-24s precision %s\n", row.name, row.e, formatPrec(row.e.AbsolutePrecision()))
	}
	fmt.Fprintf(out, "diffused digits of (u, v): %s\n", formatPrec(diffused))
	return nil
}
