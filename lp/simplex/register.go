// register.go wires the simplex backend into the lp registry. Importing this package,
// even blank, makes "simplex" available to lp.New.
package simplex

import "github.com/gridbench/lopf-bench/lp"

func init() {
	lp.Register(Name, func() (lp.Solver, error) { return New(), nil })
}
