// register.go wires the command-line backends into the lp registry. Registration does not
// check that the binaries exist; a missing one fails at solve time.
package external

import "github.com/gridbench/lopf-bench/lp"

func init() {
	lp.Register(HiGHSName, func() (lp.Solver, error) { return NewHiGHS(), nil })
	lp.Register(CBCName, func() (lp.Solver, error) { return NewCBC(), nil })
	lp.Register(GLPKName, func() (lp.Solver, error) { return NewGLPK(), nil })
}
