package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gridbench/lopf-bench/lp"
)

var solversCmd = &cobra.Command{
	Use:   "solvers",
	Short: "List registered solver backends",
	Run: func(cmd *cobra.Command, args []string) {
		if err := listSolvers(os.Stdout); err != nil {
			logrus.Fatalf("Listing solvers failed: %v", err)
		}
	},
}

// availability is implemented by backends that depend on an external binary.
type availability interface {
	Available() bool
}

func listSolvers(w io.Writer) error {
	for _, name := range lp.Names() {
		s, err := lp.New(name)
		if err != nil {
			return err
		}
		status := "built in"
		if a, ok := s.(availability); ok {
			status = "binary found"
			if !a.Available() {
				status = "binary not found"
			}
		}
		if _, err := fmt.Fprintf(w, "%-10s %s\n", name, status); err != nil {
			return err
		}
	}
	return nil
}
