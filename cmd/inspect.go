package cmd

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gridbench/lopf-bench/network"
)

var (
	inspectFill      bool // Fill undefined p_nom_max before summarizing
	inspectSnapshots int  // Truncate to this many snapshots (0 keeps all)
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <network>",
	Short: "Print a summary of a network",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := inspectNetwork(os.Stdout, args[0], inspectFill, inspectSnapshots); err != nil {
			logrus.Fatalf("Inspect failed: %v", err)
		}
	},
}

func inspectNetwork(w io.Writer, path string, fill bool, snapshots int) error {
	n, err := network.Open(path)
	if err != nil {
		return err
	}
	if fill {
		n.FillGeneratorPNomMax(math.Inf(1))
	}
	if snapshots > 0 {
		if err := n.TruncateSnapshots(snapshots); err != nil {
			return err
		}
	}
	s := n.Summary()
	_, err = fmt.Fprintf(w, "%s\nundefined p_nom_max: %d\ntotal weighting: %g h\n", s, s.UndefinedPNomMax, n.TotalWeighting())
	return err
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectFill, "fill", false, "Fill undefined generator p_nom_max with +Inf first")
	inspectCmd.Flags().IntVar(&inspectSnapshots, "snapshots", 0, "Keep only the first N snapshots (0 keeps all)")
}
