package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gridbench/lopf-bench/network"
)

var convertCmd = &cobra.Command{
	Use:   "convert <src> <dst>",
	Short: "Convert a network between CSV folder and YAML",
	Long:  "Convert a network between the PyPSA CSV folder layout and a single YAML document. The format of each side follows its path: .yaml/.yml is YAML, anything else a CSV folder.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if err := convertNetwork(args[0], args[1]); err != nil {
			logrus.Fatalf("Conversion failed: %v", err)
		}
		logrus.Infof("Wrote %s", args[1])
	},
}

func convertNetwork(src, dst string) error {
	n, err := network.Open(src)
	if err != nil {
		return err
	}
	if err := n.Save(dst); err != nil {
		return fmt.Errorf("saving %s: %w", dst, err)
	}
	return nil
}
