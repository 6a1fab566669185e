package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agusx1211/cli-worker/internal/buildinfo"
	"github.com/agusx1211/cli-worker/pkg/protocol"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		bi := buildinfo.Current()
		w := cmd.OutOrStdout()
		if format != formatText {
			return writeStructured(w, format, struct {
				buildinfo.Info
				Protocol string `json:"protocol_version"`
			}{bi, protocol.Version})
		}
		fmt.Fprintln(w, bi.String())
		fmt.Fprintf(w, "task protocol %s\n", protocol.Version)
		return nil
	},
}

func init() {
	addFormatFlag(versionCmd)
	rootCmd.AddCommand(versionCmd)
}
