package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agusx1211/cli-worker/internal/theme"
	"github.com/agusx1211/cli-worker/internal/verify"
)

var verifyCmd = &cobra.Command{
	Use:     "verify",
	Aliases: []string{"doctor"},
	Short:   "Check that the kimi CLI is installed and usable",
	Args:    cobra.NoArgs,
	RunE:    runVerify,
}

func init() {
	addFormatFlag(verifyCmd)
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	command := currentConfig().Kimi.Command
	gate := &verify.Gate{Check: verify.ProbeCheck(command), Command: command}
	out := gate.Verify(cmdContext(cmd))

	w := cmd.OutOrStdout()
	if format != formatText {
		if err := writeStructured(w, format, out); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(w, "%s %s\n", theme.Badge(out.Reason), command)
		if out.Detail != "" {
			fmt.Fprintln(w, "  "+theme.Dim.Render(out.Detail))
		}
		for _, step := range out.Remediation {
			fmt.Fprintln(w, "  - "+step)
		}
	}
	if !out.OK {
		return fmt.Errorf("kimi is not ready (%s)", out.Reason)
	}
	return nil
}
