package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/ferry/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load a configuration file, apply environment overrides and defaults, and
report whether the result is usable without starting a transfer.

Examples:
  ferry validate -c ferry.yml
  FERRY_TRANSFER_LISTEN_PORT=0 ferry validate -c ferry.yml`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(configFile, cmd.OutOrStdout()); err != nil {
			exitWithError("configuration rejected", err)
		}
	},
}

// runValidate prints VALID with the effective endpoints, or INVALID with the
// reason and returns the load error.
func runValidate(path string, out io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(out, "INVALID: %v\n", err)
		return err
	}

	fault := "disabled"
	if cfg.Fault.Enabled {
		fault = fmt.Sprintf("loss 1/%d, corruption 1/%d", cfg.Fault.LossOneIn, cfg.Fault.CorruptOneIn)
	}
	fmt.Fprintf(out, "VALID: listen %s, dial %s, segment %d bytes, faults %s\n",
		cfg.Transfer.ListenAddr(),
		cfg.Transfer.URL(),
		cfg.Transfer.MaxSegmentSize,
		fault,
	)
	return nil
}
