package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"firestige.xyz/ferry/internal/trace"
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Work with recorded pcap traces",
}

var traceInspectCmd = &cobra.Command{
	Use:   "inspect <file.pcap>",
	Short: "Summarize retransmissions in a trace",
	Long: `Decode every frame of a trace written by "send --trace" or "simulate" with
trace.enabled and count the transmissions of each sequence number.

Examples:
  ferry trace inspect trace.pcap
  ferry trace inspect trace.pcap --plain`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runTraceInspect(args[0], tracePlain, cmd.OutOrStdout()); err != nil {
			exitWithError("failed to inspect trace", err)
		}
	},
}

var tracePlain bool

func init() {
	traceInspectCmd.Flags().BoolVar(&tracePlain, "plain", false, "print tab separated rows instead of a table")
	traceCmd.AddCommand(traceInspectCmd)
}

func runTraceInspect(path string, plain bool, out io.Writer) error {
	records, err := trace.ReadFile(path)
	if err != nil {
		return err
	}
	stats := trace.Summarize(records)

	if plain {
		for _, st := range stats {
			fmt.Fprintf(out, "%d\t%d\t%d\n", st.Seq, st.Transmissions, st.PayloadBytes)
		}
	} else {
		data := pterm.TableData{{"Seq", "Transmissions", "Payload bytes"}}
		for _, st := range stats {
			data = append(data, []string{
				strconv.FormatUint(uint64(st.Seq), 10),
				strconv.Itoa(st.Transmissions),
				strconv.Itoa(st.PayloadBytes),
			})
		}
		table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, table)
	}

	if len(records) > 0 {
		first, last := records[0].Timestamp, records[len(records)-1].Timestamp
		fmt.Fprintf(out, "%d frames, %d sequence numbers, span %s\n", len(records), len(stats), last.Sub(first))
	} else {
		fmt.Fprintln(out, "0 frames")
	}
	return nil
}
