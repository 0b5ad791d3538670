package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/ferry/internal/config"
	"firestige.xyz/ferry/internal/core"
	"firestige.xyz/ferry/internal/log"
	"firestige.xyz/ferry/internal/report"
	"firestige.xyz/ferry/internal/trace"
	"firestige.xyz/ferry/internal/transfer"
	"firestige.xyz/ferry/internal/transport"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Transfer a file to a running receiver",
	Long: `Segment a file into units, connect to the receiver and transmit until
every unit is acknowledged.

Examples:
  ferry send -f input.txt                           # Send to localhost:8080
  ferry send -f input.txt --host 10.0.0.2 --port 9000
  ferry send -f input.txt --trace out.pcap          # Record every transmission`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			exitWithError("failed to load config", err)
		}
		defer log.Close()
		applySendFlags(cmd, cfg)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if _, err := runSend(ctx, cfg, sendFile, cmd.OutOrStdout()); err != nil {
			exitWithError("transfer failed", err)
		}
	},
}

var (
	sendFile       string
	sendHost       string
	sendPort       int
	sendClientPort int
	sendTrace      string
	sendNoFaults   bool
)

func init() {
	sendCmd.Flags().StringVarP(&sendFile, "file", "f", "", "file to transfer (required)")
	sendCmd.Flags().StringVar(&sendHost, "host", "localhost", "receiver host (overrides transfer.host)")
	sendCmd.Flags().IntVarP(&sendPort, "port", "p", 8080, "receiver port (overrides transfer.destination_port)")
	sendCmd.Flags().IntVar(&sendClientPort, "client-port", 3000, "source port stamped into units (overrides transfer.source_port)")
	sendCmd.Flags().StringVar(&sendTrace, "trace", "", "write a pcap trace of every transmission")
	sendCmd.Flags().BoolVar(&sendNoFaults, "no-faults", false, "disable simulated corruption")
	sendCmd.MarkFlagRequired("file")
}

func applySendFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("host") {
		cfg.Transfer.Host = sendHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Transfer.DestinationPort = sendPort
	}
	if cmd.Flags().Changed("client-port") {
		cfg.Transfer.SourcePort = sendClientPort
	}
	if cmd.Flags().Changed("trace") {
		cfg.Trace.Enabled = true
		cfg.Trace.Path = sendTrace
	}
	if sendNoFaults {
		cfg.Fault.Enabled = false
	}
}

// runSend transfers the file at path and prints the completion summary.
func runSend(ctx context.Context, cfg *config.Config, path string, out io.Writer) (core.Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Summary{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	units, err := buildUnits(cfg, data)
	if err != nil {
		return core.Summary{}, err
	}

	opts := transfer.SenderOptions{
		Policy: senderPolicy(cfg.Fault, deriveSeed(cfg.Fault.Seed, 1)),
		Rand:   seededRand(deriveSeed(cfg.Fault.Seed, 0)),
	}
	if cfg.Trace.Enabled {
		rec, err := trace.Create(cfg.Trace.Path)
		if err != nil {
			return core.Summary{}, err
		}
		defer rec.Close()
		opts.Tracer = rec
	}

	url := cfg.Transfer.URL()
	conn, err := transport.Dial(ctx, url)
	if err != nil {
		return core.Summary{}, err
	}
	defer conn.Close()

	log.GetLogger().WithField("url", url).WithField("units", len(units)).Info("connected to receiver")

	summary, err := transfer.NewSender(units, opts).Run(ctx, conn)
	if err != nil {
		return summary, err
	}
	fmt.Fprint(out, report.Summary(summary))
	return summary, nil
}
