package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/ferry/internal/config"
	"firestige.xyz/ferry/internal/core"
	"firestige.xyz/ferry/internal/log"
	"firestige.xyz/ferry/internal/packet"
	"firestige.xyz/ferry/internal/report"
	"firestige.xyz/ferry/internal/store"
	"firestige.xyz/ferry/internal/trace"
	"firestige.xyz/ferry/internal/transfer"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run sender and receiver in-process over the simulated channel",
	Long: `Transfer a file between an in-process sender and receiver, verify that the
persisted output equals the input and summarize every run.

Examples:
  ferry simulate -f input.txt                         # One run with default fault ratios
  ferry simulate -f input.txt -n 10 -r report.yaml    # Ten runs, averaged and saved
  ferry simulate -f input.txt --no-faults             # Ideal channel`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			exitWithError("failed to load config", err)
		}
		defer log.Close()
		applySimulateFlags(cmd, cfg)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rep, err := runSimulate(ctx, cfg, simulateOpts, cmd.OutOrStdout())
		if err != nil {
			exitWithError("simulation failed", err)
		}
		if !rep.AllVerified() {
			exitWithError("persisted output differs from input", nil)
		}
	},
}

type simulateOptions struct {
	File   string
	Runs   int
	Report string
}

var (
	simulateOpts     simulateOptions
	simulateNoFaults bool
	simulateOutDir   string
	simulateSeed     uint64
)

func init() {
	simulateCmd.Flags().StringVarP(&simulateOpts.File, "file", "f", "", "file to transfer (required)")
	simulateCmd.Flags().IntVarP(&simulateOpts.Runs, "runs", "n", 1, "number of transfers")
	simulateCmd.Flags().StringVarP(&simulateOpts.Report, "report", "r", "", "write a YAML report to this path")
	simulateCmd.Flags().BoolVar(&simulateNoFaults, "no-faults", false, "disable loss and corruption")
	simulateCmd.Flags().StringVar(&simulateOutDir, "out-dir", "store", "output directory (overrides store.dir)")
	simulateCmd.Flags().Uint64Var(&simulateSeed, "seed", 0, "base seed for a reproducible channel (overrides fault.seed)")
	simulateCmd.MarkFlagRequired("file")
}

func applySimulateFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("out-dir") {
		cfg.Store.Dir = simulateOutDir
	}
	if cmd.Flags().Changed("seed") {
		cfg.Fault.Seed = simulateSeed
	}
	if simulateNoFaults {
		cfg.Fault.Enabled = false
	}
}

// runSimulate performs opts.Runs transfers and returns the aggregated report.
// A run whose output differs from the input is reported, not returned as an error.
func runSimulate(ctx context.Context, cfg *config.Config, opts simulateOptions, out io.Writer) (*report.Report, error) {
	if opts.Runs < 1 {
		return nil, fmt.Errorf("runs must be at least 1, got %d", opts.Runs)
	}

	data, err := os.ReadFile(opts.File)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", opts.File, err)
	}
	units, err := buildUnits(cfg, data)
	if err != nil {
		return nil, err
	}

	var tracer transfer.Tracer
	if cfg.Trace.Enabled {
		rec, err := trace.Create(cfg.Trace.Path)
		if err != nil {
			return nil, err
		}
		defer rec.Close()
		tracer = rec
	}

	rep := report.New(opts.File)
	output := filepath.Join(cfg.Store.Dir, cfg.Store.File)

	for i := 0; i < opts.Runs; i++ {
		summary, result, err := simulateRun(ctx, cfg, units, i, tracer)
		if err != nil {
			return rep, fmt.Errorf("run %d: %w", i+1, err)
		}

		got, err := os.ReadFile(output)
		if err != nil {
			return rep, fmt.Errorf("run %d: %w", i+1, err)
		}
		run := rep.Add(summary, result, bytes.Equal(got, data))

		log.GetLogger().WithFields(map[string]interface{}{
			"run":      run.Index,
			"sent":     run.Sent,
			"ratio":    run.DeliveryRatio,
			"verified": run.Verified,
		}).Info("run finished")

		if opts.Runs == 1 {
			fmt.Fprint(out, report.Summary(summary))
		}
	}

	table, err := rep.Table()
	if err != nil {
		return rep, err
	}
	fmt.Fprintln(out, table)

	if opts.Report != "" {
		if err := rep.Save(opts.Report); err != nil {
			return rep, err
		}
		fmt.Fprintf(out, "Report written to %s\n", opts.Report)
	}
	return rep, nil
}

func simulateRun(ctx context.Context, cfg *config.Config, units []packet.TCPSegment, run int, tracer transfer.Tracer) (core.Summary, core.ReceiveResult, error) {
	base := 3 * run
	sender := transfer.NewSender(units, transfer.SenderOptions{
		Policy: senderPolicy(cfg.Fault, deriveSeed(cfg.Fault.Seed, base+1)),
		Rand:   seededRand(deriveSeed(cfg.Fault.Seed, base)),
		Tracer: tracer,
	})
	receiver := transfer.NewReceiver(
		receiverPolicy(cfg.Fault, deriveSeed(cfg.Fault.Seed, base+2)),
		store.FileOpener(cfg.Store.Dir, cfg.Store.File),
	)

	senderConn, receiverConn := transfer.Pipe()

	type served struct {
		result core.ReceiveResult
		err    error
	}
	done := make(chan served, 1)
	go func() {
		result, err := receiver.Serve(ctx, receiverConn)
		done <- served{result, err}
	}()

	summary, sendErr := sender.Run(ctx, senderConn)
	recv := <-done
	return summary, recv.result, errors.Join(sendErr, recv.err)
}
