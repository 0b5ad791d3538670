package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/ferry/internal/config"
	"firestige.xyz/ferry/internal/log"
	"firestige.xyz/ferry/internal/metrics"
	"firestige.xyz/ferry/internal/store"
	"firestige.xyz/ferry/internal/transfer"
	"firestige.xyz/ferry/internal/transport"
)

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Accept transfers and persist the reassembled file",
	Long: `Listen for senders and run one receiving session per connection.

Every accepted unit is acknowledged; each session writes its units, ordered by
sequence number, to store.dir/store.file when the sender closes.

Examples:
  ferry receive                             # Listen on :8080 with defaults
  ferry receive -c ferry.yml --port 9000    # Override the listen port
  ferry receive --no-faults                 # Never drop inbound units`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			exitWithError("failed to load config", err)
		}
		defer log.Close()
		applyReceiveFlags(cmd, cfg)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := runReceive(ctx, cfg, cmd.OutOrStdout()); err != nil {
			exitWithError("receiver failed", err)
		}
	},
}

var (
	receivePort     int
	receiveStoreDir string
	receiveNoFaults bool
)

func init() {
	receiveCmd.Flags().IntVarP(&receivePort, "port", "p", 8080, "listen port (overrides transfer.listen_port)")
	receiveCmd.Flags().StringVar(&receiveStoreDir, "store-dir", "store", "output directory (overrides store.dir)")
	receiveCmd.Flags().BoolVar(&receiveNoFaults, "no-faults", false, "disable simulated loss")
}

func applyReceiveFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("port") {
		cfg.Transfer.ListenPort = receivePort
	}
	if cmd.Flags().Changed("store-dir") {
		cfg.Store.Dir = receiveStoreDir
	}
	if receiveNoFaults {
		cfg.Fault.Enabled = false
	}
}

// newReceiveServer wires a transport server whose sessions each run a
// Receiver. Session n writes store.SessionFileName(store.file, n) so that
// concurrent sessions never share an output file.
func newReceiveServer(cfg *config.Config) *transport.Server {
	var sessions atomic.Int64
	srv := transport.NewServer(cfg.Transfer.ListenAddr(), cfg.Transfer.Path, func(ctx context.Context, conn transfer.Conn) {
		n := sessions.Add(1)
		policy := receiverPolicy(cfg.Fault, deriveSeed(cfg.Fault.Seed, int(2+n)))
		name := store.SessionFileName(cfg.Store.File, int(n))
		recv := transfer.NewReceiver(policy, store.FileOpener(cfg.Store.Dir, name))
		if _, err := recv.Serve(ctx, conn); err != nil {
			log.GetLogger().WithError(err).WithField("file", name).Warn("session ended with error")
			return
		}
		log.GetLogger().WithField("file", filepath.Join(cfg.Store.Dir, name)).Info("session persisted")
	})
	srv.MaxSessions = cfg.Transfer.MaxSessions
	return srv
}

// runReceive serves until ctx is cancelled, then drains running sessions.
func runReceive(ctx context.Context, cfg *config.Config, out io.Writer) error {
	if cfg.Metrics.Enabled {
		ms := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := ms.Start(ctx); err != nil {
			return err
		}
		defer ms.Stop(context.Background())
	}

	srv := newReceiveServer(cfg)
	if err := srv.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "Listening on %s%s, first session writes %s\n",
		srv.Addr(), cfg.Transfer.Path, filepath.Join(cfg.Store.Dir, cfg.Store.File))

	<-ctx.Done()
	log.GetLogger().Info("shutdown signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(stopCtx)
}
