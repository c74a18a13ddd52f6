package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flashgo/flashgo/internal/constants"
	"github.com/flashgo/flashgo/internal/interfaces"
	"github.com/flashgo/flashgo/internal/logging"
	"github.com/flashgo/flashgo/internal/nf"
	"github.com/flashgo/flashgo/internal/stats"
)

func main() {
	var (
		socketPath = flag.String("socket", constants.DefaultSocketPath, "Monitor rendezvous socket path")
		nfID       = flag.Int("nf-id", 0, "This NF's id, as declared in the topology")
		threadID   = flag.Int("thread-id", 0, "This worker thread's id within the NF")
		maxRetries = flag.Int("max-tx-retries", 8, "Bounded TX busy-retry count before a batch is dropped")
		verbose    = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	obs := stats.NewObserver()
	id := nf.Identity{NFID: int32(*nfID), ThreadID: int32(*threadID)}
	thread, err := nf.Attach(ctx, *socketPath, id, echoInspector{}, obs, logger)
	if err != nil {
		logger.Error("failed to attach to monitor", "error", err)
		os.Exit(1)
	}
	defer thread.Close()

	logger.Info("attached", "nf_id", *nfID, "thread_id", *threadID)
	fmt.Printf("flashgo-nf %d/%d attached, press Ctrl+C to stop\n", *nfID, *threadID)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- thread.Run(ctx, *maxRetries)
	}()

	go reportStats(ctx, obs, logger)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-runErrCh:
		if err != nil && err != context.Canceled {
			logger.Error("run loop exited", "error", err)
		}
	}

	cancel()
}

// echoInspector forwards every packet unchanged, the default NF behavior
// when no domain-specific inspection logic is wired in.
type echoInspector struct{}

func (echoInspector) OnBatch(frame []byte, addr uint64, length uint32) interfaces.Action {
	return interfaces.ActionForward
}

// reportStats logs a delta of the ring counters every interval, the
// userspace counterpart of the original's periodic STATS print loop.
func reportStats(ctx context.Context, obs *stats.Observer, log *logging.Logger) {
	const interval = 5 * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	prev := obs.Ring.Snapshot()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := obs.Ring.Snapshot()
			delta := cur.Delta(prev)
			prev = cur
			log.Info("ring stats",
				"rx_pkts", delta.RXPkts, "tx_pkts", delta.TXPkts,
				"rx_dropped", delta.RXDroppedPkts, "tx_empty", delta.TXEmptyPkts)
		}
	}
}
