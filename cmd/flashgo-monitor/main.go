package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/flashgo/flashgo/internal/constants"
	"github.com/flashgo/flashgo/internal/ipc"
	"github.com/flashgo/flashgo/internal/logging"
	"github.com/flashgo/flashgo/internal/monitor"
)

func main() {
	var (
		topologyPath = flag.String("topology", "", "Path to the topology JSON file to load at startup")
		socketPath   = flag.String("socket", constants.DefaultSocketPath, "Rendezvous Unix domain socket path")
		verbose      = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	m, err := monitor.New(logger)
	if err != nil {
		logger.Error("failed to construct monitor", "error", err)
		os.Exit(1)
	}

	if *topologyPath != "" {
		if err := m.Load(*topologyPath); err != nil {
			logger.Error("failed to load topology", "path", *topologyPath, "error", err)
			os.Exit(1)
		}
		logger.Info("topology loaded", "path", *topologyPath)
	}

	srv, err := ipc.Listen(*socketPath, logger)
	if err != nil {
		logger.Error("failed to listen on rendezvous socket", "path", *socketPath, "error", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- srv.Serve(m.HandleConn)
	}()

	fmt.Printf("flashgo-monitor listening on %s\n", *socketPath)
	fmt.Printf("Send SIGUSR1 (kill -USR1 %d) to dump goroutine stacks\n", os.Getpid())

	stackDumpCh := make(chan os.Signal, 1)
	signal.Notify(stackDumpCh, syscall.SIGUSR1)
	go func() {
		for range stackDumpCh {
			buf := make([]byte, 1<<20)
			n := runtime.Stack(buf, true)
			fmt.Fprintf(os.Stderr, "=== GOROUTINE STACK DUMP ===\n%s\n", buf[:n])
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-serveErrCh:
		if err != nil {
			logger.Error("rendezvous server exited", "error", err)
		}
	}

	cancel()
	m.Unload()
	if err := srv.Close(); err != nil {
		logger.Warn("error closing rendezvous listener", "error", err)
	}
}
