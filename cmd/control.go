package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaultarc/vaultarc/internal/control"
	"github.com/vaultarc/vaultarc/internal/log"
	"github.com/vaultarc/vaultarc/internal/metrics"
)

// cmdContext returns a context cancelled on SIGINT/SIGTERM, so an
// in-flight operation's checkpoint loop (internal/driver.Job.checkpoint)
// sees the interrupt as an abort rather than the process dying mid-write.
func cmdContext() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	return ctx
}

// startControlServer brings up the operation's control.Server bound to
// job, returning a stop func the caller defers. Socket bind failures
// are logged, not fatal -- a job still runs to completion without a
// control channel, it just can't be paused.
func startControlServer(ctx context.Context, socketPath string, job control.Controllable) (func(), error) {
	srv := control.NewServer(socketPath, control.NewHandler(job))
	srvCtx, cancel := context.WithCancel(ctx)
	go func() {
		if err := srv.Start(srvCtx); err != nil {
			if l := log.GetLogger(); l != nil {
				l.Warnf("control channel on %s stopped: %v", socketPath, err)
			}
		}
	}()
	return func() {
		cancel()
		srv.Stop()
	}, nil
}

// startMetricsServer brings up the operation's metrics.Server (config's
// metrics.enabled/metrics.listen), returning a stop func the caller
// defers. A bind failure is logged, not fatal -- a job still runs to
// completion without a metrics endpoint.
func startMetricsServer(ctx context.Context, addr string, job control.Controllable) func() {
	srv := metrics.NewServer(addr, job)
	srvCtx, cancel := context.WithCancel(ctx)
	go func() {
		if err := srv.Start(srvCtx); err != nil {
			if l := log.GetLogger(); l != nil {
				l.Warnf("metrics endpoint on %s stopped: %v", addr, err)
			}
		}
	}()
	return cancel
}

// controlCmd talks to a running operation's control channel.
var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Pause, resume, abort, or query a running operation",
}

var controlPauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the running operation",
	RunE:  func(cmd *cobra.Command, args []string) error { return runControlCall("pause") },
}

var controlResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a paused operation",
	RunE:  func(cmd *cobra.Command, args []string) error { return runControlCall("resume") },
}

var controlAbortCmd = &cobra.Command{
	Use:   "abort",
	Short: "Abort the running operation",
	RunE:  func(cmd *cobra.Command, args []string) error { return runControlCall("abort") },
}

var controlStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running operation's status",
	RunE:  func(cmd *cobra.Command, args []string) error { return runControlCall("status") },
}

func init() {
	controlCmd.AddCommand(controlPauseCmd, controlResumeCmd, controlAbortCmd, controlStatusCmd)
}

func runControlCall(method string) error {
	global, err := loadGlobal()
	if err != nil {
		return fmt.Errorf("load global config: %w", err)
	}

	client := control.NewClient(global.Control.Socket, 10*time.Second)
	resp, err := client.Call(context.Background(), method, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if resp.Error != "" {
		return fmt.Errorf("%s: %s", method, resp.Error)
	}

	out, err := json.MarshalIndent(resp.Result, "", "  ")
	if err != nil {
		return fmt.Errorf("format result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
