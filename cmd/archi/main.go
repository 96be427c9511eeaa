// Command archi is the CLI front-end of the dynamic component
// runtime, built with cobra/pflag so the runtime is launchable
// end-to-end: all actual logic lives in pkg/exe, this file only wires
// flags to it.
package main

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/archipelago-rt/runtime/pkg/archlog"
	"github.com/archipelago-rt/runtime/pkg/errcode"
	"github.com/archipelago-rt/runtime/pkg/exe"
	"github.com/archipelago-rt/runtime/pkg/registry"
	"github.com/archipelago-rt/runtime/pkg/threadgroup"
)

func main() {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "archi",
		Short: "Dynamic component runtime: context registry, instruction executor, and HSP driver",
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose (development) logging")

	rootCmd.AddCommand(
		newRunCmd(&verbose, false),
		newRunCmd(&verbose, true),
		newDispatchBenchCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRunCmd builds either "run" or "validate" (dryRun == true), since
// the two share everything but the dry-run flag. No configuration
// parser ships with this repo, so both subcommands execute a small
// built-in demonstration instruction stream rather than reading a
// config file — exactly the role a real front-end's parser output
// would otherwise fill.
func newRunCmd(verbose *bool, dryRun bool) *cobra.Command {
	use, short := "run", "Execute the built-in demonstration instruction stream"
	if dryRun {
		use, short = "validate", "Dry-run the built-in demonstration instruction stream (logs only, no effects)"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := archlog.New(*verbose)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			app, status := exe.New(64, log)
			if status.IsError() {
				return status
			}
			defer app.Close()

			stream := demoInstructionStream()
			n, status := app.RunInstructions(stream, dryRun)
			log.Infow("instructions executed", "count", n)

			// The demo stream never stages an entry_state/transition
			// pair, so app.Run() reporting errcode.SoftMiss here is
			// expected, not a failure — the exit code is driven by the
			// instruction stream's own status.
			steps, runStatus := app.Run()
			if runStatus == errcode.OK {
				log.Infow("HSP run complete", "steps", steps)
			}

			code := exe.ExitCode(status)
			if code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}
}

// demoInstructionStream builds a tiny program: a "config" context
// initialized over the default "parameters" interface (nil interface
// key, no parameters), then torn down — enough to exercise INIT/FINAL
// against a real built-in interface without any external collaborator.
func demoInstructionStream() []registry.Instruction {
	return []registry.Instruction{
		{Type: registry.INIT, Key: "config", InterfaceKey: nil},
		{Type: registry.FINAL, Key: "config"},
		{Type: registry.NOOP},
	}
}

// newDispatchBenchCmd exercises the thread-group dispatch core
// standalone, independent of the registry.
func newDispatchBenchCmd() *cobra.Command {
	var size, workers, batchSize int
	var syncMode bool

	cmd := &cobra.Command{
		Use:   "dispatch-bench",
		Short: "Benchmark thread-group dispatch over a synthetic work item",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := archlog.New(false)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			g := threadgroup.New(workers, log)
			var sum atomic.Int64
			start := time.Now()

			done := make(chan struct{})
			err = g.Dispatch(
				threadgroup.WorkItem{
					Fn:   func(index, workerIndex int) { sum.Add(int64(index)) },
					Size: size,
				},
				func(n, workerIndex int) { close(done) },
				threadgroup.DispatchParams{BatchSize: batchSize, Sync: syncMode, Name: "dispatch-bench"},
			)
			if err != nil {
				return err
			}
			<-done

			fmt.Printf("dispatched %d indices across %d workers in %s, sum=%d\n",
				size, workers, time.Since(start), sum.Load())
			return nil
		},
	}
	cmd.Flags().IntVar(&size, "size", 10000, "Work item size (number of indices)")
	cmd.Flags().IntVar(&workers, "workers", 4, "Number of worker goroutines")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Indices claimed per batch (0 = auto)")
	cmd.Flags().BoolVar(&syncMode, "sync", true, "Block until the completion callback has run")
	return cmd
}
