package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vaultarc/vaultarc/internal/config"
	"github.com/vaultarc/vaultarc/internal/driver"
	"github.com/vaultarc/vaultarc/internal/log"
	"github.com/vaultarc/vaultarc/internal/storage"
)

var createCmd = operationCmd("create", "Write a new archive from filesystem sources",
	"Walk the sources named in <job.yml> and write a new archive.")

var testCmd = operationCmd("test", "Verify an archive's entries decode cleanly",
	"Read every entry of the archives named in <job.yml> and run them through the decode codec stack without writing anything out.")

var compareCmd = operationCmd("compare", "Diff an archive against the live filesystem",
	"Read every entry of the archives named in <job.yml> and compare their content against the current filesystem, reporting the first differing byte offset per mismatch.")

var restoreCmd = operationCmd("restore", "Restore an archive's entries to disk",
	"Read every entry of the archives named in <job.yml> and write it back to disk, honoring strip_count/destination_dir/overwrite_files.")

var convertCmd = operationCmd("convert", "Re-encode an archive under a different codec policy",
	"Decode every entry of the archives named in <job.yml> and re-encode it under the job's (possibly different) compress/crypt settings, promoting the rewritten archive over the original name.")

// operationCmd builds the cobra.Command shared by all five operations:
// each takes exactly one job file argument and differs only in which
// operation name it passes to driver.NewJob/driver.Run.
func operationCmd(operation, short, long string) *cobra.Command {
	return &cobra.Command{
		Use:   operation + " <job.yml>",
		Short: short,
		Long:  long,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(operation, args[0])
		},
	}
}

func runOperation(operation, jobPath string) error {
	global, err := loadGlobal()
	if err != nil {
		return fmt.Errorf("load global config: %w", err)
	}

	jobCfg, err := config.LoadJob(jobPath)
	if err != nil {
		return fmt.Errorf("load job config: %w", err)
	}
	jobCfg.Operation = operation

	st := storage.NewLocal(global.DataDir)
	pw := passwordFuncFor(jobCfg)

	job, err := driver.NewJob(operation, jobCfg, global, st, pw, nil)
	if err != nil {
		return fmt.Errorf("build job: %w", err)
	}

	ctx := cmdContext()
	if global.Control.Socket != "" {
		stop, err := startControlServer(ctx, global.Control.Socket, job)
		if err != nil {
			return fmt.Errorf("start control channel: %w", err)
		}
		defer stop()
	}
	if global.Metrics.Enabled && global.Metrics.Listen != "" {
		stop := startMetricsServer(ctx, global.Metrics.Listen, job)
		defer stop()
	}

	res := driver.Run(ctx, job)
	return reportResult(res)
}

// reportResult prints driver.Result's summary and maps
// a recorded fail_error to the process's non-zero exit, logging
// warnings/differences/incomplete entries rather than failing the
// whole command over them.
func reportResult(res *driver.Result) error {
	l := log.GetLogger()

	for _, w := range res.Warnings {
		if l != nil {
			l.Warn(w)
		}
	}
	for _, d := range res.Differences {
		msg := fmt.Sprintf("Compare file '%s'...FAIL! (differ at offset %d)", d.Name, d.Offset)
		if l != nil {
			l.Info(msg)
		}
	}
	for _, name := range res.Incomplete {
		msg := fmt.Sprintf("Warning: incomplete entry '%s'", name)
		if l != nil {
			l.Warn(msg)
		}
	}

	if l != nil {
		l.Infof("%s: %d entries processed", res.Operation, res.Processed)
	}

	if res.FailError != nil {
		return res.FailError
	}
	return nil
}
