// Package driver implements the operation driver: the top-level
// coordinator that, for each archive named by a job, walks its entries
// and dispatches them through a parallel worker pool to one of the
// five operation visitors (create, test, compare, restore, convert),
// joining fragments across archives and aggregating a per-operation
// Result. See driver.go for the goroutine-pair-with-channel shape this
// uses to parallelize entry processing.
package driver

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/vaultarc/vaultarc/internal/config"
	"github.com/vaultarc/vaultarc/internal/control"
	"github.com/vaultarc/vaultarc/internal/core"
	"github.com/vaultarc/vaultarc/internal/deltasource"
	"github.com/vaultarc/vaultarc/internal/fragment"
	"github.com/vaultarc/vaultarc/internal/pattern"
	"github.com/vaultarc/vaultarc/internal/storage"
)

// ProgressFunc is invoked by the entry pipeline as bytes move (the
// "NNN%% backspaced" line lives in the CLI layer; this is the callback
// that feeds it). name is the entry name, processed/total are byte
// counts within the current fragment.
type ProgressFunc func(name string, processed, total uint64)

// Job is one archiver invocation: the operation to run, the storages
// it touches, its entry filters, delta sources, codec options and the
// mutable pause/abort/progress state a running operation exposes over
// the control channel (internal/control.Controllable).
type Job struct {
	Operation string
	Config    *config.JobConfig
	Global    *config.GlobalConfig
	Storage   storage.Storage
	Password  storage.PasswordFunc
	Progress  ProgressFunc

	includeLists []*pattern.List
	excludeList  *pattern.List
	deltaCands   []deltasource.Candidate

	ledger   *fragment.Ledger
	resolver *deltasource.Resolver

	paused  atomic.Bool
	aborted atomic.Bool

	processed atomic.Int64
	total     atomic.Int64

	mu          sync.Mutex
	failErr     error
	incomplete  []string
	warnings    []string
	differences []Difference
}

// NewJob compiles cfg's include/exclude pattern lists and delta-source
// candidates into a ready-to-run Job. Compilation failures return
// core.ErrInvalidPattern immediately rather than being discovered
// mid-run.
func NewJob(operation string, cfg *config.JobConfig, global *config.GlobalConfig, st storage.Storage, pw storage.PasswordFunc, progress ProgressFunc) (*Job, error) {
	j := &Job{
		Operation: operation,
		Config:    cfg,
		Global:    global,
		Storage:   st,
		Password:  pw,
		Progress:  progress,
		ledger:    fragment.NewLedger(),
	}

	kind := patternKind(cfg.Options.PatternType)
	ignoreCase := cfg.Options.IgnoreCase

	if lst, err := compileEntryList(cfg.Include.Files, core.KindFile, kind, ignoreCase); err != nil {
		return nil, err
	} else if lst != nil {
		j.includeLists = append(j.includeLists, lst)
	}
	if lst, err := compileEntryList(cfg.Include.Images, core.KindImage, kind, ignoreCase); err != nil {
		return nil, err
	} else if lst != nil {
		j.includeLists = append(j.includeLists, lst)
	}
	if lst, err := compileEntryList(cfg.Include.Directories, core.KindDirectory, kind, ignoreCase); err != nil {
		return nil, err
	} else if lst != nil {
		j.includeLists = append(j.includeLists, lst)
	}

	if len(cfg.Exclude) > 0 {
		excl := &pattern.List{}
		for _, text := range cfg.Exclude {
			p, err := pattern.Compile(text, kind, ignoreCase)
			if err != nil {
				return nil, err
			}
			excl.Patterns = append(excl.Patterns, p)
		}
		j.excludeList = excl
	}

	for _, ds := range cfg.DeltaSources {
		j.deltaCands = append(j.deltaCands, deltasource.Candidate{StorageName: ds.Storage})
	}
	if len(j.deltaCands) > 0 {
		scratch := global.TempDir
		j.resolver = deltasource.NewResolver(scratch, st, cfg.Compress.Algorithm, cfg.Compress.Level, pw)
	}

	return j, nil
}

func patternKind(s string) pattern.Kind {
	switch s {
	case "regex":
		return pattern.Regex
	case "extended_regex":
		return pattern.ExtendedRegex
	default:
		return pattern.Glob
	}
}

func compileEntryList(patterns []string, kind core.EntryKind, pk pattern.Kind, ignoreCase bool) (*pattern.List, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	lst := &pattern.List{Kind: kind}
	for _, text := range patterns {
		p, err := pattern.Compile(text, pk, ignoreCase)
		if err != nil {
			return nil, err
		}
		lst.Patterns = append(lst.Patterns, p)
	}
	return lst, nil
}

// MaxWorkers resolves job.Config.Options.MaxThreads against the
// process-wide default and the available core count:
// min(job.max_threads, available_cores). 0 means "use core count" at
// both the job and global level.
func (j *Job) MaxWorkers(numCPU int) int {
	n := j.Config.Options.MaxThreads
	if n == 0 {
		n = j.Global.MaxThreads
	}
	if n == 0 || n > numCPU {
		n = numCPU
	}
	if n < 1 {
		n = 1
	}
	return n
}

// ─── internal/control.Controllable ───

func (j *Job) Pause()  { j.paused.Store(true) }
func (j *Job) Resume() { j.paused.Store(false) }
func (j *Job) Abort()  { j.aborted.Store(true) }

func (j *Job) Status() control.StatusInfo {
	return control.StatusInfo{
		Operation: j.Operation,
		Paused:    j.paused.Load(),
		Aborted:   j.aborted.Load(),
		Processed: j.processed.Load(),
		Total:     j.total.Load(),
	}
}

// checkpoint blocks while paused on a 500ms sleep-loop and reports
// whether the caller should abort promptly.
func (j *Job) checkpoint() bool {
	for j.paused.Load() && !j.aborted.Load() {
		sleep500ms()
	}
	return j.aborted.Load()
}

// recordFailure stores err as the job's fail_error if none has been
// recorded yet: the first recorded fail_error wins.
func (j *Job) recordFailure(err error) {
	if err == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.failErr == nil {
		j.failErr = err
	}
}

func (j *Job) recordDifference(name string, offset uint64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.differences = append(j.differences, Difference{Name: name, Offset: offset})
}

func (j *Job) recordWarning(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.warnings = append(j.warnings, msg)
}

// stopOnError reports whether a per-entry failure aborts the job's
// remaining entries. Independently of this, workerLoop propagates the
// first per-entry failure as the archive's error (and so the job's
// fail_error) unless no_stop_on_error downgrades it to a warning.
func (j *Job) stopOnError() bool {
	if j.Config.Options.NoStopOnError {
		return false
	}
	return j.Config.Options.StopOnError
}

// Result summarizes one driver.Run invocation's end-of-operation
// reporting.
type Result struct {
	Operation   string
	FailError   error
	Incomplete  []string
	Warnings    []string
	Differences []Difference
	Processed   int64
}

// Difference is one Compare mismatch: the content at Name first
// diverges from the archived entry at Offset.
type Difference struct {
	Name   string
	Offset uint64
}

func fmtClose(kind, name string, err error) string {
	return fmt.Sprintf("close '%s' entry fail (error: %v)", kind, err)
}
