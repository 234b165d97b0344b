package driver

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/vaultarc/vaultarc/internal/archive"
	"github.com/vaultarc/vaultarc/internal/codec"
	"github.com/vaultarc/vaultarc/internal/core"
	"github.com/vaultarc/vaultarc/internal/log"
	"github.com/vaultarc/vaultarc/internal/storage"
)

func sleep500ms() { time.Sleep(500 * time.Millisecond) }

const queueCapacity = 256 // the bounded work queue

// Run dispatches job.Config.Storages to the operation named by
// job.Operation: for each storage name in the job's storage list, it
// opens that name as a single archive and runs the visitor against it.
// Storage names are not expanded as patterns: each name is opened
// as-is and must name one archive. Per-archive failures do not block
// the next archive in the list unless stop_on_error is also set.
func Run(ctx context.Context, job *Job) *Result {
	res := &Result{Operation: job.Operation}

	switch job.Operation {
	case "create":
		if err := runCreate(ctx, job); err != nil {
			job.recordFailure(err)
		}
	case "test", "compare", "restore", "convert":
		v, err := visitorFor(job)
		if err != nil {
			job.recordFailure(err)
			break
		}
		for _, name := range job.Config.Storages {
			if job.aborted.Load() {
				break
			}
			if err := runArchiveOperation(ctx, job, name, v); err != nil {
				job.recordFailure(err)
				if job.Config.Options.StopOnError {
					break
				}
			}
		}
	default:
		job.recordFailure(fmt.Errorf("driver: unknown operation %q", job.Operation))
	}

	if !job.Config.Options.NoFragmentsCheck {
		for _, name := range job.ledger.Keys() {
			if job.ledger.IsComplete(name) {
				continue
			}
			msg := fmt.Sprintf("Warning: incomplete entry '%s'", name)
			job.recordWarning(msg)
			if l := log.GetLogger(); l != nil {
				l.Warn(msg)
			}
			job.recordFailure(fmt.Errorf("%w: %s", core.ErrEntryIncomplete, name))
			res.Incomplete = append(res.Incomplete, name)
		}
	}

	job.mu.Lock()
	res.FailError = job.failErr
	res.Warnings = append(res.Warnings, job.warnings...)
	res.Differences = append(res.Differences, job.differences...)
	job.mu.Unlock()
	res.Processed = job.processed.Load()
	return res
}

// archiveLifecycle is implemented by visitors that need to open/close a
// resource scoped to one archive's worth of work -- convert's
// rewritten output archive, in particular, which is written to a
// temporary archive and promoted over the original name once the
// source is fully consumed. Visitors that don't need this
// (test/compare/restore) don't implement it.
type archiveLifecycle interface {
	BeginArchive(storageName string) error
	EndArchive(storageName string) error
}

func visitorFor(job *Job) (Visitor, error) {
	switch job.Operation {
	case "test":
		return &testVisitor{job: job}, nil
	case "compare":
		return &compareVisitor{job: job}, nil
	case "restore":
		return &restoreVisitor{job: job}, nil
	case "convert":
		return newConvertVisitor(job)
	default:
		return nil, fmt.Errorf("driver: unknown operation %q", job.Operation)
	}
}

// entryMsg is one entry dispatched from the single reader goroutine to
// a worker -- the reader is the only task touching the shared archive
// cursor; it records the byte offset of the entry so workers can open
// independent handles and seek there.
type entryMsg struct {
	name   string
	kind   core.EntryKind
	offset int64
}

// countingReader tracks how many bytes have been read through it, so
// the reader goroutine can record each entry's starting byte offset
// for workers to seek to independently.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Worker is the per-goroutine state for one dequeued entry: its own
// archive handle (seeked to the entry's offset) and storage reader, and
// the shared job, which holds the delta-source resolver. Handles are
// never shared across workers.
type Worker struct {
	Job     *Job
	Handle  *archive.Handle
	reader  storage.Reader
}

// runArchiveOperation implements the per-archive workflow:
// open storage, verify signatures (stub -- see DESIGN.md), seed the
// bounded work queue from a single reader goroutine, spawn
// min(max_threads, NumCPU) workers, join, and propagate the first
// failure.
func runArchiveOperation(ctx context.Context, job *Job, storageName string, v Visitor) error {
	r, err := job.Storage.OpenRead(storageName)
	if err != nil {
		return fmt.Errorf("open %s: %w", job.Storage.PrintableName(storageName), err)
	}
	defer r.Close()

	if lc, ok := v.(archiveLifecycle); ok {
		if err := lc.BeginArchive(storageName); err != nil {
			return err
		}
	}

	cr := &countingReader{r: r}
	h := archive.NewReadHandle(cr)

	queue := make(chan entryMsg, queueCapacity)
	errCh := make(chan error, 1)
	var wg sync.WaitGroup

	numWorkers := job.MaxWorkers(runtime.NumCPU())
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			workerLoop(ctx, job, storageName, queue, v, errCh)
		}()
	}

	readErr := feedQueue(job, h, cr, queue)
	close(queue)
	wg.Wait()

	var opErr error
	select {
	case err := <-errCh:
		opErr = err
	default:
	}
	if opErr == nil && readErr != nil && readErr != io.EOF {
		opErr = readErr
	}

	if lc, ok := v.(archiveLifecycle); ok {
		if endErr := lc.EndArchive(storageName); endErr != nil && opErr == nil {
			opErr = endErr
		}
	}
	return opErr
}

// feedQueue is step 2's single reader task: it walks
// every entry header in archive order, recording each entry's start
// offset, and drains (but discards) the body itself so it can find the
// next header -- the actual body processing happens independently in a
// worker that reopens the storage and seeks back to that offset.
func feedQueue(job *Job, h *archive.Handle, cr *countingReader, queue chan<- entryMsg) error {
	for {
		if job.aborted.Load() {
			return nil
		}
		offset := cr.n
		e, cur, err := h.ReadEntry(nil)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		for !cur.EOFData() {
			if _, _, err := cur.ReadData(); err != nil {
				break
			}
		}
		cur.CloseEntry()

		queue <- entryMsg{name: e.Name(), kind: e.Kind, offset: offset}
	}
}

// workerLoop dequeues entryMsgs and processes each one's full header +
// body independently, via its own seeked archive.Handle.
func workerLoop(ctx context.Context, job *Job, storageName string, queue <-chan entryMsg, v Visitor, errCh chan<- error) {
	for msg := range queue {
		if job.aborted.Load() {
			return
		}
		if job.checkpoint() {
			return
		}
		if err := processOne(ctx, job, storageName, msg, v); err != nil {
			if job.Config.Options.NoStopOnError {
				warn := "Warning: " + err.Error()
				job.recordWarning(warn)
				if l := log.GetLogger(); l != nil {
					l.Warn(warn)
				}
				continue
			}
			select {
			case errCh <- err:
			default:
			}
			if job.stopOnError() {
				job.Abort()
				return
			}
		}
	}
}

func processOne(ctx context.Context, job *Job, storageName string, msg entryMsg, v Visitor) error {
	r, err := job.Storage.OpenRead(storageName)
	if err != nil {
		return err
	}
	defer r.Close()
	if _, err := r.Seek(msg.offset, io.SeekStart); err != nil {
		return err
	}

	h := archive.NewReadHandle(r)
	e, cur, err := h.ReadEntry(job.ledger)
	if err != nil {
		return fmt.Errorf("read entry %q: %w", msg.name, err)
	}

	w := &Worker{Job: job, Handle: h, reader: r}

	if !job.passesFilter(e.Kind, e.Name()) {
		drainAndClose(cur)
		return nil
	}

	visitErr := dispatch(w, v, e, cur)
	// CloseEntry is called on every exit path, success or failure; its
	// own failure is downgraded to a warning and never masks a prior
	// success.
	if closeErr := cur.CloseEntry(); closeErr != nil {
		msg := fmtClose(e.Kind.String(), e.Name(), closeErr)
		job.recordWarning(msg)
		if l := log.GetLogger(); l != nil {
			l.Warn(msg)
		}
	}

	job.processed.Add(1)
	return visitErr
}

func drainAndClose(cur *archive.Cursor) {
	for !cur.EOFData() {
		if _, _, err := cur.ReadData(); err != nil {
			break
		}
	}
	cur.CloseEntry()
}

// decodeStackFor builds the read-side codec stack for a File/Image/
// HardLink entry, wiring delta-source resolution when the entry names
// one (the encode order reversed: crypt -> byte-compress ->
// delta).
func decodeStackFor(w *Worker, deltaSourceName string, crypt core.CryptHeader) (*codec.Stack, error) {
	opts := codec.Options{
		CompressAlgorithm: w.Job.Config.Compress.Algorithm,
		CompressLevel:     w.Job.Config.Compress.Level,
	}
	if crypt.Mode != core.CryptModeNone {
		pw, err := resolvePassword(w.Job, storage.PasswordModeDecrypt)
		if err != nil {
			return nil, err
		}
		opts.CryptEnabled = true
		opts.CryptPassword = pw
		opts.CryptSalt = crypt.Salt
	}
	if deltaSourceName != "" && w.Job.resolver != nil {
		src, err := w.Job.resolver.Open(context.Background(), deltaSourceName, w.Job.deltaCands)
		if err != nil {
			return nil, err
		}
		opts.DeltaAlgorithm = "xdelta"
		opts.DeltaSourceBlock = src.GetBlock
	}
	return codec.NewDecodeStack(opts)
}

func resolvePassword(job *Job, mode storage.PasswordMode) ([]byte, error) {
	if job.Password == nil {
		return nil, fmt.Errorf("driver: archive requires a password but none was configured")
	}
	return job.Password("password: ", mode)
}
