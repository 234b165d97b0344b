package driver

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/vaultarc/vaultarc/internal/archive"
	"github.com/vaultarc/vaultarc/internal/core"
	"github.com/vaultarc/vaultarc/internal/log"
)

// runCreate implements the Create operation: walk
// job.Config.Sources, build a core.Entry per filesystem object found,
// and write it through the write side of C4 (internal/archive). Unlike
// test/compare/restore/convert, create has no existing archive to
// sequentially walk for offsets -- filesystem discovery (fswalk_linux.go
// / fswalk_other.go)
// plays the role the single reader goroutine plays for the other
// operations, and a worker pool reads + encodes file bodies in
// parallel while a mutex serializes the actual writes to the shared
// output archive.Handle, following the same shape convert.go uses for
// its output side.
func runCreate(ctx context.Context, job *Job) error {
	if len(job.Config.Storages) == 0 {
		return fmt.Errorf("driver: create job names no storage")
	}
	storageName := job.Config.Storages[0]

	w, err := job.Storage.OpenWrite(storageName)
	if err != nil {
		return fmt.Errorf("open %s: %w", job.Storage.PrintableName(storageName), err)
	}
	defer w.Close()
	h := archive.NewWriteHandle(w)

	entries, err := walkSources(job)
	if err != nil {
		return err
	}

	queue := make(chan *walkedEntry, queueCapacity)
	errCh := make(chan error, 1)
	var wg sync.WaitGroup
	var writeMu sync.Mutex

	numWorkers := job.MaxWorkers(runtime.NumCPU())
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for we := range queue {
				if job.aborted.Load() {
					return
				}
				if job.checkpoint() {
					return
				}
				if err := createOne(ctx, job, h, &writeMu, we); err != nil {
					reportCreate(we.name, err)
					select {
					case errCh <- err:
					default:
					}
					if job.stopOnError() {
						job.Abort()
						return
					}
					continue
				}
				reportCreate(we.name, nil)
				job.processed.Add(1)
			}
		}()
	}

	for _, we := range entries {
		if job.aborted.Load() {
			break
		}
		queue <- we
	}
	close(queue)
	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
	}
	return nil
}

// createOne reads one filesystem entry's content (if it has one),
// builds its write-side codec stack, and emits it to the shared output
// handle under writeMu.
func createOne(ctx context.Context, job *Job, h *archive.Handle, writeMu *sync.Mutex, we *walkedEntry) error {
	if we.readPath == "" {
		writeMu.Lock()
		defer writeMu.Unlock()
		cur, err := h.NewEntry(we.entry, job.ledger)
		if err != nil {
			return err
		}
		return cur.CloseEntry()
	}

	fi, err := os.Stat(we.readPath)
	if err != nil {
		return err
	}
	size := uint64(fi.Size())
	frag := core.Fragment{Offset: 0, Size: size}
	setFragment(we.entry, frag)

	var deltaSource []byte
	if job.resolver != nil && len(job.deltaCands) > 0 {
		if src, err := job.resolver.Open(ctx, we.name, job.deltaCands); err == nil {
			deltaSource, _ = src.FullBytes()
		}
	}

	stack, crypt, err := encodeStackFor(job, deltaSource)
	if err != nil {
		return err
	}

	applyCrypt(we.entry, crypt)
	if deltaSource != nil {
		setDeltaSourceName(we.entry, we.readPath)
	}

	f, err := os.Open(we.readPath)
	if err != nil {
		return err
	}
	defer f.Close()

	writeMu.Lock()
	defer writeMu.Unlock()
	cur, err := h.NewEntry(we.entry, job.ledger)
	if err != nil {
		return err
	}
	if err := writeEntryBody(job, we.name, size, stack, f, frag, cur); err != nil {
		return err
	}
	return cur.CloseEntry()
}

func setFragment(e *core.Entry, frag core.Fragment) {
	switch e.Kind {
	case core.KindFile:
		e.File.Fragment = frag
	case core.KindHardLink:
		e.HardLink.Fragment = frag
	}
}

func applyCrypt(e *core.Entry, crypt core.CryptHeader) {
	switch e.Kind {
	case core.KindFile:
		e.File.Crypt = crypt
	case core.KindImage:
		e.Image.Crypt = crypt
	case core.KindHardLink:
		e.HardLink.Crypt = crypt
	}
}

func setDeltaSourceName(e *core.Entry, name string) {
	if e.Kind == core.KindFile {
		e.File.DeltaSourceName = name
	}
}

func reportCreate(name string, err error) {
	l := log.GetLogger()
	if l == nil {
		return
	}
	if err != nil {
		l.Info(fmt.Sprintf("Create file '%s'...FAIL!", name))
		return
	}
	l.Info(fmt.Sprintf("Create file '%s'...OK", name))
}
