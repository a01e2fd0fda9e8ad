// Package transfer copies a batch of files to a destination directory one at
// a time and verifies each copy against its source.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sdejongh/offload/pkg/hash"
	"github.com/sdejongh/offload/pkg/logging"
	"github.com/sdejongh/offload/pkg/models"
	"github.com/sdejongh/offload/pkg/ratelimit"
	"github.com/sdejongh/offload/pkg/storage"
)

// DefaultChunkSize is the copy granularity; one progress notification is sent per chunk
const DefaultChunkSize = 1 << 20

// Config holds engine settings. Zero values select the defaults.
type Config struct {
	// ChunkSize is the read and write size of the copy loop
	ChunkSize int
	// Digester verifies copies; defaults to an MD5 hasher
	Digester Digester
	// Limiter caps source read bandwidth; nil means unlimited
	Limiter *ratelimit.Limiter
	// Logger receives per-file outcomes
	Logger logging.Logger
	// OpenVolume opens the directories files are read from and written to;
	// defaults to storage.NewLocal
	OpenVolume func(dir string) (storage.Backend, error)
}

// Engine runs at most one transfer at a time on a background goroutine.
//
// While a run is active the engine is the only writer of the status of the
// records in its batch.
type Engine struct {
	chunkSize  int
	bufferPool *sync.Pool
	digester   Digester
	limiter    *ratelimit.Limiter
	logger     logging.Logger
	openVolume func(dir string) (storage.Backend, error)
	now        func() time.Time

	mu      sync.Mutex
	running bool
	done    chan struct{}

	stopRequested atomic.Bool
}

// NewEngine creates an idle engine
func NewEngine(config Config) *Engine {
	chunkSize := config.ChunkSize
	if chunkSize < 4096 {
		chunkSize = DefaultChunkSize
	}
	chunkSize = min(chunkSize, hash.MaxChunkSize)

	logger := logging.Component(config.Logger, "transfer")

	digester := config.Digester
	if digester == nil {
		digester = hash.NewHasher(hash.MD5, chunkSize, logger)
	}

	openVolume := config.OpenVolume
	if openVolume == nil {
		openVolume = func(dir string) (storage.Backend, error) {
			return storage.NewLocal(dir)
		}
	}

	return &Engine{
		chunkSize: chunkSize,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, chunkSize)
				return &buf
			},
		},
		digester:   digester,
		limiter:    config.Limiter,
		logger:     logger,
		openVolume: openVolume,
		now:        time.Now,
	}
}

// Start launches a run over batch into destDir and returns true. When a run
// is already active it does nothing and returns false.
//
// onProgress and onComplete may be nil. onComplete is called exactly once per
// accepted run, after the engine has become idle again.
func (e *Engine) Start(ctx context.Context, batch models.Batch, destDir string, onProgress ProgressFunc, onComplete CompleteFunc) bool {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return false
	}
	e.running = true
	e.stopRequested.Store(false)
	done := make(chan struct{})
	e.done = done
	e.mu.Unlock()

	if onProgress == nil {
		onProgress = func(Progress) {}
	}

	go e.run(ctx, batch, destDir, onProgress, onComplete, done)
	return true
}

// Stop asks the active run to abandon the current file and end. It returns
// immediately; use Wait to block until the run is over.
func (e *Engine) Stop() {
	e.stopRequested.Store(true)
}

// Running reports whether a run is active
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Wait blocks until the active run, if any, has delivered its report.
// It must not be called from a progress or completion callback.
func (e *Engine) Wait() {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (e *Engine) stopped(ctx context.Context) bool {
	return e.stopRequested.Load() || ctx.Err() != nil
}

// run is the per-batch worker
type run struct {
	ctx        context.Context
	logger     logging.Logger
	batch      models.Batch
	dest       storage.Backend
	destErr    error
	onProgress ProgressFunc
	report     *models.TransferReport

	start  time.Time
	copied int64
	total  int64
}

func (e *Engine) run(ctx context.Context, batch models.Batch, destDir string, onProgress ProgressFunc, onComplete CompleteFunc, done chan struct{}) {
	report := &models.TransferReport{
		RunID:     uuid.NewString(),
		DestPath:  destDir,
		StartTime: e.now(),
		Files:     make([]models.FileOutcome, len(batch)),
		Stats: models.Statistics{
			FilesTotal: len(batch),
			BytesTotal: batch.TotalBytes(),
		},
	}
	for i, rec := range batch {
		report.Files[i] = models.FileOutcome{Name: rec.Name, Path: rec.Path, Size: rec.Size}
	}

	r := &run{
		ctx:        ctx,
		logger:     e.logger.WithFields(logging.Fields{"run_id": report.RunID}),
		batch:      batch,
		onProgress: onProgress,
		report:     report,
		start:      report.StartTime,
		total:      report.Stats.BytesTotal,
	}

	defer func() {
		if p := recover(); p != nil {
			report.Fault = fmt.Sprintf("%v", p)
			r.logger.Error(ctx, "Transfer aborted", fmt.Errorf("panic: %v", p), nil)
		}

		report.Stats.BytesCopied = r.copied
		for i, rec := range batch {
			snap := rec.Snapshot()
			report.Files[i].Status = snap.Status
			report.Files[i].Error = snap.Error
		}
		report.Finalize(e.now())

		r.logger.Info(ctx, "Transfer finished", logging.Fields{
			"status":       string(report.Status),
			"files_synced": report.Stats.FilesSynced,
			"files_failed": report.Stats.FilesErrored,
			"bytes_copied": report.Stats.BytesCopied,
			"duration":     report.Duration.String(),
		})

		e.mu.Lock()
		e.running = false
		e.mu.Unlock()

		defer close(done)
		if onComplete != nil {
			onComplete(report)
		}
	}()

	r.dest, r.destErr = e.openVolume(destDir)

	r.logger.Info(ctx, "Transfer started", logging.Fields{
		"dest":        destDir,
		"files":       len(batch),
		"total_bytes": r.total,
	})

	for i, rec := range batch {
		if e.stopped(ctx) {
			e.abandon(r, i)
			return
		}

		fileStart := e.now()
		digest, err := e.transferFile(r, i, rec)
		report.Files[i].Elapsed = e.now().Sub(fileStart)

		switch {
		case errors.Is(err, ErrStopped):
			e.abandon(r, i)
			return
		case err != nil:
			e.fail(r, i, rec, err)
		default:
			report.Files[i].Digest = digest
			report.Stats.FilesSynced++
			rec.SetStatus(models.StatusSynced)
			r.logger.Info(ctx, "File verified", logging.Fields{"file": rec.Name, "digest": digest})
			e.emit(r, i, rec, PhaseSynced, fmt.Sprintf("Verified %d/%d: %s", i+1, len(batch), rec.Name), rec.Size, nil)
		}
	}
}

// transferFile copies then verifies one record. The returned error is
// ErrStopped when the run was stopped while the file was in flight.
func (e *Engine) transferFile(r *run, i int, rec *models.FileRecord) (string, error) {
	rec.SetStatus(models.StatusTransferring)
	e.emit(r, i, rec, PhaseCopying, e.copyingMessage(r, i, rec), 0, nil)

	if r.destErr != nil {
		return "", fmt.Errorf("destination unavailable: %w", r.destErr)
	}

	if err := e.copyFile(r, i, rec); err != nil {
		return "", err
	}

	rec.SetStatus(models.StatusVerifying)
	e.emit(r, i, rec, PhaseVerifying, fmt.Sprintf("Verifying %d/%d: %s", i+1, len(r.batch), rec.Name), rec.Size, nil)

	digest, err := e.verify(r.ctx, rec, r.dest, rec.Name)
	if err != nil && r.ctx.Err() != nil {
		return "", ErrStopped
	}
	return digest, err
}

func (e *Engine) copyFile(r *run, i int, rec *models.FileRecord) error {
	source, err := e.openVolume(filepath.Dir(rec.Path))
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	name := filepath.Base(rec.Path)

	rc, err := source.Open(r.ctx, name)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	src := ratelimit.NewReadCloser(r.ctx, rc, e.limiter)
	defer src.Close()

	srcInfo, err := source.Stat(r.ctx, name)
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}

	if exists, err := r.dest.Exists(r.ctx, rec.Name); err == nil && exists {
		r.logger.Info(r.ctx, "Replacing existing copy", logging.Fields{"file": rec.Name})
	}

	dst, err := r.dest.Create(r.ctx, rec.Name)
	if err != nil {
		return err
	}

	if err := e.copyChunks(r, i, rec, src, dst); err != nil {
		dst.Close()
		return err
	}

	// metadata must be set on the closed file
	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to close destination: %w", err)
	}

	if e.stopped(r.ctx) {
		return ErrStopped
	}

	if err := r.dest.SetMetadata(r.ctx, rec.Name, srcInfo.ModTime, os.FileMode(srcInfo.Permissions)); err != nil {
		r.logger.Warn(r.ctx, "Metadata not preserved", logging.Fields{"file": rec.Name, "error": err.Error()})
	}
	return nil
}

func (e *Engine) copyChunks(r *run, i int, rec *models.FileRecord, src io.Reader, dst io.Writer) error {
	bufPtr := e.bufferPool.Get().(*[]byte)
	defer e.bufferPool.Put(bufPtr)
	buf := *bufPtr

	message := e.copyingMessage(r, i, rec)
	var fileBytes int64

	for {
		if e.stopped(r.ctx) {
			return ErrStopped
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return fmt.Errorf("failed to write destination: %w", err)
			}
			fileBytes += int64(n)
			r.copied += int64(n)
			e.emit(r, i, rec, PhaseCopying, message, fileBytes, nil)
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			if e.stopped(r.ctx) {
				return ErrStopped
			}
			return fmt.Errorf("failed to read source: %w", readErr)
		}
	}
}

func (e *Engine) fail(r *run, i int, rec *models.FileRecord, err error) {
	r.report.Stats.FilesErrored++
	rec.MarkError(err)
	r.logger.Error(r.ctx, "File failed", err, logging.Fields{"file": rec.Name})
	e.emit(r, i, rec, PhaseFailed, fmt.Sprintf("Failed %d/%d: %s: %v", i+1, len(r.batch), rec.Name, err), 0, err)
}

// abandon ends the run at index i; the record keeps the status it had reached
func (e *Engine) abandon(r *run, i int) {
	r.report.Cancelled = true
	r.logger.Warn(r.ctx, "Transfer stopped", logging.Fields{
		"completed": i,
		"remaining": len(r.batch) - i,
	})
	e.emit(r, i, nil, PhaseStopped, fmt.Sprintf("Stopped after %d/%d files", i, len(r.batch)), 0, nil)
}

func (e *Engine) copyingMessage(r *run, i int, rec *models.FileRecord) string {
	return fmt.Sprintf("Copying %d/%d: %s", i+1, len(r.batch), rec.Name)
}

func (e *Engine) emit(r *run, i int, rec *models.FileRecord, phase Phase, message string, fileBytes int64, err error) {
	elapsed := e.now().Sub(r.start)
	throughput, eta := rates(r.copied, r.total, elapsed)

	p := Progress{
		Phase:      phase,
		Message:    message,
		Record:     rec,
		Err:        err,
		FileIndex:  i + 1,
		FileCount:  len(r.batch),
		FileBytes:  fileBytes,
		BatchBytes: r.copied,
		BatchTotal: r.total,
		Throughput: throughput,
		ETA:        eta,
		Elapsed:    elapsed,
	}
	if rec != nil {
		p.FileTotal = rec.Size
	}
	r.onProgress(p)
}
