package transfer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/sdejongh/offload/pkg/compare"
	"github.com/sdejongh/offload/pkg/hash"
	"github.com/sdejongh/offload/pkg/models"
	"github.com/sdejongh/offload/pkg/scanner"
	"github.com/sdejongh/offload/pkg/storage"
)

const testChunk = 4096

// collector records progress notifications and the completion report
type collector struct {
	mu        sync.Mutex
	events    []Progress
	reports   []*models.TransferReport
	onEvent   func(Progress)
	completed chan struct{}
}

func newCollector() *collector {
	return &collector{completed: make(chan struct{}, 4)}
}

func (c *collector) progress(p Progress) {
	c.mu.Lock()
	c.events = append(c.events, p)
	hook := c.onEvent
	c.mu.Unlock()
	if hook != nil {
		hook(p)
	}
}

func (c *collector) complete(r *models.TransferReport) {
	c.mu.Lock()
	c.reports = append(c.reports, r)
	c.mu.Unlock()
	c.completed <- struct{}{}
}

func (c *collector) report() *models.TransferReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.reports) == 0 {
		return nil
	}
	return c.reports[len(c.reports)-1]
}

func (c *collector) phases(name string) []Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Phase
	for _, e := range c.events {
		if e.Record != nil && e.Record.Name == name {
			if len(out) == 0 || out[len(out)-1] != e.Phase {
				out = append(out, e.Phase)
			}
		}
	}
	return out
}

// countingDigester counts digest calls on top of a real hasher
type countingDigester struct {
	inner Digester
	calls atomic.Int32
	fail  func(path string) error
}

func (d *countingDigester) Digest(ctx context.Context, path string) (string, error) {
	d.calls.Add(1)
	if d.fail != nil {
		if err := d.fail(path); err != nil {
			return "", err
		}
	}
	return d.inner.Digest(ctx, path)
}

type fixture struct {
	sourceDir string
	destDir   string
}

func newFixture(t *testing.T, files map[string]int) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		sourceDir: filepath.Join(root, "A001"),
		destDir:   filepath.Join(root, "shuttle"),
	}
	os.MkdirAll(f.sourceDir, 0755)
	os.MkdirAll(f.destDir, 0755)

	for name, size := range files {
		content := make([]byte, size)
		for i := range content {
			content[i] = byte(i*7 + len(name))
		}
		if err := os.WriteFile(filepath.Join(f.sourceDir, name), content, 0640); err != nil {
			t.Fatalf("failed to create source file: %v", err)
		}
	}
	return f
}

func (f *fixture) batch(ctx context.Context) models.Batch {
	return models.SelectMissing(compare.Reconcile(ctx, scanner.Scan(ctx, f.sourceDir), f.destDir))
}

func newTestEngine(d Digester) *Engine {
	return NewEngine(Config{ChunkSize: testChunk, Digester: d})
}

func runToCompletion(g *WithT, e *Engine, ctx context.Context, batch models.Batch, dest string, c *collector) *models.TransferReport {
	g.Expect(e.Start(ctx, batch, dest, c.progress, c.complete)).To(BeTrue())
	g.Eventually(c.completed, 10*time.Second).Should(Receive())
	e.Wait()
	return c.report()
}

func TestEngineRoundTrip(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	f := newFixture(t, map[string]int{
		"A001C001.mov": 3*testChunk + 100,
		"A001C002.mov": testChunk,
		"empty.wav":    0,
	})

	modTime := time.Date(2023, 6, 1, 8, 30, 0, 0, time.UTC)
	os.Chtimes(filepath.Join(f.sourceDir, "A001C001.mov"), modTime, modTime)

	batch := f.batch(ctx)
	g.Expect(batch).To(HaveLen(3))

	e := newTestEngine(nil)
	c := newCollector()
	report := runToCompletion(g, e, ctx, batch, f.destDir, c)

	g.Expect(e.Running()).To(BeFalse())
	g.Expect(report.Status).To(Equal(models.RunSuccess))
	g.Expect(report.RunID).NotTo(BeEmpty())
	g.Expect(report.Stats.FilesSynced).To(Equal(3))
	g.Expect(report.Stats.BytesCopied).To(Equal(batch.TotalBytes()))

	for i, rec := range batch {
		g.Expect(rec.Status()).To(Equal(models.StatusSynced), rec.Name)
		g.Expect(report.Files[i].Status).To(Equal(models.StatusSynced))
		g.Expect(report.Files[i].Digest).To(HaveLen(32))

		src, _ := os.ReadFile(rec.Path)
		dst, err := os.ReadFile(filepath.Join(f.destDir, rec.Name))
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(bytes.Equal(src, dst)).To(BeTrue(), rec.Name)

		h := hash.NewHasher(hash.MD5, 0, nil)
		srcSum, _ := h.Sum(ctx, rec.Path)
		dstSum, _ := h.Sum(ctx, filepath.Join(f.destDir, rec.Name))
		g.Expect(dstSum).To(Equal(srcSum))
	}

	info, err := os.Stat(filepath.Join(f.destDir, "A001C001.mov"))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(info.ModTime().Equal(modTime)).To(BeTrue(), "modification time replicated")

	g.Expect(c.phases("A001C001.mov")).To(Equal([]Phase{PhaseCopying, PhaseVerifying, PhaseSynced}))

	t.Run("OneNotificationPerChunk", func(t *testing.T) {
		g := NewWithT(t)
		var chunks int
		for _, ev := range c.events {
			if ev.Record != nil && ev.Record.Name == "A001C001.mov" && ev.Phase == PhaseCopying && ev.FileBytes > 0 {
				chunks++
				g.Expect(ev.Message).To(Equal("Copying 1/3: A001C001.mov"))
				g.Expect(ev.FileTotal).To(Equal(int64(3*testChunk + 100)))
				g.Expect(ev.BatchTotal).To(Equal(batch.TotalBytes()))
			}
		}
		g.Expect(chunks).To(Equal(4))
	})

	t.Run("ReconcileAfterSuccessReportsSynced", func(t *testing.T) {
		g := NewWithT(t)
		again := compare.Reconcile(ctx, scanner.Scan(ctx, f.sourceDir), f.destDir)
		g.Expect(models.SelectMissing(again)).To(BeEmpty())
	})
}

func TestEngineStartWhileRunning(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	f := newFixture(t, map[string]int{"a.mov": 2 * testChunk, "b.mov": testChunk})
	batch := f.batch(ctx)

	e := newTestEngine(nil)
	c := newCollector()

	release := make(chan struct{})
	var once sync.Once
	c.onEvent = func(Progress) {
		once.Do(func() { <-release })
	}

	g.Expect(e.Start(ctx, batch, f.destDir, c.progress, c.complete)).To(BeTrue())
	g.Expect(e.Running()).To(BeTrue())

	second := newCollector()
	g.Expect(e.Start(ctx, batch, f.destDir, second.progress, second.complete)).To(BeFalse())

	close(release)
	g.Eventually(c.completed, 10*time.Second).Should(Receive())
	e.Wait()

	g.Expect(second.events).To(BeEmpty())
	g.Consistently(second.completed, 100*time.Millisecond).ShouldNot(Receive())
	g.Expect(c.report().Status).To(Equal(models.RunSuccess))

	// idle again: a new run is accepted
	third := newCollector()
	runToCompletion(g, e, ctx, models.Batch{}, f.destDir, third)
}

func TestEngineStop(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	f := newFixture(t, map[string]int{
		"1.mov": testChunk,
		"2.mov": 4 * testChunk,
		"3.mov": testChunk,
	})
	batch := f.batch(ctx)

	e := newTestEngine(nil)
	c := newCollector()
	c.onEvent = func(p Progress) {
		if p.Record != nil && p.Record.Name == "2.mov" && p.FileBytes > 0 {
			e.Stop()
		}
	}

	report := runToCompletion(g, e, ctx, batch, f.destDir, c)

	g.Expect(e.Running()).To(BeFalse())
	g.Expect(report.Cancelled).To(BeTrue())
	g.Expect(report.Status).To(Equal(models.RunCancelled))
	g.Expect(report.Stats.FilesSynced).To(Equal(1))
	g.Expect(report.Stats.FilesUntouched).To(Equal(2))

	g.Expect(batch[0].Status()).To(Equal(models.StatusSynced))
	g.Expect(batch[1].Status()).To(Equal(models.StatusTransferring))
	g.Expect(batch[2].Status()).To(Equal(models.StatusMissing))

	// abandoned partial file stays in place
	partial, err := os.Stat(filepath.Join(f.destDir, "2.mov"))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(partial.Size()).To(Equal(int64(testChunk)))
	g.Expect(filepath.Join(f.destDir, "3.mov")).NotTo(BeAnExistingFile())

	last := c.events[len(c.events)-1]
	g.Expect(last.Phase).To(Equal(PhaseStopped))
	g.Consistently(c.completed, 100*time.Millisecond).ShouldNot(Receive(), "completion fires once")
}

// eofVolume hands out source readers that report io.EOF together with the
// last bytes, as some network and FUSE filesystems do
type eofVolume struct {
	storage.Backend
}

func (v eofVolume) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	rc, err := v.Backend.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return eofReader{rc}, nil
}

type eofReader struct {
	io.ReadCloser
}

func (r eofReader) Read(p []byte) (int, error) {
	n, err := io.ReadFull(r.ReadCloser, p)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	return n, err
}

func TestEngineStopAfterLastChunk(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	f := newFixture(t, map[string]int{"a.mov": 100, "b.mov": 100})

	modTime := time.Date(2023, 6, 1, 8, 30, 0, 0, time.UTC)
	os.Chtimes(filepath.Join(f.sourceDir, "a.mov"), modTime, modTime)
	batch := f.batch(ctx)

	e := NewEngine(Config{
		ChunkSize: testChunk,
		OpenVolume: func(dir string) (storage.Backend, error) {
			local, err := storage.NewLocal(dir)
			if err != nil {
				return nil, err
			}
			return eofVolume{local}, nil
		},
	})
	c := newCollector()
	c.onEvent = func(p Progress) {
		if p.Phase == PhaseCopying && p.FileBytes > 0 {
			e.Stop()
		}
	}

	report := runToCompletion(g, e, ctx, batch, f.destDir, c)

	g.Expect(report.Status).To(Equal(models.RunCancelled))
	g.Expect(c.phases("a.mov")).To(Equal([]Phase{PhaseCopying}))
	g.Expect(batch[0].Status()).To(Equal(models.StatusTransferring))
	g.Expect(batch[1].Status()).To(Equal(models.StatusMissing))

	// the whole file was written but its metadata was not replicated
	info, err := os.Stat(filepath.Join(f.destDir, "a.mov"))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(info.Size()).To(Equal(int64(100)))
	g.Expect(info.ModTime().Equal(modTime)).To(BeFalse())
}

func TestEngineBackslashFileName(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("backslash is a path separator on windows")
	}
	g := NewWithT(t)
	ctx := context.Background()
	name := `A001\C001.mov`
	f := newFixture(t, map[string]int{name: 2*testChunk + 1})

	batch := f.batch(ctx)
	g.Expect(batch).To(HaveLen(1))
	g.Expect(batch[0].Name).To(Equal(name))

	report := runToCompletion(g, newTestEngine(nil), ctx, batch, f.destDir, newCollector())

	g.Expect(report.Status).To(Equal(models.RunSuccess))
	g.Expect(batch[0].Status()).To(Equal(models.StatusSynced))

	src, _ := os.ReadFile(batch[0].Path)
	dst, err := os.ReadFile(filepath.Join(f.destDir, name))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(bytes.Equal(src, dst)).To(BeTrue())
}

func TestEngineContextCancel(t *testing.T) {
	g := NewWithT(t)
	f := newFixture(t, map[string]int{"1.mov": testChunk, "2.mov": 3 * testChunk})
	batch := f.batch(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := newTestEngine(nil)
	c := newCollector()
	c.onEvent = func(p Progress) {
		if p.Record != nil && p.Record.Name == "2.mov" && p.Phase == PhaseCopying {
			cancel()
		}
	}

	report := runToCompletion(g, e, ctx, batch, f.destDir, c)
	g.Expect(report.Status).To(Equal(models.RunCancelled))
	g.Expect(batch[0].Status()).To(Equal(models.StatusSynced))
	g.Expect(batch[1].Status().IsTerminal()).To(BeFalse())
}

func TestEngineFlippedByteFailsVerification(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	f := newFixture(t, map[string]int{"clip.mov": 2 * testChunk, "next.mov": 10})

	// an existing copy with one flipped byte is indistinguishable by name and size
	src, _ := os.ReadFile(filepath.Join(f.sourceDir, "clip.mov"))
	corrupt := append([]byte(nil), src...)
	corrupt[testChunk] ^= 0xFF
	os.WriteFile(filepath.Join(f.destDir, "clip.mov"), corrupt, 0644)

	records := compare.Reconcile(ctx, scanner.Scan(ctx, f.sourceDir), f.destDir)
	g.Expect(records[0].Name).To(Equal("clip.mov"))
	g.Expect(records[0].Status()).To(Equal(models.StatusSynced))

	e := newTestEngine(nil)
	err := e.Verify(ctx, records[0], filepath.Join(f.destDir, "clip.mov"))
	g.Expect(errors.Is(err, ErrDigestMismatch)).To(BeTrue(), "got %v", err)

	// the engine catches corruption that happens between copy and verification
	c := newCollector()
	c.onEvent = func(p Progress) {
		if p.Phase == PhaseVerifying && p.Record.Name == "clip.mov" {
			os.WriteFile(filepath.Join(f.destDir, "clip.mov"), corrupt, 0644)
		}
	}
	report := runToCompletion(g, e, ctx, models.Batch(records), f.destDir, c)

	g.Expect(records[0].Status()).To(Equal(models.StatusError))
	g.Expect(errors.Is(records[0].Err(), ErrDigestMismatch)).To(BeTrue())
	g.Expect(records[1].Status()).To(Equal(models.StatusSynced), "batch continues after a failure")
	g.Expect(report.Status).To(Equal(models.RunPartial))
	g.Expect(report.Files[0].Error).To(ContainSubstring("digest mismatch"))
}

func TestEngineVerifyTruncated(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	f := newFixture(t, map[string]int{"video.mov": 1048576})
	os.WriteFile(filepath.Join(f.destDir, "video.mov"), make([]byte, 1048000), 0644)

	records := compare.Reconcile(ctx, scanner.Scan(ctx, f.sourceDir), f.destDir)
	g.Expect(records[0].Status()).To(Equal(models.StatusMissing))

	digester := &countingDigester{inner: hash.NewHasher(hash.MD5, 0, nil)}
	e := newTestEngine(digester)

	err := e.Verify(ctx, records[0], filepath.Join(f.destDir, "video.mov"))
	g.Expect(errors.Is(err, ErrSizeMismatch)).To(BeTrue(), "got %v", err)
	g.Expect(digester.calls.Load()).To(BeZero())

	t.Run("MissingDestination", func(t *testing.T) {
		g := NewWithT(t)
		err := e.Verify(ctx, records[0], filepath.Join(f.destDir, "gone.mov"))
		g.Expect(err).To(HaveOccurred())
		g.Expect(digester.calls.Load()).To(BeZero())
	})

	t.Run("Match", func(t *testing.T) {
		g := NewWithT(t)
		src, _ := os.ReadFile(records[0].Path)
		os.WriteFile(filepath.Join(f.destDir, "video.mov"), src, 0644)
		g.Expect(e.Verify(ctx, records[0], filepath.Join(f.destDir, "video.mov"))).To(Succeed())
		g.Expect(digester.calls.Load()).To(Equal(int32(2)))
	})
}

func TestEngineDigestUnavailable(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	f := newFixture(t, map[string]int{"a.wav": 100, "b.wav": 200})
	batch := f.batch(ctx)

	digester := &countingDigester{
		inner: hash.NewHasher(hash.XXH64, 0, nil),
		fail: func(path string) error {
			if strings.HasPrefix(path, f.destDir) && filepath.Base(path) == "a.wav" {
				return errors.New("i/o error")
			}
			return nil
		},
	}

	c := newCollector()
	report := runToCompletion(g, newTestEngine(digester), ctx, batch, f.destDir, c)

	g.Expect(errors.Is(batch[0].Err(), ErrDigestUnavailable)).To(BeTrue(), "got %v", batch[0].Err())
	g.Expect(batch[1].Status()).To(Equal(models.StatusSynced))
	g.Expect(report.Files[1].Digest).To(HaveLen(16))
	g.Expect(c.phases("a.wav")).To(Equal([]Phase{PhaseCopying, PhaseVerifying, PhaseFailed}))
}

func TestEngineSourceVanished(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	f := newFixture(t, map[string]int{"a.wav": 100, "b.wav": 200})
	batch := f.batch(ctx)
	os.Remove(batch[0].Path)

	report := runToCompletion(g, newTestEngine(nil), ctx, batch, f.destDir, newCollector())

	g.Expect(batch[0].Status()).To(Equal(models.StatusError))
	g.Expect(batch[0].Err().Error()).To(ContainSubstring("failed to open source"))
	g.Expect(batch[1].Status()).To(Equal(models.StatusSynced))
	g.Expect(report.Status).To(Equal(models.RunPartial))
}

func TestEngineDestinationUnavailable(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	f := newFixture(t, map[string]int{"a.wav": 100, "b.wav": 200})
	batch := f.batch(ctx)

	report := runToCompletion(g, newTestEngine(nil), ctx, batch, filepath.Join(f.destDir, "unplugged"), newCollector())

	g.Expect(report.Status).To(Equal(models.RunFailed))
	g.Expect(report.Stats.FilesErrored).To(Equal(2))
	for _, rec := range batch {
		g.Expect(rec.Status()).To(Equal(models.StatusError))
	}
}

func TestEngineRecoversPanic(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	f := newFixture(t, map[string]int{"a.wav": 100})

	c := newCollector()
	c.onEvent = func(Progress) { panic("presentation bug") }

	e := newTestEngine(nil)
	report := runToCompletion(g, e, ctx, f.batch(ctx), f.destDir, c)

	g.Expect(report.Fault).To(Equal("presentation bug"))
	g.Expect(report.Status).To(Equal(models.RunFailed))
	g.Expect(e.Running()).To(BeFalse())
}

func TestEngineIdleOnCompletion(t *testing.T) {
	g := NewWithT(t)
	e := newTestEngine(nil)

	var runningDuringCallback atomic.Bool
	runningDuringCallback.Store(true)
	done := make(chan struct{})

	g.Expect(e.Start(context.Background(), nil, t.TempDir(), nil, func(r *models.TransferReport) {
		runningDuringCallback.Store(e.Running())
		close(done)
	})).To(BeTrue())

	g.Eventually(done, 5*time.Second).Should(BeClosed())
	g.Expect(runningDuringCallback.Load()).To(BeFalse())
}

func TestRates(t *testing.T) {
	tests := []struct {
		name       string
		copied     int64
		total      int64
		elapsed    time.Duration
		throughput float64
		eta        time.Duration
	}{
		{"NotStarted", 0, 1000, time.Second, 0, 0},
		{"NoElapsed", 500, 1000, 0, 0, 0},
		{"Halfway", 500, 1000, time.Second, 500, time.Second},
		{"Done", 1000, 1000, 2 * time.Second, 500, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			throughput, eta := rates(tt.copied, tt.total, tt.elapsed)
			if throughput != tt.throughput || eta != tt.eta {
				t.Errorf("rates() = (%v, %v), want (%v, %v)", throughput, eta, tt.throughput, tt.eta)
			}
		})
	}

	if got := (Progress{BatchBytes: 25, BatchTotal: 100}).Fraction(); got != 0.25 {
		t.Errorf("Fraction() = %v, want 0.25", got)
	}
}
