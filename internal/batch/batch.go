// Package batch trims single GPX documents and ZIP archives of them.
package batch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/errgroup"

	"github.com/planbiir/gpxtrim/internal/gpx"
	"github.com/planbiir/gpxtrim/internal/logger"
	"github.com/planbiir/gpxtrim/internal/metrics"
	"github.com/planbiir/gpxtrim/internal/report"
	"github.com/planbiir/gpxtrim/internal/trim"
)

// Options configures a Driver. Zero values fall back to defaults.
type Options struct {
	Trim    trim.Config
	Suffix  string
	Workers int
	Logger  logger.Logger
	Metrics *metrics.Recorder
}

// Driver runs the trimmer over documents and archives.
type Driver struct {
	trim    trim.Config
	suffix  string
	workers int
	log     logger.Logger
	metrics *metrics.Recorder
}

// Entry is the outcome for one document.
type Entry struct {
	// Name is the input name, repaired for archive entries.
	Name string
	// OutputName is where the trimmed document was written.
	OutputName string
	Stats      []trim.Stats
	// Original and Trimmed summarize the whole document before and after.
	Original report.Totals
	Trimmed  report.Totals
	Err      error

	data     []byte
	modified time.Time
}

// Result describes one Process or Run call.
type Result struct {
	RunID   string
	Input   string
	Output  string
	Archive bool
	Entries []Entry

	// Skipped counts archive entries that were not track files.
	Skipped int

	// Data holds the trimmed document or archive. It is nil when nothing
	// was trimmed.
	Data []byte

	// Path is the file written by Run, if any.
	Path string
}

// Processed returns the number of entries trimmed successfully.
func (r *Result) Processed() int {
	n := 0
	for _, e := range r.Entries {
		if e.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the entries that could not be trimmed.
func (r *Result) Failed() []Entry {
	var failed []Entry
	for _, e := range r.Entries {
		if e.Err != nil {
			failed = append(failed, e)
		}
	}
	return failed
}

// Empty reports an archive without a single track file.
func (r *Result) Empty() bool {
	return len(r.Entries) == 0
}

// New creates a Driver.
func New(opts Options) *Driver {
	d := &Driver{
		trim:    opts.Trim,
		suffix:  opts.Suffix,
		workers: opts.Workers,
		log:     opts.Logger,
		metrics: opts.Metrics,
	}
	if d.suffix == "" {
		d.suffix = DefaultSuffix
	}
	if d.workers < 1 {
		d.workers = runtime.NumCPU()
	}
	if d.log == nil {
		d.log = logger.Named("batch")
	}
	return d
}

// OutputName returns the output name for an input name.
func (d *Driver) OutputName(name string) string {
	return OutputName(name, d.suffix)
}

// Run trims the file at path and writes the result next to it.
func (d *Driver) Run(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	res, err := d.Process(ctx, filepath.Base(path), data)
	if err != nil {
		return nil, err
	}
	if res.Data == nil {
		return res, nil
	}

	res.Path = filepath.Join(filepath.Dir(path), res.Output)
	if err := os.WriteFile(res.Path, res.Data, 0o644); err != nil {
		return nil, fmt.Errorf("write output: %w", err)
	}
	return res, nil
}

// Process trims data. A name ending in .zip is read as an archive, anything
// else as a single GPX document. A single document that fails is returned as
// an error; archive entries fail individually.
func (d *Driver) Process(ctx context.Context, name string, data []byte) (*Result, error) {
	res := &Result{
		RunID:  uuid.NewString(),
		Input:  name,
		Output: d.OutputName(name),
	}

	if strings.EqualFold(filepath.Ext(name), ".zip") {
		res.Archive = true
		if err := d.archive(ctx, res, data); err != nil {
			return nil, err
		}
		return res, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e := d.document(ctx, res.RunID, name, data)
	if e.Err != nil {
		return nil, fmt.Errorf("%s: %w", name, e.Err)
	}
	res.Entries = []Entry{e}
	res.Data = e.data
	return res, nil
}

// document parses, trims and re-encodes one GPX document.
func (d *Driver) document(ctx context.Context, runID, name string, data []byte) Entry {
	start := time.Now()
	e := Entry{Name: name, OutputName: d.OutputName(name)}

	err := d.trimBytes(&e, data)
	if err != nil {
		e.Err = err
		d.metrics.ObserveEntry(metrics.OutcomeFailed, time.Since(start))
		d.log.Error(ctx, "trim failed",
			logger.String("run_id", runID), logger.String("entry", name), logger.Error(err))
		return e
	}

	for _, st := range e.Stats {
		d.metrics.ObserveTrack(st)
	}
	d.metrics.ObserveEntry(metrics.OutcomeTrimmed, time.Since(start))

	var pauses int
	var removed time.Duration
	for _, st := range e.Stats {
		pauses += len(st.Pauses)
		removed += st.RemovedTime
	}
	d.log.Debug(ctx, "entry trimmed",
		logger.String("run_id", runID), logger.String("entry", name),
		logger.Int("tracks", len(e.Stats)), logger.Int("pauses", pauses),
		logger.Float64("removed_s", removed.Seconds()),
		logger.Float64("distance_km", e.Original.DistanceKM))
	return e
}

// trimBytes fills the stats, totals and trimmed bytes of e.
func (d *Driver) trimBytes(e *Entry, data []byte) error {
	doc, err := gpx.ParseBytes(data)
	if err != nil {
		return err
	}

	trimmed, stats, err := trim.Document(doc, d.trim)
	if err != nil {
		return err
	}

	out, err := trimmed.Bytes()
	if err != nil {
		return err
	}

	e.data, e.Stats = out, stats
	e.Original, e.Trimmed = report.TotalsOf(doc), report.TotalsOf(trimmed)
	return nil
}

type member struct {
	file *zip.File
	name string
}

// archive trims every track file of a ZIP archive concurrently and packs
// the results, in archive order, into a new archive.
func (d *Driver) archive(ctx context.Context, res *Result, data []byte) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	var members []member
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}

		name, err := entryName(f)
		if err != nil {
			d.log.Warn(ctx, "entry name repaired",
				logger.String("run_id", res.RunID), logger.String("entry", name), logger.Error(err))
		}

		if !eligible(name) {
			res.Skipped++
			d.metrics.ObserveEntry(metrics.OutcomeSkipped, 0)
			continue
		}
		members = append(members, member{file: f, name: name})
	}

	res.Entries = make([]Entry, len(members))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	for i, m := range members {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res.Entries[i] = d.member(gctx, res.RunID, m)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if res.Processed() == 0 {
		return nil
	}

	out, err := d.pack(res.Entries)
	if err != nil {
		return err
	}
	res.Data = out
	return nil
}

func (d *Driver) member(ctx context.Context, runID string, m member) Entry {
	data, err := readFile(m.file)
	if err != nil {
		d.metrics.ObserveEntry(metrics.OutcomeFailed, 0)
		d.log.Error(ctx, "read entry failed",
			logger.String("run_id", runID), logger.String("entry", m.name), logger.Error(err))
		return Entry{Name: m.name, OutputName: d.OutputName(m.name), Err: err}
	}

	e := d.document(ctx, runID, m.name, data)
	e.modified = m.file.Modified
	return e
}

func readFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// pack writes the successful entries into a deflated archive.
func (d *Driver) pack(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, e := range entries {
		if e.Err != nil {
			continue
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.OutputName,
			Method:   zip.Deflate,
			Modified: e.modified,
		})
		if err != nil {
			return nil, fmt.Errorf("add %s: %w", e.OutputName, err)
		}
		if _, err := w.Write(e.data); err != nil {
			return nil, fmt.Errorf("write %s: %w", e.OutputName, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}
