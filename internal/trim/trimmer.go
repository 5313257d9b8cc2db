// Package trim shortens long pauses in GPS tracks so that elapsed time
// tracks moving time.
//
// Two kinds of pauses are handled. A soft pause is a run of points inside one
// segment whose instantaneous speed stays below Config.MinSpeed. A hard pause
// is the time gap between the last point of a segment and the first point of
// the next one. When a pause lasts at least Config.MinPauseDuration, only the
// time needed to cover its drift at the average moving speed is kept and every
// later timestamp of the track is shifted back by the rest.
package trim

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/planbiir/gpxtrim/internal/geo"
	"github.com/planbiir/gpxtrim/internal/gpx"
)

// Document trims every track of doc. The returned document shares nothing
// with doc; stats are returned in track order.
func Document(doc *gpx.GPX, cfg Config) (*gpx.GPX, []Stats, error) {
	if doc == nil {
		return nil, nil, errors.New("document is nil")
	}

	out := doc.Header()
	out.Tracks = make([]gpx.Track, 0, len(doc.Tracks))
	stats := make([]Stats, 0, len(doc.Tracks))

	for i, src := range doc.Tracks {
		trk, st, err := Track(src, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("track %d: %w", i, err)
		}
		out.Tracks = append(out.Tracks, trk)
		stats = append(stats, st)
	}

	return out, stats, nil
}

// Track trims long pauses from src and returns a time-shifted copy.
// src is never modified. A point without a timestamp fails the whole track
// with ErrMissingTimestamp before any output is built.
func Track(src gpx.Track, cfg Config) (gpx.Track, Stats, error) {
	if err := checkTimestamps(src); err != nil {
		return gpx.Track{}, Stats{}, err
	}

	t := &trimmer{cfg: cfg}
	out := gpx.Track{
		Name:        src.Name,
		Comment:     src.Comment,
		Description: src.Description,
		Type:        src.Type,
		Segments:    make([]gpx.TrackSegment, 0, len(src.Segments)),
		Extensions:  slices.Clone(src.Extensions),
	}

	for i, seg := range src.Segments {
		out.Segments = append(out.Segments, t.segment(seg))
		if i+1 < len(src.Segments) {
			t.hardPause(seg, src.Segments[i+1])
		}
	}

	t.finish(src, out)
	return out, t.stats, nil
}

func checkTimestamps(src gpx.Track) error {
	for s, seg := range src.Segments {
		for i, p := range seg.Points {
			if p.Time == nil {
				return fmt.Errorf("%w (segment %d, point %d)", ErrMissingTimestamp, s, i)
			}
		}
	}
	return nil
}

// trimmer carries the per-track state across segments.
type trimmer struct {
	cfg Config

	// shift is subtracted from every emitted timestamp.
	shift time.Duration

	// moving accumulators, meters and seconds outside of pauses
	movingDist float64
	movingTime float64

	stats Stats
}

// softPause is an open run of slow points; first indexes the first slow
// point, start is the timestamp of the point before it.
type softPause struct {
	first int
	start time.Time
	drift float64
}

func (t *trimmer) segment(src gpx.TrackSegment) gpx.TrackSegment {
	out := gpx.TrackSegment{Extensions: slices.Clone(src.Extensions)}
	pts := src.Points
	if len(pts) == 0 {
		return out
	}

	out.Points = make([]gpx.Point, 0, len(pts))
	w := &writer{seg: &out}
	w.emit(pts[0], t.shift)

	var pause *softPause
	for i := 1; i < len(pts); i++ {
		prev, curr := pts[i-1], pts[i]

		dt := curr.Time.Sub(*prev.Time)
		if dt <= 0 {
			// Duplicate or rewind: keep it in place. Inside an open pause
			// it stays buffered with the other pause points.
			if pause == nil {
				w.emit(curr, t.shift)
			}
			continue
		}

		d := geo.Distance(prev.Lat, prev.Lon, curr.Lat, curr.Lon)
		if d/dt.Seconds() < t.cfg.MinSpeed {
			if pause == nil {
				pause = &softPause{first: i, start: *prev.Time}
			}
			pause.drift += d
			continue
		}

		if pause != nil {
			t.closePause(w, pause, *curr.Time, pts[pause.first:i])
			pause = nil
		}

		w.emit(curr, t.shift)
		t.movingDist += d
		t.movingTime += dt.Seconds()
	}

	// A pause still open at the end of the segment closes on the last point.
	if pause != nil {
		last := pts[len(pts)-1]
		if t.closePause(w, pause, *last.Time, pts[pause.first:]) {
			w.emit(last, t.shift)
		}
	}

	return out
}

// closePause resolves a soft pause ending at closing. Short pauses are
// written back unchanged; long ones drop their buffered points and grow the
// shift. It reports whether the pause was trimmed.
func (t *trimmer) closePause(w *writer, p *softPause, closing time.Time, buffered []gpx.Point) bool {
	gap := closing.Sub(p.start)
	if gap < t.cfg.MinPauseDuration {
		for _, pt := range buffered {
			w.emit(pt, t.shift)
		}
		return false
	}

	t.cut(Soft, p.start, gap, p.drift)
	return true
}

// hardPause shortens the gap between two consecutive segments.
func (t *trimmer) hardPause(cur, next gpx.TrackSegment) {
	if len(cur.Points) == 0 || len(next.Points) == 0 {
		return
	}

	last, first := cur.Points[len(cur.Points)-1], next.Points[0]
	gap := first.Time.Sub(*last.Time)
	if gap < 0 || gap < t.cfg.MinPauseDuration {
		return
	}

	d := geo.Distance(last.Lat, last.Lon, first.Lat, first.Lon)
	t.cut(Hard, *last.Time, gap, d)
}

// cut keeps just enough of gap to cover dist at the moving speed and adds
// the rest to the shift.
func (t *trimmer) cut(kind Kind, start time.Time, gap time.Duration, dist float64) {
	keep := t.keepFor(dist, gap)
	removed := gap - keep

	t.stats.Pauses = append(t.stats.Pauses, Pause{
		Kind:    kind,
		Start:   start,
		Gap:     gap,
		Removed: removed,
		Drift:   dist,
	})
	t.stats.RemovedTime += removed
	t.stats.PauseDrift += dist
	t.stats.CumShift += removed
	t.shift += removed
}

// keepFor returns the part of gap needed to cover dist, never more than gap.
// The division runs in float seconds: a near-zero moving speed would
// overflow a Duration.
func (t *trimmer) keepFor(dist float64, gap time.Duration) time.Duration {
	if v := t.movingSpeed(); v > 0 {
		keep := dist / v
		if math.IsNaN(keep) || keep >= gap.Seconds() {
			return gap
		}
		return time.Duration(keep * float64(time.Second))
	}

	keep := defaultFallbackKeep
	if t.cfg.FallbackKeep > 0 {
		keep = t.cfg.FallbackKeep
	}
	return min(keep, gap)
}

func (t *trimmer) movingSpeed() float64 {
	if t.movingTime <= 0 {
		return 0
	}
	return t.movingDist / t.movingTime
}

func (t *trimmer) finish(src, out gpx.Track) {
	if first, last, ok := bounds(src); ok {
		t.stats.ActivityStart = first
		t.stats.OrigElapsed = last.Sub(first)
	}
	if first, last, ok := bounds(out); ok {
		t.stats.TrimmedElapsed = last.Sub(first)
	}
	t.stats.OriginalPoints = countPoints(src)
	t.stats.FinalPoints = countPoints(out)
	t.stats.MovingSpeed = t.movingSpeed()
}

// bounds returns the first and last timestamp of a track in point order.
func bounds(trk gpx.Track) (first, last time.Time, ok bool) {
	for _, seg := range trk.Segments {
		if len(seg.Points) == 0 {
			continue
		}
		if !ok {
			first = *seg.Points[0].Time
			ok = true
		}
		last = *seg.Points[len(seg.Points)-1].Time
	}
	return first, last, ok
}

func countPoints(trk gpx.Track) int {
	n := 0
	for _, seg := range trk.Segments {
		n += len(seg.Points)
	}
	return n
}

// writer appends shifted copies of source points to an output segment,
// keeping timestamps strictly increasing.
type writer struct {
	seg  *gpx.TrackSegment
	last time.Time
}

func (w *writer) emit(p gpx.Point, shift time.Duration) {
	ts := p.Time.Add(-shift)
	if len(w.seg.Points) > 0 && !ts.After(w.last) {
		ts = w.last.Add(time.Millisecond)
	}
	w.seg.Points = append(w.seg.Points, p.WithTime(ts))
	w.last = ts
}
