package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/planbiir/gpxtrim/internal/gpx"
	"github.com/planbiir/gpxtrim/internal/trim"
)

// Document is the machine-readable view of one trimmed document.
type Document struct {
	Label    string  `json:"label"`
	Original Totals  `json:"original"`
	Trimmed  Totals  `json:"trimmed"`
	Tracks   []Track `json:"tracks"`
}

// Totals summarizes a whole document.
type Totals struct {
	Tracks     int     `json:"tracks"`
	Segments   int     `json:"segments"`
	Points     int     `json:"points"`
	Duration   float64 `json:"duration_s"`
	DistanceKM float64 `json:"distance_km"`
}

// TotalsOf counts the tracks, segments and points of doc and measures its
// duration and distance.
func TotalsOf(doc *gpx.GPX) Totals {
	points, tracks, segments, duration, distance := doc.Stats()
	return Totals{
		Tracks:     tracks,
		Segments:   segments,
		Points:     points,
		Duration:   duration.Seconds(),
		DistanceKM: distance,
	}
}

// Track mirrors trim.Stats with durations in seconds.
type Track struct {
	ActivityStart  *time.Time `json:"activity_start,omitempty"`
	OriginalPoints int        `json:"original_points"`
	FinalPoints    int        `json:"final_points"`
	OrigElapsed    float64    `json:"orig_elapsed_s"`
	TrimmedElapsed float64    `json:"trimmed_elapsed_s"`
	RemovedTime    float64    `json:"removed_time_s"`
	PauseDrift     float64    `json:"pause_drift_m"`
	MovingSpeed    float64    `json:"moving_speed_ms"`
	Pauses         []Pause    `json:"pauses"`
	Summary        Summary    `json:"summary"`
}

// Pause mirrors trim.Pause with durations in seconds.
type Pause struct {
	Kind    string    `json:"kind"`
	Start   time.Time `json:"start"`
	Gap     float64   `json:"gap_s"`
	Removed float64   `json:"removed_s"`
	Drift   float64   `json:"drift_m"`
}

// NewDocument converts document totals and per-track stats into the JSON
// view.
func NewDocument(label string, original, trimmed Totals, stats []trim.Stats) Document {
	doc := Document{
		Label:    label,
		Original: original,
		Trimmed:  trimmed,
		Tracks:   make([]Track, 0, len(stats)),
	}

	for _, st := range stats {
		trk := Track{
			OriginalPoints: st.OriginalPoints,
			FinalPoints:    st.FinalPoints,
			OrigElapsed:    st.OrigElapsed.Seconds(),
			TrimmedElapsed: st.TrimmedElapsed.Seconds(),
			RemovedTime:    st.RemovedTime.Seconds(),
			PauseDrift:     st.PauseDrift,
			MovingSpeed:    st.MovingSpeed,
			Pauses:         make([]Pause, 0, len(st.Pauses)),
			Summary:        Summarize(st),
		}
		if !st.ActivityStart.IsZero() {
			start := st.ActivityStart.UTC()
			trk.ActivityStart = &start
		}
		for _, p := range st.Pauses {
			trk.Pauses = append(trk.Pauses, Pause{
				Kind:    string(p.Kind),
				Start:   p.Start.UTC(),
				Gap:     p.Gap.Seconds(),
				Removed: p.Removed.Seconds(),
				Drift:   p.Drift,
			})
		}
		doc.Tracks = append(doc.Tracks, trk)
	}

	return doc
}

// JSON writes doc indented.
func JSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
