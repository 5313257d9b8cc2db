package report

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/planbiir/gpxtrim/internal/trim"
)

// Summary aggregates the pauses of one track. Durations are in seconds.
type Summary struct {
	Pauses       int     `json:"pauses"`
	SoftPauses   int     `json:"soft_pauses"`
	HardPauses   int     `json:"hard_pauses"`
	MeanGap      float64 `json:"mean_gap_s"`
	LongestGap   float64 `json:"longest_gap_s"`
	MeanRemoved  float64 `json:"mean_removed_s"`
	TotalRemoved float64 `json:"total_removed_s"`
	RemovedShare float64 `json:"removed_share"`
}

// Summarize computes pause statistics for st. RemovedShare is the removed
// fraction of the original elapsed time.
func Summarize(st trim.Stats) Summary {
	s := Summary{Pauses: len(st.Pauses)}
	if len(st.Pauses) == 0 {
		return s
	}

	gaps := make([]float64, len(st.Pauses))
	removed := make([]float64, len(st.Pauses))
	for i, p := range st.Pauses {
		gaps[i] = p.Gap.Seconds()
		removed[i] = p.Removed.Seconds()
		switch p.Kind {
		case trim.Soft:
			s.SoftPauses++
		case trim.Hard:
			s.HardPauses++
		}
	}

	s.MeanGap = stat.Mean(gaps, nil)
	s.LongestGap = floats.Max(gaps)
	s.MeanRemoved = stat.Mean(removed, nil)
	s.TotalRemoved = floats.Sum(removed)
	if orig := st.OrigElapsed.Seconds(); orig > 0 {
		s.RemovedShare = s.TotalRemoved / orig
	}
	return s
}
