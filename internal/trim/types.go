package trim

import (
	"errors"
	"time"
)

// ErrMissingTimestamp is returned when a track point carries no <time>.
var ErrMissingTimestamp = errors.New("GPX point is missing its <time> stamp")

// defaultFallbackKeep is kept from a pause when no moving speed has been
// observed yet.
const defaultFallbackKeep = time.Second

// Config holds pause-trimming parameters
type Config struct {
	// MinSpeed is the speed in m/s below which motion counts as stationary.
	// Zero disables soft-pause detection.
	MinSpeed float64

	// MinPauseDuration is how long a slow run or a segment gap must last
	// before it is shortened.
	MinPauseDuration time.Duration

	// FallbackKeep is the part of a pause kept when the track has no moving
	// baseline yet. Zero means one second.
	FallbackKeep time.Duration
}

// DefaultConfig returns the parameters used by the CLI and the web front end
func DefaultConfig() Config {
	return Config{
		MinSpeed:         0.1,               // 0.36 km/h
		MinPauseDuration: 240 * time.Second, // 4 min
		FallbackKeep:     defaultFallbackKeep,
	}
}

// Kind tells the two pause flavours apart.
type Kind string

const (
	// Soft pauses are slow runs inside one segment.
	Soft Kind = "soft"
	// Hard pauses are time gaps between consecutive segments.
	Hard Kind = "hard"
)

// Pause describes one long pause that was shortened.
type Pause struct {
	Kind    Kind
	Start   time.Time
	Gap     time.Duration
	Removed time.Duration
	// Drift is the distance in meters covered during the pause, or the
	// straight-line distance across a segment gap.
	Drift float64
}

// Stats aggregates the trimming of one track.
type Stats struct {
	Pauses         []Pause
	RemovedTime    time.Duration
	PauseDrift     float64
	CumShift       time.Duration
	OrigElapsed    time.Duration
	TrimmedElapsed time.Duration
	ActivityStart  time.Time

	OriginalPoints int
	FinalPoints    int
	// MovingSpeed is the average speed in m/s outside of pauses.
	MovingSpeed float64
}
