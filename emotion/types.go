package emotion

import "time"

// Score is one label/score pair returned by the recognition model.
type Score struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// VAD is a valence/arousal pair as reported by the model. Values are not
// guaranteed to be in range until they pass through an Aggregator.
type VAD struct {
	Valence float64 `json:"valence"`
	Arousal float64 `json:"arousal"`
}

// Result is the scored output for a single clip.
type Result struct {
	Scores []Score `json:"scores"`
	VAD    *VAD    `json:"vad,omitempty"`
}

// Share is a label's percentage of the summed scores in the rolling window.
type Share struct {
	Label   string  `json:"label"`
	Percent float64 `json:"percent"`
}

// Point is a clamped valence/arousal sample on the trail. Only the most
// recent point is New.
type Point struct {
	Valence   float64   `json:"valence"`
	Arousal   float64   `json:"arousal"`
	New       bool      `json:"new"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is the aggregate view after a result has been processed.
type Snapshot struct {
	Top    []Share `json:"top"`
	Latest *Point  `json:"latest,omitempty"`
	Trail  []Point `json:"trail,omitempty"`
}

// Dominant returns the highest ranked label, or "" when nothing has been
// scored yet.
func (s Snapshot) Dominant() string {
	if len(s.Top) == 0 {
		return ""
	}
	return s.Top[0].Label
}
