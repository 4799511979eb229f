package inference

import (
	"errors"
	"slices"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/garlicgarrison/go-emotion-recorder/emotion"
)

var ErrUnexpectedResponse = errors.New("unexpected inference response")

const (
	labelValence = "valence"
	labelArousal = "arousal"
)

// scoreFields are the object keys searched, in order, for the score list.
var scoreFields = []string{"emotions", "scores", "predictions", "labels"}

// ParseOptions controls the positional VAD fallback. An index below zero, or
// both indexes pointing at the same slot, disables it.
type ParseOptions struct {
	ValenceIndex int
	ArousalIndex int
}

func DefaultParseOptions() ParseOptions {
	return ParseOptions{ValenceIndex: -1, ArousalIndex: -1}
}

// Parse decodes every response shape seen from hosted emotion models:
//
//	[{"label": "happy", "score": 0.8}, ...]
//	[[{"label": "happy", "score": 0.8}, ...]]
//	{"vad": {"valence": 0.6, "arousal": 0.4}, "emotions": [...]}
//	{"scores": {"happy": 0.8, "sad": 0.1}}
//
// Labels are lower-cased. Entries labelled valence or arousal are moved out
// of the scores and into the VAD pair. An explicit vad object wins over
// everything else.
func Parse(body []byte, opts ParseOptions) (emotion.Result, error) {
	if !gjson.ValidBytes(body) {
		return emotion.Result{}, ErrUnexpectedResponse
	}

	root := gjson.ParseBytes(body)
	for root.IsArray() {
		first := root.Get("0")
		if !first.IsArray() {
			break
		}
		root = first
	}

	switch {
	case root.IsArray():
		r, vad := parseScores(root)
		if vad == nil {
			if vad = positional(root, opts); vad != nil {
				r, _ = parseScores(root, opts.ValenceIndex, opts.ArousalIndex)
			}
		}
		r.VAD = vad
		return r, nil

	case root.IsObject():
		var (
			r   emotion.Result
			vad *emotion.VAD
		)
		found := false
		for _, field := range scoreFields {
			if v := root.Get(field); v.IsArray() || v.IsObject() {
				r, vad = parseScores(v)
				found = true
				break
			}
		}
		if v := root.Get("vad"); v.IsObject() {
			vad = &emotion.VAD{
				Valence: v.Get(labelValence).Float(),
				Arousal: v.Get(labelArousal).Float(),
			}
			found = true
		}
		if !found {
			return emotion.Result{}, ErrUnexpectedResponse
		}
		r.VAD = vad
		return r, nil
	}

	return emotion.Result{}, ErrUnexpectedResponse
}

// parseScores collects label/score pairs from a list or a label->score map.
// For lists, the items at the skip positions are left out.
func parseScores(v gjson.Result, skip ...int) (emotion.Result, *emotion.VAD) {
	var (
		r                      emotion.Result
		valence, arousal       float64
		hasValence, hasArousal bool
	)

	add := func(label string, score float64) {
		label = strings.ToLower(strings.TrimSpace(label))
		switch label {
		case "":
			return
		case labelValence:
			valence, hasValence = score, true
		case labelArousal:
			arousal, hasArousal = score, true
		default:
			r.Scores = append(r.Scores, emotion.Score{Label: label, Score: score})
		}
	}

	if v.IsObject() {
		v.ForEach(func(key, value gjson.Result) bool {
			if value.Type == gjson.Number {
				add(key.String(), value.Float())
			}
			return true
		})
	} else {
		i := -1
		v.ForEach(func(_, item gjson.Result) bool {
			i++
			if slices.Contains(skip, i) {
				return true
			}
			label := item.Get("label")
			if label.Type != gjson.String {
				return true
			}
			add(label.String(), item.Get("score").Float())
			return true
		})
	}

	if !hasValence && !hasArousal {
		return r, nil
	}
	return r, &emotion.VAD{Valence: valence, Arousal: arousal}
}

// positional reads the VAD pair from fixed array slots, for models that
// append their dimensional outputs to the label list. Those slots are not
// emotions and are dropped from the scores by the caller.
func positional(arr gjson.Result, opts ParseOptions) *emotion.VAD {
	if opts.ValenceIndex < 0 || opts.ArousalIndex < 0 || opts.ValenceIndex == opts.ArousalIndex {
		return nil
	}
	items := arr.Array()
	if opts.ValenceIndex >= len(items) || opts.ArousalIndex >= len(items) {
		return nil
	}
	return &emotion.VAD{
		Valence: items[opts.ValenceIndex].Get("score").Float(),
		Arousal: items[opts.ArousalIndex].Get("score").Float(),
	}
}
