// Package sentiment implements the Sentiment Aggregator (spec §4.7): a
// per-ticker composite sentiment vector from news/forum/social data points
// with time-decay and source-credibility weighting.
package sentiment

import (
	"time"

	"github.com/nyxtrade/momentum-trader/internal/domain"
)

// DataPoint is one raw sentiment observation (spec §4.7).
type DataPoint struct {
	Text              string
	RawScore          float64 // [-1, 1]
	Confidence        float64 // [0, 1]
	Source            string
	Timestamp         time.Time
	AuthorCredibility float64 // >= 1
	Engagement        float64 // >= 1
}

// SourceWeights assigns a per-source-family weight (spec §4.7 examples:
// professional news 1.0, general social 0.5).
var SourceWeights = map[string]float64{
	"news":   1.0,
	"forum":  0.7,
	"social": 0.5,
}

// DomainLexicon is a tiny bag of domain-specific terms applied as a +-0.1
// per-hit adjustment to the generic polarity score (spec §4.7).
var DomainLexicon = map[string]float64{
	"upgrade":    0.1,
	"breakout":   0.1,
	"squeeze":    0.1,
	"beat":       0.1,
	"downgrade":  -0.1,
	"bankruptcy": -0.1,
	"delisting":  -0.1,
	"dilution":   -0.1,
}

// Trend classifies whether sentiment is moving in the window (spec §4.7).
type Trend string

const (
	TrendImproving    Trend = "improving"
	TrendDeteriorating Trend = "deteriorating"
	TrendStable       Trend = "stable"
)

// Vector is the aggregator's output for one ticker over one horizon.
type Vector struct {
	Ticker           domain.Ticker
	Score            float64 // [-1, 1]
	Confidence       float64 // [0, 1]
	Direction        domain.Direction
	SourceCounts     map[string]int
	Trend            Trend
}

// Horizon is the default lookback for sentiment aggregation (spec §4.7).
const Horizon = 24 * time.Hour

// timeDecay implements the linear decay floor of spec §4.7:
// max(0.1, 1 - age_hours/24).
func timeDecay(age time.Duration) float64 {
	ageHours := age.Hours()
	d := 1 - ageHours/24.0
	if d < 0.1 {
		return 0.1
	}
	return d
}

func sourceWeight(source string) float64 {
	if w, ok := SourceWeights[source]; ok {
		return w
	}
	return 0.5
}

// Aggregate computes the composite sentiment Vector for points observed at
// `now` (spec §4.7). Points outside the horizon are dropped before calling
// this function; a missing source is a soft miss handled by the caller
// simply supplying fewer points, never an error.
func Aggregate(ticker domain.Ticker, points []DataPoint, now time.Time) Vector {
	counts := map[string]int{}
	if len(points) == 0 {
		return Vector{Ticker: ticker, Direction: domain.DirectionNeutral, SourceCounts: counts, Trend: TrendStable}
	}

	var weightedSum, totalWeight float64
	for _, p := range points {
		age := now.Sub(p.Timestamp)
		if age < 0 {
			age = 0
		}
		w := p.Confidence * maxF1(p.AuthorCredibility, 1) * maxF1(p.Engagement, 1) * timeDecay(age) * sourceWeight(p.Source)
		weightedSum += w * p.RawScore
		totalWeight += w
		counts[p.Source]++
	}

	score := 0.0
	if totalWeight > 0 {
		score = weightedSum / totalWeight
	}
	score = clampF(score, -1, 1)

	confidence := totalWeight / float64(len(points))
	if confidence > 1 {
		confidence = 1
	}

	direction := domain.DirectionNeutral
	if score > 0.1 {
		direction = domain.DirectionBullish
	} else if score < -0.1 {
		direction = domain.DirectionBearish
	}

	trend := trendOf(points, now)

	return Vector{
		Ticker:       ticker,
		Score:        score,
		Confidence:   confidence,
		Direction:    direction,
		SourceCounts: counts,
		Trend:        trend,
	}
}

// trendOf compares the mean score of the newer half of the window against
// the older half to classify improving/deteriorating/stable.
func trendOf(points []DataPoint, now time.Time) Trend {
	if len(points) < 4 {
		return TrendStable
	}
	cutoff := now.Add(-Horizon / 2)
	var olderSum, newerSum float64
	var olderN, newerN int
	for _, p := range points {
		if p.Timestamp.Before(cutoff) {
			olderSum += p.RawScore
			olderN++
		} else {
			newerSum += p.RawScore
			newerN++
		}
	}
	if olderN == 0 || newerN == 0 {
		return TrendStable
	}
	older := olderSum / float64(olderN)
	newer := newerSum / float64(newerN)
	delta := newer - older
	switch {
	case delta > 0.1:
		return TrendImproving
	case delta < -0.1:
		return TrendDeteriorating
	default:
		return TrendStable
	}
}

// ScoreRawText combines a generic polarity value with the domain lexicon
// adjustment (spec §4.7: "+-0.1 per hit"). polarity is expected to come from
// an external polarity model; this function only applies the lexicon nudge.
func ScoreRawText(polarity float64, hits []string) float64 {
	score := polarity
	for _, h := range hits {
		if adj, ok := DomainLexicon[h]; ok {
			score += adj
		}
	}
	return clampF(score, -1, 1)
}

func maxF1(v, floor float64) float64 {
	if v < floor {
		return floor
	}
	return v
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
