// Package trust holds the dimensional trust score and the event-driven
// engine that mutates it.
package trust

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Dimension names a sub-score of a trust score.
type Dimension string

const (
	PolicyCompliance    Dimension = "policy_compliance"
	ResourceEfficiency  Dimension = "resource_efficiency"
	OutputQuality       Dimension = "output_quality"
	SecurityPosture     Dimension = "security_posture"
	CollaborationHealth Dimension = "collaboration_health"
)

// AllDimensions lists the dimensions in their canonical order.
var AllDimensions = []Dimension{
	PolicyCompliance,
	ResourceEfficiency,
	OutputQuality,
	SecurityPosture,
	CollaborationHealth,
}

const (
	MinDimension     = 0
	MaxDimension     = 100
	InitialDimension = 80
	MaxTotal         = 1000
)

// weights in integer percent, summing to 100
var weights = map[Dimension]int{
	PolicyCompliance:    25,
	ResourceEfficiency:  15,
	OutputQuality:       20,
	SecurityPosture:     25,
	CollaborationHealth: 15,
}

// Weight returns the fractional weight of d, or 0 for an unknown dimension.
func Weight(d Dimension) float64 {
	return float64(weights[d]) / 100
}

// Dimensions is the five-way breakdown of a trust score.
type Dimensions struct {
	PolicyCompliance    int `json:"policy_compliance"`
	ResourceEfficiency  int `json:"resource_efficiency"`
	OutputQuality       int `json:"output_quality"`
	SecurityPosture     int `json:"security_posture"`
	CollaborationHealth int `json:"collaboration_health"`
}

// Uniform returns dimensions all set to v (clamped).
func Uniform(v int) Dimensions {
	return Dimensions{v, v, v, v, v}.Clamp()
}

// Get returns the value of dimension d.
func (d Dimensions) Get(dim Dimension) int {
	switch dim {
	case PolicyCompliance:
		return d.PolicyCompliance
	case ResourceEfficiency:
		return d.ResourceEfficiency
	case OutputQuality:
		return d.OutputQuality
	case SecurityPosture:
		return d.SecurityPosture
	case CollaborationHealth:
		return d.CollaborationHealth
	}
	return 0
}

// Clamp returns a copy with every dimension forced into [0,100].
func (d Dimensions) Clamp() Dimensions {
	return Dimensions{
		PolicyCompliance:    clamp(d.PolicyCompliance),
		ResourceEfficiency:  clamp(d.ResourceEfficiency),
		OutputQuality:       clamp(d.OutputQuality),
		SecurityPosture:     clamp(d.SecurityPosture),
		CollaborationHealth: clamp(d.CollaborationHealth),
	}
}

func clamp(v int) int {
	if v < MinDimension {
		return MinDimension
	}
	if v > MaxDimension {
		return MaxDimension
	}
	return v
}

// CalculateTotal returns round(Σ d_i·w_i·10). Weights are kept as integer
// percents so the sum is exact before the single rounding step.
func CalculateTotal(d Dimensions) int {
	sum := 0
	for _, dim := range AllDimensions {
		sum += d.Get(dim) * weights[dim]
	}
	// sum is in hundredths of a point on the 0..100 scale; total = sum/10
	return int(math.Round(float64(sum) / 10))
}

// Tier is a coarse bracket of the total score.
type Tier string

const (
	TierUntrusted     Tier = "Untrusted"
	TierBasic         Tier = "Basic"
	TierVerified      Tier = "Verified"
	TierTrusted       Tier = "Trusted"
	TierHighlyTrusted Tier = "Highly Trusted"
)

var tierThresholds = []struct {
	min  int
	tier Tier
}{
	{900, TierHighlyTrusted},
	{750, TierTrusted},
	{600, TierVerified},
	{400, TierBasic},
}

// TierOf maps a total to its tier, first match from the top wins.
func TierOf(total int) Tier {
	for _, t := range tierThresholds {
		if total >= t.min {
			return t.tier
		}
	}
	return TierUntrusted
}

// Rank orders tiers from Untrusted (0) to Highly Trusted (4). Unknown tiers rank -1.
func (t Tier) Rank() int {
	switch t {
	case TierUntrusted:
		return 0
	case TierBasic:
		return 1
	case TierVerified:
		return 2
	case TierTrusted:
		return 3
	case TierHighlyTrusted:
		return 4
	}
	return -1
}

// Score is an agent's trust score. Total and tier are always derived from the
// dimensions and cannot be set independently.
type Score struct {
	dims        Dimensions
	lastUpdated time.Time
}

// NewScore builds a score from dims, clamping them.
func NewScore(dims Dimensions, lastUpdated time.Time) Score {
	return Score{dims: dims.Clamp(), lastUpdated: lastUpdated.UTC()}
}

// NewInitialScore is the score every agent receives at registration.
func NewInitialScore(now time.Time) Score {
	return NewScore(Uniform(InitialDimension), now)
}

func (s Score) Dimensions() Dimensions { return s.dims }
func (s Score) LastUpdated() time.Time { return s.lastUpdated }
func (s Score) Total() int             { return CalculateTotal(s.dims) }
func (s Score) Tier() Tier             { return TierOf(s.Total()) }

type scoreJSON struct {
	Total       int        `json:"total"`
	Tier        Tier       `json:"tier"`
	Dimensions  Dimensions `json:"dimensions"`
	LastUpdated time.Time  `json:"last_updated"`
}

// MarshalJSON emits the derived total and tier alongside the dimensions.
func (s Score) MarshalJSON() ([]byte, error) {
	return json.Marshal(scoreJSON{
		Total:       s.Total(),
		Tier:        s.Tier(),
		Dimensions:  s.dims,
		LastUpdated: s.lastUpdated,
	})
}

// UnmarshalJSON reads dimensions and last_updated only; any stored total or
// tier is discarded and re-derived.
func (s *Score) UnmarshalJSON(data []byte) error {
	var raw scoreJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = NewScore(raw.Dimensions, raw.LastUpdated)
	return nil
}

// MeetsThreshold reports whether the score's total is at least threshold.
func MeetsThreshold(s Score, threshold int) bool {
	return s.Total() >= threshold
}

// Format renders a score as "800/1000 (Verified)".
func Format(s Score) string {
	return fmt.Sprintf("%d/%d (%s)", s.Total(), MaxTotal, s.Tier())
}
