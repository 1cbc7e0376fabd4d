package scoring

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"gonum.org/v1/gonum/stat/distuv"
)

// AreaJitter bounds the simulated offset, in degrees, of a high-risk area
// from the base coordinate.
const AreaJitter = 0.1

// AreaCount is the number of simulated high-risk areas per prediction.
const AreaCount = 2

// Coordinate is a [latitude, longitude] pair.
type Coordinate [2]float64

func (c Coordinate) Lat() float64 { return c[0] }
func (c Coordinate) Lon() float64 { return c[1] }

// PredictionRecord is the result of scoring one InputRecord.
type PredictionRecord struct {
	Timestamp       time.Time    `json:"timestamp"`
	Location        string       `json:"location"`
	RiskScore       int          `json:"risk_score"`
	RiskLevel       RiskLevel    `json:"risk_level"`
	HighRiskAreas   []Coordinate `json:"high_risk_areas"`
	RiskFactors     RiskFactors  `json:"risk_factors"`
	Recommendations []string     `json:"recommendations"`
}

// Scorer computes accident risk predictions from a fixed Profile.
// It is safe for concurrent use.
type Scorer struct {
	profile Profile
	clock   clockwork.Clock

	mu     sync.Mutex
	jitter distuv.Uniform
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithClock sets the time source used for prediction timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(s *Scorer) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithSource sets the random source for simulated high-risk areas. A nil
// source falls back to the global generator.
func WithSource(src rand.Source) Option {
	return func(s *Scorer) {
		s.jitter.Src = src
	}
}

// NewScorer validates the profile and returns a Scorer bound to a private copy of it.
func NewScorer(p Profile, opts ...Option) (*Scorer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s := &Scorer{
		profile: p.clone(),
		clock:   clockwork.NewRealClock(),
		jitter:  distuv.Uniform{Min: -AreaJitter, Max: AreaJitter},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Profile returns a copy of the scorer's configuration.
func (s *Scorer) Profile() Profile {
	return s.profile.clone()
}

// Score builds a prediction for one input. It never fails: unknown
// categorical values fall back to their table defaults.
func (s *Scorer) Score(in InputRecord) PredictionRecord {
	factors := in.Factors()
	score := s.RiskScore(factors)
	level := LevelFromScore(score)
	lat, lon := in.base()

	return PredictionRecord{
		Timestamp:       s.clock.Now().UTC(),
		Location:        in.location(),
		RiskScore:       score,
		RiskLevel:       level,
		HighRiskAreas:   s.highRiskAreas(lat, lon),
		RiskFactors:     factors,
		Recommendations: s.Recommendations(level, factors),
	}
}

// ScoreAll scores inputs in order.
func (s *Scorer) ScoreAll(ins []InputRecord) []PredictionRecord {
	out := make([]PredictionRecord, 0, len(ins))
	for _, in := range ins {
		out = append(out, s.Score(in))
	}
	return out
}

// SubScores returns the [0,1] contribution of every factor before weighting.
func (s *Scorer) SubScores(f RiskFactors) map[Factor]float64 {
	return map[Factor]float64{
		FactorTrafficDensity:      s.profile.TrafficDensity.Lookup(f.TrafficDensity),
		FactorHistoricalIncidents: IncidentScore(f.HistoricalIncidents),
		FactorWeatherCondition:    s.profile.Weather.Lookup(f.WeatherCondition),
		FactorRoadCondition:       s.profile.RoadCondition.Lookup(f.RoadCondition),
		FactorTimeOfDay:           s.profile.TimeOfDay.Lookup(f.TimeOfDay),
	}
}

// RiskScore is the truncated weighted sum of the sub-scores on a 0-100 scale.
func (s *Scorer) RiskScore(f RiskFactors) int {
	sub := s.SubScores(f)
	var sum float64
	for _, factor := range factorOrder {
		// The conversion forces rounding of the product so it is never fused with the add.
		sum += float64(s.profile.Weights[factor] * sub[factor])
	}
	return int(sum * 100)
}

// IncidentScore ramps linearly from 0 to 1 at IncidentSaturation incidents.
func IncidentScore(n int) float64 {
	if n <= 0 {
		return 0
	}
	return math.Min(float64(n)/IncidentSaturation, 1)
}

// Recommendations returns the countermeasures for a level, most general first.
func (s *Scorer) Recommendations(level RiskLevel, f RiskFactors) []string {
	switch {
	case level.Elevated():
		recs := []string{
			"Increase police patrol in the area",
			"Install additional traffic signals",
			"Add warning signs",
		}
		if s.profile.isHazardousWeather(f.WeatherCondition) {
			recs = append(recs, "Install weather warning systems")
		}
		if f.HistoricalIncidents > s.profile.AuditThreshold {
			recs = append(recs, "Conduct thorough safety audit")
		}
		return recs
	case level == RiskLevelMedium:
		return []string{
			"Monitor traffic patterns",
			"Consider road maintenance",
			"Review signage",
		}
	default:
		return []string{
			"Regular monitoring",
			"Maintain current safety measures",
		}
	}
}

func (s *Scorer) highRiskAreas(lat, lon float64) []Coordinate {
	s.mu.Lock()
	defer s.mu.Unlock()

	areas := make([]Coordinate, AreaCount)
	for i := range areas {
		areas[i] = Coordinate{lat + s.jitter.Rand(), lon + s.jitter.Rand()}
	}
	return areas
}
