package scoring

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

// Factor identifies one input of the weighted sum.
type Factor string

const (
	FactorTrafficDensity      Factor = "traffic_density"
	FactorHistoricalIncidents Factor = "historical_incidents"
	FactorWeatherCondition    Factor = "weather_condition"
	FactorRoadCondition       Factor = "road_condition"
	FactorTimeOfDay           Factor = "time_of_day"
)

// factorOrder is the accumulation order of the weighted sum. Changing it
// changes float rounding and therefore truncated scores.
var factorOrder = []Factor{
	FactorTrafficDensity,
	FactorHistoricalIncidents,
	FactorWeatherCondition,
	FactorRoadCondition,
	FactorTimeOfDay,
}

// Default labels used when a categorical field is absent.
const (
	DefaultTrafficDensity   = "medium"
	DefaultWeatherCondition = "clear"
	DefaultRoadCondition    = "good"
	DefaultTimeOfDay        = "off_peak"
	DefaultLocation         = "Unknown Location"

	DefaultLatitude  = 28.6
	DefaultLongitude = 77.1
)

// IncidentSaturation is the incident count at which the incident sub-score reaches 1.
const IncidentSaturation = 10

// Table maps a normalized categorical value to its sub-score. Fallback is
// used for values missing from Values.
type Table struct {
	Values   map[string]float64
	Fallback float64
}

// Lookup returns the sub-score for an already normalized value.
func (t Table) Lookup(v string) float64 {
	if s, ok := t.Values[v]; ok {
		return s
	}
	return t.Fallback
}

// Profile is the immutable configuration of a Scorer: factor weights and the
// lookup tables of the categorical factors.
type Profile struct {
	Weights          map[Factor]float64
	TrafficDensity   Table
	Weather          Table
	RoadCondition    Table
	TimeOfDay        Table
	HazardousWeather []string
	// AuditThreshold is the incident count above which a safety audit is recommended.
	AuditThreshold int
}

// DefaultProfile returns the stock weights and lookup tables.
func DefaultProfile() Profile {
	return Profile{
		Weights: map[Factor]float64{
			FactorTrafficDensity:      0.3,
			FactorHistoricalIncidents: 0.25,
			FactorWeatherCondition:    0.2,
			FactorRoadCondition:       0.15,
			FactorTimeOfDay:           0.1,
		},
		TrafficDensity: Table{
			Values:   map[string]float64{"very high": 0.9, "high": 0.7, "medium": 0.5, "low": 0.2},
			Fallback: 0.5,
		},
		Weather: Table{
			Values:   map[string]float64{"rain": 0.8, "snow": 0.9, "fog": 0.7, "clear": 0.2, "cloudy": 0.4},
			Fallback: 0.2,
		},
		RoadCondition: Table{
			Values:   map[string]float64{"poor": 0.9, "fair": 0.5, "good": 0.2, "excellent": 0.1},
			Fallback: 0.2,
		},
		TimeOfDay: Table{
			Values:   map[string]float64{"peak_morning": 0.8, "peak_evening": 0.8, "night": 0.6, "off_peak": 0.3},
			Fallback: 0.3,
		},
		HazardousWeather: []string{"rain", "snow", "fog"},
		AuditThreshold:   5,
	}
}

// weightSumTolerance absorbs the binary representation error of decimal weights.
const weightSumTolerance = 1e-9

// Validate checks that every factor has a weight, weights sum to 1 and all
// sub-scores lie in [0,1].
func (p Profile) Validate() error {
	weights := make([]float64, 0, len(factorOrder))
	for _, f := range factorOrder {
		w, ok := p.Weights[f]
		if !ok {
			return fmt.Errorf("profile: missing weight for %s", f)
		}
		if w < 0 || w > 1 {
			return fmt.Errorf("profile: weight for %s out of range: %v", f, w)
		}
		weights = append(weights, w)
	}
	if len(p.Weights) != len(factorOrder) {
		return fmt.Errorf("profile: expected %d weights, got %d", len(factorOrder), len(p.Weights))
	}
	if sum := floats.Sum(weights); !scalar.EqualWithinAbs(sum, 1.0, weightSumTolerance) {
		return fmt.Errorf("profile: weights sum to %v, want 1.0", sum)
	}

	tables := map[Factor]Table{
		FactorTrafficDensity:   p.TrafficDensity,
		FactorWeatherCondition: p.Weather,
		FactorRoadCondition:    p.RoadCondition,
		FactorTimeOfDay:        p.TimeOfDay,
	}
	for f, t := range tables {
		if len(t.Values) == 0 {
			return fmt.Errorf("profile: empty lookup table for %s", f)
		}
		if !inUnitRange(t.Fallback) {
			return fmt.Errorf("profile: default for %s out of range: %v", f, t.Fallback)
		}
		for k, v := range t.Values {
			if !inUnitRange(v) {
				return fmt.Errorf("profile: %s[%q] out of range: %v", f, k, v)
			}
		}
	}
	return nil
}

func inUnitRange(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

func (p Profile) isHazardousWeather(w string) bool {
	return slices.Contains(p.HazardousWeather, w)
}

// clone detaches the profile from maps and slices still held by the caller.
func (p Profile) clone() Profile {
	c := p
	c.Weights = maps.Clone(p.Weights)
	c.TrafficDensity.Values = maps.Clone(p.TrafficDensity.Values)
	c.Weather.Values = maps.Clone(p.Weather.Values)
	c.RoadCondition.Values = maps.Clone(p.RoadCondition.Values)
	c.TimeOfDay.Values = maps.Clone(p.TimeOfDay.Values)
	c.HazardousWeather = slices.Clone(p.HazardousWeather)
	return c
}
