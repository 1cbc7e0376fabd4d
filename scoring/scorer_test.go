package scoring

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScorer(t *testing.T, opts ...Option) *Scorer {
	t.Helper()
	s, err := NewScorer(DefaultProfile(), opts...)
	require.NoError(t, err)
	return s
}

func TestDefaultProfileWeightsSumToOne(t *testing.T) {
	p := DefaultProfile()
	require.NoError(t, p.Validate())

	var sum float64
	for _, f := range factorOrder {
		sum += p.Weights[f]
	}
	assert.Equal(t, 1.0, sum)
}

func TestProfileValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Profile)
	}{
		{"weights do not sum to one", func(p *Profile) { p.Weights[FactorTimeOfDay] = 0.2 }},
		{"missing weight", func(p *Profile) { delete(p.Weights, FactorRoadCondition) }},
		{"extra weight", func(p *Profile) { p.Weights["speed_limit"] = 0 }},
		{"negative weight", func(p *Profile) {
			p.Weights[FactorTimeOfDay] = -0.1
			p.Weights[FactorTrafficDensity] = 0.5
		}},
		{"sub-score above one", func(p *Profile) { p.Weather.Values["hail"] = 1.5 }},
		{"default out of range", func(p *Profile) { p.RoadCondition.Fallback = -0.2 }},
		{"empty table", func(p *Profile) { p.TimeOfDay.Values = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultProfile()
			tt.mutate(&p)
			assert.Error(t, p.Validate())

			_, err := NewScorer(p)
			assert.Error(t, err)
		})
	}
}

func TestScorerKeepsPrivateProfile(t *testing.T) {
	p := DefaultProfile()
	s := newTestScorer(t)
	s2, err := NewScorer(p)
	require.NoError(t, err)

	p.Weather.Values["rain"] = 0
	got := s2.SubScores(RiskFactors{WeatherCondition: "rain"})
	assert.Equal(t, 0.8, got[FactorWeatherCondition])
	assert.Equal(t, s.Profile().Weights, s2.Profile().Weights)
}

func TestLevelFromScoreBoundaries(t *testing.T) {
	tests := []struct {
		score int
		want  RiskLevel
	}{
		{0, RiskLevelLow},
		{39, RiskLevelLow},
		{40, RiskLevelMedium},
		{59, RiskLevelMedium},
		{60, RiskLevelHigh},
		{79, RiskLevelHigh},
		{80, RiskLevelVeryHigh},
		{100, RiskLevelVeryHigh},
	}
	for _, tt := range tests {
		if got := LevelFromScore(tt.score); got != tt.want {
			t.Errorf("LevelFromScore(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestLevelFromScoreMonotonic(t *testing.T) {
	rank := map[RiskLevel]int{RiskLevelLow: 0, RiskLevelMedium: 1, RiskLevelHigh: 2, RiskLevelVeryHigh: 3}
	prev := rank[LevelFromScore(0)]
	for s := 1; s <= 100; s++ {
		cur := rank[LevelFromScore(s)]
		if cur < prev {
			t.Fatalf("level decreased at score %d", s)
		}
		prev = cur
	}
}

func TestIncidentScore(t *testing.T) {
	tests := []struct {
		n    int
		want float64
	}{
		{0, 0},
		{5, 0.5},
		{10, 1},
		{20, 1},
		{-3, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IncidentScore(tt.n), "n=%d", tt.n)
	}
}

func TestSubScoresUnknownValuesUseDefaults(t *testing.T) {
	s := newTestScorer(t)
	got := s.SubScores(RiskFactors{
		TrafficDensity:   "gridlock",
		WeatherCondition: "hail",
		RoadCondition:    "cobblestone",
		TimeOfDay:        "dusk",
	})

	assert.Equal(t, 0.5, got[FactorTrafficDensity])
	assert.Equal(t, 0.2, got[FactorWeatherCondition])
	assert.Equal(t, 0.2, got[FactorRoadCondition])
	assert.Equal(t, 0.3, got[FactorTimeOfDay])
	assert.Equal(t, 0.0, got[FactorHistoricalIncidents])
}

func TestScoreScenarios(t *testing.T) {
	tests := []struct {
		name      string
		in        InputRecord
		wantScore int
		wantLevel RiskLevel
		wantRecs  []string
	}{
		{
			name: "severe winter conditions",
			in: InputRecord{
				TrafficDensity:      "very high",
				WeatherCondition:    "snow",
				RoadCondition:       "poor",
				TimeOfDay:           "peak_morning",
				HistoricalIncidents: 8,
			},
			wantScore: 86,
			wantLevel: RiskLevelVeryHigh,
			wantRecs: []string{
				"Increase police patrol in the area",
				"Install additional traffic signals",
				"Add warning signs",
				"Install weather warning systems",
				"Conduct thorough safety audit",
			},
		},
		{
			name:      "all defaults",
			in:        InputRecord{},
			wantScore: 25,
			wantLevel: RiskLevelLow,
			wantRecs:  []string{"Regular monitoring", "Maintain current safety measures"},
		},
		{
			// 0.65 is 0.6499999999999999 in float64, so the score truncates to 64.
			name: "rainy evening truncates",
			in: InputRecord{
				TrafficDensity:      "high",
				WeatherCondition:    "rain",
				RoadCondition:       "fair",
				TimeOfDay:           "peak_evening",
				HistoricalIncidents: 5,
			},
			wantScore: 64,
			wantLevel: RiskLevelHigh,
			wantRecs: []string{
				"Increase police patrol in the area",
				"Install additional traffic signals",
				"Add warning signs",
				"Install weather warning systems",
			},
		},
		{
			name: "foggy morning just below high",
			in: InputRecord{
				TrafficDensity:      "very high",
				WeatherCondition:    "fog",
				RoadCondition:       "good",
				TimeOfDay:           "peak_morning",
				HistoricalIncidents: 3,
			},
			wantScore: 59,
			wantLevel: RiskLevelMedium,
			wantRecs:  []string{"Monitor traffic patterns", "Consider road maintenance", "Review signage"},
		},
		{
			name: "quiet road",
			in: InputRecord{
				TrafficDensity:   "low",
				WeatherCondition: "clear",
				RoadCondition:    "excellent",
				TimeOfDay:        "off_peak",
			},
			wantScore: 14,
			wantLevel: RiskLevelLow,
			wantRecs:  []string{"Regular monitoring", "Maintain current safety measures"},
		},
	}

	s := newTestScorer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Score(tt.in)
			assert.Equal(t, tt.wantScore, got.RiskScore)
			assert.Equal(t, tt.wantLevel, got.RiskLevel)
			assert.Equal(t, tt.wantRecs, got.Recommendations)
		})
	}
}

func TestScoreNormalizesCategoricalInputs(t *testing.T) {
	s := newTestScorer(t)

	shouted := s.Score(InputRecord{TrafficDensity: "  VERY High ", WeatherCondition: "SNOW", RoadCondition: "Poor", TimeOfDay: "Peak_Morning"})
	plain := s.Score(InputRecord{TrafficDensity: "very high", WeatherCondition: "snow", RoadCondition: "poor", TimeOfDay: "peak_morning"})

	assert.Equal(t, plain.RiskScore, shouted.RiskScore)
	assert.Equal(t, RiskFactors{
		TrafficDensity:   "very high",
		WeatherCondition: "snow",
		RoadCondition:    "poor",
		TimeOfDay:        "peak_morning",
	}, shouted.RiskFactors)
}

func TestScoreReportsDefaultsAndUnknowns(t *testing.T) {
	s := newTestScorer(t)

	got := s.Score(InputRecord{WeatherCondition: "Hail"})
	assert.Equal(t, DefaultLocation, got.Location)
	assert.Equal(t, RiskFactors{
		TrafficDensity:   DefaultTrafficDensity,
		WeatherCondition: "hail",
		RoadCondition:    DefaultRoadCondition,
		TimeOfDay:        DefaultTimeOfDay,
	}, got.RiskFactors)
	assert.Equal(t, 25, got.RiskScore)
}

func TestScoreRangeOverAllCategories(t *testing.T) {
	s := newTestScorer(t)
	p := s.Profile()

	for traffic := range p.TrafficDensity.Values {
		for weather := range p.Weather.Values {
			for road := range p.RoadCondition.Values {
				for tod := range p.TimeOfDay.Values {
					for n := 0; n <= 12; n += 3 {
						f := RiskFactors{
							TrafficDensity:      traffic,
							WeatherCondition:    weather,
							RoadCondition:       road,
							TimeOfDay:           tod,
							HistoricalIncidents: n,
						}
						score := s.RiskScore(f)
						if score < 0 || score > 100 {
							t.Fatalf("RiskScore(%+v) = %d, out of range", f, score)
						}
						if again := s.RiskScore(f); again != score {
							t.Fatalf("RiskScore(%+v) not deterministic: %d then %d", f, score, again)
						}
					}
				}
			}
		}
	}
}

func TestRecommendationsElevatedWithoutExtras(t *testing.T) {
	s := newTestScorer(t)
	got := s.Recommendations(RiskLevelHigh, RiskFactors{WeatherCondition: "cloudy", HistoricalIncidents: 5})
	assert.Equal(t, []string{
		"Increase police patrol in the area",
		"Install additional traffic signals",
		"Add warning signs",
	}, got)
}

func TestHighRiskAreasStayWithinJitter(t *testing.T) {
	s := newTestScorer(t, WithSource(rand.NewPCG(42, 7)))
	lat, lon := 51.5074, -0.1278

	for i := 0; i < 500; i++ {
		got := s.Score(InputRecord{Latitude: &lat, Longitude: &lon})
		require.Len(t, got.HighRiskAreas, AreaCount)
		for _, c := range got.HighRiskAreas {
			assert.InDelta(t, lat, c.Lat(), AreaJitter+1e-9)
			assert.InDelta(t, lon, c.Lon(), AreaJitter+1e-9)
		}
	}
}

func TestHighRiskAreasDefaultBase(t *testing.T) {
	s := newTestScorer(t, WithSource(rand.NewPCG(1, 1)))
	got := s.Score(InputRecord{})
	for _, c := range got.HighRiskAreas {
		assert.InDelta(t, DefaultLatitude, c.Lat(), AreaJitter+1e-9)
		assert.InDelta(t, DefaultLongitude, c.Lon(), AreaJitter+1e-9)
	}
}

func TestHighRiskAreasReproducibleWithSeed(t *testing.T) {
	a := newTestScorer(t, WithSource(rand.NewPCG(2024, 11)))
	b := newTestScorer(t, WithSource(rand.NewPCG(2024, 11)))

	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Score(InputRecord{}).HighRiskAreas, b.Score(InputRecord{}).HighRiskAreas)
	}
}

func TestScoreUsesInjectedClock(t *testing.T) {
	at := time.Date(2025, 3, 14, 8, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))
	s := newTestScorer(t, WithClock(clockwork.NewFakeClockAt(at)))

	got := s.Score(InputRecord{Location: "  Ring Road "})
	assert.True(t, got.Timestamp.Equal(at))
	assert.Equal(t, time.UTC, got.Timestamp.Location())
	assert.Equal(t, "Ring Road", got.Location)
}

func TestScoreAllPreservesOrder(t *testing.T) {
	s := newTestScorer(t)
	ins := []InputRecord{
		{Location: "a", TrafficDensity: "low"},
		{Location: "b", TrafficDensity: "very high", WeatherCondition: "snow", RoadCondition: "poor", TimeOfDay: "peak_morning", HistoricalIncidents: 8},
		{Location: "c"},
	}

	got := s.ScoreAll(ins)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Location)
	assert.Equal(t, "b", got[1].Location)
	assert.Equal(t, 86, got[1].RiskScore)
	assert.Equal(t, "c", got[2].Location)
}
