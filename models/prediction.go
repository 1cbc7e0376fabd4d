package models

import (
	"time"

	"github.com/AanchalYadav15/acciguard/scoring"
)

// Prediction is a persisted scoring result. Child rows keep the order in
// which the scorer produced them via Position.
type Prediction struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	Timestamp           time.Time `gorm:"column:ts;not null;index" json:"timestamp"`
	Location            string    `gorm:"column:location;not null" json:"location"`
	RiskScore           int       `gorm:"column:risk_score;not null" json:"risk_score"`
	RiskLevel           string    `gorm:"column:risk_level;not null" json:"risk_level"`
	TrafficDensity      string    `gorm:"column:traffic_density" json:"traffic_density"`
	WeatherCondition    string    `gorm:"column:weather_condition" json:"weather_condition"`
	RoadCondition       string    `gorm:"column:road_condition" json:"road_condition"`
	TimeOfDay           string    `gorm:"column:time_of_day" json:"time_of_day"`
	HistoricalIncidents int       `gorm:"column:historical_incidents" json:"historical_incidents"`
	CreatedAt           time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`

	Recommendations []Recommendation `gorm:"foreignKey:PredictionID" json:"recommendations"`
	HighRiskAreas   []HighRiskArea   `gorm:"foreignKey:PredictionID" json:"high_risk_areas"`
}

func (Prediction) TableName() string { return "predictions" }

type Recommendation struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	PredictionID   uint   `gorm:"column:prediction_id;index" json:"prediction_id"`
	Position       int    `gorm:"column:position" json:"position"`
	Recommendation string `gorm:"column:recommendation;not null" json:"recommendation"`
}

func (Recommendation) TableName() string { return "recommendations" }

type HighRiskArea struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	PredictionID uint    `gorm:"column:prediction_id;index" json:"prediction_id"`
	Position     int     `gorm:"column:position" json:"position"`
	Latitude     float64 `gorm:"column:latitude;not null" json:"latitude"`
	Longitude    float64 `gorm:"column:longitude;not null" json:"longitude"`
}

func (HighRiskArea) TableName() string { return "high_risk_areas" }

// NewPrediction flattens a scoring result into its row form.
func NewPrediction(rec scoring.PredictionRecord) Prediction {
	p := Prediction{
		Timestamp:           rec.Timestamp,
		Location:            rec.Location,
		RiskScore:           rec.RiskScore,
		RiskLevel:           rec.RiskLevel.String(),
		TrafficDensity:      rec.RiskFactors.TrafficDensity,
		WeatherCondition:    rec.RiskFactors.WeatherCondition,
		RoadCondition:       rec.RiskFactors.RoadCondition,
		TimeOfDay:           rec.RiskFactors.TimeOfDay,
		HistoricalIncidents: rec.RiskFactors.HistoricalIncidents,
	}
	for i, r := range rec.Recommendations {
		p.Recommendations = append(p.Recommendations, Recommendation{Position: i, Recommendation: r})
	}
	for i, a := range rec.HighRiskAreas {
		p.HighRiskAreas = append(p.HighRiskAreas, HighRiskArea{Position: i, Latitude: a.Lat(), Longitude: a.Lon()})
	}
	return p
}

// Record rebuilds the scoring result. Children must be loaded ordered by Position.
func (p Prediction) Record() scoring.PredictionRecord {
	rec := scoring.PredictionRecord{
		Timestamp: p.Timestamp.UTC(),
		Location:  p.Location,
		RiskScore: p.RiskScore,
		RiskLevel: scoring.RiskLevel(p.RiskLevel),
		RiskFactors: scoring.RiskFactors{
			TrafficDensity:      p.TrafficDensity,
			WeatherCondition:    p.WeatherCondition,
			RoadCondition:       p.RoadCondition,
			TimeOfDay:           p.TimeOfDay,
			HistoricalIncidents: p.HistoricalIncidents,
		},
		Recommendations: make([]string, 0, len(p.Recommendations)),
		HighRiskAreas:   make([]scoring.Coordinate, 0, len(p.HighRiskAreas)),
	}
	for _, r := range p.Recommendations {
		rec.Recommendations = append(rec.Recommendations, r.Recommendation)
	}
	for _, a := range p.HighRiskAreas {
		rec.HighRiskAreas = append(rec.HighRiskAreas, scoring.Coordinate{a.Latitude, a.Longitude})
	}
	return rec
}
