package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/AanchalYadav15/acciguard/models"
	"github.com/AanchalYadav15/acciguard/scoring"
)

// StatsWindow is the lookback of Stats.TotalPredictions.
const StatsWindow = 24 * time.Hour

// UnknownFactor is reported when there are no predictions to rank.
const UnknownFactor = "Unknown"

type Stats struct {
	TotalPredictions int64   `json:"total_predictions"`
	AvgRiskScore     float64 `json:"avg_risk_score"`
	MostCommonFactor string  `json:"most_common_factor"`
}

type factorCount struct {
	WeatherCondition string
	Count            int64
}

// PredictionStore is the append-only record store backed by gorm.
type PredictionStore struct {
	db    *gorm.DB
	clock clockwork.Clock
}

func NewPredictionStore(db *gorm.DB, clock clockwork.Clock) *PredictionStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &PredictionStore{db: db, clock: clock}
}

// Migrate creates or updates the prediction and operator tables.
func (s *PredictionStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&models.Prediction{},
		&models.Recommendation{},
		&models.HighRiskArea{},
		&models.User{},
	)
}

// Save persists one record and its children in a single transaction.
func (s *PredictionStore) Save(ctx context.Context, rec scoring.PredictionRecord) (uint, error) {
	row := models.NewPrediction(rec)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("%w: save prediction: %v", scoring.ErrStorageFailure, err)
	}
	return row.ID, nil
}

// SaveAll persists a batch atomically; either every record is stored or none is.
func (s *PredictionStore) SaveAll(ctx context.Context, recs []scoring.PredictionRecord) ([]uint, error) {
	ids := make([]uint, 0, len(recs))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, rec := range recs {
			row := models.NewPrediction(rec)
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("record %d: %v", i+1, err)
			}
			ids = append(ids, row.ID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: save batch: %v", scoring.ErrStorageFailure, err)
	}
	return ids, nil
}

func byPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position")
}

// Recent returns up to limit records newer than now-since, newest first.
func (s *PredictionStore) Recent(ctx context.Context, since time.Duration, limit int) ([]scoring.PredictionRecord, error) {
	cutoff := s.clock.Now().Add(-since)

	var rows []models.Prediction
	err := s.db.WithContext(ctx).
		Preload("Recommendations", byPosition).
		Preload("HighRiskAreas", byPosition).
		Where("ts > ?", cutoff).
		Order("ts DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: query recent predictions: %v", scoring.ErrStorageFailure, err)
	}

	out := make([]scoring.PredictionRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Record())
	}
	return out, nil
}

// Stats reports the 24h prediction count, the all-time mean score rounded to
// two places and the most frequent weather condition.
func (s *PredictionStore) Stats(ctx context.Context) (Stats, error) {
	db := s.db.WithContext(ctx)
	var stats Stats

	cutoff := s.clock.Now().Add(-StatsWindow)
	if err := db.Model(&models.Prediction{}).Where("ts > ?", cutoff).Count(&stats.TotalPredictions).Error; err != nil {
		return Stats{}, fmt.Errorf("%w: count predictions: %v", scoring.ErrStorageFailure, err)
	}

	var avg float64
	if err := db.Model(&models.Prediction{}).Select("COALESCE(AVG(risk_score), 0)").Scan(&avg).Error; err != nil {
		return Stats{}, fmt.Errorf("%w: average risk score: %v", scoring.ErrStorageFailure, err)
	}
	stats.AvgRiskScore = decimal.NewFromFloat(avg).Round(2).InexactFloat64()

	var top factorCount
	err := db.Model(&models.Prediction{}).
		Select("weather_condition, COUNT(*) AS count").
		Group("weather_condition").
		Order("count DESC").
		Limit(1).
		Scan(&top).Error
	if err != nil {
		return Stats{}, fmt.Errorf("%w: most common factor: %v", scoring.ErrStorageFailure, err)
	}
	stats.MostCommonFactor = top.WeatherCondition
	if stats.MostCommonFactor == "" {
		stats.MostCommonFactor = UnknownFactor
	}
	return stats, nil
}
