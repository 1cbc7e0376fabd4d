package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/apex/log"

	"github.com/AanchalYadav15/acciguard/broadcast"
	"github.com/AanchalYadav15/acciguard/metrics"
	"github.com/AanchalYadav15/acciguard/scoring"
	"github.com/AanchalYadav15/acciguard/store"
)

// Snapshot window sent to a subscriber when it connects.
const (
	SnapshotWindow = 24 * time.Hour
	SnapshotLimit  = 50
)

// PredictionStore is implemented by *store.PredictionStore.
type PredictionStore interface {
	Save(ctx context.Context, rec scoring.PredictionRecord) (uint, error)
	SaveAll(ctx context.Context, recs []scoring.PredictionRecord) ([]uint, error)
	Recent(ctx context.Context, since time.Duration, limit int) ([]scoring.PredictionRecord, error)
	Stats(ctx context.Context) (store.Stats, error)
}

// Cache is implemented by *CacheService.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

const statsCacheKey = "predictions:stats"

// Snapshot is the payload of the initial_data event.
type Snapshot struct {
	Predictions []scoring.PredictionRecord `json:"predictions"`
	Stats       store.Stats                `json:"stats"`
}

// PredictionService runs the score, persist, broadcast pipeline.
type PredictionService struct {
	scorer    *scoring.Scorer
	store     PredictionStore
	publisher broadcast.Publisher
	metrics   *metrics.Metrics

	cache    Cache
	cacheTTL time.Duration
}

func NewPredictionService(scorer *scoring.Scorer, st PredictionStore, pub broadcast.Publisher, m *metrics.Metrics) *PredictionService {
	return &PredictionService{scorer: scorer, store: st, publisher: pub, metrics: m}
}

// UseCache enables read-through caching of Recent and Stats.
func (s *PredictionService) UseCache(c Cache, ttl time.Duration) {
	s.cache = c
	s.cacheTTL = ttl
}

// Predict scores, stores and broadcasts a single input. A broadcast failure
// is logged and does not fail the call.
func (s *PredictionService) Predict(ctx context.Context, in scoring.InputRecord, source string) (scoring.PredictionRecord, error) {
	rec := s.score(in, source)

	if _, err := s.store.Save(ctx, rec); err != nil {
		s.metrics.PredictionsFailed.WithLabelValues(metrics.StageStore).Inc()
		return scoring.PredictionRecord{}, err
	}
	s.metrics.PredictionsStored.Inc()
	s.forget(ctx, statsCacheKey)

	s.publish(ctx, rec)
	return rec, nil
}

// PredictAll scores a validated batch, stores it in one transaction and then
// broadcasts every record in input order.
func (s *PredictionService) PredictAll(ctx context.Context, ins []scoring.InputRecord, source string) ([]scoring.PredictionRecord, error) {
	recs := s.scorer.ScoreAll(ins)
	for _, rec := range recs {
		s.observe(rec, source)
	}
	if len(recs) == 0 {
		return recs, nil
	}

	if _, err := s.store.SaveAll(ctx, recs); err != nil {
		s.metrics.PredictionsFailed.WithLabelValues(metrics.StageStore).Inc()
		return nil, err
	}
	s.metrics.PredictionsStored.Add(float64(len(recs)))
	s.forget(ctx, statsCacheKey)

	for _, rec := range recs {
		s.publish(ctx, rec)
	}
	return recs, nil
}

// PredictFile parses a CSV or JSON document and runs PredictAll. An invalid
// record rejects the whole document before anything is scored.
func (s *PredictionService) PredictFile(ctx context.Context, filename string, r io.Reader, source string) ([]scoring.PredictionRecord, error) {
	ins, err := scoring.ParseFile(filename, r)
	if err != nil {
		s.metrics.PredictionsFailed.WithLabelValues(metrics.StageValidate).Inc()
		return nil, err
	}
	s.metrics.BatchSize.Observe(float64(len(ins)))
	return s.PredictAll(ctx, ins, source)
}

func (s *PredictionService) score(in scoring.InputRecord, source string) scoring.PredictionRecord {
	rec := s.scorer.Score(in)
	s.observe(rec, source)
	return rec
}

func (s *PredictionService) observe(rec scoring.PredictionRecord, source string) {
	s.metrics.PredictionsScored.WithLabelValues(source).Inc()
	s.metrics.RiskScore.Observe(float64(rec.RiskScore))
	s.metrics.RiskLevel.WithLabelValues(rec.RiskLevel.String()).Inc()
}

func (s *PredictionService) publish(ctx context.Context, rec scoring.PredictionRecord) {
	if err := s.publisher.Publish(ctx, broadcast.EventNewPrediction, rec); err != nil {
		s.metrics.PredictionsFailed.WithLabelValues(metrics.StagePublish).Inc()
		log.WithError(err).WithField("location", rec.Location).Warn("broadcast prediction failed")
		return
	}
	s.metrics.PredictionsPublished.Inc()
}

// Recent returns stored predictions newer than since, newest first.
func (s *PredictionService) Recent(ctx context.Context, since time.Duration, limit int) ([]scoring.PredictionRecord, error) {
	key := fmt.Sprintf("predictions:recent:%d:%d", int64(since/time.Second), limit)
	var recs []scoring.PredictionRecord
	if s.cached(ctx, key, &recs) {
		return recs, nil
	}

	recs, err := s.store.Recent(ctx, since, limit)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, key, recs)
	return recs, nil
}

func (s *PredictionService) Stats(ctx context.Context) (store.Stats, error) {
	var stats store.Stats
	if s.cached(ctx, statsCacheKey, &stats) {
		return stats, nil
	}

	stats, err := s.store.Stats(ctx)
	if err != nil {
		return store.Stats{}, err
	}
	s.remember(ctx, statsCacheKey, stats)
	return stats, nil
}

// Snapshot returns the initial state for a new live subscriber.
func (s *PredictionService) Snapshot(ctx context.Context) (Snapshot, error) {
	recs, err := s.Recent(ctx, SnapshotWindow, SnapshotLimit)
	if err != nil {
		return Snapshot{}, err
	}
	stats, err := s.Stats(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Predictions: recs, Stats: stats}, nil
}

func (s *PredictionService) cached(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	err := s.cache.Get(ctx, key, dest)
	if err != nil && !errors.Is(err, ErrCacheMiss) {
		log.WithError(err).WithField("key", key).Warn("cache read failed")
	}
	return err == nil
}

func (s *PredictionService) remember(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		log.WithError(err).WithField("key", key).Warn("cache write failed")
	}
}

// forget drops a cached read after a write changed its result. Recent
// queries are keyed by window and limit and expire with the TTL.
func (s *PredictionService) forget(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		log.WithError(err).WithField("key", key).Warn("cache invalidation failed")
	}
}
