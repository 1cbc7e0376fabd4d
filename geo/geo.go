// Package geo filters predictions by distance and renders their high-risk
// areas as GeoJSON.
package geo

import (
	"time"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	geojson "github.com/paulmach/go.geojson"
	"github.com/shopspring/decimal"

	"github.com/AanchalYadav15/acciguard/scoring"
)

// EarthRadiusKm is the mean Earth radius.
const EarthRadiusKm = 6371.0088

// Area is a spherical cap around a point.
type Area struct {
	cap s2.Cap
}

func NewArea(lat, lon, radiusKm float64) Area {
	center := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon))
	return Area{cap: s2.CapFromCenterAngle(center, s1.Angle(radiusKm/EarthRadiusKm))}
}

func (a Area) Contains(c scoring.Coordinate) bool {
	return a.cap.ContainsPoint(s2.PointFromLatLng(s2.LatLngFromDegrees(c.Lat(), c.Lon())))
}

// DistanceKm is the great-circle distance between two coordinates.
func DistanceKm(a, b scoring.Coordinate) float64 {
	la := s2.LatLngFromDegrees(a.Lat(), a.Lon())
	lb := s2.LatLngFromDegrees(b.Lat(), b.Lon())
	return la.Distance(lb).Radians() * EarthRadiusKm
}

// FilterNear keeps the records with at least one high-risk area inside a,
// preserving order.
func FilterNear(recs []scoring.PredictionRecord, a Area) []scoring.PredictionRecord {
	out := make([]scoring.PredictionRecord, 0, len(recs))
	for _, r := range recs {
		for _, c := range r.HighRiskAreas {
			if a.Contains(c) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// FeatureCollection emits one point feature per high-risk area. When origin
// is set each feature also carries distance_km from it.
func FeatureCollection(recs []scoring.PredictionRecord, origin *scoring.Coordinate) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range recs {
		for i, c := range r.HighRiskAreas {
			// GeoJSON positions are [lon, lat].
			f := geojson.NewPointFeature([]float64{c.Lon(), c.Lat()})
			f.SetProperty("location", r.Location)
			f.SetProperty("risk_score", r.RiskScore)
			f.SetProperty("risk_level", r.RiskLevel.String())
			f.SetProperty("timestamp", r.Timestamp.Format(time.RFC3339))
			f.SetProperty("area", i)
			if origin != nil {
				km := decimal.NewFromFloat(DistanceKm(*origin, c)).Round(3)
				f.SetProperty("distance_km", km.InexactFloat64())
			}
			fc.AddFeature(f)
		}
	}
	return fc
}
