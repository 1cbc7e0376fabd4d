package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// InputRecord is one set of road conditions to score. Empty strings and nil
// coordinates mean the field was not supplied.
type InputRecord struct {
	Location            string   `json:"location,omitempty"`
	TrafficDensity      string   `json:"traffic_density,omitempty"`
	WeatherCondition    string   `json:"weather_condition,omitempty"`
	RoadCondition       string   `json:"road_condition,omitempty"`
	TimeOfDay           string   `json:"time_of_day,omitempty"`
	HistoricalIncidents int      `json:"historical_incidents,omitempty"`
	Latitude            *float64 `json:"latitude,omitempty"`
	Longitude           *float64 `json:"longitude,omitempty"`
}

// RiskFactors are the normalized inputs a score was computed from.
type RiskFactors struct {
	TrafficDensity      string `json:"traffic_density"`
	WeatherCondition    string `json:"weather_condition"`
	RoadCondition       string `json:"road_condition"`
	TimeOfDay           string `json:"time_of_day"`
	HistoricalIncidents int    `json:"historical_incidents"`
}

// Normalize lowercases and trims a categorical value before lookup.
func Normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func normalizeOr(v, fallback string) string {
	if n := Normalize(v); n != "" {
		return n
	}
	return fallback
}

// Factors resolves defaults and normalization. Negative incident counts are
// treated as zero.
func (in InputRecord) Factors() RiskFactors {
	incidents := in.HistoricalIncidents
	if incidents < 0 {
		incidents = 0
	}
	return RiskFactors{
		TrafficDensity:      normalizeOr(in.TrafficDensity, DefaultTrafficDensity),
		WeatherCondition:    normalizeOr(in.WeatherCondition, DefaultWeatherCondition),
		RoadCondition:       normalizeOr(in.RoadCondition, DefaultRoadCondition),
		TimeOfDay:           normalizeOr(in.TimeOfDay, DefaultTimeOfDay),
		HistoricalIncidents: incidents,
	}
}

func (in InputRecord) location() string {
	if l := strings.TrimSpace(in.Location); l != "" {
		return l
	}
	return DefaultLocation
}

func (in InputRecord) base() (lat, lon float64) {
	lat, lon = DefaultLatitude, DefaultLongitude
	if in.Latitude != nil {
		lat = *in.Latitude
	}
	if in.Longitude != nil {
		lon = *in.Longitude
	}
	return lat, lon
}

// Field names accepted by FromMap.
const (
	KeyLocation            = "location"
	KeyTrafficDensity      = "traffic_density"
	KeyWeatherCondition    = "weather_condition"
	KeyRoadCondition       = "road_condition"
	KeyTimeOfDay           = "time_of_day"
	KeyHistoricalIncidents = "historical_incidents"
	KeyLatitude            = "latitude"
	KeyLongitude           = "longitude"
)

// FromMap builds an InputRecord from a decoded JSON object, CSV row or form.
// Keys are matched case-insensitively. Categorical values are taken as-is and
// normalized at scoring time; numeric fields that cannot be coerced return
// ErrInvalidInput.
func FromMap(m map[string]any) (InputRecord, error) {
	fields := make(map[string]any, len(m))
	for k, v := range m {
		fields[strings.ToLower(strings.TrimSpace(k))] = v
	}

	in := InputRecord{
		Location:         stringValue(fields[KeyLocation]),
		TrafficDensity:   stringValue(fields[KeyTrafficDensity]),
		WeatherCondition: stringValue(fields[KeyWeatherCondition]),
		RoadCondition:    stringValue(fields[KeyRoadCondition]),
		TimeOfDay:        stringValue(fields[KeyTimeOfDay]),
	}

	incidents, err := incidentValue(fields[KeyHistoricalIncidents])
	if err != nil {
		return InputRecord{}, err
	}
	in.HistoricalIncidents = incidents

	if in.Latitude, err = coordinateValue(KeyLatitude, fields[KeyLatitude]); err != nil {
		return InputRecord{}, err
	}
	if in.Longitude, err = coordinateValue(KeyLongitude, fields[KeyLongitude]); err != nil {
		return InputRecord{}, err
	}
	return in, nil
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func incidentValue(v any) (int, error) {
	if isBlank(v) {
		return 0, nil
	}

	var n int64
	switch t := v.(type) {
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be an integer, got %q", ErrInvalidInput, KeyHistoricalIncidents, t)
		}
		n = parsed
	case json.Number:
		if i, err := t.Int64(); err == nil {
			n = i
			break
		}
		f, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be an integer, got %q", ErrInvalidInput, KeyHistoricalIncidents, t.String())
		}
		if n, err = truncateIncidents(f); err != nil {
			return 0, err
		}
	case float64:
		var err error
		if n, err = truncateIncidents(t); err != nil {
			return 0, err
		}
	case int:
		n = int64(t)
	case int64:
		n = t
	default:
		return 0, fmt.Errorf("%w: %s has unsupported type %T", ErrInvalidInput, KeyHistoricalIncidents, v)
	}

	if n > MaxIncidents {
		return 0, fmt.Errorf("%w: %s must be at most %d, got %d", ErrInvalidInput, KeyHistoricalIncidents, MaxIncidents, n)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative, got %d", ErrInvalidInput, KeyHistoricalIncidents, n)
	}
	return int(n), nil
}

// MaxIncidents bounds historical_incidents.
const MaxIncidents = math.MaxInt32

// truncateIncidents drops the fraction of a JSON number, checking the range
// before converting.
func truncateIncidents(f float64) (int64, error) {
	switch {
	case math.IsNaN(f) || math.IsInf(f, 0):
		return 0, fmt.Errorf("%w: %s must be finite", ErrInvalidInput, KeyHistoricalIncidents)
	case f < 0:
		return 0, fmt.Errorf("%w: %s must not be negative, got %v", ErrInvalidInput, KeyHistoricalIncidents, f)
	case f > MaxIncidents:
		return 0, fmt.Errorf("%w: %s must be at most %d, got %v", ErrInvalidInput, KeyHistoricalIncidents, MaxIncidents, f)
	}
	return int64(f), nil
}

func coordinateValue(key string, v any) (*float64, error) {
	if isBlank(v) {
		return nil, nil
	}

	var f float64
	switch t := v.(type) {
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be a number, got %q", ErrInvalidInput, key, t)
		}
		f = parsed
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be a number, got %q", ErrInvalidInput, key, t.String())
		}
		f = parsed
	case float64:
		f = t
	case int:
		f = float64(t)
	default:
		return nil, fmt.Errorf("%w: %s has unsupported type %T", ErrInvalidInput, key, v)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %s must be finite", ErrInvalidInput, key)
	}
	return &f, nil
}
