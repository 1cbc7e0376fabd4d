package handlers

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	DefaultHours = 24
	DefaultLimit = 50
	MaxLimit     = 500

	DefaultRadiusKm = 5.0
)

// LookbackParams selects recent predictions.
type LookbackParams struct {
	Hours int
	Limit int
}

func (p LookbackParams) Window() time.Duration {
	return time.Duration(p.Hours) * time.Hour
}

// NearParams is an optional distance filter; Set is false when lat and lon
// were both omitted.
type NearParams struct {
	Set      bool
	Lat      float64
	Lon      float64
	RadiusKm float64
}

func ParseLookback(c *gin.Context) (LookbackParams, error) {
	p := LookbackParams{Hours: DefaultHours, Limit: DefaultLimit}

	if hoursStr := c.Query("hours"); hoursStr != "" {
		h, err := strconv.Atoi(hoursStr)
		if err != nil || h <= 0 {
			return p, fmt.Errorf("invalid hours parameter, must be a positive integer")
		}
		p.Hours = h
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			return p, fmt.Errorf("invalid limit parameter, must be a positive integer")
		}
		p.Limit = l
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}

	return p, nil
}

func ParseNear(c *gin.Context) (NearParams, error) {
	latStr, lonStr := c.Query("lat"), c.Query("lon")
	if latStr == "" && lonStr == "" {
		return NearParams{}, nil
	}
	if latStr == "" || lonStr == "" {
		return NearParams{}, fmt.Errorf("lat and lon must be given together")
	}

	p := NearParams{Set: true, RadiusKm: DefaultRadiusKm}
	var err error
	if p.Lat, err = strconv.ParseFloat(latStr, 64); err != nil || !(p.Lat >= -90 && p.Lat <= 90) {
		return NearParams{}, fmt.Errorf("invalid lat parameter")
	}
	if p.Lon, err = strconv.ParseFloat(lonStr, 64); err != nil || !(p.Lon >= -180 && p.Lon <= 180) {
		return NearParams{}, fmt.Errorf("invalid lon parameter")
	}
	if radiusStr := c.Query("radius_km"); radiusStr != "" {
		if p.RadiusKm, err = strconv.ParseFloat(radiusStr, 64); err != nil || !(p.RadiusKm > 0) {
			return NearParams{}, fmt.Errorf("invalid radius_km parameter, must be a positive number")
		}
	}
	return p, nil
}
