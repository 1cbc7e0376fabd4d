package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"github.com/AanchalYadav15/acciguard/geo"
	"github.com/AanchalYadav15/acciguard/metrics"
	"github.com/AanchalYadav15/acciguard/middleware"
	"github.com/AanchalYadav15/acciguard/scoring"
	"github.com/AanchalYadav15/acciguard/services"
)

// Form field names accepted by POST /predict, mapped to input keys.
var formFields = map[string]string{
	"location":        scoring.KeyLocation,
	"time":            scoring.KeyTimeOfDay,
	"weather":         scoring.KeyWeatherCondition,
	"traffic_density": scoring.KeyTrafficDensity,
	"road_condition":  scoring.KeyRoadCondition,
	"past_accidents":  scoring.KeyHistoricalIncidents,
	"latitude":        scoring.KeyLatitude,
	"longitude":       scoring.KeyLongitude,
}

type PredictionHandler struct {
	svc            *services.PredictionService
	maxUploadBytes int64
}

func NewPredictionHandler(svc *services.PredictionService, maxUploadBytes int64) *PredictionHandler {
	return &PredictionHandler{svc: svc, maxUploadBytes: maxUploadBytes}
}

// Predict scores one record posted as a form, or as a JSON object using the
// input field names.
func (h *PredictionHandler) Predict(c *gin.Context) {
	var (
		in  scoring.InputRecord
		err error
	)
	if c.ContentType() == gin.MIMEJSON {
		in, err = jsonInput(c)
	} else {
		in, err = formInput(c)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	rec, err := h.svc.Predict(c.Request.Context(), in, metrics.SourceForm)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func formInput(c *gin.Context) (scoring.InputRecord, error) {
	fields := make(map[string]any, len(formFields))
	for form, key := range formFields {
		if v, ok := c.GetPostForm(form); ok {
			fields[key] = v
		}
	}
	return scoring.FromMap(fields)
}

func jsonInput(c *gin.Context) (scoring.InputRecord, error) {
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return scoring.InputRecord{}, fmt.Errorf("%w: decode JSON body: %v", scoring.ErrInvalidInput, err)
	}
	if err := scoring.EnsureEOF(dec); err != nil {
		return scoring.InputRecord{}, err
	}
	return scoring.FromMap(fields)
}

// UploadPredict scores every record of an uploaded CSV or JSON file.
func (h *PredictionHandler) UploadPredict(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("File exceeds %d bytes", h.maxUploadBytes)})
			return
		}
		if emptySelection(c) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file selected"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}
	if !scoring.Supported(fh.Filename) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file format. Please upload CSV or JSON file"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read uploaded file"})
		return
	}
	defer f.Close()

	recs, err := h.svc.PredictFile(c.Request.Context(), fh.Filename, f, metrics.SourceUpload)
	if err != nil {
		respondError(c, err)
		return
	}

	fields := log.Fields{"file": fh.Filename, "count": len(recs)}
	if claims, ok := middleware.ClaimsFrom(c); ok {
		fields["operator"] = claims.Email
	}
	log.WithFields(fields).Info("processed upload")
	c.JSON(http.StatusOK, gin.H{
		"message":           "File processed successfully",
		"predictions_count": len(recs),
	})
}

// emptySelection reports whether the file field was sent without a file.
// multipart stores a part with an empty filename as a plain value.
func emptySelection(c *gin.Context) bool {
	form := c.Request.MultipartForm
	if form == nil {
		return false
	}
	_, ok := form.Value["file"]
	return ok
}

// GetHighRiskAreas lists recent predictions, optionally only those with a
// high-risk area near a point.
func (h *PredictionHandler) GetHighRiskAreas(c *gin.Context) {
	recs, _, ok := h.recent(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, recs)
}

// GetHighRiskAreasGeoJSON renders the same selection as a FeatureCollection.
func (h *PredictionHandler) GetHighRiskAreasGeoJSON(c *gin.Context) {
	recs, near, ok := h.recent(c)
	if !ok {
		return
	}
	var origin *scoring.Coordinate
	if near.Set {
		origin = &scoring.Coordinate{near.Lat, near.Lon}
	}
	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, geo.FeatureCollection(recs, origin))
}

func (h *PredictionHandler) recent(c *gin.Context) ([]scoring.PredictionRecord, NearParams, bool) {
	p, err := ParseLookback(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, NearParams{}, false
	}
	near, err := ParseNear(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, NearParams{}, false
	}

	recs, err := h.svc.Recent(c.Request.Context(), p.Window(), p.Limit)
	if err != nil {
		respondError(c, err)
		return nil, NearParams{}, false
	}
	if near.Set {
		recs = geo.FilterNear(recs, geo.NewArea(near.Lat, near.Lon, near.RadiusKm))
	}
	return recs, near, true
}

func (h *PredictionHandler) GetStats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// respondError maps domain errors onto HTTP status codes.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, scoring.ErrInvalidInput) || errors.Is(err, scoring.ErrUnsupportedFormat) {
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
