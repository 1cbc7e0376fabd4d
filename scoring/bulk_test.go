package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupported(t *testing.T) {
	tests := []struct {
		filename string
		want     bool
	}{
		{"batch.csv", true},
		{"batch.JSON", true},
		{"archive.tar.json", true},
		{"notes.txt", false},
		{"csv", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := Supported(tt.filename); got != tt.want {
			t.Errorf("Supported(%q) = %v, want %v", tt.filename, got, tt.want)
		}
	}
}

func TestParseFileUnsupportedFormat(t *testing.T) {
	_, err := ParseFile("roads.xlsx", strings.NewReader("whatever"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseCSV(t *testing.T) {
	data := "\ufefflocation,traffic_density,weather_condition,road_condition,time_of_day,historical_incidents\n" +
		"Ring Road,very high,snow,poor,peak_morning,8\n" +
		"NH-48, Low ,clear,excellent,off_peak,\n"

	records, err := ParseFile("batch.csv", strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "Ring Road", records[0].Location)
	assert.Equal(t, 8, records[0].HistoricalIncidents)
	assert.Equal(t, "NH-48", records[1].Location)
	assert.Equal(t, "Low ", records[1].TrafficDensity)
	assert.Equal(t, 0, records[1].HistoricalIncidents)

	s := newTestScorer(t)
	assert.Equal(t, 86, s.Score(records[0]).RiskScore)
	assert.Equal(t, "low", s.Score(records[1]).RiskFactors.TrafficDensity)
}

func TestParseCSVErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantMsg string
	}{
		{"empty file", "", "empty CSV file"},
		{"bad incidents", "location,historical_incidents\nA,3\nB,many\n", "record 2"},
		{"ragged row", "location,traffic_density\nA,low,extra\n", "row 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := ParseCSV(strings.NewReader(tt.data))
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Nil(t, records)
		})
	}
}

func TestParseCSVHeaderOnly(t *testing.T) {
	records, err := ParseCSV(strings.NewReader("location,traffic_density\n"))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestParseJSONSingleObject(t *testing.T) {
	records, err := ParseFile("one.json", strings.NewReader(`{"location":"Outer Ring","traffic_density":"high","historical_incidents":5,"latitude":12.5}`))
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "Outer Ring", records[0].Location)
	assert.Equal(t, 5, records[0].HistoricalIncidents)
	require.NotNil(t, records[0].Latitude)
	assert.Equal(t, 12.5, *records[0].Latitude)
	assert.Nil(t, records[0].Longitude)
}

func TestParseJSONTrailingWhitespace(t *testing.T) {
	records, err := ParseJSON(strings.NewReader("[{\"location\":\"a\"}]\n\n"))
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestParseJSONArrayKeepsOrder(t *testing.T) {
	data := `[
		{"location": "first", "traffic_density": "low"},
		{"location": "second", "weather_condition": "fog"},
		{"location": "third"}
	]`
	records, err := ParseJSON(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, records, 3)

	for i, want := range []string{"first", "second", "third"} {
		assert.Equal(t, want, records[i].Location)
	}
}

func TestParseJSONErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantMsg string
	}{
		{"malformed", `{"location":`, "decode JSON"},
		{"scalar document", `42`, "object or an array"},
		{"non-object item", `[{"location":"a"}, "b"]`, "record 2"},
		{"bad incidents", `[{"historical_incidents":"lots"}]`, "record 1"},
		{"negative incidents", `{"historical_incidents":-3}`, "must not be negative"},
		{"trailing garbage", `{"traffic_density":"high"} this is not json`, "trailing data"},
		{"second document", `{"location":"a"} {"location":"b"}`, "trailing data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJSON(strings.NewReader(tt.data))
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}
