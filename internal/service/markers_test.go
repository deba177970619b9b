package service

import (
	"testing"

	"github.com/cwaweather/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMarkers(t *testing.T) {
	records := []domain.WeatherRecord{
		{Location: "北部地區", MinTemp: domain.Float(18), MaxTemp: domain.Float(24), Description: domain.String("多雲")},
		{Location: "南部地區", MinTemp: domain.Float(26), MaxTemp: domain.Float(34)},
		{Location: "東部地區", MaxTemp: domain.Float(22)},
		{Location: domain.UnknownRegion, MinTemp: domain.Float(10), MaxTemp: domain.Float(12)},
	}

	markers := BuildMarkers(records)
	require.Len(t, markers, 3)

	north := markers[0]
	assert.Equal(t, "台北", north.City)
	assert.Equal(t, 25.0330, north.Latitude)
	assert.Equal(t, 21.0, *north.AvgTemp)
	assert.Equal(t, domain.BandModerate, north.Band)
	assert.Equal(t, 29.0, north.Size)

	south := markers[1]
	assert.Equal(t, 30.0, *south.AvgTemp)
	assert.Equal(t, domain.BandHot, south.Band)
	assert.Equal(t, 42.5, south.Size)

	east := markers[2]
	assert.Nil(t, east.AvgTemp)
	assert.Equal(t, domain.BandModerate, east.Band)
	assert.Equal(t, 27.5, east.Size)
}

func TestMarkerSizeIsClamped(t *testing.T) {
	assert.Equal(t, 20.0, markerSize(5))
	assert.Equal(t, 45.0, markerSize(40))
}

func TestBuildSeries(t *testing.T) {
	series := BuildSeries([]domain.WeatherRecord{
		{Location: "北部地區", MinTemp: domain.Float(18), MaxTemp: domain.Float(24.5)},
		{Location: "中部地區", MaxTemp: domain.Float(27)},
	})

	assert.Equal(t, []string{"北部地區", "中部地區"}, series.Locations)
	assert.Equal(t, 6.5, *series.Ranges[0])
	assert.Nil(t, series.Ranges[1])
	assert.Nil(t, series.MinTemps[1])
	assert.Equal(t, 27.0, *series.MaxTemps[1])
}
