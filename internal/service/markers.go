package service

import (
	"github.com/cwaweather/backend/internal/domain"
	"github.com/cwaweather/backend/pkg/utils"
)

// Marker sizes are in pixels; the map grows markers 1.5px per degree above 15°C
const (
	minMarkerSize = 20.0
	maxMarkerSize = 45.0

	// fallbackTemp sizes a marker whose average is unknown
	fallbackTemp = 20.0
)

// BuildMarkers places each record of a batch on the map. Records of regions
// without known coordinates are left out.
func BuildMarkers(records []domain.WeatherRecord) []domain.RegionMarker {
	markers := make([]domain.RegionMarker, 0, len(records))
	for _, rec := range records {
		region, ok := domain.LookupRegion(rec.Location)
		if !ok {
			continue
		}

		avg := averageTemp(rec.MinTemp, rec.MaxTemp)
		markers = append(markers, domain.RegionMarker{
			Region:      region,
			MinTemp:     rec.MinTemp,
			MaxTemp:     rec.MaxTemp,
			AvgTemp:     avg,
			Description: rec.Description,
			Band:        domain.BandFor(avg),
			Size:        markerSize(orFallback(avg)),
		})
	}
	return markers
}

// BuildSeries lays a batch out column-wise for the comparison and range charts
func BuildSeries(records []domain.WeatherRecord) domain.ChartSeries {
	series := domain.ChartSeries{
		Locations: make([]string, 0, len(records)),
		MinTemps:  make([]*float64, 0, len(records)),
		MaxTemps:  make([]*float64, 0, len(records)),
		Ranges:    make([]*float64, 0, len(records)),
	}
	for _, rec := range records {
		series.Locations = append(series.Locations, rec.Location)
		series.MinTemps = append(series.MinTemps, rec.MinTemp)
		series.MaxTemps = append(series.MaxTemps, rec.MaxTemp)

		var spread *float64
		if rec.MinTemp != nil && rec.MaxTemp != nil {
			spread = domain.Float(utils.RoundTo(*rec.MaxTemp-*rec.MinTemp, 1))
		}
		series.Ranges = append(series.Ranges, spread)
	}
	return series
}

func averageTemp(minTemp, maxTemp *float64) *float64 {
	if minTemp == nil || maxTemp == nil {
		return nil
	}
	return domain.Float(utils.RoundTo((*minTemp+*maxTemp)/2, 1))
}

func orFallback(avg *float64) float64 {
	if avg == nil {
		return fallbackTemp
	}
	return *avg
}

func markerSize(avg float64) float64 {
	return utils.RoundTo(utils.Clamp(minMarkerSize+(avg-15)*1.5, minMarkerSize, maxMarkerSize), 1)
}
