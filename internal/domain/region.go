package domain

// Region is a forecast area of the agricultural forecast feed
type Region struct {
	Name      string  `json:"name"`
	City      string  `json:"city"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Regions lists the areas published by dataset F-A0010-001 with a
// representative city for map placement
var Regions = []Region{
	{Name: "北部地區", City: "台北", Latitude: 25.0330, Longitude: 121.5654},
	{Name: "中部地區", City: "台中", Latitude: 24.1477, Longitude: 120.6736},
	{Name: "南部地區", City: "台南", Latitude: 22.9997, Longitude: 120.2270},
	{Name: "東北部地區", City: "宜蘭", Latitude: 24.7021, Longitude: 121.7378},
	{Name: "東部地區", City: "花蓮", Latitude: 23.9871, Longitude: 121.6015},
	{Name: "東南部地區", City: "台東", Latitude: 22.7583, Longitude: 121.1444},
}

// LookupRegion finds a region by its feed name
func LookupRegion(name string) (Region, bool) {
	for _, r := range Regions {
		if r.Name == name {
			return r, true
		}
	}
	return Region{}, false
}

// TemperatureBand is the colour class used by the map and cards
type TemperatureBand string

const (
	BandCold     TemperatureBand = "cold"
	BandModerate TemperatureBand = "moderate"
	BandHot      TemperatureBand = "hot"
)

// BandFor classifies a temperature; unknown temperatures count as moderate
func BandFor(temp *float64) TemperatureBand {
	switch {
	case temp == nil:
		return BandModerate
	case *temp < 15:
		return BandCold
	case *temp < 25:
		return BandModerate
	default:
		return BandHot
	}
}

// MapCenter is where the dashboard map is centred
type MapCenter struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// TaiwanCenter centres the map on the main island
var TaiwanCenter = MapCenter{Latitude: 23.7, Longitude: 120.9}
