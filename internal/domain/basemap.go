package domain

// Basemap is a selectable background for the map, made of one or more tile
// layers drawn bottom to top.
type Basemap struct {
	ID      string   `json:"id"`
	Label   string   `json:"label"`
	Tiles   []string `json:"tiles"`
	Default bool     `json:"default,omitempty"`
}

const arcgisTiles = "https://server.arcgisonline.com/ArcGIS/rest/services/"

// Basemaps lists the available backgrounds. Satellite is the default.
func Basemaps() []Basemap {
	return []Basemap{
		{
			ID:    "satellite",
			Label: "Satellite",
			Tiles: []string{
				arcgisTiles + "World_Imagery/MapServer/tile/{z}/{y}/{x}",
				arcgisTiles + "Reference/World_Boundaries_and_Places/MapServer/tile/{z}/{y}/{x}",
			},
			Default: true,
		},
		{
			ID:    "geographic",
			Label: "Geographic",
			Tiles: []string{arcgisTiles + "World_Street_Map/MapServer/tile/{z}/{y}/{x}"},
		},
	}
}
