package models

// Location represents a geographical location with latitude and longitude coordinates.
type Location struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lon float64 `bson:"lon" json:"lon"`
}

// GeoPoint is a GeoJSON point, the shape MongoDB's 2dsphere index expects.
// Coordinates are ordered [lon, lat] per the GeoJSON spec.
type GeoPoint struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
}

// NewGeoPoint builds a GeoJSON point from a Location.
func NewGeoPoint(loc Location) GeoPoint {
	return GeoPoint{
		Type:        "Point",
		Coordinates: []float64{loc.Lon, loc.Lat},
	}
}

// Location converts a GeoPoint back to a Location.
func (p GeoPoint) Location() Location {
	if len(p.Coordinates) < 2 {
		return Location{}
	}
	return Location{Lat: p.Coordinates[1], Lon: p.Coordinates[0]}
}
