package land

import "time"

// Point is a single vertex of a parcel boundary polygon.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Land is a parcel listed for lease. OwnerID never changes after creation.
// Available flips to false while an active lease holds the parcel and back
// to true when that lease completes.
type Land struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Area          float64   `json:"area"`
	AreaUnit      string    `json:"area_unit"`
	MonthlyRent   float64   `json:"monthly_rent"`
	SoilType      string    `json:"soil_type"`
	WaterSource   string    `json:"water_source"`
	AvailableFrom string    `json:"available_from"`
	AvailableTo   string    `json:"available_to"`
	Coordinates   []Point   `json:"coordinates"`
	PhotoKeys     []string  `json:"photo_keys"`
	Available     bool      `json:"available"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
